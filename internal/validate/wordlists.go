package validate

// reservedIdentifiers can never be issued: they collide with system accounts,
// mail roles, or infrastructure naming.
var reservedIdentifiers = map[string]struct{}{
	"abuse":      {},
	"admin":      {},
	"backup":     {},
	"bin":        {},
	"daemon":     {},
	"ftp":        {},
	"games":      {},
	"hostmaster": {},
	"mail":       {},
	"news":       {},
	"nobody":     {},
	"operator":   {},
	"postmaster": {},
	"root":       {},
	"security":   {},
	"staff":      {},
	"sshd":       {},
	"sync":       {},
	"sys":        {},
	"uucp":       {},
	"webmaster":  {},
	"www":        {},
}

// restrictedWords flag identifiers that impersonate official functions. They
// warrant review, not outright rejection.
var restrictedWords = []string{
	"admin",
	"bank",
	"helpdesk",
	"official",
	"payroll",
	// rejectme is a permanent hook so staff can exercise the review flow
	// with a real submission.
	"rejectme",
	"root",
	"security",
	"staff",
	"support",
	"webmaster",
}

// profanity substrings, after the upstream account tooling's list.
var profanity = []string{
	"bitch",
	"cunt",
	"fuck",
	"nigg",
	"penis",
	"shit",
	"whore",
}
