package domain

import "strings"

// IssueSeverity splits validation findings into the two tiers the pipeline
// understands: fatal errors and overridable warnings.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "ERROR"
	SeverityWarning IssueSeverity = "WARNING"
)

// Issue codes emitted by the validator.
const (
	IssueDuplicateIdentity  = "DUPLICATE_IDENTITY"
	IssueRequestPending     = "REQUEST_PENDING"
	IssueUnknownExternalRef = "UNKNOWN_EXTERNAL_REF"
	IssueNotEligible        = "NOT_ELIGIBLE"
	IssueIdentifierTaken    = "IDENTIFIER_TAKEN"
	IssueIdentifierQueued   = "IDENTIFIER_QUEUED"
	IssueBadIdentifier      = "BAD_IDENTIFIER"
	IssueReservedIdentifier = "RESERVED_IDENTIFIER"
	IssueNameMismatch       = "NAME_MISMATCH"
	IssueRestrictedWord     = "RESTRICTED_WORD"
	IssueProfanity          = "PROFANITY"
)

// Issue is a single validation finding. Issues are returned by value;
// transport failures travel as ordinary Go errors instead.
type Issue struct {
	Severity IssueSeverity `json:"severity"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
}

// Fatal reports whether the issue blocks the request outright.
func (i Issue) Fatal() bool {
	return i.Severity == SeverityError
}

// JoinIssues renders issue messages into the free-text reason stored with a
// queued request.
func JoinIssues(issues []Issue) string {
	msgs := make([]string, 0, len(issues))
	for _, issue := range issues {
		msgs = append(msgs, issue.Message)
	}
	return strings.Join(msgs, "; ")
}

// IssueMessages extracts the human-readable reasons for notifications.
func IssueMessages(issues []Issue) []string {
	msgs := make([]string, 0, len(issues))
	for _, issue := range issues {
		msgs = append(msgs, issue.Message)
	}
	return msgs
}
