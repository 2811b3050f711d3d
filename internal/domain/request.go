package domain

import "time"

// WarningPolicy selects what happens to a request when validation finds
// non-fatal issues.
type WarningPolicy string

const (
	// PolicyWarn returns the warnings to the caller without acting on them.
	PolicyWarn WarningPolicy = "WARN"
	// PolicySubmit queues the request for staff review.
	PolicySubmit WarningPolicy = "SUBMIT"
	// PolicyCreate creates the account despite warnings.
	PolicyCreate WarningPolicy = "CREATE"
)

// Valid reports whether the policy is one of the three known values.
func (p WarningPolicy) Valid() bool {
	return p == PolicyWarn || p == PolicySubmit || p == PolicyCreate
}

// NewAccountRequest is a caller-constructed request for a new account. It is
// immutable once handed to the submission service.
type NewAccountRequest struct {
	Identifier string
	FullName   string
	IsGroup    bool

	// PersonalRef identifies the requesting individual in the upstream
	// directory. Zero for group requests.
	PersonalRef int
	// OrgRef identifies the organization behind a group request. Zero is a
	// sentinel meaning the request is exempt from duplicate-identity checks.
	OrgRef int

	ContactEmail string
	// EncryptedSecret is the credential payload, encrypted by the caller
	// before it crossed any untrusted boundary.
	EncryptedSecret []byte

	Policy WarningPolicy
}

// StoredRequest is a NewAccountRequest persisted for staff review. It is
// deleted, not updated, when approved or rejected.
type StoredRequest struct {
	ID int64
	NewAccountRequest
	// Reason holds the serialized warnings that caused queueing.
	Reason    string
	CreatedAt time.Time
}

// SubmitStatus classifies the outcome of a submission.
type SubmitStatus string

const (
	StatusCreated  SubmitStatus = "CREATED"
	StatusFlagged  SubmitStatus = "FLAGGED"
	StatusPending  SubmitStatus = "PENDING"
	StatusRejected SubmitStatus = "REJECTED"
	// StatusAccepted means a creation task was launched; the terminal
	// CREATED or REJECTED outcome is reported by the task.
	StatusAccepted SubmitStatus = "ACCEPTED"
)

// CreationOutcome is the terminal result of a creation task.
type CreationOutcome struct {
	Status         SubmitStatus
	Issues         []Issue
	CompletedSteps []string
}
