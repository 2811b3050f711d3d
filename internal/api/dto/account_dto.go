package dto

import (
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// SubmitAccountRequest payload.
type SubmitAccountRequest struct {
	Identifier   string `json:"identifier"`
	FullName     string `json:"full_name"`
	IsGroup      bool   `json:"is_group"`
	PersonalRef  int    `json:"personal_ref"`
	OrgRef       int    `json:"org_ref"`
	ContactEmail string `json:"contact_email"`
	// EncryptedSecret is the caller-encrypted credential payload, base64.
	EncryptedSecret string               `json:"encrypted_secret"`
	Policy          domain.WarningPolicy `json:"policy"`
}

// IssueResponse mirrors a validation finding.
type IssueResponse struct {
	Severity domain.IssueSeverity `json:"severity"`
	Code     string               `json:"code"`
	Message  string               `json:"message"`
}

// SubmitAccountResponse reports how a submission settled. TaskID is set only
// for ACCEPTED responses.
type SubmitAccountResponse struct {
	Status domain.SubmitStatus `json:"status"`
	Issues []IssueResponse     `json:"issues"`
	TaskID string              `json:"task_id,omitempty"`
}

// PendingRequestResponse summarizes a queued request for staff review.
type PendingRequestResponse struct {
	ID           int64     `json:"id"`
	Identifier   string    `json:"identifier"`
	FullName     string    `json:"full_name"`
	IsGroup      bool      `json:"is_group"`
	ContactEmail string    `json:"contact_email"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReviewActionResponse reports the effect of approving or rejecting a queued
// request.
type ReviewActionResponse struct {
	Identifier string `json:"identifier"`
	Applied    bool   `json:"applied"`
	TaskID     string `json:"task_id,omitempty"`
}

// TaskStatusLine is one progress entry of a creation task.
type TaskStatusLine struct {
	At   time.Time `json:"at"`
	Line string    `json:"line"`
}

// TaskOutcomeResponse is the terminal result of a finished creation task.
type TaskOutcomeResponse struct {
	Status         domain.SubmitStatus `json:"status"`
	Issues         []IssueResponse     `json:"issues,omitempty"`
	CompletedSteps []string            `json:"completed_steps,omitempty"`
}

// TaskStatusResponse reports a creation task's progress and, once finished,
// its outcome.
type TaskStatusResponse struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Done     bool                 `json:"done"`
	Progress []TaskStatusLine     `json:"progress"`
	Outcome  *TaskOutcomeResponse `json:"outcome,omitempty"`
	Error    string               `json:"error,omitempty"`
}
