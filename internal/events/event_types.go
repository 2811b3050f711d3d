package events

import (
	"time"

	"github.com/spec-kit/account-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountSubmitted EventType = "account_submitted"
	EventAccountCreated   EventType = "account_created"
	EventAccountApproved  EventType = "account_approved"
	EventAccountRejected  EventType = "account_rejected"
)

// Event is a fire-and-forget domain event emitted by the submission
// pipeline, consumed by unspecified external subscribers.
type Event struct {
	ID         string       `json:"id"`
	Type       EventType    `json:"type"`
	Identifier string       `json:"identifier"`
	Timestamp  time.Time    `json:"timestamp"`
	Payload    AccountEvent `json:"payload"`
}

// AccountEvent carries the request snapshot for an account event. The
// encrypted credential payload deliberately never rides along.
type AccountEvent struct {
	Identifier   string   `json:"identifier"`
	FullName     string   `json:"full_name"`
	IsGroup      bool     `json:"is_group"`
	ContactEmail string   `json:"contact_email"`
	Reasons      []string `json:"reasons,omitempty"`
}

// NewAccountEvent snapshots a request for transport.
func NewAccountEvent(req *domain.NewAccountRequest, reasons []string) AccountEvent {
	return AccountEvent{
		Identifier:   req.Identifier,
		FullName:     req.FullName,
		IsGroup:      req.IsGroup,
		ContactEmail: req.ContactEmail,
		Reasons:      reasons,
	}
}
