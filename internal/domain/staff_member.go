package domain

import "time"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleReviewer StaffRole = "REVIEWER"
	StaffRoleAdmin    StaffRole = "ADMIN"
)

// StaffMember models an operator who reviews queued account requests.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
