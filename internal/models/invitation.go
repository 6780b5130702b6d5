package models

import "time"

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationRejected = "rejected"
)

// Invitation is a proposal, identified by a short code, for a named email
// address to join a pair under a specified role.
//
// Status only ever stores pending/accepted/rejected. Expiry is a derived
// read-time fact: readers compare ExpiresAt against the current time, the
// row is never rewritten when time passes.
type Invitation struct {
	ID           string `gorm:"primarykey"`
	InviterID    string `gorm:"index"`
	InviteeEmail string `gorm:"index"`
	TargetRole   string // role the invitee will hold
	Code         string `gorm:"uniqueIndex"`
	Status       string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Message      *string
}
