package models

import "time"

const (
	RolePatient   = "patient"
	RoleSupporter = "supporter"
)

// User mirrors the identity held by the external auth provider. Rows are
// upserted from verified token claims; this service never authenticates
// users itself.
type User struct {
	// ID is the auth provider's subject.
	ID          string `gorm:"primarykey"`
	DisplayName string
	Email       string `gorm:"uniqueIndex"`
	Role        string // "patient" or "supporter"
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Name returns the display name, falling back to email.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
