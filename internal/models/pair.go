package models

import "time"

const (
	PairPending    = "pending"
	PairApproved   = "approved"
	PairTerminated = "terminated"
)

// Pair is the durable one-patient-to-one-supporter relationship created when
// an invitation is accepted. A terminated pair is never re-activated; pairing
// the same two users again creates a new row.
//
// Migration adds partial unique indexes on (patient_id) and (supporter_id)
// where status = 'approved', so a losing concurrent writer gets a constraint
// violation instead of a second active pair.
type Pair struct {
	ID          string `gorm:"primarykey"`
	PatientID   string `gorm:"index"`
	SupporterID string `gorm:"index"`
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasParticipant reports whether id is one of the two paired users.
func (p *Pair) HasParticipant(id string) bool {
	return p.PatientID == id || p.SupporterID == id
}
