package storage

import (
	"time"

	"github.com/charleshuang3/medipair/internal/gormw"
	"github.com/charleshuang3/medipair/internal/models"
)

func CreateInvitation(db *gormw.DB, inv *models.Invitation) error {
	return db.Create(inv).Error
}

func GetInvitationByCode(db *gormw.DB, code string) (*models.Invitation, error) {
	inv := &models.Invitation{}
	if err := db.Where("code = ?", code).First(inv).Error; err != nil {
		return nil, err
	}
	return inv, nil
}

// InvitationCodeExists reports whether any invitation already holds code.
// Codes are never reused once issued, which is stricter than uniqueness
// among live codes but keeps the index simple.
func InvitationCodeExists(db *gormw.DB, code string) (bool, error) {
	var count int64
	if err := db.Model(&models.Invitation{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateInvitationStatus flips a pending invitation to its terminal status.
// The status guard in the WHERE clause makes the transition single-shot even
// under concurrent responders; callers check RowsAffected.
func UpdateInvitationStatus(db *gormw.DB, id string, status string, now time.Time) (int64, error) {
	res := db.Model(&models.Invitation{}).
		Where("id = ? AND status = ?", id, models.InvitationPending).
		Updates(map[string]any{"status": status, "updated_at": now})
	return res.RowsAffected, res.Error
}

func ListSentInvitations(db *gormw.DB, inviterID string, statuses []string) ([]models.Invitation, error) {
	q := db.Where("inviter_id = ?", inviterID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var invs []models.Invitation
	if err := q.Order("created_at DESC").Find(&invs).Error; err != nil {
		return nil, err
	}
	return invs, nil
}

func ListReceivedInvitations(db *gormw.DB, inviteeEmail string, statuses []string) ([]models.Invitation, error) {
	q := db.Where("invitee_email = ?", inviteeEmail)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var invs []models.Invitation
	if err := q.Order("created_at DESC").Find(&invs).Error; err != nil {
		return nil, err
	}
	return invs, nil
}

func CountInvitationsByStatus(db *gormw.DB) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	if err := db.Model(&models.Invitation{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}
