package storage

import (
	"time"

	"github.com/charleshuang3/medipair/internal/gormw"
	"github.com/charleshuang3/medipair/internal/models"
)

func CreatePair(db *gormw.DB, pair *models.Pair) error {
	return db.Create(pair).Error
}

func GetPairByID(db *gormw.DB, id string) (*models.Pair, error) {
	pair := &models.Pair{}
	if err := db.Where("id = ?", id).First(pair).Error; err != nil {
		return nil, err
	}
	return pair, nil
}

// GetApprovedPairForUser returns the approved pair userID participates in,
// as either role. gorm.ErrRecordNotFound when the user is unpaired.
func GetApprovedPairForUser(db *gormw.DB, userID string) (*models.Pair, error) {
	pair := &models.Pair{}
	err := db.Where("(patient_id = ? OR supporter_id = ?) AND status = ?",
		userID, userID, models.PairApproved).
		First(pair).Error
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func UpdatePairStatus(db *gormw.DB, id string, status string, now time.Time) error {
	return db.Model(&models.Pair{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": now}).Error
}
