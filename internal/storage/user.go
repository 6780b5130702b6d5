package storage

import (
	"gorm.io/gorm/clause"

	"github.com/charleshuang3/medipair/internal/gormw"
	"github.com/charleshuang3/medipair/internal/models"
)

func GetUserByID(db *gormw.DB, id string) (*models.User, error) {
	user := &models.User{}
	if err := db.Where("id = ?", id).First(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func GetUserByEmail(db *gormw.DB, email string) (*models.User, error) {
	user := &models.User{}
	if err := db.Where("email = ?", email).First(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// UpsertUser refreshes the mirror row for an externally-authenticated
// identity. The auth middleware calls this on every verified request so the
// inviter snapshot returned by invitation lookups stays current.
func UpsertUser(db *gormw.DB, user *models.User) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "email", "role", "updated_at"}),
	}).Create(user).Error
}
