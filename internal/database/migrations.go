package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/hundredminds/backend/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMember{},
		&models.TeamInvite{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
