package db

import (
	"fmt"

	"github.com/ecxia/fleet-safety/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates all tables used by the application.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.Organization{},
		&models.AdminUser{},
		&models.Driver{},
		&models.Vehicle{},
		&models.PreWorkReport{},
		&models.PostWorkReport{},
		&models.DailyInspection{},
		&models.AccidentReport{},
		&models.Shift{},
		&models.EmergencyReport{},
	)
}
