package app

import (
	"fmt"

	"github.com/ecxia/fleet-safety/internal/models"
	"github.com/ecxia/fleet-safety/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Demo login credentials.
const (
	demoAdminEmail    = "demo@example.com"
	demoAdminPassword = "demo-password"
)

// SeedDemo inserts a sample organization with an admin, two drivers and a
// vehicle. It is a no-op when an organization already exists, so restarting
// against a persistent database keeps data intact.
func SeedDemo(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.Organization{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("app: seed: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	hash, errHash := security.HashPassword(demoAdminPassword)
	if errHash != nil {
		return fmt.Errorf("app: seed: %w", errHash)
	}

	return conn.Transaction(func(tx *gorm.DB) error {
		org := models.Organization{Name: "デモ運送"}
		if errCreate := tx.Create(&org).Error; errCreate != nil {
			return errCreate
		}

		admin := models.AdminUser{
			OrganizationID: org.ID,
			Email:          demoAdminEmail,
			Password:       hash,
			Name:           "デモ管理者",
			Role:           models.RoleOrgAdmin,
			Active:         true,
		}
		if errCreate := tx.Create(&admin).Error; errCreate != nil {
			return errCreate
		}

		vehicle := models.Vehicle{
			OrganizationID: org.ID,
			PlateNumber:    "品川 500 あ 12-34",
			Maker:          "いすゞ",
			Model:          "エルフ",
		}
		if errCreate := tx.Create(&vehicle).Error; errCreate != nil {
			return errCreate
		}

		drivers := []models.Driver{
			{OrganizationID: org.ID, Name: "田中太郎", Status: models.DriverStatusActive, DefaultVehicleID: &vehicle.ID},
			{OrganizationID: org.ID, Name: "鈴木花子", Status: models.DriverStatusActive},
		}
		if errCreate := tx.Create(&drivers).Error; errCreate != nil {
			return errCreate
		}

		log.Infof("demo data seeded: login %s / %s", demoAdminEmail, demoAdminPassword)
		return nil
	})
}
