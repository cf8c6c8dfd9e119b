package linking

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecxia/fleet-safety/internal/models"
	"gorm.io/gorm"
)

// ResolveDriver returns the active driver bound to a verified LINE user id.
// Suspended drivers do not resolve.
func (s *Service) ResolveDriver(ctx context.Context, lineUserID string) (*models.Driver, error) {
	if lineUserID == "" {
		return nil, ErrNotRegistered
	}
	var driver models.Driver
	errFind := s.db.WithContext(ctx).
		Where("line_user_id = ? AND status = ?", lineUserID, models.DriverStatusActive).
		First(&driver).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, fmt.Errorf("linking: resolve driver: %w", errFind)
	}
	return &driver, nil
}

// ResolveAdmin returns the active admin bound to a verified LINE user id.
func (s *Service) ResolveAdmin(ctx context.Context, lineUserID string) (*models.AdminUser, error) {
	if lineUserID == "" {
		return nil, ErrNotRegistered
	}
	var admin models.AdminUser
	errFind := s.db.WithContext(ctx).
		Where("line_user_id = ? AND active = ?", lineUserID, true).
		First(&admin).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, fmt.Errorf("linking: resolve admin: %w", errFind)
	}
	return &admin, nil
}
