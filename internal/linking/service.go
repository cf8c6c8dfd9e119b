// Package linking implements the one-time-token protocol that binds drivers
// and admins to their LINE accounts, and resolves verified LINE user ids back
// to internal actors.
package linking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecxia/fleet-safety/internal/models"
	"github.com/ecxia/fleet-safety/internal/security"
	"gorm.io/gorm"
)

// Token lifecycle errors surfaced to callers.
var (
	// ErrTokenNotFound indicates no claimable token matched.
	ErrTokenNotFound = errors.New("linking: token not found")
	// ErrTokenExpired indicates the token existed but its expiry has passed.
	// The token is invalidated; the actor needs a re-issued token.
	ErrTokenExpired = errors.New("linking: token expired")
	// ErrTokenAlreadyUsed indicates a concurrent claim won the race.
	ErrTokenAlreadyUsed = errors.New("linking: token already used")
	// ErrAlreadyBound indicates the LINE account is bound to a different actor.
	ErrAlreadyBound = errors.New("linking: line account bound to another actor")
	// ErrNotRegistered indicates no active actor is bound to the LINE account.
	ErrNotRegistered = errors.New("linking: line account not registered")
)

// ClaimResult identifies the actor a successful claim bound.
type ClaimResult struct {
	ActorID        uint64
	OrganizationID uint64
	Name           string
}

// Service issues and claims linking tokens. Claims are race-safe: the bind
// is a single conditional update, so two simultaneous claims of one token
// resolve to exactly one winner.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs a Service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// IssueDriverToken generates a fresh linking token for a driver, overwriting
// any prior unclaimed token.
func (s *Service) IssueDriverToken(ctx context.Context, driverID uint64) (string, error) {
	token := security.NewLinkToken()
	expiresAt := s.now().Add(security.LinkTokenTTL)

	result := s.db.WithContext(ctx).Model(&models.Driver{}).
		Where("id = ?", driverID).
		Updates(map[string]any{
			"registration_token":            token,
			"registration_token_expires_at": expiresAt,
		})
	if result.Error != nil {
		return "", fmt.Errorf("linking: issue driver token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", ErrTokenNotFound
	}
	return token, nil
}

// IssueAdminToken generates a fresh LINE linking token for an admin,
// overwriting any prior unclaimed token. Admin tokens carry the same expiry
// as driver tokens.
func (s *Service) IssueAdminToken(ctx context.Context, adminID uint64) (string, error) {
	token := security.NewLinkToken()
	expiresAt := s.now().Add(security.LinkTokenTTL)

	result := s.db.WithContext(ctx).Model(&models.AdminUser{}).
		Where("id = ?", adminID).
		Updates(map[string]any{
			"line_registration_token":            token,
			"line_registration_token_expires_at": expiresAt,
		})
	if result.Error != nil {
		return "", fmt.Errorf("linking: issue admin token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", ErrTokenNotFound
	}
	return token, nil
}

// ClaimDriverToken binds a LINE user id to the driver holding the token.
func (s *Service) ClaimDriverToken(ctx context.Context, token, lineUserID string) (*ClaimResult, error) {
	var driver models.Driver
	errFind := s.db.WithContext(ctx).
		Where("registration_token = ? AND line_user_id IS NULL", token).
		First(&driver).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("linking: find driver token: %w", errFind)
	}

	if driver.RegistrationTokenExpiresAt != nil && driver.RegistrationTokenExpiresAt.Before(s.now()) {
		// Invalidate the stale token so it cannot be claimed later.
		s.db.WithContext(ctx).Model(&models.Driver{}).
			Where("id = ? AND registration_token = ?", driver.ID, token).
			Updates(map[string]any{
				"registration_token":            nil,
				"registration_token_expires_at": nil,
			})
		return nil, ErrTokenExpired
	}

	var bound int64
	if errCount := s.db.WithContext(ctx).Model(&models.Driver{}).
		Where("line_user_id = ? AND id <> ?", lineUserID, driver.ID).
		Count(&bound).Error; errCount != nil {
		return nil, fmt.Errorf("linking: check existing binding: %w", errCount)
	}
	if bound > 0 {
		return nil, ErrAlreadyBound
	}

	// The conditional update is the concurrency-safety core: of two
	// simultaneous claims exactly one sees RowsAffected == 1.
	result := s.db.WithContext(ctx).Model(&models.Driver{}).
		Where("id = ? AND registration_token = ? AND line_user_id IS NULL", driver.ID, token).
		Updates(map[string]any{
			"line_user_id":                  lineUserID,
			"registration_token":            nil,
			"registration_token_expires_at": nil,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("linking: claim driver token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrTokenAlreadyUsed
	}

	return &ClaimResult{ActorID: driver.ID, OrganizationID: driver.OrganizationID, Name: driver.Name}, nil
}

// ClaimAdminToken binds a LINE user id to the admin holding the token.
func (s *Service) ClaimAdminToken(ctx context.Context, token, lineUserID string) (*ClaimResult, error) {
	var admin models.AdminUser
	errFind := s.db.WithContext(ctx).
		Where("line_registration_token = ? AND line_user_id IS NULL", token).
		First(&admin).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("linking: find admin token: %w", errFind)
	}

	if admin.LineRegistrationTokenExpiresAt != nil && admin.LineRegistrationTokenExpiresAt.Before(s.now()) {
		s.db.WithContext(ctx).Model(&models.AdminUser{}).
			Where("id = ? AND line_registration_token = ?", admin.ID, token).
			Updates(map[string]any{
				"line_registration_token":            nil,
				"line_registration_token_expires_at": nil,
			})
		return nil, ErrTokenExpired
	}

	var bound int64
	if errCount := s.db.WithContext(ctx).Model(&models.AdminUser{}).
		Where("line_user_id = ? AND id <> ?", lineUserID, admin.ID).
		Count(&bound).Error; errCount != nil {
		return nil, fmt.Errorf("linking: check existing binding: %w", errCount)
	}
	if bound > 0 {
		return nil, ErrAlreadyBound
	}

	result := s.db.WithContext(ctx).Model(&models.AdminUser{}).
		Where("id = ? AND line_registration_token = ? AND line_user_id IS NULL", admin.ID, token).
		Updates(map[string]any{
			"line_user_id":                       lineUserID,
			"line_registration_token":            nil,
			"line_registration_token_expires_at": nil,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("linking: claim admin token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrTokenAlreadyUsed
	}

	return &ClaimResult{ActorID: admin.ID, OrganizationID: admin.OrganizationID, Name: admin.Name}, nil
}

// UnlinkDriver removes a driver's LINE binding and any pending token.
func (s *Service) UnlinkDriver(ctx context.Context, driverID uint64) error {
	result := s.db.WithContext(ctx).Model(&models.Driver{}).
		Where("id = ?", driverID).
		Updates(map[string]any{
			"line_user_id":                  nil,
			"registration_token":            nil,
			"registration_token_expires_at": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("linking: unlink driver: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// UnlinkAdmin removes an admin's LINE binding and any pending token.
func (s *Service) UnlinkAdmin(ctx context.Context, adminID uint64) error {
	result := s.db.WithContext(ctx).Model(&models.AdminUser{}).
		Where("id = ?", adminID).
		Updates(map[string]any{
			"line_user_id":                       nil,
			"line_registration_token":            nil,
			"line_registration_token_expires_at": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("linking: unlink admin: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTokenNotFound
	}
	return nil
}
