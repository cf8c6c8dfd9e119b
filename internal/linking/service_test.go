package linking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ecxia/fleet-safety/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupLinkingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:linking_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(&models.Organization{}, &models.Driver{}, &models.AdminUser{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func createTestDriver(t *testing.T, db *gorm.DB, name string) *models.Driver {
	t.Helper()
	driver := models.Driver{OrganizationID: 1, Name: name, Status: models.DriverStatusActive}
	if errCreate := db.Create(&driver).Error; errCreate != nil {
		t.Fatalf("create driver: %v", errCreate)
	}
	return &driver
}

func TestIssueDriverTokenOverwritesPriorToken(t *testing.T) {
	db := setupLinkingTestDB(t)
	svc := NewService(db)
	driver := createTestDriver(t, db, "山田太郎")

	first, errFirst := svc.IssueDriverToken(context.Background(), driver.ID)
	if errFirst != nil {
		t.Fatalf("issue first token: %v", errFirst)
	}
	second, errSecond := svc.IssueDriverToken(context.Background(), driver.ID)
	if errSecond != nil {
		t.Fatalf("issue second token: %v", errSecond)
	}
	if first == second {
		t.Fatalf("re-issue must rotate the token value")
	}

	// The first token is no longer claimable.
	if _, errClaim := svc.ClaimDriverToken(context.Background(), first, "U-old"); !errors.Is(errClaim, ErrTokenNotFound) {
		t.Fatalf("stale token claim = %v, want ErrTokenNotFound", errClaim)
	}
	if _, errClaim := svc.ClaimDriverToken(context.Background(), second, "U-new"); errClaim != nil {
		t.Fatalf("fresh token claim: %v", errClaim)
	}
}

func TestClaimDriverTokenBindsAndClearsToken(t *testing.T) {
	db := setupLinkingTestDB(t)
	svc := NewService(db)
	driver := createTestDriver(t, db, "山田太郎")

	token, errIssue := svc.IssueDriverToken(context.Background(), driver.ID)
	if errIssue != nil {
		t.Fatalf("issue token: %v", errIssue)
	}

	result, errClaim := svc.ClaimDriverToken(context.Background(), token, "U1234")
	if errClaim != nil {
		t.Fatalf("claim: %v", errClaim)
	}
	if result.Name != "山田太郎" || result.ActorID != driver.ID {
		t.Fatalf("unexpected claim result: %+v", result)
	}

	var updated models.Driver
	if errFind := db.First(&updated, driver.ID).Error; errFind != nil {
		t.Fatalf("reload driver: %v", errFind)
	}
	if updated.LineUserID == nil || *updated.LineUserID != "U1234" {
		t.Fatalf("line user id not bound: %+v", updated.LineUserID)
	}
	if updated.RegistrationToken != nil || updated.RegistrationTokenExpiresAt != nil {
		t.Fatalf("token must be cleared in the same update that binds the identity")
	}
}

func TestClaimDriverTokenSecondClaimLoses(t *testing.T) {
	db := setupLinkingTestDB(t)
	svc := NewService(db)
	driver := createTestDriver(t, db, "山田太郎")

	token, errIssue := svc.IssueDriverToken(context.Background(), driver.ID)
	if errIssue != nil {
		t.Fatalf("issue token: %v", errIssue)
	}

	if _, errFirst := svc.ClaimDriverToken(context.Background(), token, "U-first"); errFirst != nil {
		t.Fatalf("first claim: %v", errFirst)
	}

	_, errSecond := svc.ClaimDriverToken(context.Background(), token, "U-second")
	if !errors.Is(errSecond, ErrTokenNotFound) && !errors.Is(errSecond, ErrTokenAlreadyUsed) {
		t.Fatalf("second claim = %v, want not-found or already-used", errSecond)
	}

	var updated models.Driver
	if errFind := db.First(&updated, driver.ID).Error; errFind != nil {
		t.Fatalf("reload driver: %v", errFind)
	}
	if updated.LineUserID == nil || *updated.LineUserID != "U-first" {
		t.Fatalf("binding must belong to the first claim, got %+v", updated.LineUserID)
	}
}

func TestClaimDriverTokenConditionalUpdateLosesRace(t *testing.T) {
	db := setupLinkingTestDB(t)
	svc := NewService(db)
	driver := createTestDriver(t, db, "山田太郎")

	token, errIssue := svc.IssueDriverToken(context.Background(), driver.ID)
	if errIssue != nil {
		t.Fatalf("issue token: %v", errIssue)
	}

	// Simulate a concurrent winner landing between lookup and update by
	// binding the row out of band. The conditional update must then affect
	// zero rows and report the loss.
	if errBind := db.Model(&models.Driver{}).Where("id = ?", driver.ID).
		Update("line_user_id", "U-winner").Error; errBind != nil {
		t.Fatalf("bind out of band: %v", errBind)
	}

	result := db.Model(&models.Driver{}).
		Where("id = ? AND registration_token = ? AND line_user_id IS NULL", driver.ID, token).
		Updates(map[string]any{"line_user_id": "U-loser", "registration_token": nil})
	if result.Error != nil {
		t.Fatalf("conditional update: %v", result.Error)
	}
	if result.RowsAffected != 0 {
		t.Fatalf("conditional update affected %d rows, want 0", result.RowsAffected)
	}

	var updated models.Driver
	if errFind := db.First(&updated, driver.ID).Error; errFind != nil {
		t.Fatalf("reload driver: %v", errFind)
	}
	if *updated.LineUserID != "U-winner" {
		t.Fatalf("binding overwritten by losing claim: %s", *updated.LineUserID)
	}
}

func TestClaimDriverTokenRejectsForeignBinding(t *testing.T) {
	db := setupLinkingTestDB(t)
	svc := NewService(db)
	bound := createTestDriver(t, db, "既存運転手")
	target := createTestDriver(t, db, "新規運転手")

	tokenBound, _ := svc.IssueDriverToken(context.Background(), bound.ID)
	if _, errClaim := svc.ClaimDriverToken(context.Background(), tokenBound, "U-shared"); errClaim != nil {
		t.Fatalf("claim for existing driver: %v", errClaim)
	}

	tokenTarget, _ := svc.IssueDriverToken(context.Background(), target.ID)
	_, errClaim := svc.ClaimDriverToken(context.Background(), tokenTarget, "U-shared")
	if !errors.Is(errClaim, ErrAlreadyBound) {
		t.Fatalf("claim with bound line id = %v, want ErrAlreadyBound", errClaim)
	}

	var updated models.Driver
	if errFind := db.First(&updated, target.ID).Error; errFind != nil {
		t.Fatalf("reload target: %v", errFind)
	}
	if updated.LineUserID != nil {
		t.Fatalf("target must remain unbound after rejected claim")
	}
}

func TestClaimDriverTokenExpiredInvalidatesToken(t *testing.T) {
	db := setupLinkingTestDB(t)
	svc := NewService(db)
	driver := createTestDriver(t, db, "山田太郎")

	token, errIssue := svc.IssueDriverToken(context.Background(), driver.ID)
	if errIssue != nil {
		t.Fatalf("issue token: %v", errIssue)
	}

	// Move the clock past the token TTL.
	svc.now = func() time.Time { return time.Now().Add(100 * time.Hour) }

	_, errClaim := svc.ClaimDriverToken(context.Background(), token, "U1234")
	if !errors.Is(errClaim, ErrTokenExpired) {
		t.Fatalf("expired claim = %v, want ErrTokenExpired", errClaim)
	}

	var updated models.Driver
	if errFind := db.First(&updated, driver.ID).Error; errFind != nil {
		t.Fatalf("reload driver: %v", errFind)
	}
	if updated.RegistrationToken != nil {
		t.Fatalf("expired token must be nulled to close the reuse window")
	}
	if _, errRetry := svc.ClaimDriverToken(context.Background(), token, "U1234"); !errors.Is(errRetry, ErrTokenNotFound) {
		t.Fatalf("retry after expiry = %v, want ErrTokenNotFound", errRetry)
	}
}

func TestClaimDriverTokenUnknownToken(t *testing.T) {
	db := setupLinkingTestDB(t)
	svc := NewService(db)

	if _, errClaim := svc.ClaimDriverToken(context.Background(), "no-such-token", "U1"); !errors.Is(errClaim, ErrTokenNotFound) {
		t.Fatalf("unknown token claim = %v, want ErrTokenNotFound", errClaim)
	}
}

func TestClaimAdminTokenLifecycle(t *testing.T) {
	db := setupLinkingTestDB(t)
	svc := NewService(db)

	admin := models.AdminUser{OrganizationID: 1, Email: "admin@example.com", Password: "x", Name: "管理者", Role: models.RoleOrgAdmin, Active: true}
	if errCreate := db.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}

	token, errIssue := svc.IssueAdminToken(context.Background(), admin.ID)
	if errIssue != nil {
		t.Fatalf("issue admin token: %v", errIssue)
	}

	result, errClaim := svc.ClaimAdminToken(context.Background(), token, "U-admin")
	if errClaim != nil {
		t.Fatalf("claim admin token: %v", errClaim)
	}
	if result.Name != "管理者" {
		t.Fatalf("unexpected admin claim result: %+v", result)
	}

	if _, errSecond := svc.ClaimAdminToken(context.Background(), token, "U-other"); !errors.Is(errSecond, ErrTokenNotFound) {
		t.Fatalf("claimed admin token must not be reusable, got %v", errSecond)
	}
}

func TestResolveDriverRequiresActiveStatus(t *testing.T) {
	db := setupLinkingTestDB(t)
	svc := NewService(db)
	driver := createTestDriver(t, db, "山田太郎")

	token, _ := svc.IssueDriverToken(context.Background(), driver.ID)
	if _, errClaim := svc.ClaimDriverToken(context.Background(), token, "U1"); errClaim != nil {
		t.Fatalf("claim: %v", errClaim)
	}

	resolved, errResolve := svc.ResolveDriver(context.Background(), "U1")
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if resolved.ID != driver.ID {
		t.Fatalf("resolved wrong driver: %d", resolved.ID)
	}

	if errUpdate := db.Model(&models.Driver{}).Where("id = ?", driver.ID).
		Update("status", models.DriverStatusInactive).Error; errUpdate != nil {
		t.Fatalf("deactivate driver: %v", errUpdate)
	}
	if _, errResolve := svc.ResolveDriver(context.Background(), "U1"); !errors.Is(errResolve, ErrNotRegistered) {
		t.Fatalf("inactive driver resolve = %v, want ErrNotRegistered", errResolve)
	}
}

func TestUnlinkDriverClearsBinding(t *testing.T) {
	db := setupLinkingTestDB(t)
	svc := NewService(db)
	driver := createTestDriver(t, db, "山田太郎")

	token, _ := svc.IssueDriverToken(context.Background(), driver.ID)
	if _, errClaim := svc.ClaimDriverToken(context.Background(), token, "U1"); errClaim != nil {
		t.Fatalf("claim: %v", errClaim)
	}
	if errUnlink := svc.UnlinkDriver(context.Background(), driver.ID); errUnlink != nil {
		t.Fatalf("unlink: %v", errUnlink)
	}

	var updated models.Driver
	if errFind := db.First(&updated, driver.ID).Error; errFind != nil {
		t.Fatalf("reload driver: %v", errFind)
	}
	if updated.LineUserID != nil || updated.RegistrationToken != nil {
		t.Fatalf("unlink must clear the binding and any token")
	}
}
