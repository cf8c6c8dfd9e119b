package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ecxia/fleet-safety/internal/config"
	"github.com/ecxia/fleet-safety/internal/models"
	"github.com/ecxia/fleet-safety/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/pquerna/otp/totp"
	"gorm.io/gorm"
)

var testJWTConfig = config.JWTConfig{Secret: "handler-test-secret", ExpiryHours: 1}

func setupHandlersTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.AutoMigrate(
		&models.Organization{}, &models.Driver{}, &models.AdminUser{},
		&models.EmergencyReport{},
	); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func createTestAdmin(t *testing.T, db *gorm.DB, email, password, role string) *models.AdminUser {
	t.Helper()
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	admin := models.AdminUser{OrganizationID: 1, Email: email, Password: hash, Name: "管理者", Role: role, Active: true}
	if errCreate := db.Create(&admin).Error; errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	return &admin
}

func performJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var errMarshal error
		payload, errMarshal = json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func authRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewAuthHandler(db, testJWTConfig)
	router.POST("/auth/login", h.Login)
	router.POST("/auth/login/prepare", h.LoginPrepare)
	router.POST("/auth/login/totp", h.LoginTOTP)
	return router
}

func TestLoginIssuesJWT(t *testing.T) {
	db := setupHandlersTestDB(t)
	createTestAdmin(t, db, "admin@example.com", "correct-horse", models.RoleOrgAdmin)
	router := authRouter(db)

	w := performJSON(t, router, http.MethodPost, "/auth/login", "", map[string]any{"email": "admin@example.com", "password": "correct-horse"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if errParse := json.Unmarshal(w.Body.Bytes(), &resp); errParse != nil {
		t.Fatalf("parse response: %v", errParse)
	}
	claims, errParse := security.ParseAdminToken(testJWTConfig.Secret, resp.Token)
	if errParse != nil {
		t.Fatalf("issued token must validate: %v", errParse)
	}
	if claims.Email != "admin@example.com" || claims.Role != models.RoleOrgAdmin || claims.OrganizationID != 1 {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := setupHandlersTestDB(t)
	createTestAdmin(t, db, "admin@example.com", "correct-horse", models.RoleOrgAdmin)
	router := authRouter(db)

	if w := performJSON(t, router, http.MethodPost, "/auth/login", "", map[string]any{"email": "admin@example.com", "password": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want 401", w.Code)
	}
	if w := performJSON(t, router, http.MethodPost, "/auth/login", "", map[string]any{"email": "nobody@example.com", "password": "x"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email status = %d, want 401", w.Code)
	}
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	db := setupHandlersTestDB(t)
	admin := createTestAdmin(t, db, "admin@example.com", "correct-horse", models.RoleOrgAdmin)
	db.Model(admin).Update("active", false)
	router := authRouter(db)

	if w := performJSON(t, router, http.MethodPost, "/auth/login", "", map[string]any{"email": "admin@example.com", "password": "correct-horse"}); w.Code != http.StatusForbidden {
		t.Fatalf("disabled account status = %d, want 403", w.Code)
	}
}

func TestLoginRequiresTOTPWhenEnabled(t *testing.T) {
	db := setupHandlersTestDB(t)
	admin := createTestAdmin(t, db, "admin@example.com", "correct-horse", models.RoleOrgAdmin)

	key, errGen := totp.Generate(totp.GenerateOpts{Issuer: "test", AccountName: admin.Email})
	if errGen != nil {
		t.Fatalf("generate totp: %v", errGen)
	}
	db.Model(admin).Update("totp_secret", key.Secret())
	router := authRouter(db)

	// Plain login must refuse and demand MFA.
	if w := performJSON(t, router, http.MethodPost, "/auth/login", "", map[string]any{"email": "admin@example.com", "password": "correct-horse"}); w.Code != http.StatusForbidden {
		t.Fatalf("mfa-enabled plain login status = %d, want 403", w.Code)
	}

	// Prepare reports TOTP enabled.
	w := performJSON(t, router, http.MethodPost, "/auth/login/prepare", "", map[string]any{"email": "admin@example.com"})
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"totp_enabled":true`)) {
		t.Fatalf("prepare response = %d %s", w.Code, w.Body.String())
	}

	// TOTP login with a valid code succeeds.
	code, errCode := totp.GenerateCode(key.Secret(), time.Now())
	if errCode != nil {
		t.Fatalf("generate code: %v", errCode)
	}
	w = performJSON(t, router, http.MethodPost, "/auth/login/totp", "", map[string]any{"email": "admin@example.com", "password": "correct-horse", "code": code})
	if w.Code != http.StatusOK {
		t.Fatalf("totp login status = %d, body %s", w.Code, w.Body.String())
	}

	// A wrong code is rejected.
	w = performJSON(t, router, http.MethodPost, "/auth/login/totp", "", map[string]any{"email": "admin@example.com", "password": "correct-horse", "code": "000000"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad code status = %d, want 401", w.Code)
	}
}
