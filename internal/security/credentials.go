package security

import (
	"crypto/subtle"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost defines the bcrypt work factor.
const bcryptCost = 12

// LinkTokenTTL is how long an unclaimed LINE linking token stays valid.
// Applied uniformly to driver and admin tokens.
const LinkTokenTTL = 72 * time.Hour

// LinkTokenPattern matches the UUID shape of linking tokens. The webhook
// router uses it to distinguish token messages from ordinary chat text.
var LinkTokenPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hash with a plaintext password.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NewLinkToken generates a single-use linking token with UUID-grade entropy.
func NewLinkToken() string {
	return uuid.NewString()
}

// TimingSafeEqual compares two strings in constant time. Unequal lengths
// return false immediately; equal lengths are always scanned in full.
func TimingSafeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
