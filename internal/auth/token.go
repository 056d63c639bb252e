package auth

import (
	"crypto/sha256"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
	"github.com/wolfeidau/rollcall/internal/models"
)

// Issuer is the iss claim of every rollcall token.
const Issuer = "rollcall"

// MinSecretLength is the shortest signing secret accepted for HS256.
const MinSecretLength = 32

var ErrWeakSecret = errors.New("signing secret must be at least 32 bytes")

// Claims are the rollcall token claims. The subject is the principal id.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// KeyID derives the kid header for a signing secret so rotated secrets can be told apart in logs.
func KeyID(secret []byte) string {
	sum := sha256.Sum256(secret)
	return base58.Encode(sum[:8])
}

// IssueToken creates a signed JWT for the given principal.
func IssueToken(secret []byte, principal models.Principal, ttl time.Duration) (string, error) {
	if len(secret) < MinSecretLength {
		return "", ErrWeakSecret
	}
	if principal.ID == "" {
		return "", errors.New("principal id is required")
	}
	if !principal.Role.Valid() {
		return "", errors.New("unknown role: " + string(principal.Role))
	}

	now := time.Now()
	claims := &Claims{
		Role: principal.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = KeyID(secret)
	return token.SignedString(secret)
}
