package credentials

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a stored token cannot be decoded.
var ErrInvalidToken = errors.New("invalid token")

// TokenInfo is the subset of claims shown to the user.
type TokenInfo struct {
	PrincipalID string
	Role        string
	KeyID       string
	ExpiresAt   *time.Time
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// InspectToken decodes a token without verifying its signature. The server
// remains the only party that checks signatures.
func InspectToken(tokenString string) (*TokenInfo, error) {
	claims := &tokenClaims{}
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	info := &TokenInfo{
		PrincipalID: claims.Subject,
		Role:        claims.Role,
	}
	if kid, ok := token.Header["kid"].(string); ok {
		info.KeyID = kid
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.UTC()
		info.ExpiresAt = &exp
	}

	return info, nil
}
