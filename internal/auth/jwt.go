package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/rollcall/internal/models"
)

// PrincipalHeader names the caller in no-auth development mode.
const PrincipalHeader = "X-Rollcall-Principal"

type contextKey int

const (
	principalContextKey contextKey = iota
)

// WithPrincipal returns a copy of ctx carrying the authenticated principal.
func WithPrincipal(ctx context.Context, principal models.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from the request context.
// The boolean is false for unauthenticated requests.
func PrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(models.Principal)
	return principal, ok
}

// JWTVerifier validates HS256 bearer tokens issued by IssueToken.
type JWTVerifier struct {
	secret []byte
	kid    string
	parser *jwt.Parser
}

// NewJWTVerifier creates a verifier for tokens signed with secret.
func NewJWTVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}

	return &JWTVerifier{
		secret: secret,
		kid:    KeyID(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(Issuer),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// Verify validates a token and returns the principal it names.
func (v *JWTVerifier) Verify(tokenString string) (models.Principal, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if kid, ok := t.Header["kid"].(string); ok && kid != v.kid {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return v.secret, nil
	})
	if err != nil {
		return models.Principal{}, err
	}
	if !token.Valid {
		return models.Principal{}, errors.New("invalid token")
	}

	if claims.Subject == "" {
		return models.Principal{}, errors.New("missing sub claim")
	}
	if !claims.Role.Valid() {
		return models.Principal{}, fmt.Errorf("invalid role claim %q", claims.Role)
	}

	return models.Principal{ID: claims.Subject, Role: claims.Role}, nil
}

// VerifyRequest validates the bearer token of an HTTP request.
func (v *JWTVerifier) VerifyRequest(r *http.Request) (models.Principal, error) {
	tokenString := extractBearerToken(r)
	if tokenString == "" {
		return models.Principal{}, errors.New("missing bearer token")
	}
	return v.Verify(tokenString)
}

// Middleware returns an HTTP middleware that verifies JWTs and adds the
// principal to the request context. /health is served without a token.
func (v *JWTVerifier) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := v.VerifyRequest(r)
			if err != nil {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to verify JWT")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// NoAuthMiddleware trusts every caller as an admin. The principal id is taken
// from the X-Rollcall-Principal header, defaulting to "dev". Development only.
func NoAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(PrincipalHeader))
			if id == "" {
				id = "dev"
			}
			principal := models.Principal{ID: id, Role: models.RoleAdmin}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// extractBearerToken extracts the JWT from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}
