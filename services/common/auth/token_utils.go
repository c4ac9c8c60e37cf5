package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// ErrNotConfigured is returned when no signing secret was supplied.
var ErrNotConfigured = errors.New("JWT secret not configured")

// Identity is what the service needs to know about a caller.
type Identity struct {
	UserID string
	Role   string
}

// TokenVerifier validates HS256 access tokens issued by the auth service.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &TokenVerifier{}
	}
	return &TokenVerifier{secret: []byte(secret)}
}

// Enabled reports whether bearer tokens can be checked at all.
func (v *TokenVerifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

// ParseAndValidateToken parses a JWT token string and returns its claims.
// If expectedType is non-empty, the claim "typ" must match it.
func (v *TokenVerifier) ParseAndValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error) {
	if !v.Enabled() {
		return nil, ErrNotConfigured
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if expectedType != "" {
		if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
			return nil, fmt.Errorf("invalid token type")
		}
	}
	return claims, nil
}

// Identify resolves the caller from an access token. user_id wins over sub.
func (v *TokenVerifier) Identify(tokenStr string) (Identity, error) {
	claims, err := v.ParseAndValidateToken(tokenStr, "")
	if err != nil {
		return Identity{}, err
	}

	id := Identity{}
	if s, ok := claims["user_id"].(string); ok && s != "" {
		id.UserID = s
	} else if s, ok := claims["sub"].(string); ok {
		id.UserID = s
	}
	if id.UserID == "" {
		return Identity{}, fmt.Errorf("token has no subject")
	}
	if role, ok := claims["role"].(string); ok {
		id.Role = role
	}
	return id, nil
}
