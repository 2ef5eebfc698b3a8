// Package identity issues and verifies the JWT tokens that carry a user's
// id between requests and over the websocket handshake.
package identity

import (
	"fmt"
	"time"

	"snappit/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenLifetime = time.Hour * 24 * 7

// Tokens signs and parses HMAC tokens with a shared secret.
type Tokens struct {
	secret []byte
}

// NewTokens creates a token codec. The secret must be non-empty.
func NewTokens(secret string) (*Tokens, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret not configured")
	}
	return &Tokens{secret: []byte(secret)}, nil
}

// Issue creates a signed token for the given user ID.
func (t *Tokens) Issue(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,                        // Subject (user ID)
		"iss": "snappit-api",                 // Issuer
		"aud": "snappit-client",              // Audience
		"exp": now.Add(tokenLifetime).Unix(), // Expiration (7 days)
		"iat": now.Unix(),                    // Issued at
		"nbf": now.Unix(),                    // Not before
		"jti": generateJTI(),                 // JWT ID (unique identifier)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates a signed token and returns the user ID it carries.
func (t *Tokens) Parse(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid signing method")
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return "", models.NewUnauthorizedError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", models.NewUnauthorizedError("Invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", models.NewUnauthorizedError("Invalid token structure - missing subject")
	}

	return sub, nil
}

// generateJTI creates a unique JWT ID to prevent replay attacks
func generateJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}
