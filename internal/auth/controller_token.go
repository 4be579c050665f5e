package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid controller token")

// ControllerClaims bind a controller connection to one session and,
// optionally, one paddle side.
type ControllerClaims struct {
	Session string `json:"session"`
	Side    string `json:"side,omitempty"`
	Kind    string `json:"kind"`
	jwt.RegisteredClaims
}

// IssueControllerToken signs a controller token valid for ttl.
func IssueControllerToken(secret, session, side, kind string, ttl time.Duration) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, errors.New("controller token secret not configured")
	}
	now := time.Now()
	exp := now.Add(ttl)
	claims := ControllerClaims{
		Session: session,
		Side:    side,
		Kind:    kind,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseControllerToken verifies the signature and expiry of a controller token.
func ParseControllerToken(secret, raw string) (*ControllerClaims, error) {
	claims := &ControllerClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Session == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
