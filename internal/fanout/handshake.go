package fanout

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RaceTokenClaims is the bearer token a client presents when opening a
// …/ws/live/{race_id} connection, grounded on the teacher's
// auth.Claims/JWTManager pattern and generalized to carry the viewer's
// pilot identity and the race it is watching.
type RaceTokenClaims struct {
	PilotID   string `json:"pilot_id"`
	PilotName string `json:"pilot_name"`
	RaceID    string `json:"race_id"`
	jwt.RegisteredClaims
}

// TokenVerifier validates the HS256 bearer token presented at the
// WebSocket handshake.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier builds a TokenVerifier from the configured JWT
// secret. Mirrors NewJWTManager's "non-empty secret required" guard.
func NewTokenVerifier(secret string) (*TokenVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("fanout: JWT secret is required")
	}
	return &TokenVerifier{secret: []byte(secret)}, nil
}

// Verify parses and validates tokenString, and checks it was issued for
// raceID — a token scoped to one race must not be reused on another.
func (v *TokenVerifier) Verify(tokenString, raceID string) (*RaceTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RaceTokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("fanout: parse race token: %w", err)
	}

	claims, ok := token.Claims.(*RaceTokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("fanout: invalid race token claims")
	}
	if claims.RaceID != raceID {
		return nil, fmt.Errorf("fanout: token scoped to race %q, not %q", claims.RaceID, raceID)
	}
	return claims, nil
}
