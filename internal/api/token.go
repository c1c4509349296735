package api

import (
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ActorClaims struct {
	jwt.RegisteredClaims
}

type VerifiedActor struct {
	UserID    string
	ExpiresAt time.Time
}

// VerifyActorToken verifies an HS256 bearer token issued by the identity
// provider and returns the user id from its sub claim.
func VerifyActorToken(tokenString, audience, secret string, now time.Time) (*VerifiedActor, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("missing token")
	}
	if secret == "" {
		return nil, fmt.Errorf("missing token secret")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	claims := &ActorClaims{}
	tok, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(now) {
		return nil, fmt.Errorf("token expired")
	}
	if audience != "" && !slices.Contains([]string(claims.Audience), audience) {
		return nil, fmt.Errorf("audience mismatch")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("missing subject in token")
	}

	return &VerifiedActor{UserID: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}
