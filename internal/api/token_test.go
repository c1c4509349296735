package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, claims ActorClaims, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestVerifyActorToken_SubjectAndAudience(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := sign(t, ActorClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u-hod",
		Audience:  []string{"venueflow"},
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		IssuedAt:  jwt.NewNumericDate(now.Add(-1 * time.Minute)),
	}}, "test_secret")

	got, err := VerifyActorToken(s, "venueflow", "test_secret", now)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.UserID != "u-hod" {
		t.Fatalf("user id mismatch: %q", got.UserID)
	}
}

func TestVerifyActorToken_Rejects(t *testing.T) {
	now := time.Unix(1700000000, 0)
	valid := jwt.RegisteredClaims{
		Subject:   "u-hod",
		Audience:  []string{"venueflow"},
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))

	noSubject := valid
	noSubject.Subject = ""

	noExpiry := valid
	noExpiry.ExpiresAt = nil

	cases := map[string]struct {
		token    string
		audience string
		secret   string
	}{
		"wrong secret":   {sign(t, ActorClaims{RegisteredClaims: valid}, "other"), "venueflow", "test_secret"},
		"expired":        {sign(t, ActorClaims{RegisteredClaims: expired}, "test_secret"), "venueflow", "test_secret"},
		"audience":       {sign(t, ActorClaims{RegisteredClaims: valid}, "test_secret"), "another-app", "test_secret"},
		"no subject":     {sign(t, ActorClaims{RegisteredClaims: noSubject}, "test_secret"), "venueflow", "test_secret"},
		"no expiry":      {sign(t, ActorClaims{RegisteredClaims: noExpiry}, "test_secret"), "venueflow", "test_secret"},
		"empty token":    {"", "venueflow", "test_secret"},
		"missing secret": {sign(t, ActorClaims{RegisteredClaims: valid}, "test_secret"), "venueflow", ""},
	}
	for name, tc := range cases {
		if _, err := VerifyActorToken(tc.token, tc.audience, tc.secret, now); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
