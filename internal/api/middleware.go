package api

import (
	"net/http"
	"strings"
	"time"

	"venueflow/pkg/config"
)

// ActorAuth resolves the caller from `Authorization: Bearer <JWT>`.
//
// Outside prod, a request without a bearer token may name the caller with
// `X-User-Id` to keep local testing simple.
func ActorAuth(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token := strings.TrimSpace(authz[7:])
				va, err := VerifyActorToken(token, cfg.Auth.Audience, cfg.Auth.TokenSecret, time.Now())
				if err != nil {
					WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
					return
				}
				next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), &Actor{UserID: va.UserID})))
				return
			}

			// Dev fallback
			if !cfg.IsProd() {
				if id := strings.TrimSpace(r.Header.Get("X-User-Id")); id != "" {
					next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), &Actor{UserID: id})))
					return
				}
			}

			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		})
	}
}
