package api

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"venueflow/pkg/config"
)

// CORSOptions controls which browser origins may call /v1.
type CORSOptions struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAgeSeconds  int
}

// DashboardCORS allows the booking dashboards listed in CORS_ALLOWED_ORIGINS
// to submit, approve and read events. X-User-Id is allowed so the dev
// fallback of ActorAuth works from a local dashboard.
func DashboardCORS(cfg config.Config) CORSOptions {
	return CORSOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-User-Id"},
		MaxAgeSeconds:  600,
	}
}

// CORSMiddleware echoes an allowed Origin back with the preflight headers.
// Preflights from any other origin are refused with 403; plain requests pass
// through without CORS headers and the browser blocks the response.
func CORSMiddleware(opts CORSOptions) func(http.Handler) http.Handler {
	methods := strings.Join(withDefault(opts.AllowedMethods, http.MethodGet, http.MethodPost, http.MethodOptions), ", ")
	headers := strings.Join(withDefault(opts.AllowedHeaders, "Content-Type", "Authorization"), ", ")
	maxAge := opts.MaxAgeSeconds
	if maxAge <= 0 {
		maxAge = 600
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := origin != "" && slices.Contains(opts.AllowedOrigins, origin)
			if origin != "" {
				w.Header().Add("Vary", "Origin")
			}
			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				w.Header().Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
			}

			if r.Method == http.MethodOptions {
				if origin != "" && !allowed {
					WriteError(w, http.StatusForbidden, "CORS_ORIGIN_DENIED", "origin not allowed")
					return
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func withDefault(v []string, fallback ...string) []string {
	if len(v) == 0 {
		return fallback
	}
	return v
}
