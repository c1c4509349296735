package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"venueflow/internal/allocation"
	"venueflow/internal/api"
	"venueflow/internal/approval"
	"venueflow/internal/housekeeping"
	"venueflow/internal/notify"
	"venueflow/pkg/config"
)

type Dependencies struct {
	Cfg          config.Config
	Approvals    *approval.Service
	Engine       *allocation.Engine
	Housekeeping *housekeeping.Service
	// Inbox is optional; the notifications route is mounted only when set.
	Inbox *notify.Inbox
	// Gatherer serves /metrics. Nil means the default registry.
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	approvalHandlers := approval.Handlers{Service: deps.Approvals}
	allocationHandlers := allocation.Handlers{Engine: deps.Engine}
	housekeepingHandlers := housekeeping.Handlers{
		Service:        deps.Housekeeping,
		ProvisionalTTL: provisionalTTL(deps.Cfg),
	}

	// v1
	r.Route("/v1", func(r chi.Router) {
		r.Use(api.CORSMiddleware(api.DashboardCORS(deps.Cfg)))

		r.Group(func(r chi.Router) {
			// Production: bearer JWT. Dev: falls back to X-User-Id.
			r.Use(api.ActorAuth(deps.Cfg))

			r.Post("/events/{id}/submit", approvalHandlers.Submit)
			r.Post("/events/{id}/approvals", approvalHandlers.Process)
			r.Get("/events/{id}/approvals", approvalHandlers.History)
			r.Post("/events/{id}/allocate", allocationHandlers.Allocate)
			r.Get("/events/{id}/feasibility", allocationHandlers.Feasibility)

			if deps.Inbox != nil {
				notifyHandlers := notify.Handlers{Inbox: deps.Inbox}
				r.Get("/me/notifications", notifyHandlers.List)
			}

			// Scheduler hooks
			r.Post("/housekeeping/events/{id}/release", housekeepingHandlers.Release)
			r.Post("/housekeeping/cleanup", housekeepingHandlers.Cleanup)
		})
	})

	return r
}

func provisionalTTL(cfg config.Config) time.Duration {
	if cfg.Housekeeping.ProvisionalTTL > 0 {
		return cfg.Housekeeping.ProvisionalTTL
	}
	return 24 * time.Hour
}
