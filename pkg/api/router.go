package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/snipflow/pkg/entitlement"
	"github.com/dmitrymomot/snipflow/pkg/gate"
	"github.com/dmitrymomot/snipflow/pkg/httpserver"
	"github.com/dmitrymomot/snipflow/pkg/logger"
	"github.com/dmitrymomot/snipflow/pkg/metrics"
	"github.com/dmitrymomot/snipflow/pkg/plan"
	"github.com/dmitrymomot/snipflow/pkg/quota"
	"github.com/dmitrymomot/snipflow/pkg/requestid"
	"github.com/dmitrymomot/snipflow/pkg/snippet"
	"github.com/dmitrymomot/snipflow/pkg/team"
	"github.com/dmitrymomot/snipflow/pkg/usage"
)

// EntitlementReader resolves a principal's plan for the entitlements endpoint.
type EntitlementReader interface {
	Entitlements(ctx context.Context, principalID uuid.UUID) (*entitlement.Entitlements, error)
}

// UsageReader reports quota counters.
type UsageReader interface {
	Usage(ctx context.Context, principalID uuid.UUID) (map[plan.Resource]quota.UsageInfo, error)
}

// Deps are the collaborators of the router. Metrics, Gatherer and
// HealthChecks are optional.
type Deps struct {
	Gate         *gate.Gate
	Snippets     *snippet.Service
	Team         *team.Service
	Entitlements EntitlementReader
	Usage        UsageReader
	Analytics    usage.Summarizer
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	HealthChecks []httpserver.Check
	Logger       *slog.Logger
	Now          func() time.Time
}

type handlers struct {
	gate         *gate.Gate
	snippets     *snippet.Service
	team         *team.Service
	entitlements EntitlementReader
	usage        UsageReader
	analytics    usage.Summarizer
	logger       *slog.Logger
	now          func() time.Time
}

// NewRouter builds the HTTP surface. It panics when a required dependency
// is missing.
func NewRouter(d Deps) http.Handler {
	if d.Gate == nil || d.Snippets == nil || d.Team == nil || d.Entitlements == nil || d.Usage == nil || d.Analytics == nil {
		panic("api: gate, services, entitlements, usage and analytics are required")
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	h := &handlers{
		gate:         d.Gate,
		snippets:     d.Snippets,
		team:         d.Team,
		entitlements: d.Entitlements,
		usage:        d.Usage,
		analytics:    d.Analytics,
		logger:       d.Logger.With(logger.Component("api")),
		now:          d.Now,
	}
	g := d.Gate

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Get("/healthz", httpserver.HealthHandler(d.Logger, 2*time.Second, d.HealthChecks...))
	if d.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(d.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(g.Authenticate, g.RateLimit, g.RequireFeature(plan.FeatureAPIAccess), g.Meter)

		r.Get("/entitlements", h.getEntitlements)

		r.Route("/snippets", func(r chi.Router) {
			r.Get("/", h.listSnippets)
			r.Post("/", h.createSnippet)
			r.Get("/{id}", h.getSnippet)
			r.Delete("/{id}", h.deleteSnippet)
		})

		r.Route("/team/members", func(r chi.Router) {
			r.Use(g.RequireFeature(plan.FeatureTeamManagement))
			r.Get("/", h.listMembers)
			r.Post("/", h.addMember)
			r.Delete("/{id}", h.removeMember)
		})

		r.With(g.RequireFeature(plan.FeatureAnalytics)).Get("/analytics", h.getAnalytics)
	})

	return r
}

// caller returns the principal authenticated by the gate. Routes are only
// mounted behind Authenticate, so a missing identity is a wiring bug.
func (h *handlers) caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := gate.IdentityFrom(r.Context())
	if !ok {
		h.gate.Error(w, r, gate.ErrUnauthenticated)
		return uuid.Nil, false
	}
	return id.PrincipalID, true
}

func (h *handlers) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := gate.WriteJSON(w, status, v); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write response", logger.Error(err))
	}
}
