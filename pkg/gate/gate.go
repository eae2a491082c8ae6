package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/apikey"
	"github.com/dmitrymomot/snipflow/pkg/entitlement"
	"github.com/dmitrymomot/snipflow/pkg/logger"
	"github.com/dmitrymomot/snipflow/pkg/plan"
	"github.com/dmitrymomot/snipflow/pkg/ratelimit"
	"github.com/dmitrymomot/snipflow/pkg/usage"
)

const (
	checkAuth      = "auth"
	checkRateLimit = "rate_limit"
	checkFeature   = "feature"
	checkQuota     = "quota"

	outcomeAllowed     = "allowed"
	outcomeDenied      = "denied"
	outcomeUnavailable = "unavailable"
	outcomeFailedOpen  = "failed_open"
)

type Config struct {
	UpgradeURL   string        `env:"UPGRADE_URL" envDefault:"https://snipflow.app/pricing"`
	CheckTimeout time.Duration `env:"GATE_CHECK_TIMEOUT" envDefault:"2s"`
}

// Verifier authenticates a raw API key.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*apikey.Identity, error)
}

// RateChecker checks the hourly allowance of a principal.
type RateChecker interface {
	Check(ctx context.Context, principalID uuid.UUID, limitPerHour int) (*ratelimit.Result, error)
}

// FeatureChecker answers feature gates.
type FeatureChecker interface {
	CheckFeature(ctx context.Context, principalID uuid.UUID, f plan.Feature) (*entitlement.Decision, error)
}

// Recorder receives usage events. Record must not block.
type Recorder interface {
	Record(ctx context.Context, e usage.Event)
}

// Observer counts gate decisions.
type Observer interface {
	ObserveDecision(check, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(string, string) {}

// Gate turns the access checks into HTTP middleware and maps their errors
// to responses.
type Gate struct {
	cfg      Config
	auth     Verifier
	limiter  RateChecker
	features FeatureChecker
	recorder Recorder
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Gate)

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(g *Gate) {
		if o != nil {
			g.observer = o
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// New panics if any checker is nil.
func New(cfg Config, auth Verifier, limiter RateChecker, features FeatureChecker, recorder Recorder, opts ...Option) *Gate {
	if auth == nil || limiter == nil || features == nil || recorder == nil {
		panic("gate: verifier, rate checker, feature checker and recorder are required")
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 2 * time.Second
	}

	g := &Gate{
		cfg:      cfg,
		auth:     auth,
		limiter:  limiter,
		features: features,
		recorder: recorder,
		observer: nopObserver{},
		logger:   logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(logger.Component("gate"))
	return g
}

// Authenticate verifies the presented API key and stores the identity in the
// request context. Requests without a credential get 401 unauthenticated,
// rejected keys get 401 invalid_api_key.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := Credential(r)
		if raw == "" {
			g.Error(w, r, ErrUnauthenticated)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), g.cfg.CheckTimeout)
		id, err := g.auth.Verify(ctx, raw)
		cancel()
		if err != nil {
			g.Error(w, r, err)
			return
		}

		g.observer.ObserveDecision(checkAuth, outcomeAllowed)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RateLimit enforces the hourly allowance of the authenticated key. A
// failing counter lets the request through.
func (g *Gate) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			g.Error(w, r, ErrUnauthenticated)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), g.cfg.CheckTimeout)
		res, err := g.limiter.Check(ctx, id.PrincipalID, id.RateLimit)
		cancel()

		var exceeded *ratelimit.Exceeded
		switch {
		case errors.As(err, &exceeded):
			g.Error(w, r, err)
			return
		case err != nil:
			g.observer.ObserveDecision(checkRateLimit, outcomeFailedOpen)
			g.logger.WarnContext(r.Context(), "rate limit check failed, allowing request",
				logger.PrincipalID(id.PrincipalID),
				logger.KeyPrefix(id.KeyPrefix),
				logger.Error(err),
			)
		default:
			g.observer.ObserveDecision(checkRateLimit, outcomeAllowed)
			g.writeRateHeaders(w, *res)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireFeature refuses the request unless the caller's effective plan
// includes f.
func (g *Gate) RequireFeature(f plan.Feature) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				g.Error(w, r, ErrUnauthenticated)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), g.cfg.CheckTimeout)
			_, err := g.features.CheckFeature(ctx, id.PrincipalID, f)
			cancel()
			if err != nil {
				g.Error(w, r, err)
				return
			}

			g.observer.ObserveDecision(checkFeature, outcomeAllowed)
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Meter records one api usage event for every request that completes with
// a 2xx or 3xx status. These events feed the rate limiter.
func (g *Gate) Meter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		if sw.status >= http.StatusBadRequest {
			return
		}
		id, ok := IdentityFrom(r.Context())
		if !ok {
			return
		}

		e := usage.NewEvent(id.PrincipalID, usage.FeatureAPI, usage.TypeRequest, g.now())
		e.Metadata = map[string]any{
			"method": r.Method,
			"route":  routePattern(r),
			"key_id": id.KeyID.String(),
		}
		g.recorder.Record(context.WithoutCancel(r.Context()), e)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
