package gate_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/snipflow/pkg/apikey"
	"github.com/dmitrymomot/snipflow/pkg/entitlement"
	"github.com/dmitrymomot/snipflow/pkg/gate"
	"github.com/dmitrymomot/snipflow/pkg/plan"
	"github.com/dmitrymomot/snipflow/pkg/principal"
	"github.com/dmitrymomot/snipflow/pkg/quota"
	"github.com/dmitrymomot/snipflow/pkg/ratelimit"
	"github.com/dmitrymomot/snipflow/pkg/usage"
	"github.com/dmitrymomot/snipflow/pkg/validator"
)

var fixedNow = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

type MockVerifier struct{ mock.Mock }

func (m *MockVerifier) Verify(ctx context.Context, raw string) (*apikey.Identity, error) {
	args := m.Called(ctx, raw)
	if id := args.Get(0); id != nil {
		return id.(*apikey.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockLimiter struct{ mock.Mock }

func (m *MockLimiter) Check(ctx context.Context, id uuid.UUID, limit int) (*ratelimit.Result, error) {
	args := m.Called(ctx, id, limit)
	if res := args.Get(0); res != nil {
		return res.(*ratelimit.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockFeatures struct{ mock.Mock }

func (m *MockFeatures) CheckFeature(ctx context.Context, id uuid.UUID, f plan.Feature) (*entitlement.Decision, error) {
	args := m.Called(ctx, id, f)
	if d := args.Get(0); d != nil {
		return d.(*entitlement.Decision), args.Error(1)
	}
	return nil, args.Error(1)
}

type sink struct {
	mu     sync.Mutex
	events []usage.Event
}

func (s *sink) Record(_ context.Context, e usage.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *sink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type decisions struct {
	mu   sync.Mutex
	seen []string
}

func (d *decisions) ObserveDecision(check, outcome string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, check+":"+outcome)
}

type fixture struct {
	gate     *gate.Gate
	verifier *MockVerifier
	limiter  *MockLimiter
	features *MockFeatures
	sink     *sink
	observed *decisions
	identity *apikey.Identity
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		verifier: &MockVerifier{},
		limiter:  &MockLimiter{},
		features: &MockFeatures{},
		sink:     &sink{},
		observed: &decisions{},
		identity: &apikey.Identity{
			PrincipalID: uuid.New(),
			KeyID:       uuid.New(),
			KeyPrefix:   "sf_abcdefgh",
			RateLimit:   100,
		},
	}
	f.gate = gate.New(
		gate.Config{UpgradeURL: "https://snipflow.test/pricing", CheckTimeout: time.Second},
		f.verifier, f.limiter, f.features, f.sink,
		gate.WithObserver(f.observed),
		gate.WithClock(func() time.Time { return fixedNow }),
	)
	return f
}

// handler wires the full middleware chain around an OK handler.
func (f fixture) handler(status int) http.Handler {
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
	return f.gate.Authenticate(f.gate.RateLimit(f.gate.RequireFeature(plan.FeatureAPIAccess)(f.gate.Meter(final))))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestCredential(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{"none", func(*http.Request) {}, ""},
		{"header", func(r *http.Request) { r.Header.Set(gate.HeaderAPIKey, "sf_header") }, "sf_header"},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer sf_bearer") }, "sf_bearer"},
		{"bearer case insensitive", func(r *http.Request) { r.Header.Set("Authorization", "bearer sf_bearer") }, "sf_bearer"},
		{"basic ignored", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, ""},
		{"query", func(r *http.Request) { r.URL.RawQuery = "api_key=sf_query" }, "sf_query"},
		{"header wins", func(r *http.Request) {
			r.Header.Set(gate.HeaderAPIKey, "sf_header")
			r.Header.Set("Authorization", "Bearer sf_bearer")
			r.URL.RawQuery = "api_key=sf_query"
		}, "sf_header"},
		{"bearer beats query", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer sf_bearer")
			r.URL.RawQuery = "api_key=sf_query"
		}, "sf_bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(r)
			assert.Equal(t, tt.want, gate.Credential(r))
		})
	}
}

func TestGate_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("missing credential", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		rec := httptest.NewRecorder()
		f.handler(http.StatusOK).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthenticated", decode(t, rec)["error"])
		f.verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
		assert.Zero(t, f.sink.len())
	})

	t.Run("invalid key", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.verifier.On("Verify", mock.Anything, "sf_bad").
			Return(nil, &apikey.InvalidError{Reason: apikey.ReasonRevoked})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(gate.HeaderAPIKey, "sf_bad")
		rec := httptest.NewRecorder()
		f.handler(http.StatusOK).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "invalid_api_key", body["error"])
		assert.Equal(t, "revoked", body["reason"])
		f.limiter.AssertNotCalled(t, "Check", mock.Anything, mock.Anything, mock.Anything)
		f.features.AssertNotCalled(t, "CheckFeature", mock.Anything, mock.Anything, mock.Anything)
		assert.Contains(t, f.observed.seen, "auth:denied")
	})

	t.Run("success records usage", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.verifier.On("Verify", mock.Anything, "sf_good").Return(f.identity, nil)
		f.limiter.On("Check", mock.Anything, f.identity.PrincipalID, 100).
			Return(&ratelimit.Result{Limit: 100, Remaining: 41, ResetAt: fixedNow.Add(time.Hour)}, nil)
		f.features.On("CheckFeature", mock.Anything, f.identity.PrincipalID, plan.FeatureAPIAccess).
			Return(&entitlement.Decision{Feature: plan.FeatureAPIAccess, EffectiveTier: plan.TierBasic}, nil)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer sf_good")
		rec := httptest.NewRecorder()
		f.handler(http.StatusOK).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "41", rec.Header().Get("X-RateLimit-Remaining"))
		require.Equal(t, 1, f.sink.len())
		e := f.sink.events[0]
		assert.Equal(t, usage.FeatureAPI, e.Feature)
		assert.Equal(t, usage.TypeRequest, e.Type)
		assert.Equal(t, f.identity.PrincipalID, e.PrincipalID)
		assert.Equal(t, fixedNow, e.CreatedAt)
		assert.Equal(t, f.identity.KeyID.String(), e.Metadata["key_id"])
	})
}

func TestGate_RateLimit(t *testing.T) {
	t.Parallel()

	t.Run("exceeded", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		resetAt := fixedNow.Add(30 * time.Minute)
		f.verifier.On("Verify", mock.Anything, "sf_good").Return(f.identity, nil)
		f.limiter.On("Check", mock.Anything, f.identity.PrincipalID, 100).
			Return(nil, &ratelimit.Exceeded{Result: ratelimit.Result{Limit: 100, Remaining: 0, ResetAt: resetAt}})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(gate.HeaderAPIKey, "sf_good")
		rec := httptest.NewRecorder()
		f.handler(http.StatusOK).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "1800", rec.Header().Get("Retry-After"))
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		body := decode(t, rec)
		assert.Equal(t, "rate_limited", body["error"])
		assert.EqualValues(t, 100, body["limit"])
		assert.EqualValues(t, 0, body["remaining"])
		assert.Equal(t, resetAt.Format(time.RFC3339), body["resetAt"])
		assert.Zero(t, f.sink.len())
		f.features.AssertNotCalled(t, "CheckFeature", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("counter failure fails open", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.verifier.On("Verify", mock.Anything, "sf_good").Return(f.identity, nil)
		f.limiter.On("Check", mock.Anything, f.identity.PrincipalID, 100).Return(nil, errors.New("redis down"))
		f.features.On("CheckFeature", mock.Anything, f.identity.PrincipalID, plan.FeatureAPIAccess).
			Return(&entitlement.Decision{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(gate.HeaderAPIKey, "sf_good")
		rec := httptest.NewRecorder()
		f.handler(http.StatusOK).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
		assert.Contains(t, f.observed.seen, "rate_limit:failed_open")
	})
}

func TestGate_RequireFeature(t *testing.T) {
	t.Parallel()

	allow := func(f fixture) {
		f.verifier.On("Verify", mock.Anything, "sf_good").Return(f.identity, nil)
		f.limiter.On("Check", mock.Anything, f.identity.PrincipalID, 100).
			Return(&ratelimit.Result{Limit: 100, Remaining: 99, ResetAt: fixedNow.Add(time.Hour)}, nil)
	}

	t.Run("not in plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		allow(f)
		f.features.On("CheckFeature", mock.Anything, f.identity.PrincipalID, plan.FeatureAPIAccess).
			Return(nil, &entitlement.Denial{
				Feature:         plan.FeatureAPIAccess,
				FeatureName:     "API Access",
				Reason:          entitlement.ReasonNotInPlan,
				CurrentPlan:     plan.TierFree,
				RecommendedPlan: plan.TierBasic,
			})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(gate.HeaderAPIKey, "sf_good")
		rec := httptest.NewRecorder()
		f.handler(http.StatusOK).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "feature_not_available", body["error"])
		assert.Equal(t, "free", body["currentPlan"])
		assert.Equal(t, "basic", body["recommendedPlan"])
		assert.Equal(t, "https://snipflow.test/pricing?plan=basic", body["upgradeUrl"])
		assert.Contains(t, body["message"], "API Access")
		assert.Zero(t, f.sink.len())
	})

	t.Run("unavailable fails closed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		allow(f)
		f.features.On("CheckFeature", mock.Anything, f.identity.PrincipalID, plan.FeatureAPIAccess).
			Return(nil, &entitlement.Denial{
				Feature:     plan.FeatureAPIAccess,
				FeatureName: "API Access",
				Reason:      entitlement.ReasonUnavailable,
			})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(gate.HeaderAPIKey, "sf_good")
		rec := httptest.NewRecorder()
		f.handler(http.StatusOK).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "unavailable", decode(t, rec)["reason"])
		assert.Contains(t, f.observed.seen, "feature:unavailable")
	})
}

func TestGate_MeterSkipsFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.verifier.On("Verify", mock.Anything, "sf_good").Return(f.identity, nil)
	f.limiter.On("Check", mock.Anything, f.identity.PrincipalID, 100).
		Return(&ratelimit.Result{Limit: 100, Remaining: 99, ResetAt: fixedNow.Add(time.Hour)}, nil)
	f.features.On("CheckFeature", mock.Anything, f.identity.PrincipalID, plan.FeatureAPIAccess).
		Return(&entitlement.Decision{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(gate.HeaderAPIKey, "sf_good")
	rec := httptest.NewRecorder()
	f.handler(http.StatusUnprocessableEntity).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, f.sink.len())
}

func TestGate_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		status    int
		errorKey  string
		checkBody func(t *testing.T, body map[string]any)
	}{
		{
			name:     "quota exceeded",
			err:      &quota.Exceeded{Resource: plan.ResourceSnippets, Current: 50, Max: 50, Tier: plan.TierFree, Recommended: plan.TierBasic},
			status:   http.StatusForbidden,
			errorKey: "quota_exceeded",
			checkBody: func(t *testing.T, body map[string]any) {
				assert.EqualValues(t, 50, body["currentCount"])
				assert.EqualValues(t, 50, body["maxCount"])
				assert.Equal(t, "https://snipflow.test/pricing?plan=basic", body["upgradeUrl"])
			},
		},
		{
			name:     "quota unavailable",
			err:      errors.Join(quota.ErrUnavailable, errors.New("db down")),
			status:   http.StatusForbidden,
			errorKey: "quota_unavailable",
			checkBody: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "unavailable", body["reason"])
				assert.NotContains(t, body["message"], "db down")
			},
		},
		{
			name:     "entitlements unavailable",
			err:      errors.Join(entitlement.ErrUnavailable, principal.ErrNotFound),
			status:   http.StatusForbidden,
			errorKey: "entitlements_unavailable",
		},
		{
			name:     "validation",
			err:      validator.Errors{{Field: "title", Message: "is required"}},
			status:   http.StatusUnprocessableEntity,
			errorKey: "validation_error",
			checkBody: func(t *testing.T, body map[string]any) {
				details, ok := body["details"].([]any)
				require.True(t, ok)
				assert.Len(t, details, 1)
			},
		},
		{
			name:     "http error",
			err:      gate.ErrNotFound,
			status:   http.StatusNotFound,
			errorKey: "not_found",
		},
		{
			name:     "unknown error is hidden",
			err:      errors.New("pq: connection refused"),
			status:   http.StatusInternalServerError,
			errorKey: "internal_error",
			checkBody: func(t *testing.T, body map[string]any) {
				assert.NotContains(t, body["message"], "pq")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			rec := httptest.NewRecorder()
			f.gate.Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			body := decode(t, rec)
			assert.Equal(t, tt.errorKey, body["error"])
			if tt.checkBody != nil {
				tt.checkBody(t, body)
			}
		})
	}
}

func TestNew_PanicsOnNilDeps(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() {
		gate.New(gate.Config{}, nil, &MockLimiter{}, &MockFeatures{}, &sink{})
	})
}
