package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrymomot/snipflow/pkg/async"
	"github.com/dmitrymomot/snipflow/pkg/entitlement"
	"github.com/dmitrymomot/snipflow/pkg/gate"
	"github.com/dmitrymomot/snipflow/pkg/plan"
	"github.com/dmitrymomot/snipflow/pkg/quota"
	"github.com/dmitrymomot/snipflow/pkg/usage"
)

const defaultAnalyticsWindow = 30 * 24 * time.Hour

type featureView struct {
	Key  plan.Feature `json:"key"`
	Name string       `json:"name"`
}

// limitView reports a quota. Max is null when the plan is unlimited.
type limitView struct {
	Current   int64  `json:"current"`
	Max       *int64 `json:"max"`
	Unlimited bool   `json:"unlimited"`
}

type subscriptionView struct {
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Active    bool       `json:"active"`
}

type entitlementsResponse struct {
	Plan          plan.Tier                   `json:"plan"`
	EffectivePlan plan.Tier                   `json:"effectivePlan"`
	Subscription  subscriptionView            `json:"subscription"`
	Features      []featureView               `json:"features"`
	Limits        map[plan.Resource]limitView `json:"limits"`
}

func (h *handlers) getEntitlements(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.caller(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	entsF := async.Go(ctx, func(ctx context.Context) (*entitlement.Entitlements, error) {
		return h.entitlements.Entitlements(ctx, principalID)
	})
	usageF := async.Go(ctx, func(ctx context.Context) (map[plan.Resource]quota.UsageInfo, error) {
		return h.usage.Usage(ctx, principalID)
	})

	ents, err := entsF.Await(ctx)
	if err != nil {
		h.gate.Error(w, r, err)
		return
	}
	counters, err := usageF.Await(ctx)
	if err != nil {
		h.gate.Error(w, r, err)
		return
	}

	resp := entitlementsResponse{
		Plan:          ents.Plan,
		EffectivePlan: ents.EffectiveTier,
		Subscription: subscriptionView{
			Status:    string(ents.Subscription.Status),
			ExpiresAt: ents.Subscription.ExpiresAt,
			Active:    ents.Plan == ents.EffectiveTier,
		},
		Features: make([]featureView, 0, len(ents.Features)),
		Limits:   make(map[plan.Resource]limitView, len(ents.Limits)),
	}
	for _, f := range ents.Features {
		resp.Features = append(resp.Features, featureView{Key: f, Name: f.DisplayName()})
	}
	for res, limit := range ents.Limits {
		v := limitView{Current: counters[res].Current, Unlimited: limit.IsUnlimited()}
		if !v.Unlimited {
			n := int64(limit)
			v.Max = &n
		}
		resp.Limits[res] = v
	}

	h.respond(w, r, http.StatusOK, resp)
}

type analyticsResponse struct {
	Since  time.Time               `json:"since"`
	Totals map[usage.Feature]int64 `json:"totals"`
}

// getAnalytics sums usage by feature since the "since" query parameter
// (RFC 3339), defaulting to the last 30 days.
func (h *handlers) getAnalytics(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.caller(w, r)
	if !ok {
		return
	}

	since := h.now().Add(-defaultAnalyticsWindow).UTC()
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.gate.Error(w, r, gate.NewHTTPError(gate.ErrBadRequest.Code, gate.ErrBadRequest.Key, "since must be an RFC 3339 timestamp."))
			return
		}
		since = t.UTC()
	}

	totals, err := h.analytics.Totals(r.Context(), principalID, since)
	if err != nil {
		h.gate.Error(w, r, errors.Join(gate.ErrInternal, err))
		return
	}
	if totals == nil {
		totals = map[usage.Feature]int64{}
	}
	h.respond(w, r, http.StatusOK, analyticsResponse{Since: since, Totals: totals})
}
