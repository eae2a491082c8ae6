package gate

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrymomot/snipflow/pkg/apikey"
	"github.com/dmitrymomot/snipflow/pkg/entitlement"
	"github.com/dmitrymomot/snipflow/pkg/logger"
	"github.com/dmitrymomot/snipflow/pkg/plan"
	"github.com/dmitrymomot/snipflow/pkg/quota"
	"github.com/dmitrymomot/snipflow/pkg/ratelimit"
	"github.com/dmitrymomot/snipflow/pkg/validator"
)

// ErrorResponse is the body of every non-2xx response. Only the fields
// relevant to the error kind are set.
type ErrorResponse struct {
	Error           string           `json:"error"`
	Message         string           `json:"message,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	Feature         string           `json:"feature,omitempty"`
	Resource        string           `json:"resource,omitempty"`
	CurrentPlan     string           `json:"currentPlan,omitempty"`
	RecommendedPlan string           `json:"recommendedPlan,omitempty"`
	UpgradeURL      string           `json:"upgradeUrl,omitempty"`
	CurrentCount    *int64           `json:"currentCount,omitempty"`
	MaxCount        *int64           `json:"maxCount,omitempty"`
	Limit           *int             `json:"limit,omitempty"`
	Remaining       *int             `json:"remaining,omitempty"`
	ResetAt         *time.Time       `json:"resetAt,omitempty"`
	Details         validator.Errors `json:"details,omitempty"`
}

// WriteJSON writes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(v)
}

// Error classifies err and writes the matching response. Unknown errors
// become a 500 without exposing their text.
func (g *Gate) Error(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status, body, check, outcome := g.classify(err)

	if check != "" {
		g.observer.ObserveDecision(check, outcome)
	}

	switch {
	case status >= http.StatusInternalServerError:
		g.logger.ErrorContext(ctx, "request failed", logger.Error(err))
	case outcome == outcomeUnavailable:
		g.logger.ErrorContext(ctx, "access check unavailable, denying",
			slog.String("check", check),
			logger.Error(err),
		)
	case check != "":
		g.logger.InfoContext(ctx, "request denied",
			slog.String("check", check),
			logger.Reason(body.Reason),
		)
	}

	var rl *ratelimit.Exceeded
	if errors.As(err, &rl) {
		g.writeRateHeaders(w, rl.Result)
		w.Header().Set("Retry-After", strconv.Itoa(int(rl.RetryAfter(g.now()).Seconds())))
	}

	if werr := WriteJSON(w, status, body); werr != nil {
		g.logger.WarnContext(ctx, "failed to write error response", logger.Error(werr))
	}
}

func (g *Gate) classify(err error) (status int, body ErrorResponse, check, outcome string) {
	var (
		invalid  *apikey.InvalidError
		denial   *entitlement.Denial
		exceeded *quota.Exceeded
		limited  *ratelimit.Exceeded
		httpErr  HTTPError
	)

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthenticated",
			Message: "An API key is required.",
		}, checkAuth, outcomeDenied

	case errors.As(err, &invalid):
		outcome = outcomeDenied
		if invalid.Reason == apikey.ReasonUnavailable {
			outcome = outcomeUnavailable
		}
		return http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_api_key",
			Message: "The API key is invalid or has been revoked.",
			Reason:  string(invalid.Reason),
		}, checkAuth, outcome

	case errors.As(err, &denial):
		outcome = outcomeDenied
		msg := denial.FeatureName + " is not available on your current plan."
		if denial.Reason == entitlement.ReasonUnavailable {
			outcome = outcomeUnavailable
			msg = "Access to " + denial.FeatureName + " could not be verified."
		}
		return http.StatusForbidden, ErrorResponse{
			Error:           "feature_not_available",
			Message:         msg,
			Reason:          string(denial.Reason),
			Feature:         string(denial.Feature),
			CurrentPlan:     string(denial.CurrentPlan),
			RecommendedPlan: string(denial.RecommendedPlan),
			UpgradeURL:      g.upgradeURL(denial.RecommendedPlan),
		}, checkFeature, outcome

	case errors.As(err, &exceeded):
		current := exceeded.Current
		body = ErrorResponse{
			Error:           "quota_exceeded",
			Message:         "You have reached the " + string(exceeded.Resource) + " limit of your plan.",
			Reason:          "limit_reached",
			Resource:        string(exceeded.Resource),
			CurrentPlan:     string(exceeded.Tier),
			RecommendedPlan: string(exceeded.Recommended),
			UpgradeURL:      g.upgradeURL(exceeded.Recommended),
			CurrentCount:    &current,
		}
		if !exceeded.Max.IsUnlimited() {
			maxCount := int64(exceeded.Max)
			body.MaxCount = &maxCount
		}
		return http.StatusForbidden, body, checkQuota, outcomeDenied

	case errors.Is(err, quota.ErrUnavailable):
		return http.StatusForbidden, ErrorResponse{
			Error:   "quota_unavailable",
			Message: "Usage limits could not be verified.",
			Reason:  "unavailable",
		}, checkQuota, outcomeUnavailable

	case errors.Is(err, entitlement.ErrUnavailable):
		return http.StatusForbidden, ErrorResponse{
			Error:   "entitlements_unavailable",
			Message: "Plan entitlements could not be resolved.",
			Reason:  "unavailable",
		}, checkFeature, outcomeUnavailable

	case errors.As(err, &limited):
		limit, remaining, resetAt := limited.Limit, limited.Remaining, limited.ResetAt
		return http.StatusTooManyRequests, ErrorResponse{
			Error:     "rate_limited",
			Message:   "Hourly API request limit exceeded.",
			Limit:     &limit,
			Remaining: &remaining,
			ResetAt:   &resetAt,
		}, checkRateLimit, outcomeDenied
	}

	if ve := validator.Extract(err); ve != nil {
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation_error",
			Message: "The request is invalid.",
			Details: ve,
		}, "", ""
	}

	if errors.As(err, &httpErr) {
		msg := httpErr.Message
		if msg == "" {
			msg = http.StatusText(httpErr.Code)
		}
		return httpErr.Code, ErrorResponse{Error: httpErr.Key, Message: msg}, "", ""
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error:   ErrInternal.Key,
		Message: http.StatusText(http.StatusInternalServerError),
	}, "", ""
}

func (g *Gate) writeRateHeaders(w http.ResponseWriter, res ratelimit.Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
}

// upgradeURL points at the pricing page, preselecting tier when known.
func (g *Gate) upgradeURL(tier plan.Tier) string {
	if g.cfg.UpgradeURL == "" {
		return ""
	}
	if tier == "" {
		return g.cfg.UpgradeURL
	}
	u, err := url.Parse(g.cfg.UpgradeURL)
	if err != nil {
		return g.cfg.UpgradeURL
	}
	q := u.Query()
	q.Set("plan", tier.String())
	u.RawQuery = q.Encode()
	return u.String()
}
