// Package gate exposes the access checks as chi-compatible middleware and
// maps their errors onto HTTP responses.
//
// A protected route is typically wrapped as
//
//	r.Use(g.Authenticate, g.RateLimit, g.RequireFeature(plan.FeatureAPIAccess), g.Meter)
//
// Authenticate reads the API key from X-API-Key, then an Authorization bearer
// token, then the api_key query parameter. Missing credentials yield 401
// unauthenticated and rejected ones 401 invalid_api_key. RateLimit answers
// 429 with X-RateLimit-* and Retry-After headers, and lets the request
// through when the usage counter cannot be read. RequireFeature answers 403
// feature_not_available with the cheapest plan granting the feature, and
// also when the plan cannot be resolved. Meter records an api usage event
// after every successful response.
//
// Handlers report quota denials by passing the error to Gate.Error, which
// renders 403 quota_exceeded with the current and maximum counts.
package gate
