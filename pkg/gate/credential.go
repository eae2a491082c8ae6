package gate

import (
	"net/http"
	"strings"
)

const (
	HeaderAPIKey = "X-API-Key"
	QueryAPIKey  = "api_key"
)

// Credential extracts the presented API key. The X-API-Key header wins over
// an Authorization bearer token, which wins over the api_key query parameter.
func Credential(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); v != "" {
		return v
	}
	if v := r.Header.Get("Authorization"); v != "" {
		scheme, token, ok := strings.Cut(v, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	return strings.TrimSpace(r.URL.Query().Get(QueryAPIKey))
}
