// Package api mounts the public HTTP interface on a chi router.
//
// Every route under /api/v1 requires an API key, is rate limited per key and
// requires the api_access feature. Team routes additionally require
// team_management and the analytics route requires analytics. Successful
// calls are metered as api usage events, which in turn feed the rate
// limiter. /healthz and /metrics are served without authentication.
package api
