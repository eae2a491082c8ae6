// Package httpserver runs an http.Server bound to a context: cancelling the
// context triggers a graceful shutdown limited by Config.ShutdownTimeout.
// HealthHandler turns dependency pings into a readiness endpoint.
package httpserver
