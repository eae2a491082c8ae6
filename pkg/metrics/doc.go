// Package metrics exposes Prometheus collectors for HTTP traffic, gate
// decisions, usage recording and the subscription sweeper.
package metrics
