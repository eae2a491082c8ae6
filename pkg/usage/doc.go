// Package usage records metered actions.
//
// A Recorder accepts events without blocking and writes them in batches from
// a background goroutine, so recording can never fail or slow down the action
// that produced the event. Delivery is at-least-once while the process runs;
// events still queued when Close times out are lost, and events offered while
// the buffer is full are dropped and logged.
//
// Stores:
//
//   - PostgresStore: the append-only usage_events ledger, also a Counter and a
//     Summarizer.
//   - RedisWindow: a sorted-set mirror of the last hour, a fast Counter for
//     rate limiting.
//   - MemoryStore: for tests and single-process runs.
//   - Tee: fans one batch out to several stores.
package usage
