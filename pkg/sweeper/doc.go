// Package sweeper runs a cron job that marks paid subscriptions past their
// expiry timestamp as expired.
package sweeper
