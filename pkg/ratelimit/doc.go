// Package ratelimit bounds how many API calls a principal makes per rolling
// hour.
//
// The limiter counts api usage events recorded in the last 60 minutes; an
// event exactly 60 minutes old no longer counts. Counting and the later
// recording of the request are separate steps, so a burst of concurrent
// requests can briefly exceed the limit. This is accepted: the limiter is
// abuse mitigation, unlike quota reservations which are exact.
//
// A denied check returns *Exceeded with a reset time one hour from now.
package ratelimit
