// Package pacer throttles how fast a connection's outbound datagram queue
// may drain, standing in for real congestion control (spec.md §1 scopes
// that out; this is the "pacing stub" named in the Non-goals). It wraps
// golang.org/x/time/rate rather than reimplementing a token bucket.
package pacer

import (
	"time"

	"golang.org/x/time/rate"
)

// defaultDatagramsPerSecond and defaultBurst are deliberately generous:
// this is a placeholder for a real congestion controller, not an attempt
// to model one, so the defaults are sized to never be the limiting factor
// for a well-behaved peer.
const (
	defaultDatagramsPerSecond = 10000
	defaultBurst              = 256
)

// Pacer gates individual datagram sends. A nil *Pacer allows everything,
// so a Connection built without one behaves as if pacing were disabled.
type Pacer struct {
	limiter *rate.Limiter
}

// New builds a Pacer that allows burst datagrams immediately and refills
// at datagramsPerSecond tokens per second thereafter.
func New(datagramsPerSecond float64, burst int) *Pacer {
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(datagramsPerSecond), burst)}
}

// Default builds a Pacer using defaultDatagramsPerSecond/defaultBurst.
func Default() *Pacer {
	return New(defaultDatagramsPerSecond, defaultBurst)
}

// Allow reports whether one more datagram may be sent right now and, if
// so, consumes a token. It never blocks: a caller that gets false simply
// tries again on a later call, the same non-blocking contract as Port.
func (p *Pacer) Allow() bool {
	if p == nil {
		return true
	}
	return p.limiter.AllowN(time.Now(), 1)
}
