package resilience

import "time"

// Config is the retry and circuit-breaker policy for one kind of dependency call.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64
	// AttemptTimeout bounds each attempt; zero leaves the caller's deadline in charge.
	AttemptTimeout time.Duration

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// batchTransportMaxAttempts caps re-sends of a whole batch; each one repeats every calculation in it.
const batchTransportMaxAttempts = 2

// DefaultLookupPolicy suits rate lookups: short indexed reads, four per calculation, that are safe to repeat.
func DefaultLookupPolicy() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,
		AttemptTimeout:      2 * time.Second,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// ForBatchTransport derives the policy for remote batch requests from a lookup policy. A batch reply can
// legitimately take longer than any lookup, so attempts are bounded only by the transport's request timeout,
// and a whole batch is re-sent at most once.
func (c Config) ForBatchTransport() Config {
	out := c.normalize()
	out.AttemptTimeout = 0
	if out.RetryMaxAttempts > batchTransportMaxAttempts {
		out.RetryMaxAttempts = batchTransportMaxAttempts
	}
	// Batches are far rarer than lookups; trip on a handful of failed requests.
	if out.BreakerMinRequests > 5 {
		out.BreakerMinRequests = 5
	}
	return out
}

func (c Config) normalize() Config {
	def := DefaultLookupPolicy()
	out := c

	out.RetryMaxAttempts = positiveOr(out.RetryMaxAttempts, def.RetryMaxAttempts)
	out.RetryInitialBackoff = positiveOr(out.RetryInitialBackoff, def.RetryInitialBackoff)
	out.RetryMaxBackoff = max(positiveOr(out.RetryMaxBackoff, def.RetryMaxBackoff), out.RetryInitialBackoff)
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	out.AttemptTimeout = max(out.AttemptTimeout, 0)

	out.BreakerMinRequests = positiveOr(out.BreakerMinRequests, def.BreakerMinRequests)
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	out.BreakerOpenTimeout = positiveOr(out.BreakerOpenTimeout, def.BreakerOpenTimeout)
	out.BreakerHalfOpenMaxCalls = positiveOr(out.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)
	return out
}

func positiveOr[T int | uint32 | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}
