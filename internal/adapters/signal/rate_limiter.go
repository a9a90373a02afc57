package signal

import "golang.org/x/time/rate"

// connLimiter is a per-connection token bucket. A zero rate disables it.
type connLimiter struct {
	l *rate.Limiter
}

func newConnLimiter(opts Options) *connLimiter {
	if opts.RateLimit <= 0 {
		return &connLimiter{}
	}
	burst := opts.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &connLimiter{l: rate.NewLimiter(rate.Limit(opts.RateLimit), burst)}
}

func (cl *connLimiter) Allow() bool {
	return cl.l == nil || cl.l.Allow()
}
