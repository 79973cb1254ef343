package api

import (
	"sync"

	"tutorslot/internal/config"

	"golang.org/x/time/rate"
)

// clientLimiter hands out one token bucket per client key.
type clientLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rps      float64
	burst    int
}

func newClientLimiter(cfg config.APIRateLimitConfig) *clientLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &clientLimiter{rps: cfg.RPS, burst: burst}
}

func (l *clientLimiter) enabled() bool {
	return l.rps > 0
}

func (l *clientLimiter) allow(key string) bool {
	if !l.enabled() {
		return true
	}
	return l.get(key).Allow()
}

func (l *clientLimiter) get(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		if lim, ok := v.(*rate.Limiter); ok {
			return lim
		}
	}

	lim := rate.NewLimiter(rate.Limit(l.rps), l.burst)
	actual, loaded := l.limiters.LoadOrStore(key, lim)
	if loaded {
		if actualLim, ok := actual.(*rate.Limiter); ok {
			return actualLim
		}
	}
	return lim
}
