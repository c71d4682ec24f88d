package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// limiterPool hands out one token bucket per caller identity. Authenticated
// callers are keyed by API key; webhook intake carries no key and is keyed
// by client IP instead, so one noisy provider endpoint cannot starve the
// read API.
type limiterPool struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	cfg     SecConfig
}

func (p *limiterPool) limiterFor(id string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buckets == nil {
		p.buckets = make(map[string]*rate.Limiter)
	}
	if l, ok := p.buckets[id]; ok {
		return l
	}
	rps := p.cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	burst := p.cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	l := rate.NewLimiter(rate.Limit(rps), burst)
	p.buckets[id] = l
	return l
}

// Allow reports whether the caller identified by id may proceed right now.
func (p *limiterPool) Allow(id string) bool {
	return p.limiterFor(id).Allow()
}
