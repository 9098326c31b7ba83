// Package dispatcher delivers OutputRecords to a pipeline's destinations,
// per spec.md §4.5: chat webhooks, bot pushes, signed generic webhooks
// with retry, and the realtime push bus.
package dispatcher

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wnt/tada/internal/metrics"
)

// HostPool tracks per-destination-host health and applies a rate limit
// per host, so one flaky or throttling destination backs off instead of
// burning every pipeline's retry budget against it. Adapted from the
// teacher's RPC endpoint pool (round-robin + rate limiter + cooldown),
// re-scoped from Solana RPC nodes to webhook destination hosts.
type HostPool struct {
	mu     sync.Mutex
	hosts  map[string]*hostState
	logger zerolog.Logger
}

type hostState struct {
	client        *http.Client
	limiter       *rate.Limiter
	healthy       bool
	cooldownUntil time.Time
}

func NewHostPool(logger zerolog.Logger) *HostPool {
	return &HostPool{
		hosts:  make(map[string]*hostState),
		logger: logger.With().Str("component", "webhook_host_pool").Logger(),
	}
}

func (p *HostPool) stateFor(host string) *hostState {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.hosts[host]
	if !ok {
		s = &hostState{
			client:  &http.Client{Timeout: 15 * time.Second},
			limiter: rate.NewLimiter(rate.Limit(10.0), 20),
			healthy: true,
		}
		p.hosts[host] = s
		metrics.SetDestinationHostHealth(host, true)
	}
	return s
}

// Acquire reports whether a request to host may proceed: false while the
// host is marked unhealthy or in cooldown. It does not block; the host's
// rate limiter is consulted with Allow, whose result does not gate the
// request.
func (p *HostPool) Acquire(host string) (*http.Client, bool) {
	s := p.stateFor(host)
	p.mu.Lock()
	inCooldown := time.Now().Before(s.cooldownUntil)
	healthy := s.healthy
	p.mu.Unlock()
	if inCooldown || !healthy {
		return s.client, false
	}
	s.limiter.Allow() // best-effort local shed; callers already own an attempt budget
	return s.client, true
}

func (p *HostPool) MarkUnhealthy(host string) {
	s := p.stateFor(host)
	p.mu.Lock()
	s.healthy = false
	p.mu.Unlock()
	metrics.SetDestinationHostHealth(host, false)
	p.logger.Warn().Str("host", host).Msg("destination host marked unhealthy")
}

func (p *HostPool) MarkHealthy(host string) {
	s := p.stateFor(host)
	p.mu.Lock()
	s.healthy = true
	s.cooldownUntil = time.Time{}
	p.mu.Unlock()
	metrics.SetDestinationHostHealth(host, true)
}

func (p *HostPool) Cooldown(host string, d time.Duration) {
	s := p.stateFor(host)
	p.mu.Lock()
	s.cooldownUntil = time.Now().Add(d)
	p.mu.Unlock()
	p.logger.Warn().Str("host", host).Dur("duration", d).Msg("destination host in cooldown")
}
