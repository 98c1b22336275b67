package jobs

import (
	"context"
	"time"

	"personachat/internal/health"
)

const defaultProbeInterval = 30 * time.Second

// DependencyProbe refreshes the cached health report so /ready never blocks
// on a slow dependency.
type DependencyProbe struct {
	health   *health.Service
	interval time.Duration
}

// NewDependencyProbe creates the probe job
func NewDependencyProbe(svc *health.Service, interval time.Duration) *DependencyProbe {
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	return &DependencyProbe{health: svc, interval: interval}
}

// Run probes every registered dependency once
func (p *DependencyProbe) Run(ctx context.Context) error {
	p.health.CheckAll(ctx)
	return nil
}

// Interval returns how often the probe runs
func (p *DependencyProbe) Interval() time.Duration {
	return p.interval
}
