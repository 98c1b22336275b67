package health

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"
)

const defaultCheckTimeout = 2 * time.Second

type registration struct {
	checker  Checker
	critical bool
}

// Service probes the registered dependencies and keeps the last report
type Service struct {
	mu           sync.RWMutex
	checkers     []registration
	last         Report
	checkTimeout time.Duration
}

// NewService creates a new health service
func NewService(checkTimeout time.Duration) *Service {
	if checkTimeout <= 0 {
		checkTimeout = defaultCheckTimeout
	}
	return &Service{
		checkTimeout: checkTimeout,
		last:         Report{Status: StatusUnknown},
	}
}

// Register adds a dependency. A failing critical dependency makes the whole
// report unhealthy; a failing non-critical one only degrades it.
func (s *Service) Register(checker Checker, critical bool) {
	if checker == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers = append(s.checkers, registration{checker: checker, critical: critical})
	log.Printf("[HEALTH] Registered dependency %s (critical=%v)", checker.Name(), critical)
}

// CheckAll pings every registered dependency concurrently and stores the report
func (s *Service) CheckAll(ctx context.Context) Report {
	s.mu.RLock()
	regs := make([]registration, len(s.checkers))
	copy(regs, s.checkers)
	s.mu.RUnlock()

	results := make([]DependencyHealth, len(regs))
	var wg sync.WaitGroup
	for i, reg := range regs {
		wg.Add(1)
		go func(i int, reg registration) {
			defer wg.Done()
			results[i] = s.probe(ctx, reg)
		}(i, reg)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	report := Report{
		Status:       aggregate(results),
		Dependencies: results,
		CheckedAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	previous := s.last.Status
	s.last = report
	s.mu.Unlock()

	if previous != report.Status {
		log.Printf("[HEALTH] Status changed %s -> %s", previous, report.Status)
	}
	return report
}

// Last returns the most recent report without probing
func (s *Service) Last() Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Service) probe(ctx context.Context, reg registration) DependencyHealth {
	checkCtx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	start := time.Now()
	err := reg.checker.Ping(checkCtx)
	result := DependencyHealth{
		Name:      reg.checker.Name(),
		Status:    StatusHealthy,
		Critical:  reg.critical,
		LatencyMs: time.Since(start).Milliseconds(),
		CheckedAt: time.Now().UTC(),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.LastError = err.Error()
		log.Printf("⚠️  [HEALTH] %s check failed: %v", result.Name, err)
	}
	return result
}

func aggregate(results []DependencyHealth) HealthStatus {
	status := StatusHealthy
	for _, r := range results {
		if r.Status == StatusHealthy {
			continue
		}
		if r.Critical {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}
