package services

import (
	"context"
	"errors"
	"log"
	"time"

	"personachat/internal/models"
)

// AdmissionService enforces per-identity, per-tier fixed-window quotas
// against a counter shared by every worker.
type AdmissionService struct {
	counter  QuotaCounter
	tiers    *TierService
	window   time.Duration
	failOpen bool
	metrics  *Metrics
	now      func() time.Time
}

// AdmissionOption configures an AdmissionService
type AdmissionOption func(*AdmissionService)

// WithFailOpen admits requests when the counter store is unreachable. The default is to reject.
func WithFailOpen(failOpen bool) AdmissionOption {
	return func(s *AdmissionService) { s.failOpen = failOpen }
}

// WithAdmissionMetrics attaches metrics
func WithAdmissionMetrics(m *Metrics) AdmissionOption {
	return func(s *AdmissionService) { s.metrics = m }
}

// WithClock overrides the wall clock used to stamp decisions
func WithClock(now func() time.Time) AdmissionOption {
	return func(s *AdmissionService) { s.now = now }
}

// NewAdmissionService creates a new admission controller
func NewAdmissionService(counter QuotaCounter, tiers *TierService, window time.Duration, opts ...AdmissionOption) *AdmissionService {
	s := &AdmissionService{
		counter: counter,
		tiers:   tiers,
		window:  window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window returns the configured admission window
func (s *AdmissionService) Window() time.Duration {
	return s.window
}

// CheckAndConsume admits or rejects one attempt. A rejection returns both the decision
// and a *ChatError of kind quota_exceeded carrying the retry hint.
func (s *AdmissionService) CheckAndConsume(ctx context.Context, identity string, tier models.Tier, endpoint string) (models.QuotaDecision, error) {
	if identity == "" {
		return models.QuotaDecision{}, newChatError(KindBadRequest, nil, "identity is required")
	}

	resolved := s.tiers.Resolve(string(tier))
	limit := s.tiers.GetLimit(resolved)
	now := s.now()

	res, err := s.counter.Consume(ctx, identity, endpoint, limit, s.window)
	if err != nil {
		s.metrics.RecordAdmissionError()
		if errors.Is(err, context.Canceled) {
			return models.QuotaDecision{}, err
		}
		if s.failOpen {
			log.Printf("⚠️  [ADMISSION] Counter store unavailable, admitting %s (fail-open): %v", identity, err)
			s.metrics.RecordAdmission(string(resolved), "failed_open")
			return models.QuotaDecision{
				Admitted:   true,
				Window:     models.QuotaWindow{Identity: identity, Tier: resolved, Endpoint: endpoint, WindowStart: now},
				Limit:      limit,
				Remaining:  remaining(limit, 0),
				ResetAt:    now.Add(s.window),
				FailedOpen: true,
			}, nil
		}
		log.Printf("❌ [ADMISSION] Counter store unavailable, rejecting %s (fail-closed): %v", identity, err)
		s.metrics.RecordAdmission(string(resolved), "failed_closed")
		return models.QuotaDecision{}, newChatError(KindAdmissionUnavailable, err, "quota store unreachable")
	}

	ttl := res.TTL
	if ttl <= 0 || ttl > s.window {
		ttl = s.window
	}
	decision := models.QuotaDecision{
		Admitted: res.Admitted,
		Window: models.QuotaWindow{
			Identity:    identity,
			Tier:        resolved,
			Endpoint:    endpoint,
			WindowStart: now.Add(ttl - s.window),
			Count:       res.Count,
		},
		Limit:     limit,
		Remaining: remaining(limit, res.Count),
		ResetAt:   now.Add(ttl),
	}

	if !res.Admitted {
		decision.RetryAfter = ttl
		s.metrics.RecordAdmission(string(resolved), "rejected")
		log.Printf("🚫 [ADMISSION] Quota exceeded for %s on %s (%d/%d), retry in %s", identity, endpoint, res.Count, limit, ttl.Round(time.Second))
		return decision, &ChatError{
			Kind:       KindQuotaExceeded,
			Message:    "request quota exceeded for this window",
			RetryAfter: ttl,
		}
	}

	s.metrics.RecordAdmission(string(resolved), "admitted")
	return decision, nil
}

func remaining(limit, count int64) int64 {
	if limit < 0 {
		return models.UnlimitedQuota
	}
	if count >= limit {
		return 0
	}
	return limit - count
}
