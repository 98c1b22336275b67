package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"personachat/internal/models"
)

type failingCounter struct{ err error }

func (f failingCounter) Consume(ctx context.Context, identity, endpoint string, limit int64, window time.Duration) (ConsumeResult, error) {
	return ConsumeResult{}, f.err
}

func TestAdmissionService_BasicTierScenario(t *testing.T) {
	_, client := newTestRedis(t)
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := NewAdmissionService(
		NewRedisQuotaStore(client, ""),
		NewTierService(models.DefaultTierLimits()),
		time.Hour,
		WithAdmissionMetrics(metrics),
	)
	ctx := context.Background()

	for i := 1; i <= 50; i++ {
		decision, err := svc.CheckAndConsume(ctx, "u1", models.TierBasic, "chat")
		if err != nil {
			t.Fatalf("call %d: unexpected error %v", i, err)
		}
		if !decision.Admitted {
			t.Fatalf("call %d should be admitted", i)
		}
		if decision.Remaining != int64(50-i) {
			t.Errorf("call %d remaining = %d, want %d", i, decision.Remaining, 50-i)
		}
	}

	decision, err := svc.CheckAndConsume(ctx, "u1", models.TierBasic, "chat")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("51st call error = %v, want quota_exceeded", err)
	}
	if decision.Admitted {
		t.Error("51st call should be rejected")
	}
	if decision.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %s, want > 0", decision.RetryAfter)
	}
	var ce *ChatError
	if !errors.As(err, &ce) || ce.RetryAfter <= 0 {
		t.Errorf("ChatError retry hint missing: %+v", ce)
	}
	if ce.HTTPStatus() != 429 {
		t.Errorf("HTTPStatus() = %d, want 429", ce.HTTPStatus())
	}

	if got := testutil.ToFloat64(metrics.AdmissionDecisions.WithLabelValues("basic", "admitted")); got != 50 {
		t.Errorf("admitted metric = %v, want 50", got)
	}
	if got := testutil.ToFloat64(metrics.AdmissionDecisions.WithLabelValues("basic", "rejected")); got != 1 {
		t.Errorf("rejected metric = %v, want 1", got)
	}
}

func TestAdmissionService_UnknownTierUsesLowestLimit(t *testing.T) {
	_, client := newTestRedis(t)
	limits := models.TierLimits{"basic": 1, "elevated": 10}
	svc := NewAdmissionService(NewRedisQuotaStore(client, ""), NewTierService(limits), time.Hour)
	ctx := context.Background()

	decision, err := svc.CheckAndConsume(ctx, "u1", "diamond", "chat")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if decision.Window.Tier != models.TierBasic || decision.Limit != 1 {
		t.Errorf("decision tier=%s limit=%d, want basic/1", decision.Window.Tier, decision.Limit)
	}
	if _, err := svc.CheckAndConsume(ctx, "u1", "diamond", "chat"); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("second call error = %v, want quota_exceeded", err)
	}
}

func TestAdmissionService_UnlimitedTier(t *testing.T) {
	_, client := newTestRedis(t)
	svc := NewAdmissionService(NewRedisQuotaStore(client, ""), NewTierService(models.DefaultTierLimits()), time.Hour)

	for i := 0; i < 200; i++ {
		decision, err := svc.CheckAndConsume(context.Background(), "vip", models.TierUnlimited, "chat")
		if err != nil || !decision.Admitted {
			t.Fatalf("call %d: admitted=%v err=%v", i, decision.Admitted, err)
		}
		if !decision.Unlimited() || decision.Remaining != models.UnlimitedQuota {
			t.Fatalf("call %d: expected unlimited decision, got %+v", i, decision)
		}
	}
}

func TestAdmissionService_StoreFailurePolicy(t *testing.T) {
	storeErr := errors.New("dial tcp: connection refused")

	tests := []struct {
		name      string
		failOpen  bool
		wantAdmit bool
		wantKind  ErrorKind
	}{
		{"fail closed by default", false, false, KindAdmissionUnavailable},
		{"fail open when configured", true, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAdmissionService(
				failingCounter{err: storeErr},
				NewTierService(models.DefaultTierLimits()),
				time.Hour,
				WithFailOpen(tt.failOpen),
			)
			decision, err := svc.CheckAndConsume(context.Background(), "u1", models.TierBasic, "chat")
			if decision.Admitted != tt.wantAdmit {
				t.Errorf("Admitted = %v, want %v", decision.Admitted, tt.wantAdmit)
			}
			if KindOf(err) != tt.wantKind {
				t.Errorf("error kind = %q, want %q (err=%v)", KindOf(err), tt.wantKind, err)
			}
			if tt.wantAdmit && !decision.FailedOpen {
				t.Error("FailedOpen should be set")
			}
			if !tt.wantAdmit && !errors.Is(err, storeErr) {
				t.Error("store error should be wrapped")
			}
		})
	}
}

func TestAdmissionService_RequiresIdentity(t *testing.T) {
	svc := NewAdmissionService(failingCounter{}, NewTierService(nil), time.Hour)
	if _, err := svc.CheckAndConsume(context.Background(), "", models.TierBasic, "chat"); KindOf(err) != KindBadRequest {
		t.Errorf("error kind = %q, want bad_request", KindOf(err))
	}
}

func TestAdmissionService_WindowStamps(t *testing.T) {
	_, client := newTestRedis(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewAdmissionService(
		NewRedisQuotaStore(client, ""),
		NewTierService(models.DefaultTierLimits()),
		time.Hour,
		WithClock(func() time.Time { return fixed }),
	)

	decision, err := svc.CheckAndConsume(context.Background(), "u1", models.TierBasic, "chat")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !decision.Window.WindowStart.Equal(fixed) {
		t.Errorf("WindowStart = %s, want %s", decision.Window.WindowStart, fixed)
	}
	if !decision.ResetAt.Equal(fixed.Add(time.Hour)) {
		t.Errorf("ResetAt = %s, want %s", decision.ResetAt, fixed.Add(time.Hour))
	}
}
