package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"personachat/internal/health"
)

type countingJob struct {
	runs     atomic.Int32
	interval time.Duration
}

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return nil
}

func (j *countingJob) Interval() time.Duration { return j.interval }

type pingChecker struct {
	pings atomic.Int32
}

func (p *pingChecker) Name() string { return "redis" }

func (p *pingChecker) Ping(ctx context.Context) error {
	p.pings.Add(1)
	return errors.New("down")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSchedulerRunsJobImmediately(t *testing.T) {
	s, err := NewJobScheduler()
	if err != nil {
		t.Fatalf("NewJobScheduler: %v", err)
	}
	job := &countingJob{interval: time.Hour}
	if err := s.Register("counter", job); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register("counter", job); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	s.Start()
	waitFor(t, func() bool { return job.runs.Load() >= 1 })

	status := s.GetStatus()
	if st, ok := status["counter"]; !ok || !st.Registered {
		t.Errorf("missing status for counter job: %+v", status)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestDependencyProbeUpdatesHealthReport(t *testing.T) {
	svc := health.NewService(time.Second)
	checker := &pingChecker{}
	svc.Register(checker, true)

	probe := NewDependencyProbe(svc, 0)
	if probe.Interval() != defaultProbeInterval {
		t.Errorf("interval = %v, want %v", probe.Interval(), defaultProbeInterval)
	}

	s, err := NewJobScheduler()
	if err != nil {
		t.Fatalf("NewJobScheduler: %v", err)
	}
	defer s.Stop()
	if err := s.Register("dependency_probe", probe); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.Start()

	waitFor(t, func() bool { return checker.pings.Load() >= 1 })
	waitFor(t, func() bool { return svc.Last().Status == health.StatusUnhealthy })
}
