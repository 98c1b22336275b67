package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDispatcher_BoundsConcurrency(t *testing.T) {
	d := NewDispatcher(2, 30*time.Millisecond, nil)
	ctx := context.Background()

	r1, err := d.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	r2, err := d.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if _, err := d.Acquire(ctx); !errors.Is(err, ErrOverloaded) {
		t.Fatalf("third Acquire() error = %v, want overloaded", err)
	}

	r1()
	r1() // second call is a no-op
	r3, err := d.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	r2()
	r3()

	if _, err := d.Acquire(ctx); err != nil {
		t.Errorf("slot should be free, got %v", err)
	}
}

func TestDispatcher_CallerCancelled(t *testing.T) {
	d := NewDispatcher(1, time.Second, nil)
	release, _ := d.Acquire(context.Background())
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
}
