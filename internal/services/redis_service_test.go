package services

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestNewRedisService(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	svc, err := NewRedisService(ctx, "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisService() error = %v", err)
	}
	if err := svc.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if svc.Name() != "redis" {
		t.Errorf("Name() = %q", svc.Name())
	}

	if err := svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := svc.Ping(ctx); err == nil {
		t.Error("Ping() after Close() should fail")
	}
	if err := svc.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestNewRedisService_InvalidURL(t *testing.T) {
	if _, err := NewRedisService(context.Background(), "not-a-url"); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestRedisServiceFromClient_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	svc := NewRedisServiceFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer svc.Close()

	ctx := context.Background()
	if err := svc.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	mr.Close()
	if err := svc.Ping(ctx); err == nil {
		t.Error("Ping() should fail once the server is gone")
	}
}
