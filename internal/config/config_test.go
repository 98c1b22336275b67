package config

import (
	"testing"
	"time"

	"personachat/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.QuotaWindow != time.Hour {
		t.Errorf("QuotaWindow = %s, want 1h", cfg.QuotaWindow)
	}
	if cfg.QuotaFailPolicy != FailClosed {
		t.Errorf("QuotaFailPolicy = %q, want %q", cfg.QuotaFailPolicy, FailClosed)
	}
	if cfg.SimilarityFloor != 0.7 {
		t.Errorf("SimilarityFloor = %v, want 0.7", cfg.SimilarityFloor)
	}
	if cfg.MaxSnippets != 5 {
		t.Errorf("MaxSnippets = %d, want 5", cfg.MaxSnippets)
	}
	if limit, _ := cfg.TierLimits.Limit(models.TierBasic); limit != 50 {
		t.Errorf("basic limit = %d, want 50", limit)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("QUOTA_WINDOW", "60")
	t.Setenv("QUOTA_TIER_LIMITS", "basic=2,elevated=10")
	t.Setenv("QUOTA_FAIL_POLICY", "OPEN")
	t.Setenv("RETRIEVAL_TIMEOUT", "750ms")
	t.Setenv("MAX_SNIPPETS", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.QuotaWindow != time.Minute {
		t.Errorf("QuotaWindow = %s, want 1m", cfg.QuotaWindow)
	}
	if cfg.QuotaFailPolicy != FailOpen {
		t.Errorf("QuotaFailPolicy = %q, want %q", cfg.QuotaFailPolicy, FailOpen)
	}
	if cfg.RetrievalTimeout != 750*time.Millisecond {
		t.Errorf("RetrievalTimeout = %s, want 750ms", cfg.RetrievalTimeout)
	}
	if cfg.MaxSnippets != 3 {
		t.Errorf("MaxSnippets = %d, want 3", cfg.MaxSnippets)
	}
	if _, ok := cfg.TierLimits.Limit(models.TierUnlimited); ok {
		t.Error("unlimited tier should not be configured when QUOTA_TIER_LIMITS omits it")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad policy", "QUOTA_FAIL_POLICY", "maybe"},
		{"bad tiers", "QUOTA_TIER_LIMITS", "basic"},
		{"floor out of range", "SIMILARITY_FLOOR", "1.5"},
		{"zero snippets", "MAX_SNIPPETS", "0"},
		{"bad cache", "RETRIEVAL_CACHE", "disk"},
		{"mongo without uri", "STORE_BACKEND", "mongo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s should fail", tt.key, tt.value)
			}
		})
	}
}
