package preflight

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"personachat/internal/config"
	"personachat/internal/database"
	"personachat/internal/models"
)

type staticCreators []models.Creator

func (s staticCreators) List() []models.Creator { return s }

func testConfig() *config.Config {
	return &config.Config{
		Environment:      "development",
		CreatorsFile:     "creators.yaml",
		TierLimits:       models.DefaultTierLimits(),
		QuotaWindow:      time.Hour,
		QuotaFailPolicy:  config.FailClosed,
		GenerationModel:  "gpt-4o-mini",
		GenerationAPIKey: "sk-test",
	}
}

func setupPreflightTest(t *testing.T, initialize bool) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "preflight.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if initialize {
		if err := db.Initialize(context.Background()); err != nil {
			t.Fatalf("Failed to initialize test database: %v", err)
		}
	}
	return db
}

func findResult(t *testing.T, results []CheckResult, name string) CheckResult {
	t.Helper()
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no result named %q", name)
	return CheckResult{}
}

func TestRunAll_Pass(t *testing.T) {
	db := setupPreflightTest(t, true)
	checker := NewChecker(testConfig(), db, staticCreators{{ID: "hawa_singh", IsActive: true}})

	results := checker.RunAll(context.Background())
	if HasFailures(results) {
		t.Fatalf("unexpected failures: %+v", results)
	}
	for _, r := range results {
		if r.Status != "pass" {
			t.Errorf("%s: status %s (%s)", r.Name, r.Status, r.Message)
		}
	}
}

func TestCheckConversationSchema_MissingTable(t *testing.T) {
	db := setupPreflightTest(t, false)
	checker := NewChecker(testConfig(), db, staticCreators{{ID: "a"}})

	result := checker.checkConversationSchema(context.Background())
	if result.Status != "fail" || result.Error == nil {
		t.Errorf("expected failure with error, got %+v", result)
	}
}

func TestCheckConversationSchema_DocumentStore(t *testing.T) {
	checker := NewChecker(testConfig(), nil, staticCreators{{ID: "a"}})
	if result := checker.checkConversationSchema(context.Background()); result.Status != "pass" {
		t.Errorf("expected pass when no SQL store is used, got %+v", result)
	}
}

func TestChecks(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.Config)
		creators staticCreators
		check    string
		want     string
	}{
		{
			name:  "no creators",
			check: "Creator Registry",
			want:  "fail",
		},
		{
			name:     "zero tier limit",
			mutate:   func(c *config.Config) { c.TierLimits = models.TierLimits{models.TierBasic: 0} },
			creators: staticCreators{{ID: "a"}},
			check:    "Tier Limits",
			want:     "warning",
		},
		{
			name:     "missing api key in development",
			mutate:   func(c *config.Config) { c.GenerationAPIKey = "" },
			creators: staticCreators{{ID: "a"}},
			check:    "Generation Credentials",
			want:     "warning",
		},
		{
			name: "missing api key in production",
			mutate: func(c *config.Config) {
				c.GenerationAPIKey = ""
				c.Environment = "production"
			},
			creators: staticCreators{{ID: "a"}},
			check:    "Generation Credentials",
			want:     "fail",
		},
		{
			name: "fail-open in production",
			mutate: func(c *config.Config) {
				c.QuotaFailPolicy = config.FailOpen
				c.Environment = "production"
			},
			creators: staticCreators{{ID: "a"}},
			check:    "Quota Fail Policy",
			want:     "warning",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			checker := NewChecker(cfg, nil, tt.creators)
			result := findResult(t, checker.RunAll(context.Background()), tt.check)
			if result.Status != tt.want {
				t.Errorf("status = %s, want %s (%s)", result.Status, tt.want, result.Message)
			}
		})
	}
}

func TestHasFailures(t *testing.T) {
	if HasFailures([]CheckResult{{Status: "pass"}, {Status: "warning"}}) {
		t.Error("warnings should not count as failures")
	}
	if !HasFailures([]CheckResult{{Status: "pass"}, {Status: "fail"}}) {
		t.Error("expected failure to be detected")
	}
}
