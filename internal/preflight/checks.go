package preflight

import (
	"context"
	"fmt"
	"log"
	"time"

	"personachat/internal/config"
	"personachat/internal/database"
	"personachat/internal/models"
)

// CheckResult represents the result of a preflight check
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail", "warning"
	Message string
	Error   error
}

// CreatorSource lists the configured creator personas
type CreatorSource interface {
	List() []models.Creator
}

// Checker performs pre-flight checks before the server starts accepting traffic
type Checker struct {
	cfg      *config.Config
	db       *database.DB // nil when conversations live in MongoDB
	creators CreatorSource
}

// NewChecker creates a new preflight checker
func NewChecker(cfg *config.Config, db *database.DB, creators CreatorSource) *Checker {
	return &Checker{cfg: cfg, db: db, creators: creators}
}

// RunAll runs all preflight checks and returns results
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	log.Println("🔍 Running pre-flight checks...")

	results := []CheckResult{
		c.checkConversationSchema(ctx),
		c.checkCreators(),
		c.checkTierLimits(),
		c.checkGenerationCredentials(),
		c.checkFailPolicy(),
	}

	passed, failed, warnings := 0, 0, 0
	for _, result := range results {
		switch result.Status {
		case "pass":
			log.Printf("   ✅ %s: %s", result.Name, result.Message)
			passed++
		case "fail":
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
			if result.Error != nil {
				log.Printf("      Error: %v", result.Error)
			}
			failed++
		case "warning":
			log.Printf("   ⚠️  %s: %s", result.Name, result.Message)
			warnings++
		}
	}

	log.Printf("📊 Pre-flight summary: %d passed, %d failed, %d warnings", passed, failed, warnings)
	return results
}

// HasFailures returns true if any check failed
func HasFailures(results []CheckResult) bool {
	for _, result := range results {
		if result.Status == "fail" {
			return true
		}
	}
	return false
}

// checkConversationSchema verifies the turns table is queryable
func (c *Checker) checkConversationSchema(ctx context.Context) CheckResult {
	const name = "Conversation Schema"
	if c.db == nil {
		return CheckResult{Name: name, Status: "pass", Message: "Skipped (document store)"}
	}

	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for _, table := range []string{"conversations", "conversation_turns"} {
		var count int
		err := c.db.QueryRowContext(queryCtx, "SELECT COUNT(*) FROM "+table+" WHERE 1 = 0").Scan(&count)
		if err != nil {
			return CheckResult{
				Name:    name,
				Status:  "fail",
				Message: fmt.Sprintf("Table '%s' is not readable", table),
				Error:   err,
			}
		}
	}
	return CheckResult{Name: name, Status: "pass", Message: fmt.Sprintf("conversation tables ready (%s)", c.db.Dialect)}
}

// checkCreators verifies at least one active creator can be chatted with
func (c *Checker) checkCreators() CheckResult {
	const name = "Creator Registry"
	active := len(c.creators.List())
	if active == 0 {
		return CheckResult{
			Name:    name,
			Status:  "fail",
			Message: fmt.Sprintf("No active creators in %s", c.cfg.CreatorsFile),
		}
	}
	return CheckResult{Name: name, Status: "pass", Message: fmt.Sprintf("%d active creators", active)}
}

// checkTierLimits verifies every tier has a usable limit
func (c *Checker) checkTierLimits() CheckResult {
	const name = "Tier Limits"
	for _, tier := range c.cfg.TierLimits.Tiers() {
		if limit, _ := c.cfg.TierLimits.Limit(tier); limit == 0 {
			return CheckResult{
				Name:    name,
				Status:  "warning",
				Message: fmt.Sprintf("Tier '%s' has a zero limit and will reject every request", tier),
			}
		}
	}
	return CheckResult{Name: name, Status: "pass", Message: fmt.Sprintf("%d tiers per %s window", len(c.cfg.TierLimits), c.cfg.QuotaWindow)}
}

// checkGenerationCredentials warns when no API key is configured
func (c *Checker) checkGenerationCredentials() CheckResult {
	const name = "Generation Credentials"
	if c.cfg.GenerationAPIKey != "" {
		return CheckResult{Name: name, Status: "pass", Message: "API key configured for " + c.cfg.GenerationModel}
	}
	if c.cfg.IsProduction() {
		return CheckResult{Name: name, Status: "fail", Message: "GENERATION_API_KEY is required in production"}
	}
	return CheckResult{Name: name, Status: "warning", Message: "GENERATION_API_KEY not set (local endpoint assumed)"}
}

// checkFailPolicy warns about admitting traffic without quota accounting in production
func (c *Checker) checkFailPolicy() CheckResult {
	const name = "Quota Fail Policy"
	if c.cfg.QuotaFailPolicy == config.FailOpen && c.cfg.IsProduction() {
		return CheckResult{
			Name:    name,
			Status:  "warning",
			Message: "Fail-open admits unmetered traffic while Redis is unreachable",
		}
	}
	return CheckResult{Name: name, Status: "pass", Message: "fail-" + c.cfg.QuotaFailPolicy}
}
