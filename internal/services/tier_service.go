package services

import (
	"log"
	"strings"

	"personachat/internal/models"
)

// TierService resolves tier names against the configured limit table.
// The table is read-only after construction.
type TierService struct {
	limits models.TierLimits
	lowest models.Tier
}

// NewTierService creates a tier service over a limit table
func NewTierService(limits models.TierLimits) *TierService {
	if len(limits) == 0 {
		limits = models.DefaultTierLimits()
	}
	copied := make(models.TierLimits, len(limits))
	for tier, limit := range limits {
		copied[tier] = limit
	}
	return &TierService{limits: copied, lowest: copied.Lowest()}
}

// Resolve normalizes a tier name. Unknown or empty tiers fall back to the lowest configured tier.
func (s *TierService) Resolve(tier string) models.Tier {
	t := models.Tier(strings.ToLower(strings.TrimSpace(tier)))
	if _, ok := s.limits[t]; ok {
		return t
	}
	if tier != "" {
		log.Printf("⚠️  [TIER] Unknown tier %q, falling back to %s", tier, s.lowest)
	}
	return s.lowest
}

// GetLimit returns the per-window limit for a tier (-1 = no cap)
func (s *TierService) GetLimit(tier models.Tier) int64 {
	if limit, ok := s.limits[tier]; ok {
		return limit
	}
	limit, _ := s.limits[s.lowest]
	return limit
}

// Tiers lists the configured tiers from most to least restrictive
func (s *TierService) Tiers() []models.Tier {
	return s.limits.Tiers()
}
