package services

import (
	"testing"

	"personachat/internal/models"
)

func TestTierService_Resolve(t *testing.T) {
	svc := NewTierService(models.DefaultTierLimits())

	tests := []struct {
		name     string
		input    string
		expected models.Tier
	}{
		{"basic", "basic", models.TierBasic},
		{"mixed case", " Elevated ", models.TierElevated},
		{"unlimited", "unlimited", models.TierUnlimited},
		{"unknown falls back", "platinum", models.TierBasic},
		{"empty falls back", "", models.TierBasic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.Resolve(tt.input); got != tt.expected {
				t.Errorf("Resolve(%q) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTierService_GetLimit(t *testing.T) {
	svc := NewTierService(models.DefaultTierLimits())

	tests := []struct {
		tier     models.Tier
		expected int64
	}{
		{models.TierBasic, 50},
		{models.TierElevated, 500},
		{models.TierUnlimited, models.UnlimitedQuota},
		{models.Tier("unknown"), 50},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			if got := svc.GetLimit(tt.tier); got != tt.expected {
				t.Errorf("GetLimit(%s) = %d, want %d", tt.tier, got, tt.expected)
			}
		})
	}
}

func TestTierService_CopiesTable(t *testing.T) {
	limits := models.TierLimits{models.TierBasic: 5}
	svc := NewTierService(limits)
	limits[models.TierBasic] = 1000

	if got := svc.GetLimit(models.TierBasic); got != 5 {
		t.Errorf("GetLimit after caller mutation = %d, want 5", got)
	}
}
