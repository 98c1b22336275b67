package models

import "testing"

func TestParseTierLimits(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    TierLimits
		wantErr bool
	}{
		{"defaults", "basic=50,elevated=500,unlimited=-1", DefaultTierLimits(), false},
		{"whitespace and case", " Basic = 10 , PRO=20 ", TierLimits{"basic": 10, "pro": 20}, false},
		{"missing equals", "basic50", nil, true},
		{"bad number", "basic=fifty", nil, true},
		{"below unlimited", "basic=-2", nil, true},
		{"empty", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTierLimits(tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d tiers, want %d", len(got), len(tt.want))
			}
			for tier, limit := range tt.want {
				if got[tier] != limit {
					t.Errorf("tier %s: got %d, want %d", tier, got[tier], limit)
				}
			}
		})
	}
}

func TestTierLimits_TiersAndLowest(t *testing.T) {
	limits := TierLimits{"gold": 100, TierUnlimited: UnlimitedQuota, "bronze": 5}

	tiers := limits.Tiers()
	want := []Tier{"bronze", "gold", TierUnlimited}
	for i := range want {
		if tiers[i] != want[i] {
			t.Fatalf("Tiers() = %v, want %v", tiers, want)
		}
	}

	if limits.Lowest() != "bronze" {
		t.Errorf("Lowest() = %s, want bronze", limits.Lowest())
	}
}
