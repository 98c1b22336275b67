package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Tier identifies a throughput tier. The set of tiers is closed and defined by deployment config.
type Tier string

// Default tiers
const (
	TierBasic     Tier = "basic"
	TierElevated  Tier = "elevated"
	TierUnlimited Tier = "unlimited"
)

// UnlimitedQuota marks a tier with no request cap
const UnlimitedQuota int64 = -1

// TierOrder defines the order of the default tiers for comparison
var TierOrder = map[Tier]int{
	TierBasic:     0,
	TierElevated:  1,
	TierUnlimited: 2,
}

// TierLimits maps each tier to its per-window request limit (-1 = unlimited)
type TierLimits map[Tier]int64

// DefaultTierLimits returns the illustrative per-hour limits
func DefaultTierLimits() TierLimits {
	return TierLimits{
		TierBasic:     50,
		TierElevated:  500,
		TierUnlimited: UnlimitedQuota,
	}
}

// Limit returns the limit for a tier and whether the tier is known
func (l TierLimits) Limit(tier Tier) (int64, bool) {
	limit, ok := l[tier]
	return limit, ok
}

// Tiers returns the configured tiers sorted by limit, unlimited last
func (l TierLimits) Tiers() []Tier {
	tiers := make([]Tier, 0, len(l))
	for tier := range l {
		tiers = append(tiers, tier)
	}
	sort.Slice(tiers, func(i, j int) bool {
		li, lj := l[tiers[i]], l[tiers[j]]
		if li < 0 && lj < 0 {
			return tiers[i] < tiers[j]
		}
		if li < 0 {
			return false
		}
		if lj < 0 {
			return true
		}
		if li != lj {
			return li < lj
		}
		return tiers[i] < tiers[j]
	})
	return tiers
}

// Lowest returns the tier with the smallest limit
func (l TierLimits) Lowest() Tier {
	tiers := l.Tiers()
	if len(tiers) == 0 {
		return TierBasic
	}
	return tiers[0]
}

// ParseTierLimits parses "basic=50,elevated=500,unlimited=-1"
func ParseTierLimits(spec string) (TierLimits, error) {
	limits := TierLimits{}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, found := strings.Cut(part, "=")
		if !found {
			return nil, fmt.Errorf("invalid tier limit %q: expected name=limit", part)
		}
		tier := Tier(strings.ToLower(strings.TrimSpace(name)))
		if tier == "" {
			return nil, fmt.Errorf("invalid tier limit %q: empty tier name", part)
		}
		limit, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid limit for tier %s: %w", tier, err)
		}
		if limit < UnlimitedQuota {
			return nil, fmt.Errorf("invalid limit for tier %s: %d", tier, limit)
		}
		limits[tier] = limit
	}
	if len(limits) == 0 {
		return nil, fmt.Errorf("no tiers configured")
	}
	return limits, nil
}
