package usecases

import (
	"sort"

	"samplr/pkg/entities"
)

// CurrentTier returns the highest tier whose threshold points has reached.
// Below every threshold it returns the base (lowest threshold) tier, and it
// returns nil only for an empty catalog.
//
// Tiers sharing a threshold are ordered so that the larger order wins here;
// the base tier and NextTier prefer the smaller order instead.
func CurrentTier(tiers []entities.Tier, points int64) *entities.Tier {
	if len(tiers) == 0 {
		return nil
	}

	sorted := sortedByThreshold(tiers)
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].RequiredPoints <= points {
			tier := sorted[i]
			return &tier
		}
	}

	base := sorted[0]
	return &base
}

// NextTier returns the lowest tier whose threshold is above points, or nil
// once every threshold has been passed.
func NextTier(tiers []entities.Tier, points int64) *entities.Tier {
	for _, tier := range sortedByThreshold(tiers) {
		if tier.RequiredPoints > points {
			next := tier
			return &next
		}
	}
	return nil
}

// BadgeAchievements counts the tiers above the base tier that points unlocks.
func BadgeAchievements(tiers []entities.Tier, points int64) int {
	sorted := sortedByThreshold(tiers)
	count := 0
	for i := 1; i < len(sorted); i++ {
		if sorted[i].RequiredPoints <= points {
			count++
		}
	}
	return count
}

// sortedByThreshold copies tiers sorted ascending by threshold, then by order.
func sortedByThreshold(tiers []entities.Tier) []entities.Tier {
	sorted := make([]entities.Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].RequiredPoints != sorted[j].RequiredPoints {
			return sorted[i].RequiredPoints < sorted[j].RequiredPoints
		}
		return sorted[i].Order < sorted[j].Order
	})
	return sorted
}
