package calculator

import (
	"fmt"
	"math"
	"time"
)

// Point award rules.
const (
	PointsPerDollar          = 2.0
	SustainabilityMultiplier = 10.0
	SpeedBonusPoints         = 50.0
	SpeedBonusWindow         = 48 * time.Hour
)

// SwapSide is the minimal information about one party's offered item.
type SwapSide struct {
	EstimatedValue float64
	CarbonSaving   float64
}

// PointsAward is the points breakdown for a completed swap.
type PointsAward struct {
	RequesterBase       float64
	ProviderBase        float64
	SustainabilityBonus float64
	SpeedBonus          float64
	QualityBonus        float64
	RequesterTotal      float64
	ProviderTotal       float64
}

// CalculatePoints computes what each party earns for a completed swap.
//
// Algorithm:
//   - base[party] = floor(value of the item that party gives up × 2)
//   - sustainability = (requester carbon + provider carbon) × 10, for both parties
//   - speed = 50 when the swap completed in under 48 hours, for both parties
//   - total[party] = base[party] + sustainability + speed
func CalculatePoints(requester, provider SwapSide, completionTime time.Duration) (PointsAward, error) {
	for _, side := range []SwapSide{requester, provider} {
		if side.EstimatedValue < 0 {
			return PointsAward{}, fmt.Errorf("item value cannot be negative")
		}
		if side.CarbonSaving < 0 {
			return PointsAward{}, fmt.Errorf("carbon saving cannot be negative")
		}
	}
	if completionTime < 0 {
		return PointsAward{}, fmt.Errorf("completion time cannot be negative")
	}

	award := PointsAward{
		RequesterBase:       math.Floor(requester.EstimatedValue * PointsPerDollar),
		ProviderBase:        math.Floor(provider.EstimatedValue * PointsPerDollar),
		SustainabilityBonus: (requester.CarbonSaving + provider.CarbonSaving) * SustainabilityMultiplier,
	}
	if completionTime < SpeedBonusWindow {
		award.SpeedBonus = SpeedBonusPoints
	}

	bonus := award.SustainabilityBonus + award.SpeedBonus + award.QualityBonus
	award.RequesterTotal = award.RequesterBase + bonus
	award.ProviderTotal = award.ProviderBase + bonus

	return award, nil
}
