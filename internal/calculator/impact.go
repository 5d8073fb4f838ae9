package calculator

import "fmt"

// Proxy coefficients for the environmental impact estimate.
// These are a fixed linear model, not a certified calculation.
const (
	WaterLitersPerKgCarbon = 3.67
	WasteKgPerKgCarbon     = 0.5
)

// Impact is the environmental impact of one swap.
type Impact struct {
	TotalCarbonSaved float64
	WaterSaved       float64
	WasteReduced     float64
}

// CalculateImpact derives impact totals from the carbon saving of both items.
// water = total × 3.67, waste = total × 0.5
func CalculateImpact(requesterCarbon, providerCarbon float64) (Impact, error) {
	if requesterCarbon < 0 || providerCarbon < 0 {
		return Impact{}, fmt.Errorf("carbon saving cannot be negative")
	}

	total := requesterCarbon + providerCarbon
	return Impact{
		TotalCarbonSaved: total,
		WaterSaved:       total * WaterLitersPerKgCarbon,
		WasteReduced:     total * WasteKgPerKgCarbon,
	}, nil
}
