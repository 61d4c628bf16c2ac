package pipeline

import (
	"math"

	"github.com/printforge/printforge-go-components/internal/slicingservice/config"
)

// billableHours applies the minimum billable time floor to a print time.
func billableHours(printTimeSeconds int) float64 {
	hours := float64(printTimeSeconds) / 3600.0
	return math.Max(hours, config.MinimumBillableHours)
}

// estimatePriceHUF prices a print: billable hours times the hourly rate,
// snapped up to the next price granularity step.
func estimatePriceHUF(printTimeSeconds, hourlyRate int) int {
	raw := billableHours(printTimeSeconds) * float64(hourlyRate)
	step := float64(config.PriceGranularityHUF)
	return int(math.Ceil(raw/step) * step)
}
