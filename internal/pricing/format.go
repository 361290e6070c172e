package pricing

import (
	"fmt"
	"math"
)

// FormatCost renders a cost estimate for display. Values under one cent show
// all four decimal places so small per-step estimates stay visible.
func FormatCost(cost float64) string {
	if cost == 0 {
		return "$0.00"
	}
	if math.Abs(cost) < 0.01 {
		return fmt.Sprintf("$%.4f", cost)
	}
	return fmt.Sprintf("$%.2f", cost)
}

// FormatMinutes renders an estimated duration for display.
func FormatMinutes(minutes float64) string {
	if minutes <= 0 {
		return "0.00 min"
	}
	if minutes >= 60 {
		hours := int(minutes) / 60
		rest := minutes - float64(hours*60)
		return fmt.Sprintf("%dh %.0fm", hours, rest)
	}
	return fmt.Sprintf("%.2f min", minutes)
}

// FormatTokens renders a token pair for display.
func FormatTokens(input, output int64) string {
	return fmt.Sprintf("%d in / %d out", input, output)
}
