// Package sma computes simple moving averages over a price series.
package sma

import (
	"math"

	"github.com/quantfold/smasentinel/internal/models"
)

// DefaultPeriods are the SMA windows tracked by the monitor.
var DefaultPeriods = []int{25, 50, 75, 100}

// Value is a computed SMA for one period.
type Value struct {
	Period int
	Value  float64
}

// Calculate returns the arithmetic mean of the period most recent closes.
// ok is false when the series is shorter than the period; a partial-window
// average is not a valid SMA and is never returned.
func Calculate(series models.PriceSeries, period int) (Value, bool) {
	if period < 1 || len(series) < period {
		return Value{}, false
	}
	var sum float64
	for _, p := range series[len(series)-period:] {
		sum += p.Close
	}
	return Value{Period: period, Value: sum / float64(period)}, true
}

// CalculateAll computes each period independently; periods with insufficient
// data are absent from the result rather than blocking the others.
func CalculateAll(series models.PriceSeries, periods []int) map[int]Value {
	values := make(map[int]Value, len(periods))
	for _, period := range periods {
		if v, ok := Calculate(series, period); ok {
			values[period] = v
		}
	}
	return values
}

// Round2 rounds to 2 decimal places. Side classification compares prices and
// SMA values through Round2 so repeated computation over the same window is
// stable; stored values keep full precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
