// Package models defines the core domain entities: price points, price
// series, and crossover events and state.
package models

import (
	"fmt"
	"math"
	"time"
)

// MinSeriesLength is the minimum number of price points a series must
// contain before SMA values computed from it are trusted.
const MinSeriesLength = 100

// PricePoint is a single observation of the instrument's closing price.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Close     float64   `json:"close"`
}

// Validate checks price point field constraints.
func (p PricePoint) Validate() error {
	if p.Timestamp.IsZero() {
		return &ValidationError{Reason: "price point has zero timestamp"}
	}
	if math.IsNaN(p.Close) {
		return &ValidationError{Reason: "close is NaN"}
	}
	if math.IsInf(p.Close, 0) {
		return &ValidationError{Reason: "close is infinite"}
	}
	if p.Close <= 0 {
		return &ValidationError{Reason: fmt.Sprintf("close %v is not positive", p.Close)}
	}
	return nil
}

// PriceSeries is an ordered sequence of price points, oldest first.
type PriceSeries []PricePoint

// Validate checks structural constraints on the series: non-empty, at least
// minLen points, strictly increasing timestamps, and every point valid.
func (s PriceSeries) Validate(minLen int) error {
	if len(s) == 0 {
		return &ValidationError{Reason: "series is empty"}
	}
	if len(s) < minLen {
		return &ValidationError{Reason: fmt.Sprintf("series has %d points, need at least %d", len(s), minLen)}
	}
	for i, p := range s {
		if err := p.Validate(); err != nil {
			return &ValidationError{Reason: fmt.Sprintf("point %d: %v", i, err)}
		}
		if i > 0 && !s[i-1].Timestamp.Before(p.Timestamp) {
			return &ValidationError{Reason: fmt.Sprintf("timestamps not strictly increasing at index %d", i)}
		}
	}
	return nil
}

// Closes returns the closing prices of the series, oldest first.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, p := range s {
		closes[i] = p.Close
	}
	return closes
}

// Last returns the most recent price point. The series must be non-empty.
func (s PriceSeries) Last() PricePoint {
	return s[len(s)-1]
}

// ValidationError reports price data that failed structural checks.
// The cycle that produced it is abandoned; invalid data is never partially used.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid price data: " + e.Reason
}
