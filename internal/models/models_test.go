package models

import (
	"math"
	"testing"
	"time"
)

func validSeries(n int) PriceSeries {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(PriceSeries, n)
	for i := range series {
		series[i] = PricePoint{
			Timestamp: base.AddDate(0, 0, i),
			Close:     100 + float64(i),
		}
	}
	return series
}

func TestPricePointValidate(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		point   PricePoint
		wantErr bool
	}{
		{
			name:    "valid",
			point:   PricePoint{Timestamp: now, Close: 512.34},
			wantErr: false,
		},
		{
			name:    "zero timestamp",
			point:   PricePoint{Close: 512.34},
			wantErr: true,
		},
		{
			name:    "NaN close",
			point:   PricePoint{Timestamp: now, Close: math.NaN()},
			wantErr: true,
		},
		{
			name:    "infinite close",
			point:   PricePoint{Timestamp: now, Close: math.Inf(1)},
			wantErr: true,
		},
		{
			name:    "negative close",
			point:   PricePoint{Timestamp: now, Close: -1},
			wantErr: true,
		},
		{
			name:    "zero close",
			point:   PricePoint{Timestamp: now, Close: 0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.point.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPriceSeriesValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		if err := validSeries(100).Validate(100); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if err := (PriceSeries{}).Validate(100); err == nil {
			t.Error("Expected error for empty series")
		}
	})

	t.Run("too short", func(t *testing.T) {
		if err := validSeries(99).Validate(100); err == nil {
			t.Error("Expected error for series below minimum length")
		}
	})

	t.Run("non-monotonic timestamps", func(t *testing.T) {
		series := validSeries(100)
		series[50].Timestamp = series[49].Timestamp
		if err := series.Validate(100); err == nil {
			t.Error("Expected error for duplicate timestamp")
		}
	})

	t.Run("NaN close mid-series", func(t *testing.T) {
		series := validSeries(100)
		series[10].Close = math.NaN()
		if err := series.Validate(100); err == nil {
			t.Error("Expected error for NaN close")
		}
	})

	t.Run("validation error type", func(t *testing.T) {
		err := validSeries(5).Validate(100)
		if _, ok := err.(*ValidationError); !ok {
			t.Errorf("Expected *ValidationError, got %T", err)
		}
	})
}

func TestSideRoundTrip(t *testing.T) {
	for _, side := range []Side{SideUnknown, SideAbove, SideBelow} {
		parsed, err := ParseSide(side.String())
		if err != nil {
			t.Fatalf("ParseSide(%q) failed: %v", side.String(), err)
		}
		if parsed != side {
			t.Errorf("ParseSide(%q) = %v, want %v", side.String(), parsed, side)
		}
	}
	if _, err := ParseSide("sideways"); err == nil {
		t.Error("Expected error for unrecognized side")
	}
}

func TestDirectionRoundTrip(t *testing.T) {
	for _, dir := range []Direction{DirectionUp, DirectionDown} {
		parsed, err := ParseDirection(dir.String())
		if err != nil {
			t.Fatalf("ParseDirection(%q) failed: %v", dir.String(), err)
		}
		if parsed != dir {
			t.Errorf("ParseDirection(%q) = %v, want %v", dir.String(), parsed, dir)
		}
	}
	if _, err := ParseDirection("lateral"); err == nil {
		t.Error("Expected error for unrecognized direction")
	}
}

func TestCrossoverState(t *testing.T) {
	periods := []int{25, 50, 75, 100}
	state := NewCrossoverState(periods)

	if !state.Complete(periods) {
		t.Fatal("New state must contain every period")
	}
	for _, p := range periods {
		if state[p] != SideUnknown {
			t.Errorf("state[%d] = %v, want unknown", p, state[p])
		}
	}

	clone := state.Clone()
	clone[25] = SideAbove
	if state[25] != SideUnknown {
		t.Error("Mutating a clone must not affect the original")
	}

	if state.Complete([]int{25, 50}) {
		t.Error("Complete must reject a period set of different size")
	}
	delete(clone, 50)
	if clone.Complete(periods) {
		t.Error("Complete must detect a missing period")
	}
}

func TestSeriesClosesAndLast(t *testing.T) {
	series := validSeries(3)
	closes := series.Closes()
	if len(closes) != 3 || closes[0] != 100 || closes[2] != 102 {
		t.Errorf("Closes() = %v", closes)
	}
	if series.Last().Close != 102 {
		t.Errorf("Last().Close = %v, want 102", series.Last().Close)
	}
}
