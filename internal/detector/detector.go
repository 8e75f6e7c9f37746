// Package detector turns per-cycle price/SMA observations into deduplicated
// crossover events.
package detector

import (
	"time"

	"github.com/quantfold/smasentinel/internal/models"
	"github.com/quantfold/smasentinel/internal/sma"
)

// Detect compares the current price against each SMA and the previous state,
// emitting one event per period whose side strictly flipped between known
// sides. It is a pure function: prev is never mutated, and the returned state
// is a complete snapshot covering every period present in prev.
//
// Periods missing from smas (insufficient data this cycle) keep their
// previous entry untouched. An Unknown previous side records the new side as
// a baseline without emitting, so the first observation after startup never
// fires a false crossover. Rerunning Detect with the state it returned and
// the same inputs yields zero events.
func Detect(price float64, smas map[int]sma.Value, prev models.CrossoverState, now time.Time) ([]models.CrossoverEvent, models.CrossoverState) {
	next := prev.Clone()
	var events []models.CrossoverEvent

	for period, prevSide := range prev {
		value, ok := smas[period]
		if !ok {
			continue
		}

		side := classify(price, value.Value)
		next[period] = side

		if prevSide == models.SideUnknown || side == prevSide {
			continue
		}

		direction := models.DirectionDown
		if side == models.SideAbove {
			direction = models.DirectionUp
		}
		events = append(events, models.CrossoverEvent{
			Period:    period,
			Direction: direction,
			Price:     price,
			SMAValue:  value.Value,
			Timestamp: now,
		})
	}

	return events, next
}

// classify rounds both operands to comparison precision first. Exact equality
// counts as Below: a tie is not an upward cross.
func classify(price, smaValue float64) models.Side {
	if sma.Round2(price) > sma.Round2(smaValue) {
		return models.SideAbove
	}
	return models.SideBelow
}
