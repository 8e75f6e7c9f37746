// Package dispatch fans crossover events out to the current subscribers.
package dispatch

import (
	"github.com/quantfold/smasentinel/internal/logger"
	"github.com/quantfold/smasentinel/internal/models"
	"github.com/quantfold/smasentinel/internal/telegram"
)

// Transport delivers one message, optionally with an image attached.
type Transport interface {
	Send(chatID int64, text string, image []byte) error
}

// Renderer produces the chart attached to alerts.
type Renderer interface {
	Render(series models.PriceSeries) ([]byte, error)
}

// Report summarizes a dispatch batch.
type Report struct {
	Sent   int
	Failed int
}

// Dispatcher sends formatted alerts with the rendered chart attached. Each
// event x recipient pair is attempted exactly once here; send failures are
// isolated and counted, never escalated.
type Dispatcher struct {
	transport Transport
	renderer  Renderer
	symbol    string
}

// New creates a dispatcher. A nil renderer means alerts go out text-only.
func New(transport Transport, renderer Renderer, symbol string) *Dispatcher {
	return &Dispatcher{transport: transport, renderer: renderer, symbol: symbol}
}

// Dispatch sends every event to every recipient. The chart is rendered once
// per batch from the series the events were detected against; a renderer
// failure downgrades the batch to text-only rather than aborting it.
func (d *Dispatcher) Dispatch(events []models.CrossoverEvent, recipients []int64, series models.PriceSeries) Report {
	var report Report
	if len(events) == 0 || len(recipients) == 0 {
		return report
	}

	var image []byte
	if d.renderer != nil {
		rendered, err := d.renderer.Render(series)
		if err != nil {
			logger.Warn("Chart rendering failed, sending text-only alerts: %v", err)
		} else {
			image = rendered
		}
	}

	for _, event := range events {
		caption := telegram.FormatCrossoverMessage(d.symbol, event)
		for _, chatID := range recipients {
			if err := d.transport.Send(chatID, caption, image); err != nil {
				logger.Warn("Failed to send alert to chat %d: %v", chatID, err)
				report.Failed++
				continue
			}
			report.Sent++
		}
	}

	return report
}
