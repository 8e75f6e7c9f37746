package telegram

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quantfold/smasentinel/internal/models"
)

// FormatCrossoverMessage formats an alert caption. All fields are mandatory:
// direction, period, price, SMA value, and an ISO-8601 UTC timestamp.
func FormatCrossoverMessage(symbol string, event models.CrossoverEvent) string {
	dirText := "below"
	if event.Direction == models.DirectionUp {
		dirText = "above"
	}
	ts := event.Timestamp.UTC().Format(time.RFC3339)
	return fmt.Sprintf("%s crossed %s the %d-day SMA at %s. Price: $%.2f, SMA %d: $%.2f",
		symbol, dirText, event.Period, ts, event.Price, event.Period, event.SMAValue)
}

// FormatStatusMessage formats the /status reply: subscription state, current
// price, and every configured SMA value (N/A when insufficient data).
func FormatStatusMessage(symbol string, report StatusReport) string {
	status := "Unsubscribed"
	if report.Subscribed {
		status = "Subscribed"
	}

	parts := []string{fmt.Sprintf("Status: %s", status)}
	if !report.HasData {
		parts = append(parts, fmt.Sprintf("Current %s Price: N/A (no completed check yet)", symbol))
		return strings.Join(parts, "; ")
	}

	parts = append(parts, fmt.Sprintf("Current %s Price: $%.2f", symbol, report.Price))

	periods := make([]int, 0, len(report.Periods))
	periods = append(periods, report.Periods...)
	sort.Ints(periods)
	for _, period := range periods {
		if value, ok := report.SMAs[period]; ok {
			parts = append(parts, fmt.Sprintf("SMA %d: $%.2f", period, value))
		} else {
			parts = append(parts, fmt.Sprintf("SMA %d: N/A", period))
		}
	}
	return strings.Join(parts, "; ")
}

// FormatSubscribeConfirmation is the /start reply.
func FormatSubscribeConfirmation(symbol string) string {
	return fmt.Sprintf("You are now subscribed to %s SMA alerts.", symbol)
}

// FormatUnsubscribeConfirmation is the /stop reply.
func FormatUnsubscribeConfirmation(symbol string) string {
	return fmt.Sprintf("You have unsubscribed from %s SMA alerts.", symbol)
}
