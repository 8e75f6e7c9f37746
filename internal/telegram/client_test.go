package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/quantfold/smasentinel/internal/models"
)

func TestFormatCrossoverMessage(t *testing.T) {
	event := models.CrossoverEvent{
		Period:    25,
		Direction: models.DirectionUp,
		Price:     512.345,
		SMAValue:  508.771,
		Timestamp: time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC),
	}

	got := FormatCrossoverMessage("SPY", event)
	want := "SPY crossed above the 25-day SMA at 2025-06-01T14:30:00Z. Price: $512.35, SMA 25: $508.77"
	if got != want {
		t.Errorf("FormatCrossoverMessage() = %q, want %q", got, want)
	}

	event.Direction = models.DirectionDown
	got = FormatCrossoverMessage("SPY", event)
	if !strings.Contains(got, "crossed below") {
		t.Errorf("Down event should say 'crossed below', got %q", got)
	}
}

func TestFormatCrossoverMessage_UTCConversion(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	event := models.CrossoverEvent{
		Period:    50,
		Direction: models.DirectionUp,
		Price:     100,
		SMAValue:  99,
		Timestamp: time.Date(2025, 6, 1, 16, 30, 0, 0, loc),
	}

	got := FormatCrossoverMessage("SPY", event)
	if !strings.Contains(got, "2025-06-01T14:30:00Z") {
		t.Errorf("Timestamp not rendered in UTC: %q", got)
	}
}

func TestFormatStatusMessage(t *testing.T) {
	report := StatusReport{
		Subscribed: true,
		HasData:    true,
		Price:      512.34,
		SMAs:       map[int]float64{25: 508.77, 50: 505.1},
		Periods:    []int{25, 50, 75, 100},
	}

	got := FormatStatusMessage("SPY", report)
	for _, want := range []string{
		"Status: Subscribed",
		"Current SPY Price: $512.34",
		"SMA 25: $508.77",
		"SMA 50: $505.10",
		"SMA 75: N/A",
		"SMA 100: N/A",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Status message %q missing %q", got, want)
		}
	}
}

func TestFormatStatusMessage_NoData(t *testing.T) {
	report := StatusReport{
		Subscribed: false,
		Periods:    []int{25, 50, 75, 100},
	}

	got := FormatStatusMessage("SPY", report)
	if !strings.Contains(got, "Status: Unsubscribed") {
		t.Errorf("Status message %q missing unsubscribed state", got)
	}
	if !strings.Contains(got, "N/A (no completed check yet)") {
		t.Errorf("Status message %q should flag missing data", got)
	}
	if strings.Contains(got, "SMA 25") {
		t.Errorf("Status without data should not list SMA values: %q", got)
	}
}

func TestFormatConfirmations(t *testing.T) {
	if got := FormatSubscribeConfirmation("SPY"); got != "You are now subscribed to SPY SMA alerts." {
		t.Errorf("Unexpected subscribe confirmation: %q", got)
	}
	if got := FormatUnsubscribeConfirmation("SPY"); got != "You have unsubscribed from SPY SMA alerts." {
		t.Errorf("Unexpected unsubscribe confirmation: %q", got)
	}
}

func TestNewClient_InvalidToken(t *testing.T) {
	// An empty token fails the Bot API handshake before any network retry
	// logic matters.
	if _, err := NewClient("", "SPY", 3, time.Second); err == nil {
		t.Error("Expected error for empty bot token, got nil")
	}
}
