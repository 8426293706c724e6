package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSignalAlert(t *testing.T) {
	sentiment := 0.42
	velocity := 2.3

	msg := FormatSignalAlert(SignalAlert{
		Ticker:    "AAPL",
		Timestamp: time.Date(2025, 3, 1, 16, 0, 0, 0, time.UTC),
		Score:     0.71,
		Sentiment: &sentiment,
		Velocity:  &velocity,
		EventTags: []string{"rising_velocity"},
	})

	assert.Contains(t, msg, "AAPL")
	assert.Contains(t, msg, "2025-03-01T16:00:00Z")
	assert.Contains(t, msg, "0.710")
	assert.Contains(t, msg, "Sentiment: `0.420`")
	assert.Contains(t, msg, "Velocity: `2.300`")
	assert.Contains(t, msg, "rising_velocity")
	assert.NotContains(t, msg, "Novelty")
}

func TestFormatSignalAlertDirection(t *testing.T) {
	up := FormatSignalAlert(SignalAlert{Ticker: "AAPL", Score: 0.8})
	down := FormatSignalAlert(SignalAlert{Ticker: "AAPL", Score: -0.8})
	assert.NotEqual(t, up[:4], down[:4])
}
