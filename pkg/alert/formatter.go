package alert

import (
	"fmt"
	"strings"
	"time"
)

// SignalAlert holds the fields rendered into a signal notification.
type SignalAlert struct {
	Ticker    string
	Timestamp time.Time
	Score     float64
	Sentiment *float64
	Novelty   *float64
	Velocity  *float64
	EventTags []string
}

// FormatSignalAlert renders a Markdown message for a high-score signal.
func FormatSignalAlert(a SignalAlert) string {
	var b strings.Builder

	direction := "📈"
	if a.Score < 0 {
		direction = "📉"
	}

	b.WriteString(fmt.Sprintf("%s *Signal Alert: %s*\n", direction, a.Ticker))
	b.WriteString(fmt.Sprintf("Time: `%s`\n", a.Timestamp.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("Composite Score: `%.3f`\n", a.Score))

	if a.Sentiment != nil {
		b.WriteString(fmt.Sprintf("Sentiment: `%.3f`\n", *a.Sentiment))
	}
	if a.Novelty != nil {
		b.WriteString(fmt.Sprintf("Novelty: `%.3f`\n", *a.Novelty))
	}
	if a.Velocity != nil {
		b.WriteString(fmt.Sprintf("Velocity: `%.3f`\n", *a.Velocity))
	}
	if len(a.EventTags) > 0 {
		b.WriteString(fmt.Sprintf("Events: _%s_\n", strings.Join(a.EventTags, ", ")))
	}

	return b.String()
}
