package collector

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-pulse/internal/ingestor/dto"
)

func TestTruncateToLimitsOversizedItemStaysValid(t *testing.T) {
	item := dto.IngestItem{
		Source:      dto.SourceGDELT,
		URL:         "https://example.com/a",
		PublishedAt: time.Now().UTC(),
		RetrievedAt: time.Now().UTC(),
		Title:       strings.Repeat("t", dto.MaxTitleLen+100),
		Text:        strings.Repeat("x", dto.MaxTextLen+100),
		Lang:        "en",
	}

	truncateToLimits(&item)

	assert.Len(t, item.Title, dto.MaxTitleLen)
	assert.Len(t, item.Text, dto.MaxTextLen)
	require.NoError(t, item.Validate())
}

func TestTruncateToLimitsLeavesShortItemUntouched(t *testing.T) {
	item := dto.IngestItem{Title: "Short title", Text: "Short text"}

	truncateToLimits(&item)

	assert.Equal(t, "Short title", item.Title)
	assert.Equal(t, "Short text", item.Text)
}
