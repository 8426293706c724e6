package dto

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItem() IngestItem {
	loc := time.FixedZone("CET", 3600)
	return IngestItem{
		Source:      SourceGDELT,
		URL:         "https://example.com/news/1",
		PublishedAt: time.Date(2025, 3, 1, 15, 0, 0, 0, loc),
		RetrievedAt: time.Date(2025, 3, 1, 15, 5, 0, 0, loc),
		Title:       "Apple beats estimates",
		Text:        "Apple reported quarterly revenue above expectations.",
		Lang:        "EN",
	}
}

func TestIngestItemValidate(t *testing.T) {
	t.Run("valid item normalized", func(t *testing.T) {
		item := validItem()
		require.NoError(t, item.Validate())
		assert.Equal(t, "en", item.Lang)
		assert.Equal(t, time.UTC, item.PublishedAt.Location())
		assert.Equal(t, time.UTC, item.RetrievedAt.Location())
	})

	t.Run("unknown source", func(t *testing.T) {
		item := validItem()
		item.Source = "rumormill"
		err := item.Validate()
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing url", func(t *testing.T) {
		item := validItem()
		item.URL = ""
		assert.ErrorIs(t, item.Validate(), ErrValidation)
	})

	t.Run("zero published_at rejected", func(t *testing.T) {
		item := validItem()
		item.PublishedAt = time.Time{}
		assert.ErrorIs(t, item.Validate(), ErrValidation)
	})

	t.Run("zero retrieved_at rejected", func(t *testing.T) {
		item := validItem()
		item.RetrievedAt = time.Time{}
		assert.ErrorIs(t, item.Validate(), ErrValidation)
	})

	t.Run("oversized title", func(t *testing.T) {
		item := validItem()
		item.Title = strings.Repeat("a", MaxTitleLen+1)
		assert.ErrorIs(t, item.Validate(), ErrValidation)
	})

	t.Run("oversized text", func(t *testing.T) {
		item := validItem()
		item.Text = strings.Repeat("a", MaxTextLen+1)
		assert.ErrorIs(t, item.Validate(), ErrValidation)
	})

	t.Run("bad lang code", func(t *testing.T) {
		item := validItem()
		item.Lang = "e"
		assert.ErrorIs(t, item.Validate(), ErrValidation)

		item.Lang = "english"
		assert.ErrorIs(t, item.Validate(), ErrValidation)
	})
}

func TestTickerLinkValidate(t *testing.T) {
	t.Run("valid link", func(t *testing.T) {
		link := TickerLink{Ticker: "AAPL", Confidence: 0.95, Method: "cashtag"}
		assert.NoError(t, link.Validate())
	})

	t.Run("symbol with dot and dash", func(t *testing.T) {
		link := TickerLink{Ticker: "BRK.B", Confidence: 0.7, Method: "dict"}
		assert.NoError(t, link.Validate())
	})

	t.Run("lowercase symbol rejected", func(t *testing.T) {
		link := TickerLink{Ticker: "aapl", Confidence: 0.95, Method: "cashtag"}
		assert.ErrorIs(t, link.Validate(), ErrValidation)
	})

	t.Run("confidence out of range", func(t *testing.T) {
		link := TickerLink{Ticker: "AAPL", Confidence: 1.5, Method: "cashtag"}
		assert.ErrorIs(t, link.Validate(), ErrValidation)
	})

	t.Run("unknown method", func(t *testing.T) {
		link := TickerLink{Ticker: "AAPL", Confidence: 0.5, Method: "guess"}
		assert.ErrorIs(t, link.Validate(), ErrValidation)
	})
}

func TestValidateTicker(t *testing.T) {
	assert.True(t, ValidateTicker("AAPL"))
	assert.True(t, ValidateTicker("BRK.B"))
	assert.False(t, ValidateTicker(""))
	assert.False(t, ValidateTicker("TOOLONGSYMBOL"))
	assert.False(t, ValidateTicker("aapl"))
}
