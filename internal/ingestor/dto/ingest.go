package dto

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrValidation marks data-validity failures. These are never retried and
// are surfaced to the caller before anything is persisted.
var ErrValidation = errors.New("validation failed")

// Sources accepted from collectors.
const (
	SourceGDELT      = "gdelt"
	SourceSEC        = "sec"
	SourceStocktwits = "stocktwits"
	SourceTwitter    = "twitter"
	SourceReddit     = "reddit"
)

// Field length limits enforced by Validate. Collectors truncate to these
// before publishing so oversized feed items degrade instead of dropping.
const (
	MaxTitleLen = 512
	MaxTextLen  = 20000
)

var knownSources = map[string]bool{
	SourceGDELT:      true,
	SourceSEC:        true,
	SourceStocktwits: true,
	SourceTwitter:    true,
	SourceReddit:     true,
}

var tickerPattern = regexp.MustCompile(`^[A-Z.\-]{1,10}$`)

// IngestItem is the raw, source-agnostic output of a collector. It is
// immutable once validated; its lifecycle ends when mapped to an Article.
type IngestItem struct {
	Source      string            `json:"source"`
	SourceID    string            `json:"source_id,omitempty"`
	URL         string            `json:"url"`
	PublishedAt time.Time         `json:"published_at"`
	RetrievedAt time.Time         `json:"retrieved_at"`
	Title       string            `json:"title"`
	Text        string            `json:"text"`
	Lang        string            `json:"lang"`
	License     string            `json:"license,omitempty"`
	Author      string            `json:"author,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// Validate checks the item against ingestion constraints and normalizes
// timestamps to UTC. Zero timestamps are rejected rather than defaulted,
// matching the no-guessing rule for timezone-less input.
func (i *IngestItem) Validate() error {
	if !knownSources[i.Source] {
		return fmt.Errorf("%w: unknown source %q", ErrValidation, i.Source)
	}
	if i.URL == "" {
		return fmt.Errorf("%w: url is required", ErrValidation)
	}
	if i.PublishedAt.IsZero() {
		return fmt.Errorf("%w: published_at is required", ErrValidation)
	}
	if i.RetrievedAt.IsZero() {
		return fmt.Errorf("%w: retrieved_at is required", ErrValidation)
	}
	if len(i.Title) > MaxTitleLen {
		return fmt.Errorf("%w: title exceeds %d chars", ErrValidation, MaxTitleLen)
	}
	if len(i.Text) > MaxTextLen {
		return fmt.Errorf("%w: text exceeds %d chars", ErrValidation, MaxTextLen)
	}
	if l := len(i.Lang); l < 2 || l > 5 {
		return fmt.Errorf("%w: lang %q is not a valid ISO-639-1/BCP-47 code", ErrValidation, i.Lang)
	}

	i.Lang = strings.ToLower(i.Lang)
	i.PublishedAt = i.PublishedAt.UTC()
	i.RetrievedAt = i.RetrievedAt.UTC()
	return nil
}

// TickerLink is the output of the ticker linker for one (article, ticker)
// pair.
type TickerLink struct {
	Ticker       string   `json:"ticker"`
	Confidence   float64  `json:"confidence"`
	Method       string   `json:"method"`
	MatchedTerms []string `json:"matched_terms"`
	CharSpans    [][2]int `json:"char_spans,omitempty"`
}

// Validate checks the link invariants.
func (l *TickerLink) Validate() error {
	if !tickerPattern.MatchString(l.Ticker) {
		return fmt.Errorf("%w: invalid ticker symbol %q", ErrValidation, l.Ticker)
	}
	if l.Confidence < 0 || l.Confidence > 1 {
		return fmt.Errorf("%w: confidence %f out of [0,1]", ErrValidation, l.Confidence)
	}
	switch l.Method {
	case "cashtag", "dict", "synonym", "ner":
	default:
		return fmt.Errorf("%w: unknown match method %q", ErrValidation, l.Method)
	}
	return nil
}

// ValidateTicker reports whether symbol matches the ticker pattern.
func ValidateTicker(symbol string) bool {
	return tickerPattern.MatchString(symbol)
}
