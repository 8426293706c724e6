package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market-pulse/internal/ingestor/config"
	"market-pulse/internal/ingestor/dto"
	"market-pulse/pkg/logger"
)

func newTestService() *ingestService {
	cfg := &config.Config{}
	cfg.Credibility.SourceBase = map[string]float64{
		dto.SourceGDELT: 70,
		dto.SourceSEC:   90,
	}
	cfg.Credibility.UnknownBase = 50
	cfg.Credibility.AuthorBonus = 5
	cfg.Credibility.LicenseBonus = 3
	cfg.Credibility.HTTPSBonus = 2

	log := &logger.Logger{Logger: zap.NewNop()}
	return NewIngestService(cfg, log, nil, nil, nil, nil).(*ingestService)
}

func TestMapItemToArticleNormalizes(t *testing.T) {
	svc := newTestService()

	item := dto.IngestItem{
		Source:      dto.SourceGDELT,
		URL:         "https://example.com/a?utm_source=x&id=5#frag",
		PublishedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		RetrievedAt: time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC),
		Title:       "<b>Hi</b>",
		Text:        "Body  text &amp; more",
		Lang:        "en",
	}
	require.NoError(t, item.Validate())

	article := svc.mapItemToArticle(item)

	assert.Equal(t, "https://example.com/a?id=5", article.URL)
	assert.Equal(t, "https://example.com/a?id=5", article.URLCanonical)
	assert.Equal(t, "Hi", article.Title)
	assert.Equal(t, "Body text & more", article.Text)
	assert.Len(t, article.Hash, 40)
	// gdelt base 70 plus the https bonus.
	assert.Equal(t, 72.0, article.Credibility)
}

func TestMapItemToArticleCredibilityAdjustments(t *testing.T) {
	svc := newTestService()

	item := dto.IngestItem{
		Source:      dto.SourceGDELT,
		URL:         "http://example.com/a",
		PublishedAt: time.Now().UTC(),
		RetrievedAt: time.Now().UTC(),
		Title:       "Hi",
		Lang:        "en",
		Author:      "jdoe",
		License:     "cc-by",
	}
	require.NoError(t, item.Validate())

	article := svc.mapItemToArticle(item)
	assert.Equal(t, 78.0, article.Credibility)
}

func TestMapItemToArticleEmptyHashOnMissingTitle(t *testing.T) {
	svc := newTestService()

	item := dto.IngestItem{
		Source:      dto.SourceGDELT,
		URL:         "https://example.com/a",
		PublishedAt: time.Now().UTC(),
		RetrievedAt: time.Now().UTC(),
		Lang:        "en",
	}
	require.NoError(t, item.Validate())

	article := svc.mapItemToArticle(item)
	assert.Empty(t, article.Hash)
}
