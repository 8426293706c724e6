package service

import (
	"context"
	"encoding/json"
	"time"

	"market-pulse/internal/entity"
	"market-pulse/internal/ingestor/config"
	"market-pulse/internal/ingestor/credibility"
	"market-pulse/internal/ingestor/dto"
	"market-pulse/internal/ingestor/linker"
	"market-pulse/internal/ingestor/normalizer"
	"market-pulse/internal/ingestor/repository"
	"market-pulse/pkg/logger"
	"market-pulse/pkg/retry"
	"market-pulse/pkg/utils"

	"github.com/patrickmn/go-cache"
	"gorm.io/datatypes"
)

const aliasMapCacheKey = "alias_map"

// IngestService runs one raw item through the full normalization pipeline:
// canonicalize, dedupe/hash, credibility, upsert, ticker linking, sentiment
// and embedding.
type IngestService interface {
	Ingest(ctx context.Context, item dto.IngestItem) (*entity.Article, error)
	// DeleteOldArticles removes articles past the retention window. Cascade
	// removes their embeddings and ticker links.
	DeleteOldArticles(ctx context.Context) (int64, error)
}

// NewIngestService creates a new IngestService.
func NewIngestService(
	cfg *config.Config,
	log *logger.Logger,
	articleRepo repository.ArticleRepository,
	embedRepo repository.EmbeddingRepository,
	tickerRepo repository.TickerRepository,
	modelRepo repository.ModelRepository,
) IngestService {
	scorer := credibility.NewScorer(credibility.Weights{
		SourceBase:   cfg.Credibility.SourceBase,
		UnknownBase:  cfg.Credibility.UnknownBase,
		AuthorBonus:  cfg.Credibility.AuthorBonus,
		LicenseBonus: cfg.Credibility.LicenseBonus,
		HTTPSBonus:   cfg.Credibility.HTTPSBonus,
	})

	cacheTTL := cfg.Ingestor.AliasMapCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	return &ingestService{
		cfg:         cfg,
		logger:      log,
		articleRepo: articleRepo,
		embedRepo:   embedRepo,
		tickerRepo:  tickerRepo,
		modelRepo:   modelRepo,
		scorer:      scorer,
		linker:      linker.New(cfg.Linker),
		aliasCache:  cache.New(cacheTTL, 2*cacheTTL),
	}
}

type ingestService struct {
	cfg         *config.Config
	logger      *logger.Logger
	articleRepo repository.ArticleRepository
	embedRepo   repository.EmbeddingRepository
	tickerRepo  repository.TickerRepository
	modelRepo   repository.ModelRepository
	scorer      *credibility.Scorer
	linker      *linker.Linker
	aliasCache  *cache.Cache
}

func (s *ingestService) Ingest(ctx context.Context, item dto.IngestItem) (*entity.Article, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	article := s.mapItemToArticle(item)

	maxRetries := s.cfg.Ingestor.PersistMaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	err := retry.Do(ctx, maxRetries, retry.IsTransientPG, func(ctx context.Context) error {
		_, err := s.articleRepo.UpsertByURL(ctx, &article)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to upsert article", logger.ErrorField(err), logger.StringField("url", article.URL))
		return nil, err
	}

	if err := s.linkTickers(ctx, &article); err != nil {
		// Linking failures leave a valid article behind; they are logged and
		// surfaced but do not undo the upsert.
		return &article, err
	}

	s.enrich(ctx, &article)

	return &article, nil
}

// mapItemToArticle normalizes a validated ingest item into its persisted form.
func (s *ingestService) mapItemToArticle(item dto.IngestItem) entity.Article {
	canonical := normalizer.CanonicalizeURL(item.URL)

	var meta datatypes.JSON
	if len(item.Meta) > 0 {
		if raw, err := json.Marshal(item.Meta); err == nil {
			meta = raw
		}
	}

	return entity.Article{
		Source:       item.Source,
		URL:          canonical,
		URLCanonical: canonical,
		PublishedAt:  item.PublishedAt,
		RetrievedAt:  time.Now().UTC(),
		Title:        normalizer.CleanText(utils.CleanToValidUTF8(item.Title)),
		Text:         normalizer.CleanText(utils.CleanToValidUTF8(item.Text)),
		Lang:         item.Lang,
		Hash:         normalizer.GenerateHash(item.Title, item.URL),
		Credibility:  s.scorer.Score(item),
		Meta:         meta,
	}
}

// linkTickers runs the linker over the article text and replaces the stored
// link set. Re-running is idempotent: the final link set only depends on the
// current text and alias map.
func (s *ingestService) linkTickers(ctx context.Context, article *entity.Article) error {
	aliasMap, err := s.getAliasMap(ctx)
	if err != nil {
		s.logger.Error("Failed to load alias map", logger.ErrorField(err))
		return err
	}

	text := article.Title
	if article.Text != "" {
		text = text + " " + article.Text
	}

	links := s.linker.Link(text, aliasMap, nil)

	entityLinks := make([]entity.ArticleTicker, 0, len(links))
	for _, link := range links {
		if err := link.Validate(); err != nil {
			s.logger.Warn("Dropping invalid ticker link", logger.ErrorField(err), logger.StringField("ticker", link.Ticker))
			continue
		}
		var spans datatypes.JSON
		if len(link.CharSpans) > 0 {
			if raw, err := json.Marshal(link.CharSpans); err == nil {
				spans = raw
			}
		}
		entityLinks = append(entityLinks, entity.ArticleTicker{
			ArticleID:    article.ID,
			Ticker:       link.Ticker,
			Confidence:   link.Confidence,
			Method:       link.Method,
			MatchedTerms: link.MatchedTerms,
			CharSpans:    spans,
		})
	}

	maxRetries := s.cfg.Ingestor.PersistMaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	err = retry.Do(ctx, maxRetries, retry.IsTransientPG, func(ctx context.Context) error {
		return s.articleRepo.ReplaceTickerLinks(ctx, article.ID, entityLinks)
	})
	if err != nil {
		s.logger.Error("Failed to replace ticker links", logger.ErrorField(err), logger.Field("article_id", article.ID))
		return err
	}

	article.Tickers = entityLinks
	return nil
}

// enrich scores sentiment and computes the embedding. Both are best-effort:
// a model failure degrades the article to "no sentiment available" rather
// than failing ingestion.
func (s *ingestService) enrich(ctx context.Context, article *entity.Article) {
	if s.modelRepo == nil || article.Text == "" {
		return
	}
	if utils.ContainsString(s.cfg.Ingestor.SkipSentimentForSources, article.Source) {
		return
	}

	if sentiment, err := s.modelRepo.ScoreSentiment(ctx, article.Text); err != nil {
		s.logger.Warn("Failed to score sentiment", logger.ErrorField(err), logger.Field("article_id", article.ID))
	} else {
		s.storeSentimentMeta(ctx, article, sentiment)
	}

	embed, err := s.modelRepo.Embed(ctx, article.Text)
	if err != nil {
		s.logger.Warn("Failed to embed article", logger.ErrorField(err), logger.Field("article_id", article.ID))
		return
	}

	embedding := entity.ArticleEmbedding{
		ArticleID: article.ID,
		Embedding: embed.Vector,
		Model:     embed.Model,
		Dims:      embed.Dims,
	}
	err = retry.Do(ctx, 3, retry.IsTransientPG, func(ctx context.Context) error {
		return s.embedRepo.Upsert(ctx, &embedding)
	})
	if err != nil {
		s.logger.Error("Failed to upsert embedding", logger.ErrorField(err), logger.Field("article_id", article.ID))
	}
}

// storeSentimentMeta folds the sentiment score into the article meta so the
// aggregator can read it without re-calling the model.
func (s *ingestService) storeSentimentMeta(ctx context.Context, article *entity.Article, sentiment *dto.Sentiment) {
	meta := map[string]interface{}{}
	if len(article.Meta) > 0 {
		_ = json.Unmarshal(article.Meta, &meta)
	}
	meta["sentiment_score"] = sentiment.Score
	meta["sentiment_model"] = sentiment.Model

	raw, err := json.Marshal(meta)
	if err != nil {
		return
	}
	article.Meta = raw

	err = retry.Do(ctx, 3, retry.IsTransientPG, func(ctx context.Context) error {
		_, err := s.articleRepo.UpsertByURL(ctx, article)
		return err
	})
	if err != nil {
		s.logger.Warn("Failed to persist sentiment meta", logger.ErrorField(err), logger.Field("article_id", article.ID))
	}
}

func (s *ingestService) getAliasMap(ctx context.Context) (map[string][]string, error) {
	if cached, ok := s.aliasCache.Get(aliasMapCacheKey); ok {
		return cached.(map[string][]string), nil
	}

	aliasMap, err := s.tickerRepo.GetAliasMap(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.aliasCache.Set(aliasMapCacheKey, aliasMap, cache.DefaultExpiration)
	return aliasMap, nil
}

func (s *ingestService) DeleteOldArticles(ctx context.Context) (int64, error) {
	if s.cfg.Ingestor.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.Ingestor.RetentionDays)
	return s.articleRepo.DeleteBefore(ctx, cutoff)
}
