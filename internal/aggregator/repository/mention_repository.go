package repository

import (
	"context"
	"time"

	"market-pulse/internal/aggregator/dto"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// MentionRepository reads the per-ticker article activity feeding an
// aggregation run.
type MentionRepository interface {
	// GetQualifyingArticles returns articles linked to the ticker and
	// published inside [from, to), with their sentiment (when scored),
	// link confidence and embedding.
	GetQualifyingArticles(ctx context.Context, ticker string, from, to time.Time) ([]dto.ArticleInput, error)
	// CountMentionsPerBucket returns one mention count per bucket covering
	// [from, to), oldest first. Buckets without mentions count zero.
	CountMentionsPerBucket(ctx context.Context, ticker string, from, to time.Time, bucket time.Duration) ([]int, error)
	// GetRecentEmbeddings returns embeddings of the ticker's articles
	// published since the given instant, newest first.
	GetRecentEmbeddings(ctx context.Context, ticker string, since time.Time, limit int) ([][]float64, error)
}

// NewMentionRepository creates a new instance of MentionRepository.
func NewMentionRepository(db *gorm.DB) MentionRepository {
	return &mentionRepository{db: db}
}

type mentionRepository struct {
	db *gorm.DB
}

type qualifyingRow struct {
	ArticleID   int64
	PublishedAt time.Time
	Sentiment   *float64
	Confidence  float64
	Embedding   pq.Float64Array `gorm:"type:float8[]"`
}

func (r *mentionRepository) GetQualifyingArticles(ctx context.Context, ticker string, from, to time.Time) ([]dto.ArticleInput, error) {
	var rows []qualifyingRow
	err := r.db.WithContext(ctx).Raw(`
	SELECT
		a.id AS article_id,
		a.published_at,
		(a.meta->>'sentiment_score')::float AS sentiment,
		at.confidence,
		ae.embedding
	FROM article AS a
	JOIN article_ticker AS at ON at.article_id = a.id
	LEFT JOIN article_embed AS ae ON ae.article_id = a.id
	WHERE at.ticker = ?
	AND a.published_at >= ?
	AND a.published_at < ?
	ORDER BY a.published_at DESC
`, ticker, from, to).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	inputs := make([]dto.ArticleInput, len(rows))
	for i, row := range rows {
		inputs[i] = dto.ArticleInput{
			ArticleID:   row.ArticleID,
			PublishedAt: row.PublishedAt,
			Sentiment:   row.Sentiment,
			Confidence:  row.Confidence,
			Embedding:   row.Embedding,
		}
	}
	return inputs, nil
}

func (r *mentionRepository) CountMentionsPerBucket(ctx context.Context, ticker string, from, to time.Time, bucket time.Duration) ([]int, error) {
	type bucketRow struct {
		BucketStart time.Time
		Mentions    int
	}

	var rows []bucketRow
	err := r.db.WithContext(ctx).Raw(`
	SELECT
		to_timestamp(floor(extract(epoch FROM a.published_at) / ?) * ?) AS bucket_start,
		COUNT(*) AS mentions
	FROM article AS a
	JOIN article_ticker AS at ON at.article_id = a.id
	WHERE at.ticker = ?
	AND a.published_at >= ?
	AND a.published_at < ?
	GROUP BY bucket_start
`, bucket.Seconds(), bucket.Seconds(), ticker, from, to).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byStart := make(map[int64]int, len(rows))
	for _, row := range rows {
		byStart[row.BucketStart.Unix()] = row.Mentions
	}

	// Materialize zero-count buckets so the baseline reflects quiet periods.
	var counts []int
	for t := from.Truncate(bucket); t.Before(to); t = t.Add(bucket) {
		counts = append(counts, byStart[t.Unix()])
	}
	return counts, nil
}

func (r *mentionRepository) GetRecentEmbeddings(ctx context.Context, ticker string, since time.Time, limit int) ([][]float64, error) {
	if limit <= 0 {
		limit = 200
	}

	var rows []struct {
		Embedding pq.Float64Array `gorm:"type:float8[]"`
	}
	err := r.db.WithContext(ctx).Raw(`
	SELECT ae.embedding
	FROM article_embed AS ae
	JOIN article AS a ON a.id = ae.article_id
	JOIN article_ticker AS at ON at.article_id = a.id
	WHERE at.ticker = ?
	AND a.published_at >= ?
	ORDER BY a.published_at DESC
	LIMIT ?
`, ticker, since, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	embeddings := make([][]float64, len(rows))
	for i, row := range rows {
		embeddings[i] = row.Embedding
	}
	return embeddings, nil
}
