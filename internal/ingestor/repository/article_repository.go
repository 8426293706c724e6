package repository

import (
	"context"
	"fmt"
	"time"

	"market-pulse/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArticleRepository defines persistence operations for articles and their
// ticker links.
type ArticleRepository interface {
	// UpsertByURL inserts the article or overwrites the existing row with the
	// same URL, returning the row id. The URL is the identity key.
	UpsertByURL(ctx context.Context, article *entity.Article) (int64, error)
	// ReplaceTickerLinks removes all links for the article and inserts the
	// given set in one transaction (replace-on-write, not merge).
	ReplaceTickerLinks(ctx context.Context, articleID int64, links []entity.ArticleTicker) error
	// DeleteBefore removes articles older than cutoff. This is the only
	// deletion path; ingestion never deletes.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewArticleRepository creates a new instance of ArticleRepository.
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

type articleRepository struct {
	db *gorm.DB
}

func (r *articleRepository) UpsertByURL(ctx context.Context, article *entity.Article) (int64, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"source", "url_canonical", "published_at", "retrieved_at",
			"title", "text", "lang", "hash", "credibility", "meta", "updated_at",
		}),
	}).Create(article).Error
	if err != nil {
		return 0, fmt.Errorf("failed to upsert article: %w", err)
	}

	if article.ID == 0 {
		// ON CONFLICT DO UPDATE does not always report the id back through
		// gorm when the conflict path was taken; read it by identity key.
		var existing entity.Article
		if err := r.db.WithContext(ctx).Select("id").Where("url = ?", article.URL).First(&existing).Error; err != nil {
			return 0, fmt.Errorf("failed to read back article id: %w", err)
		}
		article.ID = existing.ID
	}

	return article.ID, nil
}

func (r *articleRepository) ReplaceTickerLinks(ctx context.Context, articleID int64, links []entity.ArticleTicker) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("article_id = ?", articleID).Delete(&entity.ArticleTicker{}).Error; err != nil {
			return fmt.Errorf("failed to delete prior ticker links: %w", err)
		}

		if len(links) == 0 {
			return nil
		}

		for i := range links {
			links[i].ArticleID = articleID
		}
		if err := tx.Create(&links).Error; err != nil {
			return fmt.Errorf("failed to insert ticker links: %w", err)
		}
		return nil
	})
}

func (r *articleRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("published_at < ?", cutoff).Delete(&entity.Article{})
	return result.RowsAffected, result.Error
}
