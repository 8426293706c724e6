package repository

import (
	"context"
	"fmt"

	"market-pulse/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmbeddingRepository defines persistence operations for article embeddings.
type EmbeddingRepository interface {
	// Upsert writes the article's embedding, overwriting any prior vector.
	// One embedding exists per article.
	Upsert(ctx context.Context, embed *entity.ArticleEmbedding) error
}

// NewEmbeddingRepository creates a new instance of EmbeddingRepository.
func NewEmbeddingRepository(db *gorm.DB) EmbeddingRepository {
	return &embeddingRepository{db: db}
}

type embeddingRepository struct {
	db *gorm.DB
}

func (r *embeddingRepository) Upsert(ctx context.Context, embed *entity.ArticleEmbedding) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "article_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"embedding", "model", "dims"}),
	}).Create(embed).Error
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}
