package repository

import (
	"context"
	"time"

	"market-pulse/internal/entity"

	"gorm.io/gorm"
)

// TickerRepository reads ticker reference data for aggregation runs.
type TickerRepository interface {
	GetActiveTickers(ctx context.Context, asOf time.Time) ([]entity.Ticker, error)
}

// NewTickerRepository creates a new instance of TickerRepository.
func NewTickerRepository(db *gorm.DB) TickerRepository {
	return &tickerRepository{db: db}
}

type tickerRepository struct {
	db *gorm.DB
}

func (r *tickerRepository) GetActiveTickers(ctx context.Context, asOf time.Time) ([]entity.Ticker, error) {
	var tickers []entity.Ticker
	err := r.db.WithContext(ctx).
		Where("(valid_from IS NULL OR valid_from <= ?) AND (valid_to IS NULL OR valid_to > ?)", asOf, asOf).
		Find(&tickers).Error
	if err != nil {
		return nil, err
	}
	return tickers, nil
}
