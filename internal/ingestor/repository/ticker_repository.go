package repository

import (
	"context"
	"time"

	"market-pulse/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TickerRepository defines read/seed operations over ticker reference data.
type TickerRepository interface {
	// GetActiveTickers returns tickers whose validity interval contains asOf.
	GetActiveTickers(ctx context.Context, asOf time.Time) ([]entity.Ticker, error)
	// GetAliasMap returns symbol -> alias list for all active tickers.
	GetAliasMap(ctx context.Context, asOf time.Time) (map[string][]string, error)
	Upsert(ctx context.Context, ticker *entity.Ticker) error
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

func (r *tickerRepository) GetAliasMap(ctx context.Context, asOf time.Time) (map[string][]string, error) {
	tickers, err := r.GetActiveTickers(ctx, asOf)
	if err != nil {
		return nil, err
	}

	aliasMap := make(map[string][]string, len(tickers))
	for _, t := range tickers {
		aliasMap[t.Symbol] = t.Aliases
	}
	return aliasMap, nil
}

func (r *tickerRepository) Upsert(ctx context.Context, ticker *entity.Ticker) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		UpdateAll: true,
	}).Create(ticker).Error
}
