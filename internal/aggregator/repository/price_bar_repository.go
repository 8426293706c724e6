package repository

import (
	"context"
	"fmt"
	"time"

	"market-pulse/internal/entity"
	"market-pulse/pkg/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Rows per INSERT when appending bars, keeping bind parameters well under
// the Postgres limit for bulk uploads.
const appendBarsBatchSize = 500

// PriceBarRepository defines operations over the append-only price series.
type PriceBarRepository interface {
	// AppendBars inserts bars, silently skipping (ticker, ts, timeframe)
	// keys that already exist. Existing observations are never mutated.
	AppendBars(ctx context.Context, bars []entity.PriceBar) error
	GetPriceBars(ctx context.Context, ticker string, from, to time.Time, timeframe string) ([]entity.PriceBar, error)
	// DeleteBar removes a single observation as an explicit correction.
	DeleteBar(ctx context.Context, ticker string, ts time.Time, timeframe string) error
}

// NewPriceBarRepository creates a new instance of PriceBarRepository.
func NewPriceBarRepository(db *gorm.DB) PriceBarRepository {
	return &priceBarRepository{db: db}
}

type priceBarRepository struct {
	db *gorm.DB
}

func (r *priceBarRepository) AppendBars(ctx context.Context, bars []entity.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	for _, bar := range bars {
		if !entity.ValidTimeframe(bar.Timeframe) {
			return fmt.Errorf("invalid timeframe %q", bar.Timeframe)
		}
		if bar.O < 0 || bar.H < 0 || bar.L < 0 || bar.C < 0 || bar.V < 0 {
			return fmt.Errorf("price bar fields must be non-negative: %s %s", bar.Ticker, bar.Ts)
		}
	}

	for _, batch := range utils.Chunk(bars, appendBarsBatchSize) {
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticker"}, {Name: "ts"}, {Name: "timeframe"}},
			DoNothing: true,
		}).Create(&batch).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *priceBarRepository) GetPriceBars(ctx context.Context, ticker string, from, to time.Time, timeframe string) ([]entity.PriceBar, error) {
	if !entity.ValidTimeframe(timeframe) {
		return nil, fmt.Errorf("invalid timeframe %q", timeframe)
	}

	var bars []entity.PriceBar
	query := r.db.WithContext(ctx).Where("ticker = ? AND timeframe = ?", ticker, timeframe)
	if !from.IsZero() {
		query = query.Where("ts >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("ts <= ?", to)
	}
	if err := query.Order("ts ASC").Find(&bars).Error; err != nil {
		return nil, err
	}
	return bars, nil
}

func (r *priceBarRepository) DeleteBar(ctx context.Context, ticker string, ts time.Time, timeframe string) error {
	return r.db.WithContext(ctx).
		Where("ticker = ? AND ts = ? AND timeframe = ?", ticker, ts, timeframe).
		Delete(&entity.PriceBar{}).Error
}
