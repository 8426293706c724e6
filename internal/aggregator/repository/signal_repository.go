package repository

import (
	"context"
	"fmt"
	"time"

	"market-pulse/internal/entity"

	"gorm.io/gorm"
)

// SignalRepository defines persistence operations for signals and their
// contributions. Signals are append-only.
type SignalRepository interface {
	// InsertWithContributions persists a signal point and its ranked
	// contributions in one transaction. A failed write rolls the whole unit
	// back, so callers may retry without duplicating the signal row. Ranks
	// must be positive; at most entity.MaxSignalContributors are accepted.
	InsertWithContributions(ctx context.Context, signal *entity.Signal, contribs []entity.SignalContribution) error
	GetSignals(ctx context.Context, ticker string, from, to time.Time, limit int) ([]entity.Signal, error)
	GetLatestSignal(ctx context.Context, ticker string) (*entity.Signal, error)
	GetContributions(ctx context.Context, signalID int64) ([]entity.SignalContribution, error)
}

// NewSignalRepository creates a new instance of SignalRepository.
func NewSignalRepository(db *gorm.DB) SignalRepository {
	return &signalRepository{db: db}
}

type signalRepository struct {
	db *gorm.DB
}

func (r *signalRepository) InsertWithContributions(ctx context.Context, signal *entity.Signal, contribs []entity.SignalContribution) error {
	if len(contribs) > entity.MaxSignalContributors {
		return fmt.Errorf("signal cannot have more than %d contributors, got %d", entity.MaxSignalContributors, len(contribs))
	}
	for _, c := range contribs {
		if c.Rank < 1 {
			return fmt.Errorf("contribution rank must be positive, got %d", c.Rank)
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(signal).Error; err != nil {
			return fmt.Errorf("failed to insert signal: %w", err)
		}

		if len(contribs) == 0 {
			return nil
		}
		for i := range contribs {
			contribs[i].SignalID = signal.ID
		}
		if err := tx.Create(&contribs).Error; err != nil {
			return fmt.Errorf("failed to insert contributions: %w", err)
		}
		return nil
	})
}

func (r *signalRepository) GetSignals(ctx context.Context, ticker string, from, to time.Time, limit int) ([]entity.Signal, error) {
	query := r.db.WithContext(ctx).Where("ticker = ?", ticker)
	if !from.IsZero() {
		query = query.Where("ts >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("ts <= ?", to)
	}
	if limit <= 0 {
		limit = 100
	}

	var signals []entity.Signal
	if err := query.Order("ts DESC").Limit(limit).Find(&signals).Error; err != nil {
		return nil, err
	}
	return signals, nil
}

func (r *signalRepository) GetLatestSignal(ctx context.Context, ticker string) (*entity.Signal, error) {
	var signal entity.Signal
	err := r.db.WithContext(ctx).Where("ticker = ?", ticker).Order("ts DESC").First(&signal).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &signal, nil
}

func (r *signalRepository) GetContributions(ctx context.Context, signalID int64) ([]entity.SignalContribution, error) {
	var contribs []entity.SignalContribution
	err := r.db.WithContext(ctx).
		Where("signal_id = ?", signalID).
		Order("rank ASC").
		Find(&contribs).Error
	if err != nil {
		return nil, err
	}
	return contribs, nil
}
