package repository

import (
	"context"
	"errors"

	"github.com/garava/garava/internal/domain"
	"gorm.io/gorm"
)

// SyncRunRepository handles sync run records.
type SyncRunRepository struct {
	db *gorm.DB
}

// NewSyncRunRepository creates a new SyncRunRepository.
func NewSyncRunRepository(db *gorm.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create inserts a fresh run record with zeroed counters and fills in its id.
func (r *SyncRunRepository) Create(ctx context.Context) (*domain.SyncRun, error) {
	run := domain.NewSyncRun()
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// Update persists the current counters and completion state of a run.
func (r *SyncRunRepository) Update(ctx context.Context, run *domain.SyncRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// GetLast retrieves the most recent sync run, or (nil, nil) when none exists.
func (r *SyncRunRepository) GetLast(ctx context.Context) (*domain.SyncRun, error) {
	var run domain.SyncRun
	err := r.db.WithContext(ctx).Order("id DESC").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Count returns the total number of sync runs.
func (r *SyncRunRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.SyncRun{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
