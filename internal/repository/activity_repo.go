package repository

import (
	"context"

	"github.com/garava/garava/internal/domain"
	"gorm.io/gorm"
)

// ActivityRepository handles processed-activity records.
type ActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Exists checks whether an activity has been successfully processed. Failed
// records do not count so they can be retried on the next cycle.
func (r *ActivityRepository) Exists(ctx context.Context, garminActivityID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Activity{}).
		Where("garmin_activity_id = ? AND status != ?", garminActivityID, domain.StatusFailed).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Insert inserts a new activity record and fills in its surrogate id. A
// pre-existing failed record for the same Garmin id is superseded so that the
// unique index holds for non-failed rows.
func (r *ActivityRepository) Insert(ctx context.Context, activity *domain.Activity) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("garmin_activity_id = ? AND status = ?", activity.GarminActivityID, domain.StatusFailed).
			Delete(&domain.Activity{}).Error; err != nil {
			return err
		}
		return tx.Create(activity).Error
	})
}

// Get retrieves an activity by its Garmin id.
func (r *ActivityRepository) Get(ctx context.Context, garminActivityID string) (*domain.Activity, error) {
	var activity domain.Activity
	if err := r.db.WithContext(ctx).
		First(&activity, "garmin_activity_id = ?", garminActivityID).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}

// GetRecent retrieves recent activities ordered by processed time descending.
func (r *ActivityRepository) GetRecent(ctx context.Context, limit int) ([]domain.Activity, error) {
	var activities []domain.Activity
	if err := r.db.WithContext(ctx).
		Order("processed_at DESC").
		Limit(limit).
		Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

// GetFailed retrieves all failed activities for review.
func (r *ActivityRepository) GetFailed(ctx context.Context) ([]domain.Activity, error) {
	var activities []domain.Activity
	if err := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusFailed).
		Find(&activities).Error; err != nil {
		return nil, err
	}
	return activities, nil
}

// DeleteFailed deletes a failed activity record so it can be retried
// immediately. Returns true if a record was deleted.
func (r *ActivityRepository) DeleteFailed(ctx context.Context, garminActivityID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("garmin_activity_id = ? AND status = ?", garminActivityID, domain.StatusFailed).
		Delete(&domain.Activity{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountByStatus counts processed activities grouped by status.
func (r *ActivityRepository) CountByStatus(ctx context.Context) (map[domain.ActivityStatus]int64, error) {
	type row struct {
		Status domain.ActivityStatus
		Count  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&domain.Activity{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[domain.ActivityStatus]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}
