package domain

import "time"

// SyncRun is the record of one sync cycle execution. Counters satisfy
// checked == synced + skipped + failed; duplicates are folded into synced.
type SyncRun struct {
	ID                uint    `gorm:"primaryKey" json:"id"`
	StartedAt         string  `gorm:"type:text;not null" json:"started_at"`
	CompletedAt       *string `gorm:"type:text" json:"completed_at,omitempty"`
	ActivitiesChecked int     `gorm:"default:0" json:"activities_checked"`
	ActivitiesSynced  int     `gorm:"default:0" json:"activities_synced"`
	ActivitiesSkipped int     `gorm:"default:0" json:"activities_skipped"`
	ActivitiesFailed  int     `gorm:"default:0" json:"activities_failed"`
	Error             *string `gorm:"type:text" json:"error,omitempty"`
}

// TableName returns the database table name for SyncRun.
func (SyncRun) TableName() string {
	return "sync_runs"
}

// NewSyncRun returns a run started now with zeroed counters.
func NewSyncRun() *SyncRun {
	return &SyncRun{StartedAt: time.Now().UTC().Format(time.RFC3339)}
}

// Complete marks the run as finished. The completion timestamp is set once;
// later calls are no-ops.
func (r *SyncRun) Complete() {
	if r.CompletedAt != nil {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339)
	r.CompletedAt = &now
}

// Setting is a persisted free-form key/value pair. Structured values are
// JSON-encoded strings.
type Setting struct {
	Key   string `gorm:"type:text;primaryKey" json:"key"`
	Value string `gorm:"type:text;not null" json:"value"`
}

// TableName returns the database table name for Setting.
func (Setting) TableName() string {
	return "config"
}
