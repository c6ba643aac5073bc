package domain

import "time"

// ActivityStatus is the terminal status of a processed activity record.
// Values include StatusSynced, StatusSkipped, StatusFailed, and StatusDuplicate.
type ActivityStatus string

const (
	StatusSynced    ActivityStatus = "synced"
	StatusSkipped   ActivityStatus = "skipped"
	StatusFailed    ActivityStatus = "failed"
	StatusDuplicate ActivityStatus = "duplicate"
)

// Outcome is the result tag of one processing attempt. It shares the
// ActivityStatus vocabulary plus OutcomeExists for activities that were
// already recorded and needed no work.
type Outcome string

const (
	OutcomeSynced    Outcome = Outcome(StatusSynced)
	OutcomeSkipped   Outcome = Outcome(StatusSkipped)
	OutcomeFailed    Outcome = Outcome(StatusFailed)
	OutcomeDuplicate Outcome = Outcome(StatusDuplicate)
	OutcomeExists    Outcome = "exists"
)

// Status maps an outcome to the stored activity status. OutcomeExists has no
// stored counterpart because no new row is written for it.
func (o Outcome) Status() (ActivityStatus, bool) {
	if o == OutcomeExists {
		return "", false
	}
	return ActivityStatus(o), true
}

// Activity is the record of a processed Garmin activity.
type Activity struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	GarminActivityID string         `gorm:"type:text;not null;uniqueIndex:idx_activities_garmin_id" json:"garmin_activity_id"`
	ActivityType     string         `gorm:"type:text;not null" json:"activity_type"`
	ActivityName     string         `gorm:"type:text" json:"activity_name"`
	GarminStartTime  string         `gorm:"type:text;not null" json:"garmin_start_time"`
	Status           ActivityStatus `gorm:"type:text;not null;index:idx_activities_status" json:"status"`
	StravaActivityID *string        `gorm:"type:text" json:"strava_activity_id,omitempty"`
	SkipReason       *string        `gorm:"type:text" json:"skip_reason,omitempty"`
	ErrorMessage     *string        `gorm:"type:text" json:"error_message,omitempty"`
	ProcessedAt      string         `gorm:"type:text;not null;index:idx_activities_processed_at" json:"processed_at"`
	CreatedAt        time.Time      `json:"created_at"`
}

// TableName returns the database table name for Activity.
func (Activity) TableName() string {
	return "activities"
}

// GarminActivity is a parsed activity summary from the Garmin Connect API.
type GarminActivity struct {
	ActivityID    string  `json:"activity_id"`
	ActivityType  string  `json:"activity_type"`
	ActivityName  string  `json:"activity_name"`
	StartTime     string  `json:"start_time"`
	DurationSecs  float64 `json:"duration_seconds,omitempty"`
	DistanceMeter float64 `json:"distance_meters,omitempty"`
}
