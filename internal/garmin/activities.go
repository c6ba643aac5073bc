package garmin

import (
	"encoding/json"
	"fmt"

	"github.com/garava/garava/internal/domain"
	"github.com/garava/garava/internal/logger"
)

// activityRecord is the provider-native activity summary shape.
type activityRecord struct {
	ActivityID   int64 `json:"activityId"`
	ActivityType struct {
		TypeKey string `json:"typeKey"`
	} `json:"activityType"`
	ActivityName string  `json:"activityName"`
	StartTimeGMT string  `json:"startTimeGMT"`
	Duration     float64 `json:"duration"`
	Distance     float64 `json:"distance"`
}

// ParseActivities converts raw provider records into domain activities.
// Unparseable records are skipped with a warning rather than failing the
// batch.
func ParseActivities(records []json.RawMessage) []domain.GarminActivity {
	activities := make([]domain.GarminActivity, 0, len(records))

	for _, raw := range records {
		var rec activityRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			logger.Warn("Failed to parse activity record: %v", err)
			continue
		}
		if rec.ActivityID == 0 {
			logger.Warn("Activity record missing activityId, skipping")
			continue
		}

		typeKey := rec.ActivityType.TypeKey
		if typeKey == "" {
			typeKey = "unknown"
		}

		activities = append(activities, domain.GarminActivity{
			ActivityID:    fmt.Sprintf("%d", rec.ActivityID),
			ActivityType:  typeKey,
			ActivityName:  rec.ActivityName,
			StartTime:     rec.StartTimeGMT,
			DurationSecs:  rec.Duration,
			DistanceMeter: rec.Distance,
		})
	}

	return activities
}

// GetRecentActivities fetches and parses up to limit recent activities.
func GetRecentActivities(client *Client, limit int) ([]domain.GarminActivity, error) {
	records, err := client.GetActivities(0, limit)
	if err != nil {
		return nil, err
	}
	return ParseActivities(records), nil
}

// RecentActivities fetches and parses up to limit recent activities.
func (c *Client) RecentActivities(limit int) ([]domain.GarminActivity, error) {
	return GetRecentActivities(c, limit)
}

// DownloadFit downloads and extracts the FIT payload for an activity.
func (c *Client) DownloadFit(activityID string) ([]byte, error) {
	return DownloadFitFile(c, activityID)
}

// DownloadFitFile downloads the archive for an activity and extracts the FIT
// payload from it.
func DownloadFitFile(client *Client, activityID string) ([]byte, error) {
	zipBytes, err := client.DownloadActivityZip(activityID)
	if err != nil {
		return nil, err
	}

	fitBytes, err := ExtractFitFromZip(zipBytes)
	if err != nil {
		return nil, &ExtractionError{
			Message: fmt.Sprintf("activity %s", activityID),
			Err:     err,
		}
	}
	return fitBytes, nil
}
