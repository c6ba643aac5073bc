package strava

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/garava/garava/internal/logger"
)

// UploadAPI is the slice of the client the upload pipeline uses.
type UploadAPI interface {
	UploadActivity(ctx context.Context, fitBytes []byte, externalID, name string) (*UploadStatus, error)
	GetUpload(ctx context.Context, uploadID int64) (*UploadStatus, error)
}

// UploadResult is the classified terminal outcome of an upload. Every upload
// maps to exactly one of: success, duplicate (a success variant), or failure
// with an error message.
type UploadResult struct {
	Success          bool
	StravaActivityID string
	Error            string
	IsDuplicate      bool
	DuplicateID      string
}

// duplicateIDPatterns recover the existing activity id from Strava's
// free-form duplicate error text, tried in priority order. Recovery is best
// effort; an empty id on a confirmed duplicate is a valid outcome.
var duplicateIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)activity[:\s]+(\d+)`),
	regexp.MustCompile(`(?i)id[:\s]+(\d+)`),
	regexp.MustCompile(`(\d{10,})`),
}

// UploadFitFile uploads a FIT blob and polls until Strava finishes processing
// it or timeout elapses. The upload itself is not cancelled server-side on
// timeout.
func UploadFitFile(
	ctx context.Context,
	api UploadAPI,
	fitBytes []byte,
	externalID string,
	activityName string,
	timeout time.Duration,
	pollInterval time.Duration,
) UploadResult {
	status, err := api.UploadActivity(ctx, fitBytes, externalID, activityName)
	if err != nil {
		logger.Error("Upload error: %v", err)
		return UploadResult{Success: false, Error: err.Error()}
	}

	logger.Debug("Upload %d started, waiting for processing (timeout=%s)", status.ID, timeout)

	deadline := time.Now().Add(timeout)
	for {
		if outcome, terminal := classifyStatus(status); terminal {
			return outcome
		}

		if time.Now().After(deadline) {
			logger.Error("Upload %d timed out after %s", status.ID, timeout)
			return UploadResult{
				Success: false,
				Error:   fmt.Sprintf("upload processing timed out after %d seconds", int(timeout.Seconds())),
			}
		}

		select {
		case <-ctx.Done():
			return UploadResult{Success: false, Error: ctx.Err().Error()}
		case <-time.After(pollInterval):
		}

		status, err = api.GetUpload(ctx, status.ID)
		if err != nil {
			logger.Error("Upload poll error: %v", err)
			return UploadResult{Success: false, Error: err.Error()}
		}
	}
}

// classifyStatus maps an upload handle onto a terminal result. terminal is
// false while Strava is still processing.
func classifyStatus(status *UploadStatus) (UploadResult, bool) {
	if status.Error != "" {
		if strings.Contains(strings.ToLower(status.Error), "duplicate") {
			duplicateID := ParseDuplicateID(status.Error)
			logger.Info("Duplicate activity detected: %q", duplicateID)
			return UploadResult{
				Success:          true, // already exists, not a failure
				IsDuplicate:      true,
				DuplicateID:      duplicateID,
				StravaActivityID: duplicateID,
			}, true
		}
		logger.Error("Upload failed: %s", status.Error)
		return UploadResult{Success: false, Error: status.Error}, true
	}

	if status.ActivityID != nil {
		id := fmt.Sprintf("%d", *status.ActivityID)
		logger.Info("Upload successful: Strava activity %s", id)
		return UploadResult{Success: true, StravaActivityID: id}, true
	}

	return UploadResult{}, false
}

// ParseDuplicateID extracts the existing activity id from a duplicate error
// message, or returns "" when no pattern matches.
func ParseDuplicateID(errorMessage string) string {
	for _, pattern := range duplicateIDPatterns {
		if m := pattern.FindStringSubmatch(errorMessage); m != nil {
			return m[1]
		}
	}
	return ""
}
