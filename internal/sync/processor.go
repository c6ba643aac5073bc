package sync

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/garava/garava/internal/domain"
	"github.com/garava/garava/internal/garmin"
	"github.com/garava/garava/internal/logger"
	"github.com/garava/garava/internal/strava"
)

// ExternalIDPrefix builds the idempotency key submitted with each upload:
// ExternalIDPrefix + Garmin activity id.
const ExternalIDPrefix = "garmin_"

// ActivityStore is the slice of the store the processor writes through.
type ActivityStore interface {
	Exists(ctx context.Context, garminActivityID string) (bool, error)
	Insert(ctx context.Context, activity *domain.Activity) error
	Get(ctx context.Context, garminActivityID string) (*domain.Activity, error)
}

// FitSource downloads and extracts the FIT payload for an activity.
type FitSource interface {
	DownloadFit(activityID string) ([]byte, error)
}

// Uploader runs the upload-and-poll pipeline for one FIT blob.
type Uploader interface {
	Upload(ctx context.Context, fitBytes []byte, externalID, name string) strava.UploadResult
}

// ProcessResult is the outcome of processing a single activity.
type ProcessResult struct {
	Activity *domain.Activity
	Outcome  domain.Outcome
}

// Processor runs the per-activity decision pipeline. It has no retry logic of
// its own; retries are the engine's responsibility.
type Processor struct {
	store    ActivityStore
	source   FitSource
	uploader Uploader
	filter   *ActivityFilter
}

// NewProcessor creates a Processor.
func NewProcessor(store ActivityStore, source FitSource, uploader Uploader, filter *ActivityFilter) *Processor {
	return &Processor{store: store, source: source, uploader: uploader, filter: filter}
}

// Process runs one activity through the pipeline: idempotency check, type
// filter, initial-sync boundary, download/extract, upload. Each branch writes
// at most one store row. Garmin auth errors are returned to the caller
// instead of being recorded, so the engine can re-authenticate and retry.
func (p *Processor) Process(ctx context.Context, act domain.GarminActivity, initialSyncTime string) (ProcessResult, error) {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldActivityID:   act.ActivityID,
		logger.FieldActivityType: act.ActivityType,
	})

	// Idempotency: anything recorded with a non-failed status is done.
	// Failed rows do not gate reprocessing.
	exists, err := p.store.Exists(ctx, act.ActivityID)
	if err != nil {
		return ProcessResult{}, err
	}
	if exists {
		logger.FromContext(ctx).Debugf("Activity already processed")
		existing, getErr := p.store.Get(ctx, act.ActivityID)
		if getErr != nil {
			return ProcessResult{}, getErr
		}
		return ProcessResult{Activity: existing, Outcome: domain.OutcomeExists}, nil
	}

	if reason, blocked := p.filter.BlockReason(act.ActivityType); blocked {
		activity, recErr := p.recordSkipped(ctx, act, reason)
		if recErr != nil {
			return ProcessResult{}, recErr
		}
		return ProcessResult{Activity: activity, Outcome: domain.OutcomeSkipped}, nil
	}

	// Garmin start times may use a space separator; normalize both sides
	// to the T form before the lexical comparison.
	if initialSyncTime != "" {
		activityTime := normalizeTimestamp(act.StartTime)
		boundary := normalizeTimestamp(initialSyncTime)
		if activityTime < boundary {
			activity, recErr := p.recordSkipped(ctx, act, "before_initial_sync")
			if recErr != nil {
				return ProcessResult{}, recErr
			}
			return ProcessResult{Activity: activity, Outcome: domain.OutcomeSkipped}, nil
		}
	}

	fitBytes, err := p.source.DownloadFit(act.ActivityID)
	if err != nil {
		var authErr *garmin.AuthError
		if errors.As(err, &authErr) {
			return ProcessResult{}, err
		}
		activity, recErr := p.recordFailed(ctx, act, err.Error())
		if recErr != nil {
			return ProcessResult{}, recErr
		}
		return ProcessResult{Activity: activity, Outcome: domain.OutcomeFailed}, nil
	}

	externalID := ExternalIDPrefix + act.ActivityID
	result := p.uploader.Upload(ctx, fitBytes, externalID, act.ActivityName)

	switch {
	case result.IsDuplicate:
		activity, recErr := p.recordDuplicate(ctx, act, result.DuplicateID)
		if recErr != nil {
			return ProcessResult{}, recErr
		}
		return ProcessResult{Activity: activity, Outcome: domain.OutcomeDuplicate}, nil

	case result.Success:
		activity, recErr := p.recordSynced(ctx, act, result.StravaActivityID)
		if recErr != nil {
			return ProcessResult{}, recErr
		}
		return ProcessResult{Activity: activity, Outcome: domain.OutcomeSynced}, nil

	default:
		errMsg := result.Error
		if errMsg == "" {
			errMsg = "unknown upload error"
		}
		activity, recErr := p.recordFailed(ctx, act, errMsg)
		if recErr != nil {
			return ProcessResult{}, recErr
		}
		return ProcessResult{Activity: activity, Outcome: domain.OutcomeFailed}, nil
	}
}

func normalizeTimestamp(ts string) string {
	return strings.Replace(ts, " ", "T", 1)
}

func (p *Processor) newActivity(act domain.GarminActivity, status domain.ActivityStatus) *domain.Activity {
	return &domain.Activity{
		GarminActivityID: act.ActivityID,
		ActivityType:     act.ActivityType,
		ActivityName:     act.ActivityName,
		GarminStartTime:  act.StartTime,
		Status:           status,
		ProcessedAt:      time.Now().UTC().Format(time.RFC3339),
	}
}

func (p *Processor) recordSynced(ctx context.Context, act domain.GarminActivity, stravaID string) (*domain.Activity, error) {
	activity := p.newActivity(act, domain.StatusSynced)
	activity.StravaActivityID = &stravaID
	if err := p.store.Insert(ctx, activity); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldStatus:   string(domain.StatusSynced),
		logger.FieldStravaID: stravaID,
	}).Infof("Synced to Strava")
	return activity, nil
}

func (p *Processor) recordSkipped(ctx context.Context, act domain.GarminActivity, reason string) (*domain.Activity, error) {
	activity := p.newActivity(act, domain.StatusSkipped)
	activity.SkipReason = &reason
	if err := p.store.Insert(ctx, activity); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).WithField(logger.FieldStatus, string(domain.StatusSkipped)).
		Infof("Skipped: %s", reason)
	return activity, nil
}

func (p *Processor) recordDuplicate(ctx context.Context, act domain.GarminActivity, duplicateID string) (*domain.Activity, error) {
	activity := p.newActivity(act, domain.StatusDuplicate)
	if duplicateID != "" {
		activity.StravaActivityID = &duplicateID
	}
	if err := p.store.Insert(ctx, activity); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldStatus:   string(domain.StatusDuplicate),
		logger.FieldStravaID: duplicateID,
	}).Infof("Duplicate of existing Strava activity")
	return activity, nil
}

func (p *Processor) recordFailed(ctx context.Context, act domain.GarminActivity, errMsg string) (*domain.Activity, error) {
	activity := p.newActivity(act, domain.StatusFailed)
	activity.ErrorMessage = &errMsg
	if err := p.store.Insert(ctx, activity); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).WithField(logger.FieldStatus, string(domain.StatusFailed)).
		Errorf("Processing failed: %s", errMsg)
	return activity, nil
}
