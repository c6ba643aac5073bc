package sync

import (
	"context"
	"errors"
	"time"

	"github.com/garava/garava/internal/domain"
	"github.com/garava/garava/internal/garmin"
	"github.com/garava/garava/internal/logger"
	"github.com/garava/garava/internal/repository"
	"github.com/garava/garava/internal/strava"
)

// Settings keys owned by the engine.
const (
	SettingInitialSyncTime = "initial_sync_time"
	SettingLastGearCheck   = "last_gear_check"
)

// SourceClient is the provider surface the engine drives. Reauthentication
// happens at most once per cycle, by reloading the persisted session.
type SourceClient interface {
	VerifySession() bool
	RecentActivities(limit int) ([]domain.GarminActivity, error)
	ResumeSession() error
}

// SettingsStore is the persisted key/value surface the engine uses for its
// cursors.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// StravaUploader adapts the upload-and-poll pipeline to the processor's
// Uploader interface with fixed timing.
type StravaUploader struct {
	API          strava.UploadAPI
	Timeout      time.Duration
	PollInterval time.Duration
}

// Upload uploads one FIT blob and polls until a terminal status.
func (u *StravaUploader) Upload(ctx context.Context, fitBytes []byte, externalID, name string) strava.UploadResult {
	return strava.UploadFitFile(ctx, u.API, fitBytes, externalID, name, u.Timeout, u.PollInterval)
}

// Engine orchestrates one-way sync cycles. Activities are processed
// sequentially; a cycle is bounded by the fetch limit so a run can never grow
// unbounded.
type Engine struct {
	source     SourceClient
	processor  *Processor
	tokens     strava.TokenStore
	stravaAuth strava.TokenRefresher
	gearAPI    strava.GearAPI
	gearRules  []strava.GearRule
	runs       *repository.SyncRunRepository
	settings   SettingsStore
	fetchLimit int
}

// EngineOptions wires an Engine.
type EngineOptions struct {
	Source     SourceClient
	Processor  *Processor
	Tokens     strava.TokenStore
	StravaAuth strava.TokenRefresher
	GearAPI    strava.GearAPI
	GearRules  []strava.GearRule
	Runs       *repository.SyncRunRepository
	Settings   SettingsStore
	FetchLimit int
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOptions) *Engine {
	return &Engine{
		source:     opts.Source,
		processor:  opts.Processor,
		tokens:     opts.Tokens,
		stravaAuth: opts.StravaAuth,
		gearAPI:    opts.GearAPI,
		gearRules:  opts.GearRules,
		runs:       opts.Runs,
		settings:   opts.Settings,
		fetchLimit: opts.FetchLimit,
	}
}

// RunCycle executes one full sync cycle and returns its persisted run record.
// A non-nil error is always an *AuthenticationError: authentication failures
// abort the cycle after being recorded. Every other failure is recorded
// against the activity or the run and swallowed, so callers can keep
// scheduling cycles.
func (e *Engine) RunCycle(ctx context.Context) (*domain.SyncRun, error) {
	started := time.Now()

	run, err := e.runs.Create(ctx)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Failed to create sync run")
		return nil, nil
	}

	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "engine",
		logger.FieldRunID:     run.ID,
	})
	log := logger.FromContext(ctx)
	log.Infof("Sync cycle started")

	// Source session first, then the destination token.
	if !e.source.VerifySession() {
		return run, e.abortAuth(ctx, run, "Garmin session invalid; run 'garava setup'", nil)
	}

	token, err := strava.EnsureValidToken(ctx, e.tokens, e.stravaAuth)
	if err != nil {
		return run, e.abortAuth(ctx, run, "Strava token refresh failed", err)
	}
	if token == nil {
		return run, e.abortAuth(ctx, run, "no Strava token; run 'garava setup' to authorize", nil)
	}

	initialSyncTime, err := e.ensureInitialSyncTime(ctx)
	if err != nil {
		e.finalize(ctx, run, err)
		return run, nil
	}

	activities, err := e.fetchActivities(ctx)
	if err != nil {
		var authErr *garmin.AuthError
		if errors.As(err, &authErr) {
			return run, e.abortAuth(ctx, run, "Garmin authentication failed", err)
		}
		e.finalize(ctx, run, err)
		return run, nil
	}
	log.WithField(logger.FieldCount, len(activities)).Infof("Fetched activities")

	reauthed := false
	for _, act := range activities {
		result, procErr := e.processor.Process(ctx, act, initialSyncTime)

		if procErr != nil {
			var authErr *garmin.AuthError
			if !errors.As(procErr, &authErr) {
				// Store-level failure. Contained: counted against the
				// run, next activity still attempted.
				log.WithError(procErr).Errorf("Processing %s failed", act.ActivityID)
				run.ActivitiesChecked++
				run.ActivitiesFailed++
				continue
			}

			if reauthed {
				return run, e.abortAuth(ctx, run, "Garmin session lost mid-cycle", procErr)
			}
			log.WithError(procErr).Warnf("Garmin auth error mid-cycle, reauthenticating")
			reauthed = true
			if resumeErr := e.source.ResumeSession(); resumeErr != nil {
				return run, e.abortAuth(ctx, run, "Garmin reauthentication failed", resumeErr)
			}

			result, procErr = e.processor.Process(ctx, act, initialSyncTime)
			if procErr != nil {
				if errors.As(procErr, &authErr) {
					return run, e.abortAuth(ctx, run, "Garmin session lost after reauthentication", procErr)
				}
				log.WithError(procErr).Errorf("Processing %s failed", act.ActivityID)
				run.ActivitiesChecked++
				run.ActivitiesFailed++
				continue
			}
		}

		e.applyOutcome(run, result.Outcome)
	}

	e.runGearPass(ctx)

	run.Complete()
	if err := e.runs.Update(ctx, run); err != nil {
		log.WithError(err).Errorf("Failed to finalize sync run")
		return run, nil
	}
	log.WithField(logger.FieldDurationMs, time.Since(started).Milliseconds()).
		Infof("Sync cycle done: checked=%d synced=%d skipped=%d failed=%d",
			run.ActivitiesChecked, run.ActivitiesSynced, run.ActivitiesSkipped, run.ActivitiesFailed)
	return run, nil
}

// applyOutcome folds one activity outcome into the run counters. Previously
// recorded activities stay out of every counter; duplicates count as synced.
func (e *Engine) applyOutcome(run *domain.SyncRun, outcome domain.Outcome) {
	if outcome == domain.OutcomeExists {
		return
	}
	run.ActivitiesChecked++
	switch outcome {
	case domain.OutcomeSynced, domain.OutcomeDuplicate:
		run.ActivitiesSynced++
	case domain.OutcomeSkipped:
		run.ActivitiesSkipped++
	case domain.OutcomeFailed:
		run.ActivitiesFailed++
	}
}

// ensureInitialSyncTime returns the sync boundary, recording it on first run
// so history predating the installation never syncs.
func (e *Engine) ensureInitialSyncTime(ctx context.Context) (string, error) {
	value, ok, err := e.settings.Get(ctx, SettingInitialSyncTime)
	if err != nil {
		return "", err
	}
	if ok {
		return value, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := e.settings.Set(ctx, SettingInitialSyncTime, now); err != nil {
		return "", err
	}
	logger.FromContext(ctx).Infof("First run, initial sync boundary set to %s", now)
	return now, nil
}

// fetchActivities fetches the recent activity batch, retrying once after a
// session reload when the provider rejects the session.
func (e *Engine) fetchActivities(ctx context.Context) ([]domain.GarminActivity, error) {
	activities, err := e.source.RecentActivities(e.fetchLimit)
	if err == nil {
		return activities, nil
	}

	var authErr *garmin.AuthError
	if !errors.As(err, &authErr) {
		return nil, err
	}
	logger.FromContext(ctx).WithError(err).Warnf("Garmin auth error on fetch, reauthenticating")
	if resumeErr := e.source.ResumeSession(); resumeErr != nil {
		return nil, resumeErr
	}
	return e.source.RecentActivities(e.fetchLimit)
}

// runGearPass applies gear rules to recent destination activities. Failures
// here never affect the sync outcome, and the cursor only advances when the
// activity fetch succeeded, so a failed pass re-covers its window next time.
func (e *Engine) runGearPass(ctx context.Context) {
	if e.gearAPI == nil || len(e.gearRules) == 0 {
		return
	}
	log := logger.FromContext(ctx)

	after := time.Now().Add(-24 * time.Hour)
	if raw, ok, err := e.settings.Get(ctx, SettingLastGearCheck); err != nil {
		log.WithError(err).Warnf("Failed to load %s", SettingLastGearCheck)
	} else if ok {
		if parsed, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			after = parsed
		} else {
			log.Warnf("Invalid %s value %q: %v", SettingLastGearCheck, raw, parseErr)
		}
	}

	result := strava.ApplyGearRules(ctx, e.gearAPI, e.gearRules, after, e.fetchLimit)
	if result.FetchFailed {
		return
	}
	if result.Checked > 0 || result.Errors > 0 {
		log.Infof("Gear pass: checked=%d updated=%d correct=%d errors=%d",
			result.Checked, result.Updated, result.AlreadyCorrect, result.Errors)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := e.settings.Set(ctx, SettingLastGearCheck, now); err != nil {
		log.WithError(err).Warnf("Failed to record %s", SettingLastGearCheck)
	}
}

// abortAuth finalizes the run with an authentication failure and returns the
// typed error callers treat as cycle-fatal.
func (e *Engine) abortAuth(ctx context.Context, run *domain.SyncRun, message string, cause error) error {
	authErr := &AuthenticationError{Message: message, Err: cause}
	e.finalize(ctx, run, authErr)
	return authErr
}

// finalize records the error that ended the cycle on the run and completes it.
func (e *Engine) finalize(ctx context.Context, run *domain.SyncRun, cause error) {
	msg := cause.Error()
	run.Error = &msg
	run.Complete()
	if err := e.runs.Update(ctx, run); err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Failed to finalize run %d", run.ID)
	}
	logger.FromContext(ctx).WithError(cause).Errorf("Sync cycle ended with error")
}
