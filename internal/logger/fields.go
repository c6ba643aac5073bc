package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard field names used across the sync engine.
const (
	// FieldActivityID is the Garmin activity identifier.
	FieldActivityID = "activity_id"

	// FieldStravaID is the Strava activity identifier.
	FieldStravaID = "strava_id"

	// FieldRunID is the sync run identifier.
	FieldRunID = "run_id"

	// FieldActivityType is the Garmin activity type key.
	FieldActivityType = "activity_type"

	// FieldComponent is the component/module name.
	FieldComponent = "component"

	// FieldStatus is the operation status or outcome.
	FieldStatus = "status"

	// FieldCount is a generic count field.
	FieldCount = "count"

	// FieldDurationMs is the execution duration in milliseconds.
	FieldDurationMs = "duration_ms"
)
