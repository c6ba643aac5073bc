package strava

import (
	"context"
	"strings"
	"time"

	"github.com/garava/garava/internal/logger"
)

// GearRule maps a condition to a Strava gear id.
type GearRule struct {
	Condition string
	GearID    string
}

// GearAssignmentResult summarizes one gear assignment pass. FetchFailed marks
// a pass that could not list activities at all, so callers keep their cursor.
type GearAssignmentResult struct {
	Checked        int
	Updated        int
	AlreadyCorrect int
	Errors         int
	FetchFailed    bool
}

// GearAPI is the slice of the client the gear pass uses.
type GearAPI interface {
	GetActivities(ctx context.Context, after time.Time, limit int) ([]SummaryActivity, error)
	UpdateActivityGear(ctx context.Context, activityID int64, gearID string) error
}

// ParseGearRules parses a rule string of the form
// condition:gear_id[,condition:gear_id,...]. Malformed entries are skipped
// with a warning.
func ParseGearRules(rulesStr string) []GearRule {
	if strings.TrimSpace(rulesStr) == "" {
		return nil
	}

	var rules []GearRule
	for _, part := range strings.Split(rulesStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		condition, gearID, found := strings.Cut(part, ":")
		if !found {
			logger.Warn("Invalid gear rule format: %q", part)
			continue
		}
		condition = strings.TrimSpace(condition)
		gearID = strings.TrimSpace(gearID)
		if condition == "" || gearID == "" {
			logger.Warn("Invalid gear rule format: %q", part)
			continue
		}
		rules = append(rules, GearRule{Condition: condition, GearID: gearID})
	}
	return rules
}

// matchesRule reports whether an activity satisfies a rule condition. The
// only supported condition is "trainer": a trainer-flagged Ride.
func matchesRule(activity SummaryActivity, rule GearRule) bool {
	if rule.Condition == "trainer" {
		return activity.Trainer && activity.Type == "Ride"
	}
	logger.Debug("Unknown gear rule condition: %q", rule.Condition)
	return false
}

// ApplyGearRules checks recent activities and assigns gear per the rules. The
// first matching rule wins. Per-activity failures are counted and the pass
// continues; a fetch-level failure aborts the pass and returns the partial
// result. This pass never returns an error to the caller.
func ApplyGearRules(
	ctx context.Context,
	api GearAPI,
	rules []GearRule,
	after time.Time,
	limit int,
) GearAssignmentResult {
	var result GearAssignmentResult

	activities, err := api.GetActivities(ctx, after, limit)
	if err != nil {
		logger.Warn("Failed to fetch activities for gear assignment: %v", err)
		result.FetchFailed = true
		return result
	}

	for _, activity := range activities {
		result.Checked++

		var matched *GearRule
		for i := range rules {
			if matchesRule(activity, rules[i]) {
				matched = &rules[i]
				break
			}
		}
		if matched == nil {
			continue
		}

		if activity.GearID == matched.GearID {
			result.AlreadyCorrect++
			continue
		}

		if err := api.UpdateActivityGear(ctx, activity.ID, matched.GearID); err != nil {
			result.Errors++
			logger.Warn("Failed to assign gear to activity %d: %v", activity.ID, err)
			continue
		}
		result.Updated++
		logger.Info("Assigned gear %s to activity %d (%s)", matched.GearID, activity.ID, activity.Name)
	}

	return result
}
