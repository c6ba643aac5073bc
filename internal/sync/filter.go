package sync

import (
	"strings"

	"github.com/garava/garava/internal/logger"
)

// BlockReasonPrefix prefixes the audit-trail reason recorded for blocked
// activity types.
const BlockReasonPrefix = "blocked_type:"

// ActivityFilter decides which activity types are synced. It is pure policy:
// an immutable block-set, no I/O.
type ActivityFilter struct {
	blockedTypes map[string]struct{}
}

// NewActivityFilter creates a filter from a list of blocked Garmin activity
// type keys. Matching is case-insensitive and whitespace-trimmed.
func NewActivityFilter(blockedTypes []string) *ActivityFilter {
	blocked := make(map[string]struct{}, len(blockedTypes))
	for _, t := range blockedTypes {
		normalized := strings.ToLower(strings.TrimSpace(t))
		if normalized != "" {
			blocked[normalized] = struct{}{}
		}
	}
	logger.Info("Activity filter blocking %d types", len(blocked))
	return &ActivityFilter{blockedTypes: blocked}
}

// ShouldSync reports whether an activity type should be synced.
func (f *ActivityFilter) ShouldSync(activityType string) bool {
	normalized := strings.ToLower(strings.TrimSpace(activityType))
	_, blocked := f.blockedTypes[normalized]
	return !blocked
}

// BlockReason returns a deterministic reason string for a blocked type, or
// ok=false when the type is not blocked.
func (f *ActivityFilter) BlockReason(activityType string) (string, bool) {
	if f.ShouldSync(activityType) {
		return "", false
	}
	return BlockReasonPrefix + strings.ToLower(strings.TrimSpace(activityType)), true
}
