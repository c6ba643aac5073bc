package sync

import "testing"

func TestActivityFilterShouldSync(t *testing.T) {
	filter := NewActivityFilter([]string{"strength_training", " Indoor_Cycling ", ""})

	tests := []struct {
		name         string
		activityType string
		want         bool
	}{
		{"allowed type", "running", true},
		{"blocked type", "strength_training", false},
		{"blocked with different case", "Strength_Training", false},
		{"blocked with whitespace", "  strength_training  ", false},
		{"blocked entry normalized at construction", "indoor_cycling", false},
		{"empty type", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter.ShouldSync(tt.activityType); got != tt.want {
				t.Errorf("ShouldSync(%q) = %v, want %v", tt.activityType, got, tt.want)
			}
		})
	}
}

func TestActivityFilterBlockReason(t *testing.T) {
	filter := NewActivityFilter([]string{"strength_training"})

	reason, blocked := filter.BlockReason("Strength_Training")
	if !blocked {
		t.Fatal("expected type to be blocked")
	}
	if reason != "blocked_type:strength_training" {
		t.Errorf("reason = %q, want %q", reason, "blocked_type:strength_training")
	}

	if _, blocked := filter.BlockReason("running"); blocked {
		t.Error("running should not be blocked")
	}
}

func TestActivityFilterEmptyBlockList(t *testing.T) {
	filter := NewActivityFilter(nil)
	if !filter.ShouldSync("strength_training") {
		t.Error("empty block list should allow everything")
	}
}
