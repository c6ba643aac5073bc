package strava

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseGearRules(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []GearRule
	}{
		{"empty", "", nil},
		{"single rule", "trainer:b1234", []GearRule{{Condition: "trainer", GearID: "b1234"}}},
		{
			"multiple rules with whitespace",
			" trainer:b1234 , outdoor:b5678 ",
			[]GearRule{{Condition: "trainer", GearID: "b1234"}, {Condition: "outdoor", GearID: "b5678"}},
		},
		{"malformed entry skipped", "trainer:b1234,nonsense,other:", []GearRule{{Condition: "trainer", GearID: "b1234"}}},
		{"only malformed", "nocolon", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseGearRules(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d rules, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("rule %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// fakeGearAPI records gear updates against a fixed activity list.
type fakeGearAPI struct {
	activities []SummaryActivity
	fetchErr   error
	updateErr  error
	updates    map[int64]string
}

func (f *fakeGearAPI) GetActivities(ctx context.Context, after time.Time, limit int) ([]SummaryActivity, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.activities, nil
}

func (f *fakeGearAPI) UpdateActivityGear(ctx context.Context, activityID int64, gearID string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updates == nil {
		f.updates = make(map[int64]string)
	}
	f.updates[activityID] = gearID
	return nil
}

func TestApplyGearRules(t *testing.T) {
	ctx := context.Background()
	rules := []GearRule{{Condition: "trainer", GearID: "b1234"}}

	t.Run("trainer ride gets gear", func(t *testing.T) {
		api := &fakeGearAPI{activities: []SummaryActivity{
			{ID: 1, Type: "Ride", Trainer: true},
			{ID: 2, Type: "Ride", Trainer: false},
			{ID: 3, Type: "Run", Trainer: true},
		}}
		result := ApplyGearRules(ctx, api, rules, time.Time{}, 20)
		if result.Checked != 3 || result.Updated != 1 {
			t.Fatalf("result = %+v, want checked=3 updated=1", result)
		}
		if api.updates[1] != "b1234" {
			t.Errorf("activity 1 gear = %q, want b1234", api.updates[1])
		}
	})

	t.Run("already correct gear untouched", func(t *testing.T) {
		api := &fakeGearAPI{activities: []SummaryActivity{
			{ID: 1, Type: "Ride", Trainer: true, GearID: "b1234"},
		}}
		result := ApplyGearRules(ctx, api, rules, time.Time{}, 20)
		if result.AlreadyCorrect != 1 || result.Updated != 0 {
			t.Fatalf("result = %+v, want alreadyCorrect=1", result)
		}
		if len(api.updates) != 0 {
			t.Error("no update calls expected")
		}
	})

	t.Run("fetch failure flagged with zero counters", func(t *testing.T) {
		api := &fakeGearAPI{fetchErr: errors.New("rate limited")}
		result := ApplyGearRules(ctx, api, rules, time.Time{}, 20)
		if !result.FetchFailed {
			t.Fatal("fetch failure must be flagged")
		}
		if result.Checked != 0 || result.Updated != 0 || result.Errors != 0 {
			t.Fatalf("result = %+v, want zero counters", result)
		}
	})

	t.Run("update failure counted and pass continues", func(t *testing.T) {
		api := &fakeGearAPI{
			activities: []SummaryActivity{
				{ID: 1, Type: "Ride", Trainer: true},
				{ID: 2, Type: "Ride", Trainer: true},
			},
			updateErr: errors.New("forbidden"),
		}
		result := ApplyGearRules(ctx, api, rules, time.Time{}, 20)
		if result.Errors != 2 || result.Checked != 2 {
			t.Fatalf("result = %+v, want errors=2 checked=2", result)
		}
	})

	t.Run("unknown condition never matches", func(t *testing.T) {
		api := &fakeGearAPI{activities: []SummaryActivity{{ID: 1, Type: "Ride", Trainer: true}}}
		result := ApplyGearRules(ctx, api, []GearRule{{Condition: "mystery", GearID: "b9"}}, time.Time{}, 20)
		if result.Updated != 0 {
			t.Fatalf("result = %+v, want no updates", result)
		}
	})
}
