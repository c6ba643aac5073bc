package strava

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseDuplicateID(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"activity pattern", "duplicate of activity 9876543210", "9876543210"},
		{"activity with colon", "duplicate of Activity: 123456", "123456"},
		{"id pattern", "duplicate upload, id: 555777", "555777"},
		{"long number fallback", "already uploaded (1234567890)", "1234567890"},
		{"activity pattern wins over id", "activity 111 with id 222", "111"},
		{"short bare number does not match", "duplicate entry 42", ""},
		{"no id at all", "duplicate of an existing upload", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseDuplicateID(tt.message); got != tt.want {
				t.Errorf("ParseDuplicateID(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	activityID := int64(4242)

	tests := []struct {
		name          string
		status        UploadStatus
		wantTerminal  bool
		wantSuccess   bool
		wantDuplicate bool
	}{
		{
			name:         "still processing",
			status:       UploadStatus{Status: "Your activity is still being processed."},
			wantTerminal: false,
		},
		{
			name:         "success with activity id",
			status:       UploadStatus{ActivityID: &activityID},
			wantTerminal: true,
			wantSuccess:  true,
		},
		{
			name:          "duplicate counts as success",
			status:        UploadStatus{Error: "garmin_12345.fit duplicate of activity 9876543210"},
			wantTerminal:  true,
			wantSuccess:   true,
			wantDuplicate: true,
		},
		{
			name:         "error is terminal failure",
			status:       UploadStatus{Error: "malformed file"},
			wantTerminal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, terminal := classifyStatus(&tt.status)
			if terminal != tt.wantTerminal {
				t.Fatalf("terminal = %v, want %v", terminal, tt.wantTerminal)
			}
			if !terminal {
				return
			}
			if result.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", result.Success, tt.wantSuccess)
			}
			if result.IsDuplicate != tt.wantDuplicate {
				t.Errorf("IsDuplicate = %v, want %v", result.IsDuplicate, tt.wantDuplicate)
			}
			if !tt.wantSuccess && result.Error == "" {
				t.Error("failure result should carry an error message")
			}
		})
	}
}

// fakeUploadAPI returns a scripted sequence of poll statuses.
type fakeUploadAPI struct {
	uploadErr error
	statuses  []UploadStatus
	polls     int
}

func (f *fakeUploadAPI) UploadActivity(ctx context.Context, fitBytes []byte, externalID, name string) (*UploadStatus, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	s := f.statuses[0]
	return &s, nil
}

func (f *fakeUploadAPI) GetUpload(ctx context.Context, uploadID int64) (*UploadStatus, error) {
	f.polls++
	idx := f.polls
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	s := f.statuses[idx]
	return &s, nil
}

func TestUploadFitFile(t *testing.T) {
	ctx := context.Background()
	activityID := int64(777)

	t.Run("polls until success", func(t *testing.T) {
		api := &fakeUploadAPI{statuses: []UploadStatus{
			{ID: 1, Status: "processing"},
			{ID: 1, Status: "processing"},
			{ID: 1, ActivityID: &activityID},
		}}
		result := UploadFitFile(ctx, api, []byte("fit"), "garmin_1", "", time.Second, time.Millisecond)
		if !result.Success {
			t.Fatalf("expected success, got %+v", result)
		}
		if result.StravaActivityID != "777" {
			t.Errorf("StravaActivityID = %q, want 777", result.StravaActivityID)
		}
		if api.polls != 2 {
			t.Errorf("polls = %d, want 2", api.polls)
		}
	})

	t.Run("upload request failure", func(t *testing.T) {
		api := &fakeUploadAPI{uploadErr: errors.New("network down")}
		result := UploadFitFile(ctx, api, []byte("fit"), "garmin_2", "", time.Second, time.Millisecond)
		if result.Success {
			t.Fatal("expected failure")
		}
		if result.Error != "network down" {
			t.Errorf("Error = %q", result.Error)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		api := &fakeUploadAPI{statuses: []UploadStatus{{ID: 1, Status: "processing"}}}
		result := UploadFitFile(ctx, api, []byte("fit"), "garmin_3", "", 20*time.Millisecond, time.Millisecond)
		if result.Success {
			t.Fatal("expected timeout failure")
		}
		if !strings.Contains(result.Error, "timed out after") {
			t.Errorf("Error = %q, want timeout message", result.Error)
		}
	})

	t.Run("duplicate resolved to success", func(t *testing.T) {
		api := &fakeUploadAPI{statuses: []UploadStatus{
			{ID: 1, Status: "processing"},
			{ID: 1, Error: "garmin_12345.fit duplicate of activity 9999999999"},
		}}
		result := UploadFitFile(ctx, api, []byte("fit"), "garmin_12345", "", time.Second, time.Millisecond)
		if !result.Success || !result.IsDuplicate {
			t.Fatalf("expected duplicate success, got %+v", result)
		}
		if result.DuplicateID != "9999999999" {
			t.Errorf("DuplicateID = %q, want 9999999999", result.DuplicateID)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		api := &fakeUploadAPI{statuses: []UploadStatus{{ID: 1, Status: "processing"}}}
		result := UploadFitFile(cancelled, api, []byte("fit"), "garmin_4", "", time.Second, time.Minute)
		if result.Success {
			t.Fatal("expected failure on cancelled context")
		}
	})
}
