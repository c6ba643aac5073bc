package strava

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestAuthorizationURL(t *testing.T) {
	client := NewClient("123", "secret")
	raw := client.AuthorizationURL("http://localhost:8000/callback", "state-token")

	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid URL: %v", err)
	}
	q := parsed.Query()
	if q.Get("client_id") != "123" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("scope") != "activity:read_all,activity:write" {
		t.Errorf("scope = %q", q.Get("scope"))
	}
	if q.Get("state") != "state-token" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q", q.Get("response_type"))
	}
}

func TestExchangeCode(t *testing.T) {
	ctx := context.Background()
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		r.ParseForm()
		if r.FormValue("grant_type") != "authorization_code" || r.FormValue("code") != "abc" {
			t.Errorf("unexpected form %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access",
			"refresh_token": "refresh",
			"expires_at":    time.Now().Add(6 * time.Hour).Unix(),
			"athlete":       map[string]interface{}{"id": 42},
		})
	}))
	defer auth.Close()

	client := NewClient("123", "secret", WithAuthBaseURL(auth.URL))
	token, err := client.ExchangeCode(ctx, "abc")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if token.AccessToken != "access" || token.RefreshToken != "refresh" {
		t.Errorf("token = %+v", token)
	}
	if token.AthleteID == nil || *token.AthleteID != 42 {
		t.Errorf("AthleteID = %v, want 42", token.AthleteID)
	}
}

func TestRefreshTokenErrorStatus(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"invalid grant"}`))
	}))
	defer auth.Close()

	client := NewClient("123", "secret", WithAuthBaseURL(auth.URL))
	if _, err := client.RefreshToken(context.Background(), "dead"); err == nil {
		t.Fatal("expected error on HTTP 400")
	}
}

func TestUploadActivity(t *testing.T) {
	ctx := context.Background()
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/uploads" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("not multipart: %v", err)
		}
		if r.FormValue("data_type") != "fit" {
			t.Errorf("data_type = %q", r.FormValue("data_type"))
		}
		if r.FormValue("external_id") != "garmin_12345" {
			t.Errorf("external_id = %q", r.FormValue("external_id"))
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()
		if !strings.HasSuffix(header.Filename, ".fit") {
			t.Errorf("filename = %q", header.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"id": 777, "status": "processing"})
	}))
	defer api.Close()

	client := NewClient("123", "secret", WithBaseURL(api.URL))
	client.SetAccessToken("access")
	status, err := client.UploadActivity(ctx, []byte("fit data"), "garmin_12345", "Morning Run")
	if err != nil {
		t.Fatalf("UploadActivity() error = %v", err)
	}
	if status.ID != 777 {
		t.Errorf("upload id = %d, want 777", status.ID)
	}
}

func TestGetActivitiesAfterParam(t *testing.T) {
	after := time.Unix(1756000000, 0)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("after") != "1756000000" {
			t.Errorf("after = %q", r.URL.Query().Get("after"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 1, "type": "Ride", "trainer": true}]`))
	}))
	defer api.Close()

	client := NewClient("123", "secret", WithBaseURL(api.URL))
	activities, err := client.GetActivities(context.Background(), after, 20)
	if err != nil {
		t.Fatalf("GetActivities() error = %v", err)
	}
	if len(activities) != 1 || !activities[0].Trainer {
		t.Errorf("activities = %+v", activities)
	}
}
