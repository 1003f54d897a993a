// internal/publish/rest_test.go
package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ColonelBlimp/alarmdetect/internal/event"
)

func TestNewREST_NoToken(t *testing.T) {
	t.Setenv("SUPERVISOR_TOKEN", "")
	t.Setenv("HASSIO_TOKEN", "")

	if _, err := NewREST("alarm_detector", ""); err != ErrNoToken {
		t.Errorf("expected ErrNoToken, got: %v", err)
	}
}

func TestNewREST_TokenFromEnvironment(t *testing.T) {
	t.Setenv("SUPERVISOR_TOKEN", "env-token")

	r, err := NewREST("alarm_detector", "")
	if err != nil {
		t.Fatalf("NewREST failed: %v", err)
	}
	if r.token != "env-token" {
		t.Errorf("token = %q, want env-token", r.token)
	}
}

func TestREST_PostState(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		gotAuth = req.Header.Get("Authorization")
		_ = json.NewDecoder(req.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	r, err := NewREST("alarm_detector", "test-token")
	if err != nil {
		t.Fatalf("NewREST failed: %v", err)
	}
	r.baseURL = server.URL

	sc := event.AlarmStateChanged{
		Profile:   "smoke",
		AlarmType: "smoke",
		On:        true,
		Timestamp: time.Unix(1000, 0),
	}
	if err := r.postState(context.Background(), sc); err != nil {
		t.Fatalf("postState failed: %v", err)
	}

	if gotPath != "/states/binary_sensor.alarm_detector_smoke" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotBody["state"] != "on" {
		t.Errorf("state = %v, want on", gotBody["state"])
	}
	attrs, ok := gotBody["attributes"].(map[string]any)
	if !ok || attrs["device_class"] != "smoke" {
		t.Errorf("attributes = %v, want smoke device_class", gotBody["attributes"])
	}
}

func TestREST_PostStateRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	r, err := NewREST("alarm_detector", "bad-token")
	if err != nil {
		t.Fatalf("NewREST failed: %v", err)
	}
	r.baseURL = server.URL

	sc := event.AlarmStateChanged{Profile: "smoke", AlarmType: "smoke", On: false}
	if err := r.postState(context.Background(), sc); err == nil {
		t.Error("expected error for rejected state update")
	}
}

func TestREST_TestConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/config" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r, err := NewREST("alarm_detector", "test-token")
	if err != nil {
		t.Fatalf("NewREST failed: %v", err)
	}
	r.baseURL = server.URL

	if err := r.TestConnection(context.Background()); err != nil {
		t.Errorf("TestConnection failed: %v", err)
	}
}

func TestLogPublisher_RunDrainsUntilClose(t *testing.T) {
	events := make(chan event.Event, 2)
	events <- event.CycleCompleted{Profile: "smoke", Count: 1, Timestamp: time.Unix(1000, 0)}
	events <- event.AlarmStateChanged{Profile: "smoke", AlarmType: "smoke", On: true}
	close(events)

	done := make(chan struct{})
	go func() {
		LogPublisher{}.Run(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after channel close")
	}
}

func TestLogPublisher_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan event.Event)

	done := make(chan struct{})
	go func() {
		LogPublisher{}.Run(ctx, events)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}
