// internal/publish/rest.go
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ColonelBlimp/alarmdetect/internal/event"
	"github.com/ColonelBlimp/alarmdetect/internal/logger"
)

var (
	// ErrNoToken indicates no Home Assistant API token was found
	ErrNoToken = errors.New("no Home Assistant API token available")
)

const (
	supervisorBaseURL = "http://supervisor/core/api"
	restTimeout       = 5 * time.Second
)

// RESTPublisher posts alarm states straight to the Home Assistant REST API.
// Used when running as a supervised add-on without an MQTT broker; the
// supervisor injects the token into the environment.
type RESTPublisher struct {
	baseURL    string
	token      string
	deviceName string
	client     *http.Client
}

// NewREST creates a REST publisher. With an empty token the supervisor
// environment (SUPERVISOR_TOKEN, then HASSIO_TOKEN) is consulted.
func NewREST(deviceName, token string) (*RESTPublisher, error) {
	if token == "" {
		token = os.Getenv("SUPERVISOR_TOKEN")
	}
	if token == "" {
		token = os.Getenv("HASSIO_TOKEN")
	}
	if token == "" {
		return nil, ErrNoToken
	}

	return &RESTPublisher{
		baseURL:    supervisorBaseURL,
		token:      token,
		deviceName: deviceName,
		client:     &http.Client{Timeout: restTimeout},
	}, nil
}

// Run consumes events until the channel closes or ctx is cancelled.
func (r *RESTPublisher) Run(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if sc, isState := ev.(event.AlarmStateChanged); isState {
				if err := r.postState(ctx, sc); err != nil {
					logger.L().Errorw("posting state to Home Assistant",
						"profile", sc.Profile, "error", err)
				}
			} else {
				logEvent(ev)
			}
		}
	}
}

// TestConnection verifies the token against the API config endpoint.
func (r *RESTPublisher) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/config", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("reach Home Assistant API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Home Assistant API returned status %d", resp.StatusCode)
	}
	return nil
}

func (r *RESTPublisher) postState(ctx context.Context, sc event.AlarmStateChanged) error {
	state := "off"
	if sc.On {
		state = "on"
	}

	deviceClass := "smoke"
	if sc.AlarmType == "co" {
		deviceClass = "gas"
	}

	body, err := json.Marshal(map[string]any{
		"state": state,
		"attributes": map[string]any{
			"device_class":  deviceClass,
			"friendly_name": fmt.Sprintf("%s %s alarm", r.deviceName, sc.AlarmType),
		},
	})
	if err != nil {
		return err
	}

	entityID := fmt.Sprintf("binary_sensor.%s_%s", r.deviceName, sc.Profile)
	url := fmt.Sprintf("%s/states/%s", r.baseURL, entityID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("state update rejected with status %d", resp.StatusCode)
	}

	logger.L().Infow("state posted to Home Assistant",
		"entity_id", entityID, "state", state)
	return nil
}
