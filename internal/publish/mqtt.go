// internal/publish/mqtt.go
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/ColonelBlimp/alarmdetect/internal/config"
	"github.com/ColonelBlimp/alarmdetect/internal/event"
	"github.com/ColonelBlimp/alarmdetect/internal/logger"
)

var (
	// ErrConnectTimeout indicates the broker did not answer in time
	ErrConnectTimeout = errors.New("timed out connecting to MQTT broker")
)

const (
	payloadOn        = "ON"
	payloadOff       = "OFF"
	payloadOnline    = "online"
	payloadOffline   = "offline"
	publishQoS       = 1
	disconnectQuiets = 250 // milliseconds granted to in-flight messages
)

// MQTTPublisher publishes alarm states over MQTT with Home Assistant
// discovery, so detected alarms appear as binary sensors without manual
// configuration on the Home Assistant side.
type MQTTPublisher struct {
	settings   config.MQTTSettings
	deviceName string
	profiles   []config.Profile
	client     mqtt.Client
}

// NewMQTT creates an MQTT publisher for the given profiles.
func NewMQTT(settings config.MQTTSettings, deviceName string, profiles []config.Profile) *MQTTPublisher {
	return &MQTTPublisher{
		settings:   settings,
		deviceName: deviceName,
		profiles:   profiles,
	}
}

// Connect establishes the broker session. On every (re)connect the publisher
// announces availability, re-publishes discovery configs and resets all
// sensors to OFF so Home Assistant never shows "unknown".
func (p *MQTTPublisher) Connect(timeout time.Duration) error {
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", p.settings.Host, p.settings.Port)).
		SetClientID(fmt.Sprintf("%s-%s", p.deviceName, uuid.NewString()[:8])).
		SetWill(p.availabilityTopic(), payloadOffline, publishQoS, true).
		SetAutoReconnect(true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.L().Warnw("MQTT connection lost", "error", err)
		})

	if p.settings.Username != "" {
		opts.SetUsername(p.settings.Username)
		opts.SetPassword(p.settings.Password)
	}

	p.client = mqtt.NewClient(opts)

	token := p.client.Connect()
	if !token.WaitTimeout(timeout) {
		return ErrConnectTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

// Run consumes events until the channel closes or ctx is cancelled.
func (p *MQTTPublisher) Run(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if sc, isState := ev.(event.AlarmStateChanged); isState {
				p.publishState(sc)
			} else {
				logEvent(ev)
			}
		}
	}
}

// Close announces offline availability and disconnects.
func (p *MQTTPublisher) Close() {
	if p.client == nil {
		return
	}
	p.client.Publish(p.availabilityTopic(), publishQoS, true, payloadOffline)
	p.client.Disconnect(disconnectQuiets)
}

func (p *MQTTPublisher) onConnect(mqtt.Client) {
	logger.L().Infow("connected to MQTT broker",
		"host", p.settings.Host, "port", p.settings.Port)

	p.client.Publish(p.availabilityTopic(), publishQoS, true, payloadOnline)

	for _, profile := range p.profiles {
		payload, err := p.discoveryPayload(profile)
		if err != nil {
			logger.L().Errorw("building discovery payload", "profile", profile.Name, "error", err)
			continue
		}
		p.client.Publish(p.discoveryTopic(profile), publishQoS, true, payload)
		p.client.Publish(p.stateTopic(profile.Name), publishQoS, false, payloadOff)
	}
}

func (p *MQTTPublisher) publishState(sc event.AlarmStateChanged) {
	payload := payloadOff
	if sc.On {
		payload = payloadOn
	}
	logger.L().Infow("publishing alarm state",
		"profile", sc.Profile, "state", payload)

	token := p.client.Publish(p.stateTopic(sc.Profile), publishQoS, false, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			logger.L().Errorw("publishing alarm state", "profile", sc.Profile, "error", err)
		}
	}()
}

func (p *MQTTPublisher) availabilityTopic() string {
	return fmt.Sprintf("%s/%s/availability", p.settings.BaseTopic, p.deviceName)
}

func (p *MQTTPublisher) stateTopic(profile string) string {
	return fmt.Sprintf("%s/%s/%s/state", p.settings.BaseTopic, p.deviceName, profile)
}

func (p *MQTTPublisher) discoveryTopic(profile config.Profile) string {
	return fmt.Sprintf("%s/binary_sensor/%s_%s/config",
		p.settings.DiscoveryPrefix, p.deviceName, profile.Name)
}

// discoveryPayload builds the Home Assistant MQTT discovery config for one
// profile's binary sensor.
// Reference: https://www.home-assistant.io/integrations/mqtt/#discovery
func (p *MQTTPublisher) discoveryPayload(profile config.Profile) ([]byte, error) {
	deviceClass := "smoke"
	label := "Smoke"
	if profile.AlarmType == "co" {
		deviceClass = "gas"
		label = "CO"
	}

	cfg := map[string]any{
		"name":                  fmt.Sprintf("%s Alarm Detector", label),
		"unique_id":             fmt.Sprintf("%s_%s_alarm", p.deviceName, profile.Name),
		"device_class":          deviceClass,
		"state_topic":           p.stateTopic(profile.Name),
		"availability_topic":    p.availabilityTopic(),
		"payload_on":            payloadOn,
		"payload_off":           payloadOff,
		"payload_available":     payloadOnline,
		"payload_not_available": payloadOffline,
		"qos":                   publishQoS,
		"device": map[string]any{
			"identifiers":  []string{p.deviceName},
			"name":         fmt.Sprintf("Acoustic %s Alarm Detector", label),
			"model":        "Acoustic DSP Detector",
			"manufacturer": "alarmdetect",
		},
	}
	return json.Marshal(cfg)
}
