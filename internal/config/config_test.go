// internal/config/config_test.go
package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func validProfile() Profile {
	return Profile{
		Name:               "smoke",
		AlarmType:          "smoke",
		TargetFrequency:    3150,
		FrequencyTolerance: 250,
		MinMagnitude:       0.15,
		SearchRangeMin:     2000,
		SearchRangeMax:     4500,
		BeepDurationMin:    0.1,
		BeepDurationMax:    1.5,
		PauseDurationMin:   0.05,
		PauseDurationMax:   2.5,
		DebounceFrames:     2,
		ConfirmationCycles: 2,
		AutoClearSeconds:   10,
	}
}

func validSettings() Settings {
	return Settings{
		DeviceName:  "alarm_detector",
		DeviceIndex: -1,
		SampleRate:  44100,
		Channels:    1,
		BlockSize:   4096,
		LogLevel:    "info",
		MQTT: MQTTSettings{
			Host:            "localhost",
			Port:            1883,
			DiscoveryPrefix: "homeassistant",
			BaseTopic:       "alarmdetect",
		},
		Profiles: []Profile{validProfile()},
	}
}

func TestDefaultConfig_ParsesAndValidates(t *testing.T) {
	v := viper.New()
	v.SetConfigType(ConfigType)
	if err := v.ReadConfig(strings.NewReader(DefaultConfig)); err != nil {
		t.Fatalf("default config does not parse: %v", err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		t.Fatalf("default config does not unmarshal: %v", err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}

	if s.DeviceName != "alarm_detector" {
		t.Errorf("device_name = %q, want alarm_detector", s.DeviceName)
	}
	if s.SampleRate != 44100 || s.BlockSize != 4096 {
		t.Errorf("audio settings = %v/%d, want 44100/4096", s.SampleRate, s.BlockSize)
	}
	if len(s.Profiles) != 1 || s.Profiles[0].Name != "smoke" {
		t.Fatalf("profiles = %+v, want one smoke profile", s.Profiles)
	}
	if s.MQTT.Enabled {
		t.Error("mqtt should be disabled by default")
	}
}

func TestSettings_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Settings)
		wantSub string
	}{
		{"empty device name", func(s *Settings) { s.DeviceName = "" }, "device_name"},
		{"sample rate too low", func(s *Settings) { s.SampleRate = 4000 }, "sample_rate"},
		{"too many channels", func(s *Settings) { s.Channels = 3 }, "channels"},
		{"block size too small", func(s *Settings) { s.BlockSize = 128 }, "block_size"},
		{"block size not power of 2", func(s *Settings) { s.BlockSize = 3000 }, "power of 2"},
		{"no profiles", func(s *Settings) { s.Profiles = nil }, "at least one profile"},
		{"duplicate profiles", func(s *Settings) {
			s.Profiles = append(s.Profiles, validProfile())
		}, "duplicate profile name"},
		{"mqtt enabled without host", func(s *Settings) {
			s.MQTT.Enabled = true
			s.MQTT.Host = ""
		}, "mqtt.host"},
		{"mqtt port out of range", func(s *Settings) {
			s.MQTT.Enabled = true
			s.MQTT.Port = 70000
		}, "mqtt.port"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := validSettings()
			tc.mutate(&s)

			err := s.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q does not mention %q", err.Error(), tc.wantSub)
			}
		})
	}
}

func TestSettings_ValidateCollectsAllErrors(t *testing.T) {
	s := validSettings()
	s.DeviceName = ""
	s.Channels = 5
	s.Profiles = nil

	err := s.Validate()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, want := range []string{"device_name", "channels", "at least one profile"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q missing %q", err.Error(), want)
		}
	}
}

func TestProfile_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Profile)
		wantSub string
	}{
		{"empty name", func(p *Profile) { p.Name = "" }, "name"},
		{"unknown alarm type", func(p *Profile) { p.AlarmType = "heat" }, "alarm_type"},
		{"zero tolerance", func(p *Profile) { p.FrequencyTolerance = 0 }, "frequency_tolerance"},
		{"magnitude above one", func(p *Profile) { p.MinMagnitude = 1.2 }, "min_magnitude"},
		{"inverted search range", func(p *Profile) {
			p.SearchRangeMin, p.SearchRangeMax = p.SearchRangeMax, p.SearchRangeMin
		}, "search range"},
		{"target outside range", func(p *Profile) { p.TargetFrequency = 1000 }, "target_frequency"},
		{"range above nyquist", func(p *Profile) {
			p.SearchRangeMax = 30000
			p.TargetFrequency = 3150
		}, "Nyquist"},
		{"inverted beep bounds", func(p *Profile) { p.BeepDurationMin = 2.0 }, "beep duration"},
		{"inverted pause bounds", func(p *Profile) { p.PauseDurationMin = 3.0 }, "pause duration"},
		{"zero debounce", func(p *Profile) { p.DebounceFrames = 0 }, "debounce_frames"},
		{"zero confirmation", func(p *Profile) { p.ConfirmationCycles = 0 }, "confirmation_cycles"},
		{"beep count too high", func(p *Profile) { p.BeepCount = 9 }, "beep_count"},
		{"zero auto clear", func(p *Profile) { p.AutoClearSeconds = 0 }, "auto_clear_seconds"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := validSettings()
			tc.mutate(&s.Profiles[0])

			err := s.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q does not mention %q", err.Error(), tc.wantSub)
			}
		})
	}
}

func TestProfile_Beeps(t *testing.T) {
	testCases := []struct {
		name      string
		alarmType string
		beepCount int
		want      int
	}{
		{"smoke derives T3", "smoke", 0, 3},
		{"co derives T4", "co", 0, 4},
		{"explicit count wins", "smoke", 5, 5},
		{"explicit count wins for co", "co", 2, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := Profile{AlarmType: tc.alarmType, BeepCount: tc.beepCount}
			if got := p.Beeps(); got != tc.want {
				t.Errorf("Beeps() = %d, want %d", got, tc.want)
			}
		})
	}
}
