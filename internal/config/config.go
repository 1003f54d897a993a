// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	AppName       = "alarmdetect"
	ConfigType    = "yaml"
	DefaultConfig = `# Acoustic Alarm Detector Configuration

# Device identity (used for MQTT topics and Home Assistant entity ids)
device_name: "alarm_detector"

# Audio capture
device_index: -1        # -1 for default capture device
sample_rate: 44100      # Audio sample rate in Hz
channels: 1             # Number of channels (1=mono)
block_size: 4096        # Samples per analysis frame

# Logging
log_level: "info"       # debug, info, warn, error

# State publishing
mqtt:
  enabled: false
  host: "localhost"
  port: 1883
  username: ""
  password: ""
  discovery_prefix: "homeassistant"
  base_topic: "alarmdetect"

# Alarm profiles. Each profile runs an independent detection pipeline over
# the same audio stream.
profiles:
  - name: "smoke"
    alarm_type: "smoke"       # smoke (T3 code) or co (T4 code)
    target_frequency: 3150    # Alarm tone frequency in Hz
    frequency_tolerance: 250  # Acceptable deviation in Hz
    min_magnitude: 0.15       # Detection threshold (0.0-1.0)
    search_range_min: 2000    # Lower edge of scanned band in Hz
    search_range_max: 4500    # Upper edge of scanned band in Hz
    beep_duration_min: 0.1    # Seconds
    beep_duration_max: 1.5
    pause_duration_min: 0.05
    pause_duration_max: 2.5
    debounce_frames: 2        # Consecutive frames to confirm a tone flip
    confirmation_cycles: 2    # Full cycles required before arming
    beep_count: 0             # 0 = derive from alarm_type (3 smoke, 4 co)
    auto_clear_seconds: 10    # Clear the alarm after this long without a cycle
`
)

// Settings holds all application configuration.
type Settings struct {
	// Device identity
	DeviceName string `mapstructure:"device_name"`

	// Audio capture
	DeviceIndex int     `mapstructure:"device_index"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Channels    int     `mapstructure:"channels"`
	BlockSize   int     `mapstructure:"block_size"`

	// Logging
	LogLevel string `mapstructure:"log_level"`

	// State publishing
	MQTT MQTTSettings `mapstructure:"mqtt"`

	// Alarm profiles
	Profiles []Profile `mapstructure:"profiles"`
}

// MQTTSettings configures the MQTT publisher.
type MQTTSettings struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
	BaseTopic       string `mapstructure:"base_topic"`
}

// Profile configures one alarm detection pipeline.
type Profile struct {
	Name               string  `mapstructure:"name"`
	AlarmType          string  `mapstructure:"alarm_type"`
	TargetFrequency    float64 `mapstructure:"target_frequency"`
	FrequencyTolerance float64 `mapstructure:"frequency_tolerance"`
	MinMagnitude       float64 `mapstructure:"min_magnitude"`
	SearchRangeMin     float64 `mapstructure:"search_range_min"`
	SearchRangeMax     float64 `mapstructure:"search_range_max"`
	BeepDurationMin    float64 `mapstructure:"beep_duration_min"`
	BeepDurationMax    float64 `mapstructure:"beep_duration_max"`
	PauseDurationMin   float64 `mapstructure:"pause_duration_min"`
	PauseDurationMax   float64 `mapstructure:"pause_duration_max"`
	DebounceFrames     int     `mapstructure:"debounce_frames"`
	ConfirmationCycles int     `mapstructure:"confirmation_cycles"`
	BeepCount          int     `mapstructure:"beep_count"`
	AutoClearSeconds   float64 `mapstructure:"auto_clear_seconds"`
}

// Beeps returns the beeps per cycle, deriving the standard code from the
// alarm type when beep_count is left at 0: T3 (3 beeps) for smoke, T4 (4)
// for CO.
func (p Profile) Beeps() int {
	if p.BeepCount > 0 {
		return p.BeepCount
	}
	if p.AlarmType == "co" {
		return 4
	}
	return 3
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/alarmdetect/
func Init() error {
	viper.SetDefault("device_name", "alarm_detector")
	viper.SetDefault("device_index", -1)
	viper.SetDefault("sample_rate", 44100)
	viper.SetDefault("channels", 1)
	viper.SetDefault("block_size", 4096)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.discovery_prefix", "homeassistant")
	viper.SetDefault("mqtt.base_topic", "alarmdetect")

	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config found - create default in ~/.config/alarmdetect/
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings.
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges.
func (s *Settings) Validate() error {
	var errs []error

	if s.DeviceName == "" {
		errs = append(errs, errors.New("device_name must not be empty"))
	}
	if s.SampleRate < 8000 || s.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 8000 and 192000 Hz, got %v", s.SampleRate))
	}
	if s.Channels < 1 || s.Channels > 2 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 2, got %d", s.Channels))
	}
	if s.BlockSize < 256 || s.BlockSize > 16384 {
		errs = append(errs, fmt.Errorf("block_size must be between 256 and 16384, got %d", s.BlockSize))
	}
	// Power of 2 keeps the frame period predictable and the filter bank small
	if s.BlockSize&(s.BlockSize-1) != 0 {
		errs = append(errs, fmt.Errorf("block_size should be a power of 2, got %d", s.BlockSize))
	}

	if s.MQTT.Enabled {
		if s.MQTT.Host == "" {
			errs = append(errs, errors.New("mqtt.host must not be empty when mqtt is enabled"))
		}
		if s.MQTT.Port < 1 || s.MQTT.Port > 65535 {
			errs = append(errs, fmt.Errorf("mqtt.port must be between 1 and 65535, got %d", s.MQTT.Port))
		}
	}

	if len(s.Profiles) == 0 {
		errs = append(errs, errors.New("at least one profile must be configured"))
	}

	seen := make(map[string]bool, len(s.Profiles))
	for i, p := range s.Profiles {
		if err := p.validate(s.SampleRate); err != nil {
			errs = append(errs, fmt.Errorf("profile %d (%q): %w", i, p.Name, err))
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("duplicate profile name %q", p.Name))
		}
		seen[p.Name] = true
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (p Profile) validate(sampleRate float64) error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if p.AlarmType != "smoke" && p.AlarmType != "co" {
		errs = append(errs, fmt.Errorf("alarm_type must be smoke or co, got %q", p.AlarmType))
	}
	if p.FrequencyTolerance <= 0 {
		errs = append(errs, fmt.Errorf("frequency_tolerance must be positive, got %v", p.FrequencyTolerance))
	}
	if p.MinMagnitude < 0 || p.MinMagnitude > 1 {
		errs = append(errs, fmt.Errorf("min_magnitude must be between 0.0 and 1.0, got %v", p.MinMagnitude))
	}
	if p.SearchRangeMin <= 0 || p.SearchRangeMin >= p.SearchRangeMax {
		errs = append(errs, fmt.Errorf("search range %v-%v Hz is invalid", p.SearchRangeMin, p.SearchRangeMax))
	}
	if p.TargetFrequency < p.SearchRangeMin || p.TargetFrequency > p.SearchRangeMax {
		errs = append(errs, fmt.Errorf("target_frequency %v Hz outside search range %v-%v Hz",
			p.TargetFrequency, p.SearchRangeMin, p.SearchRangeMax))
	}
	if sampleRate > 0 && p.SearchRangeMax >= sampleRate/2 {
		errs = append(errs, fmt.Errorf("search_range_max (%v Hz) must be less than Nyquist frequency (%v Hz)",
			p.SearchRangeMax, sampleRate/2))
	}
	if p.BeepDurationMin <= 0 || p.BeepDurationMin > p.BeepDurationMax {
		errs = append(errs, fmt.Errorf("beep duration bounds %v-%v s are invalid", p.BeepDurationMin, p.BeepDurationMax))
	}
	if p.PauseDurationMin <= 0 || p.PauseDurationMin > p.PauseDurationMax {
		errs = append(errs, fmt.Errorf("pause duration bounds %v-%v s are invalid", p.PauseDurationMin, p.PauseDurationMax))
	}
	if p.DebounceFrames < 1 || p.DebounceFrames > 50 {
		errs = append(errs, fmt.Errorf("debounce_frames must be between 1 and 50, got %d", p.DebounceFrames))
	}
	if p.ConfirmationCycles < 1 {
		errs = append(errs, fmt.Errorf("confirmation_cycles must be at least 1, got %d", p.ConfirmationCycles))
	}
	if p.BeepCount < 0 || p.BeepCount > 8 {
		errs = append(errs, fmt.Errorf("beep_count must be between 0 and 8, got %d", p.BeepCount))
	}
	if p.AutoClearSeconds <= 0 {
		errs = append(errs, fmt.Errorf("auto_clear_seconds must be positive, got %v", p.AutoClearSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
