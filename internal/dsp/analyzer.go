// internal/dsp/analyzer.go
package dsp

import (
	"errors"
	"time"
)

var (
	// ErrInvalidTolerance indicates frequency tolerance must be positive
	ErrInvalidTolerance = errors.New("frequency tolerance must be positive")
	// ErrInvalidMagnitudeFloor indicates the magnitude threshold must be between 0 and 1
	ErrInvalidMagnitudeFloor = errors.New("magnitude threshold must be between 0.0 and 1.0")
	// ErrTargetOutsideRange indicates the target frequency must lie within the search range
	ErrTargetOutsideRange = errors.New("target frequency must lie within the search range")
)

// noiseFloor is the magnitude below which a frame is treated as carrying no
// resolvable peak (near-zero energy).
const noiseFloor = 1e-6

// Frame is one fixed-size block of capture samples with its capture timestamp.
// The timestamp comes from a monotonic clock so downstream duration arithmetic
// is immune to wall-clock adjustments.
type Frame struct {
	Samples    []float32
	SampleRate float64
	Timestamp  time.Time
}

// Reading is the spectral summary of one frame.
type Reading struct {
	// Frequency is the dominant frequency in the search range, in Hz
	Frequency float64
	// Magnitude is the normalized magnitude of that frequency (0.0-1.0)
	Magnitude float64
	// Timestamp is the capture time of the analyzed frame
	Timestamp time.Time
	// TargetPresent is true when the dominant frequency is within tolerance of
	// the target and the magnitude clears the configured threshold
	TargetPresent bool
}

// AnalyzerConfig holds configuration for frame analysis.
// All values come from the profile section of the config file.
type AnalyzerConfig struct {
	// TargetFrequency is the alarm tone frequency in Hz (from config: target_frequency)
	TargetFrequency float64
	// FrequencyTolerance is the acceptable deviation in Hz (from config: frequency_tolerance)
	FrequencyTolerance float64
	// MinMagnitude is the detection threshold 0.0-1.0 (from config: min_magnitude)
	MinMagnitude float64
	// SearchRangeMin is the lower edge of the scanned band in Hz (from config: search_range_min)
	SearchRangeMin float64
	// SearchRangeMax is the upper edge of the scanned band in Hz (from config: search_range_max)
	SearchRangeMax float64
	// SampleRate is the audio sample rate in Hz (from config: sample_rate)
	SampleRate float64
	// BlockSize is the number of samples per frame (from config: block_size)
	BlockSize int
}

// Analyzer converts one audio frame into a frequency reading. It is stateless
// across frames: every frame yields exactly one reading and there is no error
// path per frame.
type Analyzer struct {
	config AnalyzerConfig
	bank   *Bank
}

// NewAnalyzer creates a frame analyzer with the given configuration.
func NewAnalyzer(cfg AnalyzerConfig) (*Analyzer, error) {
	if cfg.FrequencyTolerance <= 0 {
		return nil, ErrInvalidTolerance
	}
	if cfg.MinMagnitude < 0 || cfg.MinMagnitude > 1 {
		return nil, ErrInvalidMagnitudeFloor
	}
	// Range ordering must be checked before containment: with an inverted
	// range no target could ever satisfy both bounds.
	if cfg.SearchRangeMin >= cfg.SearchRangeMax {
		return nil, ErrInvalidSearchRange
	}
	if cfg.TargetFrequency < cfg.SearchRangeMin || cfg.TargetFrequency > cfg.SearchRangeMax {
		return nil, ErrTargetOutsideRange
	}

	bank, err := NewBank(cfg.SearchRangeMin, cfg.SearchRangeMax, cfg.SampleRate, cfg.BlockSize)
	if err != nil {
		return nil, err
	}

	return &Analyzer{config: cfg, bank: bank}, nil
}

// Analyze produces the frequency reading for one frame. Frames too short for
// the block size or with near-zero energy report magnitude 0 and no target.
func (a *Analyzer) Analyze(f Frame) Reading {
	frequency, magnitude := a.bank.Dominant(f.Samples)

	if magnitude < noiseFloor {
		return Reading{Timestamp: f.Timestamp}
	}

	offset := frequency - a.config.TargetFrequency
	if offset < 0 {
		offset = -offset
	}

	return Reading{
		Frequency: frequency,
		Magnitude: magnitude,
		Timestamp: f.Timestamp,
		TargetPresent: offset <= a.config.FrequencyTolerance &&
			magnitude >= a.config.MinMagnitude,
	}
}

// FramePeriod returns the duration of one frame at the configured rate.
func (a *Analyzer) FramePeriod() time.Duration {
	seconds := float64(a.config.BlockSize) / a.config.SampleRate
	return time.Duration(seconds * float64(time.Second))
}

// Config returns the current configuration.
func (a *Analyzer) Config() AnalyzerConfig {
	return a.config
}
