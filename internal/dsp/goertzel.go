// internal/dsp/goertzel.go
package dsp

import (
	"errors"
	"math"
)

var (
	// ErrInvalidBlockSize indicates block size must be positive
	ErrInvalidBlockSize = errors.New("block size must be positive")
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidFrequency indicates frequency must be positive and below Nyquist
	ErrInvalidFrequency = errors.New("frequency must be positive and less than Nyquist frequency")
	// ErrInvalidSearchRange indicates the search range is empty or inverted
	ErrInvalidSearchRange = errors.New("search range minimum must be less than maximum")
	// ErrInsufficientSamples indicates not enough samples for the configured block size
	ErrInsufficientSamples = errors.New("insufficient samples for block size")
)

// Goertzel computes the DFT magnitude for a single frequency bin.
// More efficient than a full FFT when only a handful of bins matter,
// which is the case for alarm tones clustered around 3 kHz.
type Goertzel struct {
	frequency   float64
	blockSize   int
	coefficient float64 // Pre-computed: 2 * cos(2π * k / N)
	normalizer  float64 // Pre-computed: 2.0 / blockSize, full-scale sine reads ~1.0
}

// NewGoertzel creates a Goertzel filter for one frequency.
func NewGoertzel(frequency, sampleRate float64, blockSize int) (*Goertzel, error) {
	if blockSize <= 0 {
		return nil, ErrInvalidBlockSize
	}
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	nyquist := sampleRate / 2.0
	if frequency <= 0 || frequency >= nyquist {
		return nil, ErrInvalidFrequency
	}

	// Normalized frequency index: k = (frequency / sampleRate) * blockSize
	k := (frequency / sampleRate) * float64(blockSize)
	omega := (2.0 * math.Pi * k) / float64(blockSize)

	return &Goertzel{
		frequency:   frequency,
		blockSize:   blockSize,
		coefficient: 2.0 * math.Cos(omega),
		normalizer:  2.0 / float64(blockSize),
	}, nil
}

// Magnitude computes the normalized magnitude of the filter frequency in samples.
// For input normalized to -1.0..1.0, a pure full-scale sine at the filter
// frequency returns approximately 1.0.
func (g *Goertzel) Magnitude(samples []float32) (float64, error) {
	if len(samples) < g.blockSize {
		return 0, ErrInsufficientSamples
	}
	return g.magnitude(samples), nil
}

// magnitude is the core Goertzel iteration without bounds checking.
// Callers must ensure samples has at least blockSize elements.
func (g *Goertzel) magnitude(samples []float32) float64 {
	var s0, s1, s2 float64
	coeff := g.coefficient

	for i := 0; i < g.blockSize; i++ {
		s0 = float64(samples[i]) + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}

	// power = s1² + s2² - coefficient * s1 * s2
	power := s1*s1 + s2*s2 - coeff*s1*s2

	// Guard against floating point errors causing negative values
	if power < 0 {
		power = 0
	}

	return math.Sqrt(power) * g.normalizer
}

// Frequency returns the filter's center frequency in Hz.
func (g *Goertzel) Frequency() float64 {
	return g.frequency
}

// BlockSize returns the configured block size.
func (g *Goertzel) BlockSize() int {
	return g.blockSize
}

// Bank evaluates Goertzel filters at bin-spaced frequencies across a search
// range and reports the magnitude-dominant one. Restricting the scan to the
// plausible alarm band avoids false peaks from speech and music below it.
type Bank struct {
	filters   []*Goertzel
	blockSize int
}

// NewBank creates a filter bank covering [minHz, maxHz] with one filter per
// DFT bin (spacing sampleRate/blockSize).
func NewBank(minHz, maxHz, sampleRate float64, blockSize int) (*Bank, error) {
	if blockSize <= 0 {
		return nil, ErrInvalidBlockSize
	}
	if sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if minHz >= maxHz {
		return nil, ErrInvalidSearchRange
	}
	nyquist := sampleRate / 2.0
	if minHz <= 0 || maxHz >= nyquist {
		return nil, ErrInvalidFrequency
	}

	binWidth := sampleRate / float64(blockSize)
	var filters []*Goertzel
	for f := minHz; f <= maxHz; f += binWidth {
		g, err := NewGoertzel(f, sampleRate, blockSize)
		if err != nil {
			return nil, err
		}
		filters = append(filters, g)
	}

	return &Bank{filters: filters, blockSize: blockSize}, nil
}

// Dominant returns the frequency and magnitude of the strongest bin in the
// search range. Returns zeros if samples is shorter than the block size.
func (b *Bank) Dominant(samples []float32) (frequency, magnitude float64) {
	if len(samples) < b.blockSize {
		return 0, 0
	}

	for _, g := range b.filters {
		if m := g.magnitude(samples); m > magnitude {
			magnitude = m
			frequency = g.frequency
		}
	}
	return frequency, magnitude
}

// Size returns the number of filters in the bank.
func (b *Bank) Size() int {
	return len(b.filters)
}
