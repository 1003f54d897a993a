// internal/alarm/segment.go
package alarm

import (
	"errors"
	"time"

	"github.com/ColonelBlimp/alarmdetect/internal/dsp"
	"github.com/ColonelBlimp/alarmdetect/internal/logger"
)

var (
	// ErrInvalidDebounce indicates the debounce window must be at least 1 frame
	ErrInvalidDebounce = errors.New("debounce frames must be at least 1")
)

// Kind classifies a segment as tone or silence.
type Kind int

const (
	// Silence is an interval where the target tone is absent
	Silence Kind = iota
	// Tone is an interval where the target tone is present
	Tone
)

func (k Kind) String() string {
	if k == Tone {
		return "tone"
	}
	return "silence"
}

// Segment is one confirmed tone or silence interval. Immutable once emitted.
type Segment struct {
	Kind     Kind
	Start    time.Time
	End      time.Time
	Duration time.Duration
	// PeakFrequency is the mean dominant frequency over the interval.
	// Only meaningful for Tone segments.
	PeakFrequency float64
}

// ClassifierConfig holds configuration for segment classification.
type ClassifierConfig struct {
	// Profile is the owning profile name, used in diagnostics
	Profile string
	// DebounceFrames is the number of consecutive frames a new classification
	// must hold before a flip is accepted (from config: debounce_frames)
	DebounceFrames int
}

// Classifier turns the per-frame target_present stream into duration-bounded
// segments. A flip between tone and silence is accepted only after the new
// value has held for the debounce window, which rejects single-frame spectral
// glitches. Exactly one segment is open at any time; the classifier emits
// every confirmed segment regardless of length and leaves duration validation
// to the pattern machine.
type Classifier struct {
	config ClassifierConfig

	started    bool
	state      Kind      // current confirmed classification
	stateStart time.Time // when the current state began
	lastSeen   time.Time // timestamp of the last accepted frame

	// Pending flip tracking
	pending      Kind
	pendingCount int
	pendingStart time.Time

	// Frequency accumulation for the open segment and the pending run
	freqSum          float64
	freqCount        int
	pendingFreqSum   float64
	pendingFreqCount int
}

// NewClassifier creates a segment classifier.
func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	if cfg.DebounceFrames < 1 {
		return nil, ErrInvalidDebounce
	}
	return &Classifier{config: cfg}, nil
}

// Process ingests one reading. When the reading confirms a state flip, the
// just-finished interval is returned as a closed segment. Frames arriving out
// of timestamp order are dropped since duration arithmetic assumes monotonic
// time.
func (c *Classifier) Process(r dsp.Reading) (Segment, bool) {
	k := Silence
	if r.TargetPresent {
		k = Tone
	}

	if !c.started {
		c.started = true
		c.state = k
		c.stateStart = r.Timestamp
		c.lastSeen = r.Timestamp
		c.pending = k
		c.accumulate(r)
		return Segment{}, false
	}

	if !r.Timestamp.After(c.lastSeen) {
		logger.L().Debugw("dropping out-of-order frame",
			"profile", c.config.Profile,
			"timestamp", r.Timestamp,
			"last_seen", c.lastSeen)
		return Segment{}, false
	}
	c.lastSeen = r.Timestamp

	if k == c.state {
		// Back in the confirmed state: any pending flip was a glitch
		c.pending = c.state
		c.pendingCount = 0
		c.pendingFreqSum = 0
		c.pendingFreqCount = 0
		c.accumulate(r)
		return Segment{}, false
	}

	if k == c.pending && c.pendingCount > 0 {
		c.pendingCount++
	} else {
		c.pending = k
		c.pendingCount = 1
		c.pendingStart = r.Timestamp
		c.pendingFreqSum = 0
		c.pendingFreqCount = 0
	}
	if r.TargetPresent {
		c.pendingFreqSum += r.Frequency
		c.pendingFreqCount++
	}

	if c.pendingCount < c.config.DebounceFrames {
		return Segment{}, false
	}

	// Flip confirmed. The boundary is backdated to the first frame of the
	// pending run so measured durations track the acoustic signal rather than
	// the debounce delay.
	closed := Segment{
		Kind:          c.state,
		Start:         c.stateStart,
		End:           c.pendingStart,
		Duration:      c.pendingStart.Sub(c.stateStart),
		PeakFrequency: c.meanFrequency(),
	}

	c.state = k
	c.stateStart = c.pendingStart
	c.freqSum = c.pendingFreqSum
	c.freqCount = c.pendingFreqCount
	c.pendingCount = 0
	c.pendingFreqSum = 0
	c.pendingFreqCount = 0

	return closed, true
}

// State returns the current confirmed classification.
func (c *Classifier) State() Kind {
	return c.state
}

func (c *Classifier) accumulate(r dsp.Reading) {
	if r.TargetPresent {
		c.freqSum += r.Frequency
		c.freqCount++
	}
}

func (c *Classifier) meanFrequency() float64 {
	if c.freqCount == 0 {
		return 0
	}
	return c.freqSum / float64(c.freqCount)
}
