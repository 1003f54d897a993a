// internal/alarm/pattern.go
package alarm

import (
	"errors"
	"time"

	"github.com/ColonelBlimp/alarmdetect/internal/event"
	"github.com/ColonelBlimp/alarmdetect/internal/logger"
)

var (
	// ErrInvalidBeepBounds indicates beep duration bounds are inverted or non-positive
	ErrInvalidBeepBounds = errors.New("beep duration minimum must be positive and not exceed maximum")
	// ErrInvalidPauseBounds indicates pause duration bounds are inverted or non-positive
	ErrInvalidPauseBounds = errors.New("pause duration minimum must be positive and not exceed maximum")
	// ErrInvalidBeepCount indicates the expected beep count must be at least 1
	ErrInvalidBeepCount = errors.New("beep count must be at least 1")
)

// Phase identifies the pattern machine's state.
type Phase uint8

const (
	// PhaseWaiting means no attempt is in progress
	PhaseWaiting Phase = iota
	// PhaseAccumulating means an attempt is collecting alternating segments
	PhaseAccumulating
	// PhaseCycleComplete is the transient state entered when the final beep of
	// a cycle validates; the machine returns to PhaseWaiting before the next
	// segment arrives
	PhaseCycleComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseAccumulating:
		return "accumulating"
	case PhaseCycleComplete:
		return "cycle-complete"
	}
	return "unknown"
}

// MachineConfig holds configuration for the pattern state machine.
type MachineConfig struct {
	// Profile is the owning profile name, used in diagnostics
	Profile string
	// BeepMin/BeepMax bound valid tone segment durations (from config: beep_duration_min/max)
	BeepMin time.Duration
	BeepMax time.Duration
	// PauseMin/PauseMax bound valid silence segment durations (from config: pause_duration_min/max)
	PauseMin time.Duration
	PauseMax time.Duration
	// BeepCount is the number of beeps per cycle: 3 for T3, 4 for T4 (from config: beep_count)
	BeepCount int
	// Slack is extra allowance on the whole-attempt deadline. Zero selects
	// one PauseMax of slack.
	Slack time.Duration
}

// Machine accumulates validated segments into an alternating beep/pause cycle.
// Partial progress is never carried over: any invalid segment discards the
// attempt and returns to waiting, so coincidental beeps cannot slowly build
// false confidence. The next valid beep may start a new attempt immediately.
type Machine struct {
	config     MachineConfig
	maxAttempt time.Duration

	phase        Phase
	toneCount    int  // valid beeps accumulated in the current attempt
	expect       Kind // next expected segment kind while accumulating
	attemptStart time.Time
	deadline     time.Time

	emit func(event.Event)
}

// NewMachine creates a pattern state machine. The emit function receives
// diagnostic events and may be nil.
func NewMachine(cfg MachineConfig, emit func(event.Event)) (*Machine, error) {
	if cfg.BeepMin <= 0 || cfg.BeepMin > cfg.BeepMax {
		return nil, ErrInvalidBeepBounds
	}
	if cfg.PauseMin <= 0 || cfg.PauseMin > cfg.PauseMax {
		return nil, ErrInvalidPauseBounds
	}
	if cfg.BeepCount < 1 {
		return nil, ErrInvalidBeepCount
	}

	slack := cfg.Slack
	if slack == 0 {
		slack = cfg.PauseMax
	}

	return &Machine{
		config:     cfg,
		maxAttempt: time.Duration(cfg.BeepCount)*(cfg.BeepMax+cfg.PauseMax) + slack,
		phase:      PhaseWaiting,
		emit:       emit,
	}, nil
}

// HandleSegment feeds one confirmed segment into the machine. Returns true
// when the segment completes a full cycle.
func (m *Machine) HandleSegment(seg Segment) bool {
	// A stalled attempt is abandoned before considering the new segment, so
	// a valid beep arriving after the deadline can open a fresh attempt.
	m.expire(seg.Start)

	switch m.phase {
	case PhaseWaiting:
		if seg.Kind == Tone && m.validBeep(seg.Duration) {
			m.beginAttempt(seg)
			return m.phase == PhaseCycleComplete && m.completeCycle()
		}
		return false

	case PhaseAccumulating:
		return m.accumulate(seg)

	case PhaseCycleComplete:
		// Unreachable between calls: completeCycle resets to waiting
		m.reset()
		return false
	}
	return false
}

// Tick advances the frame clock so a stalled attempt times out even when no
// further segments arrive.
func (m *Machine) Tick(now time.Time) {
	m.expire(now)
}

// Phase returns the machine's current phase.
func (m *Machine) Phase() Phase {
	return m.phase
}

func (m *Machine) beginAttempt(seg Segment) {
	m.phase = PhaseAccumulating
	m.toneCount = 1
	m.expect = Silence
	m.attemptStart = seg.Start
	m.deadline = seg.Start.Add(m.maxAttempt)

	logger.L().Debugw("pattern attempt started",
		"profile", m.config.Profile,
		"beep_duration", seg.Duration,
		"peak_frequency", seg.PeakFrequency)

	if m.config.BeepCount == 1 {
		m.phase = PhaseCycleComplete
	}
}

func (m *Machine) accumulate(seg Segment) bool {
	if seg.Kind != m.expect {
		m.discard(seg, "unexpected "+seg.Kind.String())
		// Immediate retry: a valid beep restarts an attempt with no cooldown
		if seg.Kind == Tone && m.validBeep(seg.Duration) {
			m.beginAttempt(seg)
			return m.phase == PhaseCycleComplete && m.completeCycle()
		}
		return false
	}

	switch seg.Kind {
	case Tone:
		if !m.validBeep(seg.Duration) {
			m.discard(seg, "beep duration out of bounds")
			return false
		}
		m.toneCount++
		if m.toneCount >= m.config.BeepCount {
			m.phase = PhaseCycleComplete
			return m.completeCycle()
		}
		m.expect = Silence

	case Silence:
		if !m.validPause(seg.Duration) {
			m.discard(seg, "pause duration out of bounds")
			return false
		}
		m.expect = Tone
	}
	return false
}

// completeCycle emits the cycle and returns the machine to waiting so it can
// match the next repetition of the same code.
func (m *Machine) completeCycle() bool {
	logger.L().Debugw("cycle complete",
		"profile", m.config.Profile,
		"beeps", m.toneCount)
	m.reset()
	return true
}

func (m *Machine) discard(seg Segment, reason string) {
	logger.L().Debugw("pattern attempt discarded",
		"profile", m.config.Profile,
		"reason", reason,
		"kind", seg.Kind.String(),
		"duration", seg.Duration,
		"progress", m.toneCount)
	if m.emit != nil {
		m.emit(event.SegmentRejected{
			Profile:   m.config.Profile,
			Reason:    reason,
			Timestamp: seg.End,
		})
	}
	m.reset()
}

func (m *Machine) expire(now time.Time) {
	if m.phase != PhaseAccumulating || !now.After(m.deadline) {
		return
	}
	logger.L().Debugw("pattern attempt timed out",
		"profile", m.config.Profile,
		"progress", m.toneCount)
	if m.emit != nil {
		m.emit(event.SegmentRejected{
			Profile:   m.config.Profile,
			Reason:    "attempt timed out",
			Timestamp: now,
		})
	}
	m.reset()
}

func (m *Machine) reset() {
	m.phase = PhaseWaiting
	m.toneCount = 0
	m.expect = Tone
	m.attemptStart = time.Time{}
	m.deadline = time.Time{}
}

func (m *Machine) validBeep(d time.Duration) bool {
	return d >= m.config.BeepMin && d <= m.config.BeepMax
}

func (m *Machine) validPause(d time.Duration) bool {
	return d >= m.config.PauseMin && d <= m.config.PauseMax
}
