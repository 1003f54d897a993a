// internal/alarm/controller.go
package alarm

import (
	"errors"
	"time"

	"github.com/ColonelBlimp/alarmdetect/internal/event"
	"github.com/ColonelBlimp/alarmdetect/internal/logger"
)

var (
	// ErrInvalidConfirmation indicates confirmation cycles must be at least 1
	ErrInvalidConfirmation = errors.New("confirmation cycles must be at least 1")
	// ErrInvalidAutoClear indicates the auto-clear interval must be positive
	ErrInvalidAutoClear = errors.New("auto-clear interval must be positive")
)

// DetectionState is the process-duration state of one alarm profile.
type DetectionState struct {
	// Armed is true while the alarm is considered sounding
	Armed bool
	// ConsecutiveCycles counts confirmed cycles since the last reset
	ConsecutiveCycles int
	// LastConfirmedAt is the frame-clock time of the last confirming cycle.
	// Zero when the alarm has never armed.
	LastConfirmedAt time.Time
}

// ControllerConfig holds configuration for the detection controller.
type ControllerConfig struct {
	// Profile is the configured profile name
	Profile string
	// AlarmType is the alarm category label: "smoke" or "co" (from config: alarm_type)
	AlarmType string
	// ConfirmationCycles is how many consecutive cycles arm the alarm (from config: confirmation_cycles)
	ConfirmationCycles int
	// AutoClear is how long without a new cycle before the alarm clears (from config: auto_clear_seconds)
	AutoClear time.Duration
}

// Controller counts confirmed cycles and owns the armed/cleared transitions.
// AlarmStateChanged is emitted exactly once per transition: repeated cycles
// while armed refresh the confirmation time without re-emitting.
type Controller struct {
	config ControllerConfig
	state  DetectionState

	// lastCycleAt drives the auto-clear timer; separate from LastConfirmedAt
	// so progress toward confirmation also goes stale
	lastCycleAt time.Time

	emit func(event.Event)
}

// NewController creates a detection controller. The emit function receives
// alarm state changes and cycle diagnostics and may be nil.
func NewController(cfg ControllerConfig, emit func(event.Event)) (*Controller, error) {
	if cfg.ConfirmationCycles < 1 {
		return nil, ErrInvalidConfirmation
	}
	if cfg.AutoClear <= 0 {
		return nil, ErrInvalidAutoClear
	}
	return &Controller{config: cfg, emit: emit}, nil
}

// OnCycleComplete records one confirmed cycle ending at ts.
func (c *Controller) OnCycleComplete(ts time.Time) {
	c.lastCycleAt = ts
	c.state.ConsecutiveCycles++

	c.send(event.CycleCompleted{
		Profile:   c.config.Profile,
		Count:     c.state.ConsecutiveCycles,
		Timestamp: ts,
	})

	if c.state.Armed {
		c.state.LastConfirmedAt = ts
		return
	}

	if c.state.ConsecutiveCycles >= c.config.ConfirmationCycles {
		c.state.Armed = true
		c.state.LastConfirmedAt = ts
		logger.L().Infow("alarm confirmed",
			"profile", c.config.Profile,
			"alarm_type", c.config.AlarmType,
			"cycles", c.state.ConsecutiveCycles)
		c.send(event.AlarmStateChanged{
			Profile:   c.config.Profile,
			AlarmType: c.config.AlarmType,
			On:        true,
			Timestamp: ts,
		})
	}
}

// Tick evaluates the auto-clear timer against the frame clock. When armed and
// no cycle has confirmed within the clear interval, the alarm clears and the
// cycle count resets. Stale progress toward confirmation is discarded on the
// same interval, silently.
func (c *Controller) Tick(now time.Time) {
	if c.lastCycleAt.IsZero() || now.Sub(c.lastCycleAt) < c.config.AutoClear {
		return
	}

	c.lastCycleAt = time.Time{}
	c.state.ConsecutiveCycles = 0

	if !c.state.Armed {
		return
	}
	c.state.Armed = false
	logger.L().Infow("alarm cleared",
		"profile", c.config.Profile,
		"alarm_type", c.config.AlarmType)
	c.send(event.AlarmStateChanged{
		Profile:   c.config.Profile,
		AlarmType: c.config.AlarmType,
		On:        false,
		Timestamp: now,
	})
}

// State returns a copy of the current detection state.
func (c *Controller) State() DetectionState {
	return c.state
}

func (c *Controller) send(e event.Event) {
	if c.emit != nil {
		c.emit(e)
	}
}
