// internal/event/event.go
// Package event defines the typed events the detection core emits. The core
// writes them to a channel; transport-specific publishers consume them without
// the core knowing anything about MQTT or REST.
package event

import "time"

// Event is implemented by all event variants.
type Event interface {
	When() time.Time
}

// AlarmStateChanged is emitted exactly once per armed/cleared transition.
type AlarmStateChanged struct {
	// Profile is the configured profile name (e.g. "smoke")
	Profile string
	// AlarmType is the alarm category label ("smoke" or "co")
	AlarmType string
	// On is true when the alarm arms, false when it clears
	On bool
	// Timestamp is the frame-clock time of the transition
	Timestamp time.Time
}

// CycleCompleted is a diagnostic event emitted for every confirmed cycle.
type CycleCompleted struct {
	Profile string
	// Count is the consecutive cycle count after this cycle
	Count     int
	Timestamp time.Time
}

// SegmentRejected is a diagnostic event emitted when a segment breaks an
// in-progress pattern attempt.
type SegmentRejected struct {
	Profile string
	// Reason describes why the segment was rejected
	Reason    string
	Timestamp time.Time
}

func (e AlarmStateChanged) When() time.Time { return e.Timestamp }
func (e CycleCompleted) When() time.Time    { return e.Timestamp }
func (e SegmentRejected) When() time.Time   { return e.Timestamp }
