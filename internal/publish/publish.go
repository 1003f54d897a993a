// internal/publish/publish.go
// Package publish delivers alarm state changes to external consumers. The
// detection core only writes typed events to a channel; everything transport
// specific (MQTT, Home Assistant REST) lives here.
package publish

import (
	"context"

	"github.com/ColonelBlimp/alarmdetect/internal/event"
	"github.com/ColonelBlimp/alarmdetect/internal/logger"
)

// Publisher consumes the core's event stream until the context is cancelled
// or the channel closes.
type Publisher interface {
	Run(ctx context.Context, events <-chan event.Event)
}

// LogPublisher writes state changes to the log only. Used when no transport
// is configured, and handy for bench testing a microphone.
type LogPublisher struct{}

// Run consumes events until the channel closes or ctx is cancelled.
func (LogPublisher) Run(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			logEvent(ev)
		}
	}
}

func logEvent(ev event.Event) {
	switch e := ev.(type) {
	case event.AlarmStateChanged:
		logger.L().Infow("alarm state changed",
			"profile", e.Profile,
			"alarm_type", e.AlarmType,
			"on", e.On,
			"timestamp", e.Timestamp)
	case event.CycleCompleted:
		logger.L().Debugw("cycle completed",
			"profile", e.Profile,
			"count", e.Count)
	case event.SegmentRejected:
		logger.L().Debugw("segment rejected",
			"profile", e.Profile,
			"reason", e.Reason)
	}
}
