// internal/alarm/pipeline.go
// Package alarm implements temporal alarm-pattern detection: it turns the
// per-frame frequency readings of one audio stream into confirmed beep/pause
// cycles and a binary alarm state per configured profile.
package alarm

import (
	"time"

	"github.com/ColonelBlimp/alarmdetect/internal/dsp"
	"github.com/ColonelBlimp/alarmdetect/internal/event"
	"github.com/ColonelBlimp/alarmdetect/internal/logger"
)

// PipelineConfig aggregates the per-stage configuration of one profile.
type PipelineConfig struct {
	Analyzer   dsp.AnalyzerConfig
	Classifier ClassifierConfig
	Machine    MachineConfig
	Controller ControllerConfig
}

// Pipeline is the synchronous frame-driven chain for one profile:
// analyzer → classifier → pattern machine → controller. Frames are processed
// one at a time in arrival order; no stage blocks on I/O.
type Pipeline struct {
	profile    string
	analyzer   *dsp.Analyzer
	classifier *Classifier
	machine    *Machine
	controller *Controller
}

// NewPipeline builds the full chain for one profile. Events are delivered to
// the emit function; invalid configuration fails construction before any
// frame is processed.
func NewPipeline(cfg PipelineConfig, emit func(event.Event)) (*Pipeline, error) {
	analyzer, err := dsp.NewAnalyzer(cfg.Analyzer)
	if err != nil {
		return nil, err
	}
	classifier, err := NewClassifier(cfg.Classifier)
	if err != nil {
		return nil, err
	}
	machine, err := NewMachine(cfg.Machine, emit)
	if err != nil {
		return nil, err
	}
	controller, err := NewController(cfg.Controller, emit)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		profile:    cfg.Controller.Profile,
		analyzer:   analyzer,
		classifier: classifier,
		machine:    machine,
		controller: controller,
	}, nil
}

// ProcessFrame runs one frame through the chain. Per-frame anomalies are
// absorbed locally; this never fails.
func (p *Pipeline) ProcessFrame(f dsp.Frame) {
	r := p.analyzer.Analyze(f)

	if seg, ok := p.classifier.Process(r); ok {
		if p.machine.HandleSegment(seg) {
			p.controller.OnCycleComplete(seg.End)
		}
	}

	// Advance the frame clock so stalled attempts and armed alarms expire
	// even through long stretches of silence.
	p.machine.Tick(r.Timestamp)
	p.controller.Tick(r.Timestamp)
}

// State returns the profile's current detection state.
func (p *Pipeline) State() DetectionState {
	return p.controller.State()
}

// Profile returns the profile name this pipeline serves.
func (p *Pipeline) Profile() string {
	return p.profile
}

// Engine fans one frame stream out to independent per-profile pipelines.
// Pipelines share no mutable state; each treats the frame as read-only input.
type Engine struct {
	pipelines []*Pipeline
	events    chan event.Event
}

// eventBuffer bounds the event channel. Diagnostics beyond this are dropped
// rather than blocking the frame path.
const eventBuffer = 64

// NewEngine builds one pipeline per profile configuration sharing a single
// event channel.
func NewEngine(cfgs []PipelineConfig) (*Engine, error) {
	e := &Engine{events: make(chan event.Event, eventBuffer)}

	for _, cfg := range cfgs {
		p, err := NewPipeline(cfg, e.emit)
		if err != nil {
			return nil, err
		}
		e.pipelines = append(e.pipelines, p)
	}
	return e, nil
}

// ProcessFrame delivers one frame to every pipeline, synchronously.
func (e *Engine) ProcessFrame(f dsp.Frame) {
	for _, p := range e.pipelines {
		p.ProcessFrame(f)
	}
}

// ProcessSamples wraps raw capture samples into a frame and processes it.
func (e *Engine) ProcessSamples(samples []float32, sampleRate float64, ts time.Time) {
	e.ProcessFrame(dsp.Frame{Samples: samples, SampleRate: sampleRate, Timestamp: ts})
}

// Events returns the channel publishers consume.
func (e *Engine) Events() <-chan event.Event {
	return e.events
}

// Pipelines returns the per-profile pipelines, for inspection.
func (e *Engine) Pipelines() []*Pipeline {
	return e.pipelines
}

// Close closes the event channel. Call only after the last frame has been
// processed; stopping mid-cycle emits nothing spurious.
func (e *Engine) Close() {
	close(e.events)
}

// emit delivers an event to the consumer channel. State changes happen once
// per transition and the publisher must see every one, so they block until
// there is room. Diagnostics use a non-blocking send; a slow consumer loses
// those rather than stalling the frame path.
func (e *Engine) emit(ev event.Event) {
	if sc, ok := ev.(event.AlarmStateChanged); ok {
		select {
		case e.events <- ev:
		default:
			logger.L().Warnw("event channel full, waiting to deliver state change",
				"profile", sc.Profile, "on", sc.On)
			e.events <- ev
		}
		return
	}

	select {
	case e.events <- ev:
	default:
		logger.L().Debugw("event channel full, dropping diagnostic")
	}
}
