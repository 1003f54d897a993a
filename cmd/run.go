// cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/alarmdetect/internal/alarm"
	"github.com/ColonelBlimp/alarmdetect/internal/audio"
	"github.com/ColonelBlimp/alarmdetect/internal/config"
	"github.com/ColonelBlimp/alarmdetect/internal/dsp"
	"github.com/ColonelBlimp/alarmdetect/internal/logger"
	"github.com/ColonelBlimp/alarmdetect/internal/publish"
	"github.com/ColonelBlimp/alarmdetect/internal/recovery"
)

const mqttConnectTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start listening and detecting alarms",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func run(ctx context.Context) error {
	settings, err := config.Get()
	if err != nil {
		return err
	}
	if lvl, ok := logger.ParseLevel(settings.LogLevel); ok {
		logger.SetLevel(lvl)
	}

	engine, err := alarm.NewEngine(pipelineConfigs(settings))
	if err != nil {
		return fmt.Errorf("build detection engine: %w", err)
	}

	pub, closePub, err := newPublisher(settings)
	if err != nil {
		return err
	}
	defer closePub()

	capture := audio.New(audio.Config{
		DeviceIndex: settings.DeviceIndex,
		SampleRate:  uint32(settings.SampleRate),
		Channels:    uint32(settings.Channels),
		BlockSize:   uint32(settings.BlockSize),
	})
	if err := capture.Init(); err != nil {
		return err
	}
	defer capture.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer recovery.HandlePanicFunc(nil)
		defer wg.Done()
		pub.Run(ctx, engine.Events())
	}()

	if err := capture.Start(ctx); err != nil {
		return err
	}

	logger.L().Infow("listening",
		"profiles", len(settings.Profiles),
		"sample_rate", settings.SampleRate,
		"block_size", settings.BlockSize)

	// Frame-driven core: one block at a time, synchronously through every
	// profile's pipeline, in capture order.
	for {
		select {
		case <-ctx.Done():
			engine.Close()
			wg.Wait()
			return nil
		case block, ok := <-capture.Blocks:
			if !ok {
				engine.Close()
				wg.Wait()
				return nil
			}
			engine.ProcessSamples(block.Samples, settings.SampleRate, block.Timestamp)
		}
	}
}

// pipelineConfigs converts config profiles into per-stage pipeline configs.
func pipelineConfigs(s *config.Settings) []alarm.PipelineConfig {
	cfgs := make([]alarm.PipelineConfig, 0, len(s.Profiles))
	for _, p := range s.Profiles {
		cfgs = append(cfgs, alarm.PipelineConfig{
			Analyzer: dsp.AnalyzerConfig{
				TargetFrequency:    p.TargetFrequency,
				FrequencyTolerance: p.FrequencyTolerance,
				MinMagnitude:       p.MinMagnitude,
				SearchRangeMin:     p.SearchRangeMin,
				SearchRangeMax:     p.SearchRangeMax,
				SampleRate:         s.SampleRate,
				BlockSize:          s.BlockSize,
			},
			Classifier: alarm.ClassifierConfig{
				Profile:        p.Name,
				DebounceFrames: p.DebounceFrames,
			},
			Machine: alarm.MachineConfig{
				Profile:   p.Name,
				BeepMin:   secondsToDuration(p.BeepDurationMin),
				BeepMax:   secondsToDuration(p.BeepDurationMax),
				PauseMin:  secondsToDuration(p.PauseDurationMin),
				PauseMax:  secondsToDuration(p.PauseDurationMax),
				BeepCount: p.Beeps(),
			},
			Controller: alarm.ControllerConfig{
				Profile:            p.Name,
				AlarmType:          p.AlarmType,
				ConfirmationCycles: p.ConfirmationCycles,
				AutoClear:          secondsToDuration(p.AutoClearSeconds),
			},
		})
	}
	return cfgs
}

// newPublisher picks the configured transport: MQTT when enabled, otherwise
// the Home Assistant REST API when a supervisor token is present, otherwise
// log-only output.
func newPublisher(s *config.Settings) (publish.Publisher, func(), error) {
	if s.MQTT.Enabled {
		m := publish.NewMQTT(s.MQTT, s.DeviceName, s.Profiles)
		if err := m.Connect(mqttConnectTimeout); err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	}

	if r, err := publish.NewREST(s.DeviceName, ""); err == nil {
		return r, func() {}, nil
	}

	logger.L().Warnw("no publisher configured, logging alarm states only")
	return publish.LogPublisher{}, func() {}, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
