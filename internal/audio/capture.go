// internal/audio/capture.go
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/gen2brain/malgo"
)

var (
	ErrNotInitialized = errors.New("audio capture not initialized")
	ErrAlreadyRunning = errors.New("audio capture already running")
	ErrNotRunning     = errors.New("audio capture not running")
)

// Config holds audio capture configuration
type Config struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // e.g., 44100
	Channels    uint32 // 1 for mono
	BlockSize   uint32 // samples per emitted block (one analysis frame)
}

// DefaultConfig returns sensible defaults for alarm detection
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  44100,
		Channels:    1,
		BlockSize:   4096,
	}
}

// Block is one analysis frame of samples stamped with a monotonic capture
// time. Timestamps advance by exactly one block period per block so downstream
// duration arithmetic is locked to the sample clock, not wall time.
type Block struct {
	Samples   []float32
	Timestamp time.Time
}

// Capture handles real-time audio sampling from a capture device and
// re-blocks the driver's buffers into fixed-size analysis frames.
type Capture struct {
	config  Config
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	running bool
	mu      sync.RWMutex

	// Re-blocking state, touched only from the audio thread
	pending     []float32
	base        time.Time
	blockPeriod time.Duration
	blockCount  int64

	// Blocks carries timestamped analysis frames to the consumer
	Blocks chan Block
}

// New creates a new audio capture instance
func New(cfg Config) *Capture {
	period := time.Duration(float64(cfg.BlockSize) / float64(cfg.SampleRate) * float64(time.Second))
	return &Capture{
		config:      cfg,
		pending:     make([]float32, 0, cfg.BlockSize*2),
		blockPeriod: period,
		Blocks:      make(chan Block, 64),
	}
}

// Init initializes the audio backend
func (c *Capture) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	c.ctx = ctx

	return nil
}

// ListDevices returns available capture devices
func (c *Capture) ListDevices() ([]malgo.DeviceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ctx == nil {
		return nil, ErrNotInitialized
	}

	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	return infos, nil
}

// Start begins audio capture
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if c.ctx == nil {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	c.mu.Unlock()

	deviceConfig := malgo.DeviceConfig{
		DeviceType:         malgo.Capture,
		SampleRate:         c.config.SampleRate,
		PeriodSizeInFrames: c.config.BlockSize,
		Capture: malgo.SubConfig{
			Format:   malgo.FormatF32,
			Channels: c.config.Channels,
		},
	}

	// Select specific device if requested
	if c.config.DeviceIndex >= 0 {
		devices, err := c.ListDevices()
		if err != nil {
			return err
		}
		if c.config.DeviceIndex >= len(devices) {
			return fmt.Errorf("device index %d out of range (have %d devices)",
				c.config.DeviceIndex, len(devices))
		}
		deviceConfig.Capture.DeviceID = devices[c.config.DeviceIndex].ID.Pointer()
	}

	onRecvFrames := func(outputSamples, inputSamples []byte, frameCount uint32) {
		if len(inputSamples) == 0 {
			return
		}
		c.ingest(bytesToFloat32(inputSamples))
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
	})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}

	c.base = time.Now()
	c.blockCount = 0

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.running = true
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()

	return nil
}

// ingest re-blocks driver buffers into fixed-size frames. Runs on the audio
// thread; must not block.
func (c *Capture) ingest(samples []float32) {
	c.pending = append(c.pending, samples...)

	blockSize := int(c.config.BlockSize)
	for len(c.pending) >= blockSize {
		block := make([]float32, blockSize)
		copy(block, c.pending[:blockSize])
		c.pending = c.pending[:copy(c.pending, c.pending[blockSize:])]

		ts := c.base.Add(time.Duration(c.blockCount) * c.blockPeriod)
		c.blockCount++

		select {
		case c.Blocks <- Block{Samples: block, Timestamp: ts}:
		default:
			// Drop the block if the consumer is too slow; the pipeline
			// tolerates gaps far better than a stalled audio thread
		}
	}
}

// Stop stops audio capture
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ErrNotRunning
	}

	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}

	c.running = false
	return nil
}

// Close releases all audio resources
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running && c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
		c.running = false
	}

	if c.ctx != nil {
		if err := c.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit context: %w", err)
		}
		c.ctx.Free()
		c.ctx = nil
	}

	close(c.Blocks)
	return nil
}

// IsRunning returns true if capture is active
func (c *Capture) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// BlockPeriod returns the duration of one emitted block.
func (c *Capture) BlockPeriod() time.Duration {
	return c.blockPeriod
}

// bytesToFloat32 converts raw bytes to float32 samples
func bytesToFloat32(data []byte) []float32 {
	numSamples := len(data) / 4
	samples := make([]float32, numSamples)

	for i := 0; i < numSamples; i++ {
		offset := i * 4
		// Little-endian float32
		bits := uint32(data[offset]) |
			uint32(data[offset+1])<<8 |
			uint32(data[offset+2])<<16 |
			uint32(data[offset+3])<<24
		samples[i] = float32frombits(bits)
	}

	return samples
}

// float32frombits converts IEEE 754 binary representation to float32
func float32frombits(b uint32) float32 {
	return *(*float32)(unsafe.Pointer(&b))
}
