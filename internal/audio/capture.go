// Package audio owns the OS audio input stream: device enumeration, the
// real-time capture callback, and handoff into the lock-free ring buffer
// that feeds the VAD worker.
package audio

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/agalue/swictation/internal/resample"
	"github.com/agalue/swictation/internal/ringbuffer"
	"github.com/agalue/swictation/internal/swicterr"
)

// ringCapacity sizes the producer-side ring buffer in samples. At 16kHz mono
// this is roughly 8 seconds of audio, enough headroom for the VAD worker to
// fall behind briefly without dropping samples under normal load.
const ringCapacity = 131072

// DeviceInfo describes an enumerated audio input device.
type DeviceInfo struct {
	ID      string
	Name    string
	Default bool
}

// Config configures a Capturer.
type Config struct {
	// SampleRate is the target rate delivered to the chunk callback (spec: 16000).
	SampleRate int
	// ChunkDuration is how much audio accumulates before the chunk callback fires.
	ChunkDuration float64
	// DeviceID selects a specific input device; empty uses the default device.
	DeviceID string
	// ResampleQuality selects the resampling strategy when the device's
	// native rate differs from SampleRate: "fast" (default) uses the
	// integer-ratio/linear-interpolation Resampler; "high" uses the
	// windowed-sinc PolyphaseResampler for better anti-aliasing at the
	// cost of more CPU per chunk.
	ResampleQuality string
}

// resampler is the narrow surface Capturer needs from a resampling
// strategy, satisfied by both *resample.Resampler and
// *resample.PolyphaseResampler.
type resampler interface {
	Resample(input []float32) []float32
}

// Capturer owns the platform audio input stream. The real-time callback
// touches only the ring buffer producer half; a separate worker goroutine
// drains the consumer half and invokes the chunk callback.
type Capturer struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	targetRate       int
	deviceID         string
	deviceSampleRate uint32
	chunkSamples     int
	resampleQuality  string

	producer  *ringbuffer.Producer
	consumer  *ringbuffer.Consumer
	ring      *ringbuffer.RingBuffer
	resampler resampler

	onChunk func([]float32)

	running  atomic.Bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// ListDevices enumerates capture-capable input devices.
func ListDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, swicterr.Device("audio.ListDevices", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, swicterr.Device("audio.ListDevices", err)
	}

	out := make([]DeviceInfo, 0, len(infos))
	for _, d := range infos {
		out = append(out, DeviceInfo{
			ID:      fmt.Sprintf("%v", d.ID),
			Name:    d.Name(),
			Default: d.IsDefault != 0,
		})
	}
	return out, nil
}

// NewCapturer creates a Capturer. SetChunkCallback must be called before Start.
func NewCapturer(cfg Config) (*Capturer, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, swicterr.Device("audio.NewCapturer", err)
	}

	chunkDuration := cfg.ChunkDuration
	if chunkDuration <= 0 {
		chunkDuration = 0.5
	}
	chunkSamples := int(float64(cfg.SampleRate) * chunkDuration)

	ring := ringbuffer.New(ringCapacity)
	producer, consumer := ring.Split()

	return &Capturer{
		ctx:             ctx,
		targetRate:      cfg.SampleRate,
		deviceID:        cfg.DeviceID,
		chunkSamples:    chunkSamples,
		resampleQuality: cfg.ResampleQuality,
		ring:            ring,
		producer:        producer,
		consumer:        consumer,
		stopChan:        make(chan struct{}),
	}, nil
}

// SetChunkCallback registers the handler invoked from the drain worker
// (never from the real-time audio thread) whenever chunkSamples of resampled
// mono audio have accumulated.
func (c *Capturer) SetChunkCallback(fn func(samples []float32)) {
	c.onChunk = fn
}

// DropCount reports samples dropped on ring-buffer overflow.
func (c *Capturer) DropCount() uint64 {
	return c.ring.DropCount()
}

// Start opens the input device and begins capture.
func (c *Capturer) Start() error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(c.targetRate)
	deviceConfig.PeriodSizeInMilliseconds = 32

	if c.deviceID != "" {
		devices, err := c.ctx.Devices(malgo.Capture)
		if err != nil {
			return swicterr.Device("audio.Start", err)
		}
		found := false
		for i := range devices {
			if fmt.Sprintf("%v", devices[i].ID) == c.deviceID {
				deviceConfig.Capture.DeviceID = devices[i].ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			return swicterr.Device("audio.Start", fmt.Errorf("device %q not found", c.deviceID))
		}
	}

	probe, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{})
	if err != nil {
		return swicterr.Device("audio.Start", err)
	}
	c.deviceSampleRate = probe.SampleRate()
	probe.Uninit()

	if c.deviceSampleRate != uint32(c.targetRate) {
		if c.resampleQuality == "high" {
			c.resampler = resample.NewPolyphaseResampler(int(c.deviceSampleRate), c.targetRate)
			log.Printf("🔄 Audio resampling (high quality): %d Hz -> %d Hz", c.deviceSampleRate, c.targetRate)
		} else {
			c.resampler = resample.New(int(c.deviceSampleRate), c.targetRate, 1)
			log.Printf("🔄 Audio resampling: %d Hz -> %d Hz", c.deviceSampleRate, c.targetRate)
		}
	}

	onRecvFrames := func(pOutputSample, pInputSamples []byte, framecount uint32) {
		if !c.running.Load() {
			return
		}
		samples := bytesToFloat32(pInputSamples)
		if len(samples) > 0 {
			c.producer.PushSlice(samples)
		}
		returnFloat32Buffer(samples)
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return swicterr.Device("audio.Start", err)
	}

	c.device = device
	c.running.Store(true)

	c.stopChan = make(chan struct{}) // a previous Stop closed the old one
	c.wg.Add(1)
	go c.drainLoop()

	if err := device.Start(); err != nil {
		return swicterr.Device("audio.Start", err)
	}

	if drops := c.ring.DropCount(); drops > 0 {
		log.Printf("⚠️  Audio ring buffer already reports %d drops at start", drops)
	}

	return nil
}

// drainLoop pulls samples from the ring buffer, resamples, and invokes the
// chunk callback. Runs on a dedicated goroutine, never on the audio thread.
func (c *Capturer) drainLoop() {
	defer c.wg.Done()

	scratch := make([]float32, 4096)
	var pending []float32

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		n := c.consumer.PopSlice(scratch)
		if n == 0 {
			select {
			case <-c.stopChan:
				return
			case <-time.After(100 * time.Microsecond):
			}
			continue
		}

		batch := append([]float32{}, scratch[:n]...)
		if c.resampler != nil {
			batch = c.resampler.Resample(batch)
		}
		pending = append(pending, batch...)

		for len(pending) >= c.chunkSamples && c.chunkSamples > 0 {
			chunk := pending[:c.chunkSamples]
			if c.running.Load() && c.onChunk != nil {
				c.onChunk(chunk)
			}
			pending = pending[c.chunkSamples:]
		}
	}
}

// Pause stops feeding captured audio to the chunk callback without tearing
// down the device.
func (c *Capturer) Pause() { c.running.Store(false) }

// Resume resumes feeding captured audio after Pause.
func (c *Capturer) Resume() { c.running.Store(true) }

// Stop halts capture and releases the device.
func (c *Capturer) Stop() {
	c.running.Store(false)
	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}
	c.wg.Wait()

	if c.device != nil {
		c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}
}

// Close releases all audio resources.
func (c *Capturer) Close() {
	c.Stop()
	if c.ctx != nil {
		_ = c.ctx.Uninit()
		c.ctx.Free()
		c.ctx = nil
	}
}

var float32Pool = sync.Pool{
	New: func() interface{} {
		buf := make([]float32, 2048)
		return &buf
	},
}

func bytesToFloat32(data []byte) []float32 {
	numSamples := len(data) / 4
	pBuf := float32Pool.Get().(*[]float32)
	if cap(*pBuf) < numSamples {
		*pBuf = make([]float32, numSamples)
	}
	samples := (*pBuf)[:numSamples]
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

func returnFloat32Buffer(samples []float32) {
	if samples == nil {
		return
	}
	buf := samples[:cap(samples)]
	float32Pool.Put(&buf)
}
