// Package capture owns the microphone stream for push-to-talk sessions.
// The Engine buffers PCM16 frames while the recording flag is set and
// exposes an instantaneous loudness reading for UI metering. The underlying
// device stream stays open between sessions so a new press does not pay the
// device-reopen latency; only Shutdown releases it.
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"murmur/audio"
	"murmur/log"
)

const (
	SampleRate = 16000
	Channels   = 1

	// Amplitude shaping: readings below the floor collapse to silence,
	// everything above is stretched so normal speech fills the meter.
	noiseFloor = 0.01
	levelGain  = 4.0
)

var ErrDeviceUnavailable = errors.New("capture device unavailable")

// Engine serializes Start/Stop/frame-append under one mutex. The data
// callback runs on the audio subsystem's thread; Start, Stop and Amplitude
// run on whatever thread drives the session.
type Engine struct {
	dev        audio.CaptureDevice
	sampleRate int

	mu         sync.Mutex
	recording  bool
	streamOpen bool
	shutdown   bool
	frames     [][]byte
	lastFrame  []byte
}

func NewEngine(dev audio.CaptureDevice, sampleRate int) *Engine {
	e := &Engine{dev: dev, sampleRate: sampleRate}
	dev.SetCallback(e.onData)
	return e
}

// onData is invoked by the audio subsystem. Zero-length chunks are status
// signals (overflow and the like); they are not buffered and not an error.
func (e *Engine) onData(data []byte, frameCount uint32) {
	if len(data) == 0 {
		log.Warnf("capture: empty chunk from device (frames=%d)", frameCount)
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.recording {
		return
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	e.frames = append(e.frames, frame)
	e.lastFrame = frame
}

// Start begins a recording session. Idempotent: a second Start while already
// recording is a logged no-op that preserves the buffered frames.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.recording {
		log.Info("capture_start ignored: already recording")
		return nil
	}
	if e.shutdown {
		return fmt.Errorf("%w: engine shut down", ErrDeviceUnavailable)
	}
	if !e.streamOpen {
		if err := e.dev.Start(); err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		e.streamOpen = true
	}
	e.frames = nil
	e.lastFrame = nil
	e.recording = true
	return nil
}

// Stop ends the session and snapshots the buffered frames. Returns nil when
// not recording or when no frames were captured. The device stream is left
// open for the next session.
func (e *Engine) Stop() *Recording {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.recording {
		return nil
	}
	e.recording = false

	total := 0
	for _, f := range e.frames {
		total += len(f)
	}
	if total == 0 {
		return nil
	}

	pcm := make([]byte, 0, total)
	for _, f := range e.frames {
		pcm = append(pcm, f...)
	}
	return &Recording{PCM: pcm, SampleRate: e.sampleRate}
}

// Shutdown releases the device. Safe to call multiple times.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.shutdown {
		return
	}
	e.shutdown = true
	e.recording = false
	e.dev.ClearCallback()
	if e.streamOpen {
		e.dev.Stop()
		e.streamOpen = false
	}
	e.dev.Close()
}

// Amplitude returns the shaped loudness of the most recent frame in [0,1].
// 0.0 when not recording or nothing has been captured yet. Never fails.
func (e *Engine) Amplitude() float64 {
	e.mu.Lock()
	frame := e.lastFrame
	recording := e.recording
	e.mu.Unlock()

	if !recording || len(frame) < 2 {
		return 0
	}

	var sumSquares float64
	n := 0
	for i := 0; i+1 < len(frame); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(frame[i:]))
		v := float64(sample) / 32768.0
		sumSquares += v * v
		n++
	}
	rms := math.Sqrt(sumSquares / float64(n))
	if rms < noiseFloor {
		return 0
	}
	level := math.Sqrt(rms * levelGain)
	if level > 1 {
		return 1
	}
	return level
}
