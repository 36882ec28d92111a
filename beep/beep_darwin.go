//go:build darwin

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx     *malgo.AllocatedContext
	device       *malgo.Device
	startSamples []byte
	endSamples   []byte
	soundOnce    sync.Once

	// Playback cursor, read from the device callback thread.
	playBuf sync.Mutex
	samples atomic.Pointer[[]byte]
	pos     atomic.Uint32
)

func toBytes(s []int16) []byte {
	buf := make([]byte, len(s)*2)
	for i, v := range s {
		buf[i*2] = byte(v)
		buf[i*2+1] = byte(v >> 8)
	}
	return buf
}

func initSound() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}

	// Shorter cues than on Linux; CoreAudio adds its own latency.
	startSamples = toBytes(tick(startFreq, 0.03, startVolume, startDecay))
	endSamples = toBytes(tick(endFreq, 0.05, endVolume, endDecay))

	if err := initDevice(); err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{
		Data: dataCallback,
	})
	return err
}

func dataCallback(pOutput, _ []byte, frameCount uint32) {
	buf := samples.Load()
	if buf == nil || len(*buf) == 0 {
		for i := range pOutput {
			pOutput[i] = 0
		}
		return
	}

	p := pos.Load()
	total := uint32(len(*buf))
	n := frameCount * 2
	remaining := total - p
	if remaining == 0 {
		samples.Store(nil)
		for i := range pOutput {
			pOutput[i] = 0
		}
		return
	}
	if n > remaining {
		n = remaining
	}

	copy(pOutput[:n], (*buf)[p:p+n])
	pos.Store(p + n)
	for i := n; i < frameCount*2; i++ {
		pOutput[i] = 0
	}
}

func playBytes(buf []byte) {
	if malgoCtx == nil || len(buf) == 0 {
		return
	}

	playBuf.Lock()
	defer playBuf.Unlock()
	if device == nil {
		return
	}

	device.Stop()
	pos.Store(0)
	samples.Store(&buf)

	if err := device.Start(); err != nil {
		// Recreate the device; handles macOS sleep/wake invalidation.
		device.Uninit()
		if err := initDevice(); err != nil {
			samples.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			samples.Store(nil)
		}
	}
}

func playStart() {
	soundOnce.Do(initSound)
	playBytes(startSamples)
}

func playEnd() {
	soundOnce.Do(initSound)
	playBytes(endSamples)
}
