// Package beep plays short audio cues on recording start and stop, so the
// user knows the push-to-talk chord registered without looking at the
// terminal. Playback is asynchronous and best-effort; failures are silent.
package beep

import "math"

var disabled bool

func Disable() { disabled = true }

const (
	sampleRate = 44100

	// Start cue: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// Stop cue: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40
)

func PlayStart() {
	if disabled {
		return
	}
	playStart()
}

func PlayEnd() {
	if disabled {
		return
	}
	playEnd()
}

// tick synthesizes a mono PCM16 sine burst with an exponential decay
// envelope.
func tick(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}
