package capture

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recording is the immutable snapshot of one finished capture session:
// little-endian PCM16 mono samples at a fixed rate. It is produced by
// Engine.Stop and consumed exactly once by the transcription step.
type Recording struct {
	PCM        []byte
	SampleRate int
}

func (r *Recording) Duration() time.Duration {
	samples := len(r.PCM) / 2
	return time.Duration(float64(samples) / float64(r.SampleRate) * float64(time.Second))
}

// Save writes the recording as a 16-bit mono WAV to path, overwriting any
// previous session's file. The scratch file is a single slot, not a queue.
func (r *Recording) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("scratch file: %w", err)
	}

	samples := make([]int, len(r.PCM)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(r.PCM[i*2:])))
	}

	enc := wav.NewEncoder(f, r.SampleRate, 16, Channels, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: Channels, SampleRate: r.SampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		f.Close()
		return fmt.Errorf("wav encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("wav finalize: %w", err)
	}
	return f.Close()
}
