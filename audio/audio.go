// Package audio abstracts the platform capture layer. A Context enumerates
// input devices and opens capture streams; a CaptureDevice delivers PCM16
// frames to a registered callback on a thread owned by the audio subsystem.
package audio

import "strings"

type DataCallback func(data []byte, frameCount uint32)

type StreamConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	OpenCapture(device *DeviceInfo, config StreamConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

var btKeywords = []string{
	"airpods", "jabra", "galaxy buds", "pixel buds", "powerbeats",
	"wh-1000", "wf-1000", "bose", "soundcore",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses whether a device name belongs to a Bluetooth headset.
// Bluetooth mics typically drop to a low-bitrate codec while capturing.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
