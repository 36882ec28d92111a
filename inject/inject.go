// Package inject delivers finished text to the focused application:
// clipboard copy, optionally followed by a simulated paste chord.
package inject

import (
	"time"

	cb "github.com/atotto/clipboard"

	"murmur/log"
)

// Give the clipboard owner a moment to register the new contents before
// the paste chord fires.
const settleDelay = 100 * time.Millisecond

// Injector delivers text to the user. The return value reports whether the
// text made it to the clipboard; a failed paste still counts as delivered.
type Injector interface {
	Inject(text string, autoDeliver bool) bool
}

// Clipboard copies text via the system clipboard and, when autoDeliver is
// set, simulates the platform paste shortcut.
type Clipboard struct{}

func NewClipboard() *Clipboard {
	return &Clipboard{}
}

func (c *Clipboard) Inject(text string, autoDeliver bool) bool {
	if err := cb.WriteAll(text); err != nil {
		log.Errorf("inject: clipboard write failed: %v", err)
		return false
	}
	if !autoDeliver {
		return true
	}
	time.Sleep(settleDelay)
	if err := sendPaste(); err != nil {
		log.Warnf("inject: paste simulation failed, text left on clipboard: %v", err)
	}
	return true
}
