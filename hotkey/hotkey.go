// Package hotkey delivers global push-to-talk key events. Press and release
// arrive on buffered channels from a thread owned by the platform backend;
// consumers treat them as edge triggers, never as level state.
package hotkey

import (
	"fmt"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Chord is a parsed key combination like "ctrl+shift+space": zero or more
// modifiers plus one trigger key.
type Chord struct {
	Ctrl, Shift, Alt, Super bool
	Key                     string
}

// ParseChord splits a combo spec into modifiers and the trigger key.
// The last component is the key; everything before it must be a modifier.
func ParseChord(spec string) (Chord, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(spec)), "+")
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return Chord{}, fmt.Errorf("empty hotkey spec %q", spec)
	}

	var c Chord
	for _, mod := range parts[:len(parts)-1] {
		switch mod {
		case "ctrl", "control":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt", "option":
			c.Alt = true
		case "super", "cmd", "meta", "win":
			c.Super = true
		default:
			return Chord{}, fmt.Errorf("unknown modifier %q in %q", mod, spec)
		}
	}
	c.Key = parts[len(parts)-1]
	return c, nil
}

func (c Chord) String() string {
	var parts []string
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	if c.Super {
		parts = append(parts, "super")
	}
	parts = append(parts, c.Key)
	return strings.Join(parts, "+")
}
