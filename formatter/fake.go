package formatter

import (
	"context"
	"sync"
)

// Spy is a Formatter for tests. It records calls and either returns a
// canned rewrite or, when Output is empty, the raw input.
type Spy struct {
	Output string

	mu    sync.Mutex
	calls int
	raws  []string
	modes []string
}

func (s *Spy) Format(_ context.Context, raw, mode string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.raws = append(s.raws, raw)
	s.modes = append(s.modes, mode)
	if s.Output == "" {
		return raw
	}
	return s.Output
}

func (s *Spy) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Spy) LastMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.modes) == 0 {
		return ""
	}
	return s.modes[len(s.modes)-1]
}

func (s *Spy) LastRaw() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.raws) == 0 {
		return ""
	}
	return s.raws[len(s.raws)-1]
}
