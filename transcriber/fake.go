package transcriber

import (
	"context"
	"sync"
)

// Fake is a Client stub that records calls.
type Fake struct {
	Text string
	Err  error

	mu    sync.Mutex
	calls int
	paths []string
}

func NewFake(text string, err error) *Fake {
	return &Fake{Text: text, Err: err}
}

func (f *Fake) Transcribe(_ context.Context, wavPath string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.paths = append(f.paths, wavPath)
	f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) LastPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.paths) == 0 {
		return ""
	}
	return f.paths[len(f.paths)-1]
}
