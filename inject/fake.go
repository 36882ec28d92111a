package inject

import "sync"

// Fake is an Injector for tests. It records every delivery.
type Fake struct {
	Ok bool // value returned by Inject

	mu    sync.Mutex
	texts []string
	autos []bool
}

func NewFake() *Fake {
	return &Fake{Ok: true}
}

func (f *Fake) Inject(text string, autoDeliver bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.autos = append(f.autos, autoDeliver)
	return f.Ok
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

func (f *Fake) LastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

func (f *Fake) LastAuto() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.autos) == 0 {
		return false
	}
	return f.autos[len(f.autos)-1]
}
