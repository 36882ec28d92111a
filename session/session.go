// Package session drives one push-to-talk cycle: press starts capture,
// release stops it and runs transcription, formatting and injection before
// returning to idle. Sessions are strictly sequential; the hotkey thread
// calls OnPress/OnRelease and blocks through Processing.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"murmur/capture"
	"murmur/formatter"
	"murmur/inject"
	"murmur/log"
	"murmur/transcriber"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseProcessing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecording:
		return "recording"
	case PhaseProcessing:
		return "processing"
	}
	return "unknown"
}

// Observer receives fire-and-forget progress notifications. Implementations
// must not block; a nil Observer is valid.
type Observer interface {
	RecordingStarted()
	Amplitude(v float64)
	ProcessingStarted()
	Success(text string)
	Idle()
}

const (
	amplitudeInterval = 50 * time.Millisecond
	feedJoinTimeout   = 500 * time.Millisecond

	// Transcripts shorter than this are noise or single words; formatting
	// them is a waste of a round trip.
	minFormatLength = 12
)

type Config struct {
	ScratchPath string // WAV slot reused for every utterance
	Mode        string
	AutoDeliver bool
}

type Orchestrator struct {
	engine    *capture.Engine
	client    transcriber.Client
	formatter formatter.Formatter
	injector  inject.Injector
	observer  Observer

	scratchPath string

	mu          sync.Mutex
	phase       Phase
	mode        string
	autoDeliver bool
	delivered   int

	feedStop chan struct{}
	feedDone chan struct{}
}

func NewOrchestrator(engine *capture.Engine, client transcriber.Client, fmtr formatter.Formatter, inj inject.Injector, obs Observer, cfg Config) *Orchestrator {
	scratch := cfg.ScratchPath
	if scratch == "" {
		scratch = "/tmp/utt.wav"
	}
	mode := cfg.Mode
	if mode == "" {
		mode = formatter.ModeEmail
	}
	return &Orchestrator{
		engine:      engine,
		client:      client,
		formatter:   fmtr,
		injector:    inj,
		observer:    obs,
		scratchPath: scratch,
		phase:       PhaseIdle,
		mode:        mode,
		autoDeliver: cfg.AutoDeliver,
	}
}

func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Mode and AutoDeliver may be read and written from a UI thread while a
// session is in flight; changes apply from the next session.

func (o *Orchestrator) Mode() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

func (o *Orchestrator) SetMode(mode string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mode = mode
}

func (o *Orchestrator) AutoDeliver() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.autoDeliver
}

func (o *Orchestrator) SetAutoDeliver(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.autoDeliver = v
}

// Delivered reports how many sessions reached injection.
func (o *Orchestrator) Delivered() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.delivered
}

// OnPress begins a recording session. Presses while a session is already
// recording or processing are ignored.
func (o *Orchestrator) OnPress() {
	defer o.recoverPanic("press")

	o.mu.Lock()
	if o.phase != PhaseIdle {
		o.mu.Unlock()
		log.Infof("session: press ignored in phase %s", o.phase)
		return
	}
	o.phase = PhaseRecording
	o.mu.Unlock()

	if err := o.engine.Start(); err != nil {
		log.Errorf("session: capture start failed: %v", err)
		o.setIdle()
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	o.mu.Lock()
	o.feedStop, o.feedDone = stop, done
	o.mu.Unlock()
	go o.feedAmplitude(stop, done)

	o.notifyRecording()
}

// OnRelease ends the recording and runs the rest of the pipeline
// synchronously. Releases with no recording in flight are ignored.
func (o *Orchestrator) OnRelease() {
	defer o.recoverPanic("release")

	o.mu.Lock()
	if o.phase != PhaseRecording {
		o.mu.Unlock()
		return
	}
	// Snapshot delivery settings at the recording boundary so UI changes
	// made during processing do not affect this session.
	mode := o.mode
	autoDeliver := o.autoDeliver
	o.phase = PhaseProcessing
	o.mu.Unlock()

	o.stopFeed()
	defer o.setIdle()

	rec := o.engine.Stop()
	if rec == nil {
		log.Info("session: empty recording, nothing to transcribe")
		return
	}
	o.notifyProcessing()

	start := time.Now()
	if err := rec.Save(o.scratchPath); err != nil {
		log.Errorf("session: writing %s failed: %v", o.scratchPath, err)
		return
	}

	text, err := o.client.Transcribe(context.Background(), o.scratchPath)
	transcribeMs := float64(time.Since(start).Milliseconds())
	if err != nil {
		log.Errorf("session: transcription failed: %v", err)
		return
	}

	text = strings.TrimSpace(text)
	log.TranscriptionText(text)
	if text == "" {
		log.Info("session: empty transcript, nothing to deliver")
		return
	}

	formatted := false
	formatStart := time.Now()
	if len(text) >= minFormatLength {
		out := o.formatter.Format(context.Background(), text, mode)
		formatted = out != text
		text = out
	}
	formatMs := float64(time.Since(formatStart).Milliseconds())

	injected := o.injector.Inject(text, autoDeliver)
	log.Session(rec.Duration().Seconds(), transcribeMs, formatMs, mode, formatted, injected)
	o.mu.Lock()
	o.delivered++
	o.mu.Unlock()
	o.notifySuccess(text)
}

// Shutdown releases capture resources. Any in-flight amplitude feed is
// stopped first.
func (o *Orchestrator) Shutdown() {
	o.stopFeed()
	o.engine.Shutdown()
}

func (o *Orchestrator) feedAmplitude(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(amplitudeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			o.notifyAmplitude(o.engine.Amplitude())
		}
	}
}

// stopFeed takes ownership of the feed channels under the lock so that a
// release and a shutdown racing each other cannot close the same channel
// twice.
func (o *Orchestrator) stopFeed() {
	o.mu.Lock()
	stop, done := o.feedStop, o.feedDone
	o.feedStop, o.feedDone = nil, nil
	o.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	select {
	case <-done:
	case <-time.After(feedJoinTimeout):
		log.Warn("session: amplitude feed did not stop in time")
	}
}

func (o *Orchestrator) setIdle() {
	o.mu.Lock()
	o.phase = PhaseIdle
	o.mu.Unlock()
	o.notifyIdle()
}

// The hotkey callback thread is not ours; a panic escaping into it would
// take down event delivery for the rest of the process.
func (o *Orchestrator) recoverPanic(where string) {
	if r := recover(); r != nil {
		log.Errorf("session: panic in %s handler: %v", where, r)
		o.setIdle()
	}
}

func (o *Orchestrator) notifyRecording() {
	if o.observer != nil {
		o.observer.RecordingStarted()
	}
}

func (o *Orchestrator) notifyAmplitude(v float64) {
	if o.observer != nil {
		o.observer.Amplitude(v)
	}
}

func (o *Orchestrator) notifyProcessing() {
	if o.observer != nil {
		o.observer.ProcessingStarted()
	}
}

func (o *Orchestrator) notifySuccess(text string) {
	if o.observer != nil {
		o.observer.Success(text)
	}
}

func (o *Orchestrator) notifyIdle() {
	if o.observer != nil {
		o.observer.Idle()
	}
}
