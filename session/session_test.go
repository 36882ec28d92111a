package session

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"murmur/audio"
	"murmur/capture"
	"murmur/formatter"
	"murmur/inject"
	"murmur/transcriber"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) add(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingObserver) RecordingStarted()  { r.add("recording") }
func (r *recordingObserver) Amplitude(float64)  {}
func (r *recordingObserver) ProcessingStarted() { r.add("processing") }
func (r *recordingObserver) Success(string)     { r.add("success") }
func (r *recordingObserver) Idle()              { r.add("idle") }

func (r *recordingObserver) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type harness struct {
	dev   *audio.FakeCapture
	trans *transcriber.Fake
	spy   *formatter.Spy
	inj   *inject.Fake
	obs   *recordingObserver
	orch  *Orchestrator
}

func newHarness(t *testing.T, transcript string) *harness {
	t.Helper()
	dev := &audio.FakeCapture{}
	trans := transcriber.NewFake(transcript, nil)
	spy := &formatter.Spy{}
	inj := inject.NewFake()
	obs := &recordingObserver{}
	orch := NewOrchestrator(
		capture.NewEngine(dev, capture.SampleRate),
		trans, spy, inj, obs,
		Config{ScratchPath: filepath.Join(t.TempDir(), "utt.wav"), Mode: formatter.ModeEmail},
	)
	return &harness{dev: dev, trans: trans, spy: spy, inj: inj, obs: obs, orch: orch}
}

// loudFrame is a second of full-scale-ish PCM16, enough to survive trimming.
func loudFrame(n int) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		buf[i*2] = 0x00
		buf[i*2+1] = 0x40 // 16384
	}
	return buf
}

func (h *harness) oneSession() {
	h.orch.OnPress()
	h.dev.Feed(loudFrame(capture.SampleRate))
	h.orch.OnRelease()
}

func TestSessionDeliversTranscript(t *testing.T) {
	h := newHarness(t, "this is a long enough transcript")
	h.spy.Output = "This is a long enough transcript."

	h.oneSession()

	if h.trans.Calls() != 1 {
		t.Fatalf("transcribe calls = %d, want 1", h.trans.Calls())
	}
	if h.spy.Calls() != 1 {
		t.Fatalf("format calls = %d, want 1", h.spy.Calls())
	}
	if h.inj.Calls() != 1 {
		t.Fatalf("inject calls = %d, want 1", h.inj.Calls())
	}
	if h.inj.LastText() != "This is a long enough transcript." {
		t.Errorf("injected %q, want formatted text", h.inj.LastText())
	}
	if h.orch.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want idle", h.orch.Phase())
	}
}

func TestSessionWritesScratchWav(t *testing.T) {
	h := newHarness(t, "hello there everyone")
	h.oneSession()

	data, err := os.ReadFile(h.trans.LastPath())
	if err != nil {
		t.Fatalf("scratch file: %v", err)
	}
	if len(data) < 44 || string(data[:4]) != "RIFF" {
		t.Errorf("scratch file is not a WAV (%d bytes)", len(data))
	}
}

func TestShortTranscriptSkipsFormatter(t *testing.T) {
	h := newHarness(t, "ok bye")
	h.oneSession()

	if h.spy.Calls() != 0 {
		t.Errorf("format calls = %d, want 0 for short transcript", h.spy.Calls())
	}
	if h.inj.Calls() != 1 {
		t.Errorf("inject calls = %d, want raw delivery", h.inj.Calls())
	}
	if h.inj.LastText() != "ok bye" {
		t.Errorf("injected %q, want raw transcript", h.inj.LastText())
	}
}

func TestEmptyTranscriptSkipsInjection(t *testing.T) {
	h := newHarness(t, "   \n")
	h.oneSession()

	if h.trans.Calls() != 1 {
		t.Fatalf("transcribe calls = %d, want 1", h.trans.Calls())
	}
	if h.inj.Calls() != 0 {
		t.Errorf("inject calls = %d, want 0 for empty transcript", h.inj.Calls())
	}
	if h.orch.Delivered() != 0 {
		t.Errorf("delivered = %d, want 0", h.orch.Delivered())
	}
	if h.orch.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want idle", h.orch.Phase())
	}
}

func TestEmptyRecordingSkipsTranscription(t *testing.T) {
	h := newHarness(t, "never seen")
	h.orch.OnPress()
	// No frames fed: Stop returns nil.
	h.orch.OnRelease()

	if h.trans.Calls() != 0 {
		t.Errorf("transcribe calls = %d, want 0 for empty recording", h.trans.Calls())
	}
	if h.orch.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want idle", h.orch.Phase())
	}
	for _, ev := range h.obs.Events() {
		if ev == "processing" {
			t.Error("observer saw processing for an empty recording")
		}
	}
}

func TestReleaseWithoutPressIgnored(t *testing.T) {
	h := newHarness(t, "never seen")
	h.orch.OnRelease()

	if h.trans.Calls() != 0 {
		t.Errorf("transcribe calls = %d, want 0", h.trans.Calls())
	}
	if h.orch.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want idle", h.orch.Phase())
	}
}

func TestDoublePressIgnored(t *testing.T) {
	h := newHarness(t, "a reasonably long transcript")
	h.orch.OnPress()
	h.orch.OnPress()
	h.dev.Feed(loudFrame(capture.SampleRate))
	h.orch.OnRelease()

	if h.trans.Calls() != 1 {
		t.Errorf("transcribe calls = %d, want exactly 1", h.trans.Calls())
	}
	if h.dev.Starts != 1 {
		t.Errorf("device starts = %d, want 1", h.dev.Starts)
	}
}

func TestCaptureStartFailureStaysIdle(t *testing.T) {
	h := newHarness(t, "never seen")
	h.dev.StartErr = os.ErrPermission

	h.orch.OnPress()

	if h.orch.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want idle after start failure", h.orch.Phase())
	}
	// A later press must still work once the device recovers.
	h.dev.StartErr = nil
	h.orch.OnPress()
	if h.orch.Phase() != PhaseRecording {
		t.Errorf("phase = %s, want recording", h.orch.Phase())
	}
	h.orch.OnRelease()
}

func TestTranscriptionFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, "")
	h.trans.Err = transcriber.ErrBackendUnavailable

	h.oneSession()

	if h.inj.Calls() != 0 {
		t.Errorf("inject calls = %d, want 0 after transcription failure", h.inj.Calls())
	}
	if h.orch.Phase() != PhaseIdle {
		t.Errorf("phase = %s, want idle", h.orch.Phase())
	}
}

func TestModeSnapshotAtProcessingBoundary(t *testing.T) {
	h := newHarness(t, "a reasonably long transcript")
	h.orch.SetMode(formatter.ModeMessage)
	h.oneSession()

	if h.spy.LastMode() != formatter.ModeMessage {
		t.Errorf("format mode = %q, want message", h.spy.LastMode())
	}

	// Changing mode after release does not rewrite history.
	h.orch.SetMode(formatter.ModeEmail)
	if h.spy.LastMode() != formatter.ModeMessage {
		t.Errorf("recorded mode changed retroactively to %q", h.spy.LastMode())
	}
}

func TestAutoDeliverToggle(t *testing.T) {
	h := newHarness(t, "a reasonably long transcript")
	h.orch.SetAutoDeliver(true)
	h.oneSession()
	if !h.inj.LastAuto() {
		t.Error("auto-deliver not passed to injector")
	}

	h.orch.SetAutoDeliver(false)
	h.oneSession()
	if h.inj.LastAuto() {
		t.Error("auto-deliver should be off for the second session")
	}
}

func TestSequentialSessions(t *testing.T) {
	h := newHarness(t, "a reasonably long transcript")
	for i := 0; i < 3; i++ {
		h.oneSession()
	}

	if h.trans.Calls() != 3 {
		t.Errorf("transcribe calls = %d, want 3", h.trans.Calls())
	}
	if h.orch.Delivered() != 3 {
		t.Errorf("delivered = %d, want 3", h.orch.Delivered())
	}
	if h.dev.Starts != 1 {
		t.Errorf("device starts = %d, want 1 (stream stays open)", h.dev.Starts)
	}
}

func TestObserverEventOrder(t *testing.T) {
	h := newHarness(t, "a reasonably long transcript")
	h.oneSession()

	want := []string{"recording", "processing", "success", "idle"}
	got := h.obs.Events()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestNilObserver(t *testing.T) {
	dev := &audio.FakeCapture{}
	orch := NewOrchestrator(
		capture.NewEngine(dev, capture.SampleRate),
		transcriber.NewFake("a reasonably long transcript", nil),
		&formatter.Spy{}, inject.NewFake(), nil,
		Config{ScratchPath: filepath.Join(t.TempDir(), "utt.wav")},
	)
	orch.OnPress()
	dev.Feed(loudFrame(capture.SampleRate))
	orch.OnRelease() // must not panic
}

// A press on the hotkey goroutine and a shutdown from the signal handler
// can land at the same time; the amplitude feed must survive both orders
// without a double close.
func TestShutdownDuringPress(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness(t, "a reasonably long transcript")
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.orch.OnPress()
		}()
		go func() {
			defer wg.Done()
			h.orch.Shutdown()
		}()
		wg.Wait()
		h.orch.Shutdown()
	}
}

func TestShutdownDuringRelease(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness(t, "a reasonably long transcript")
		h.orch.OnPress()
		h.dev.Feed(loudFrame(capture.SampleRate))
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.orch.OnRelease()
		}()
		go func() {
			defer wg.Done()
			h.orch.Shutdown()
		}()
		wg.Wait()
	}
}

func TestPhaseString(t *testing.T) {
	cases := map[Phase]string{
		PhaseIdle:       "idle",
		PhaseRecording:  "recording",
		PhaseProcessing: "processing",
		Phase(99):       "unknown",
	}
	for phase, want := range cases {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", phase, got, want)
		}
	}
}
