package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"murmur/audio"
	"murmur/backend"
	"murmur/beep"
	"murmur/capture"
	"murmur/config"
	"murmur/formatter"
	"murmur/hotkey"
	"murmur/inject"
	"murmur/log"
	"murmur/session"
	"murmur/shutdown"
	"murmur/transcriber"
)

var version = "dev"

var (
	orch         *session.Orchestrator
	sup          *backend.Supervisor
	shutdownOnce sync.Once
)

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		if orch != nil {
			orch.Shutdown()
			if n := orch.Delivered(); n > 0 {
				log.SessionEnd(n)
			}
		}
		if sup != nil {
			sup.Stop()
		}
		log.Close()
		if tuiProgram != nil {
			tuiProgram.Quit()
		}
		os.Exit(0)
	})
}

func main() {
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	modeFlag := flag.String("mode", "", "Formatting mode: email or message (overrides MODE)")
	autoPasteFlag := flag.Bool("autopaste", true, "Auto-paste to focused window after transcription")
	chordFlag := flag.String("chord", "", "Push-to-talk chord, e.g. ctrl+space (overrides CHORD)")
	beepFlag := flag.Bool("beep", true, "Play audio cues on recording start/stop")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("murmur %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *modeFlag != "" {
		if *modeFlag != formatter.ModeEmail && *modeFlag != formatter.ModeMessage {
			fmt.Fprintf(os.Stderr, "Error: unknown mode %q (use email or message)\n", *modeFlag)
			os.Exit(1)
		}
		cfg.Mode = *modeFlag
	}
	if *chordFlag != "" {
		cfg.Chord = *chordFlag
	}
	cfg.AutoPaste = cfg.AutoPaste && *autoPasteFlag
	if !*beepFlag {
		beep.Disable()
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	log.SessionStart(cfg.Endpoint(), cfg.Mode, cfg.AutoPaste)

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := ctx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			fmt.Printf("Warning: device %q not found, using default\n", *deviceFlag)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	dev, err := ctx.OpenCapture(selectedDevice, audio.StreamConfig{
		SampleRate: capture.SampleRate,
		Channels:   capture.Channels,
	})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Printf("Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	if selectedDevice != nil && audio.IsBluetooth(selectedDevice.Name) {
		fmt.Println("Warning: bluetooth microphones add latency and often capture at low quality")
	}
	engine := capture.NewEngine(dev, capture.SampleRate)

	backendLine := "backend: " + cfg.Endpoint()
	if err := cfg.Validate(); err != nil {
		log.Warnf("backend validation: %v", err)
		fmt.Printf("Warning: %v\n", err)
	}
	sup = backend.New(backend.Config{
		Binary:    cfg.WhisperBin,
		ModelPath: cfg.WhisperModel,
		Host:      cfg.WhisperHost,
		Port:      cfg.WhisperPort,
	})
	endpoint, err := sup.EnsureRunning(context.Background())
	if err != nil {
		// Degraded mode: dictation still records, transcription fails fast.
		log.Errorf("backend start failed: %v", err)
		fmt.Printf("Warning: transcription backend unavailable: %v\n", err)
		endpoint = cfg.Endpoint()
		backendLine = "backend: UNAVAILABLE (" + cfg.Endpoint() + ")"
	}

	orch = session.NewOrchestrator(
		engine,
		transcriber.NewServer(endpoint, cfg.WhisperTimeout),
		formatter.NewLLM(cfg.OpenAIAPIKey, cfg.LLMAPIURL, cfg.LLMModel, 0),
		inject.NewClipboard(),
		tuiObserver{},
		session.Config{
			ScratchPath: cfg.ScratchPath,
			Mode:        cfg.Mode,
			AutoDeliver: cfg.AutoPaste,
		},
	)

	hk, err := hotkey.New(cfg.Chord)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Printf("Error registering hotkey: %v\n", err)
		os.Exit(1)
	}
	defer hk.Unregister()

	if *tuiFlag {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram(cfg.Chord, cycleMode, toggleAutoPaste)
		tuiMu.Unlock()

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown()
		}()

		tuiSend(StatusMsg{Mode: cfg.Mode, AutoPaste: cfg.AutoPaste})
		tuiSend(BackendLineMsg{Text: backendLine})
	} else {
		fmt.Printf("murmur ready — hold %s to dictate\n", cfg.Chord)
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown()
	}()

	for {
		select {
		case <-hk.Keydown():
			log.Info("hotkey_down")
			if orch.Phase() == session.PhaseIdle {
				beep.PlayStart()
			}
			orch.OnPress()
		case <-hk.Keyup():
			log.Info("hotkey_up")
			if orch.Phase() == session.PhaseRecording {
				beep.PlayEnd()
			}
			orch.OnRelease()
		}
	}
}

func cycleMode() string {
	mode := formatter.ModeEmail
	if orch.Mode() == formatter.ModeEmail {
		mode = formatter.ModeMessage
	}
	orch.SetMode(mode)
	log.Info("mode_switch: " + mode)
	return mode
}

func toggleAutoPaste() bool {
	on := !orch.AutoDeliver()
	orch.SetAutoDeliver(on)
	log.Infof("auto_paste: %v", on)
	return on
}
