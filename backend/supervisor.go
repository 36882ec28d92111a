// Package backend supervises the local transcription server process. The
// supervisor spawns whisper-server, waits for its TCP port to accept
// connections, and tears it down on shutdown. A backend that is already
// listening (started outside this process) is adopted as-is and never
// touched by Stop.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"murmur/log"
)

type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateReady
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

var (
	ErrProcessExited  = errors.New("backend process exited before becoming ready")
	ErrTimeout        = errors.New("timed out waiting for backend")
	ErrAlreadyRunning = errors.New("backend start already in flight")
)

const probeDialTimeout = 250 * time.Millisecond

type Config struct {
	Binary    string
	ModelPath string
	Host      string
	Port      int

	// Readiness polling; zero values take the defaults below.
	ProbeInterval time.Duration
	ProbeAttempts int
	GracePeriod   time.Duration
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = 500 * time.Millisecond
	}
	if c.ProbeAttempts == 0 {
		c.ProbeAttempts = 20
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = 5 * time.Second
	}
}

type Supervisor struct {
	cfg Config

	mu     sync.Mutex
	state  State
	cmd    *exec.Cmd
	waitCh chan error
}

func New(cfg Config) *Supervisor {
	cfg.applyDefaults()
	return &Supervisor{cfg: cfg, state: StateNotStarted}
}

func (s *Supervisor) Endpoint() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EnsureRunning brings the backend to Ready and returns its endpoint. If the
// configured port already accepts connections, the externally-started server
// is adopted without spawning anything. Otherwise the server binary is
// spawned and the port polled until ready, the child exits (ErrProcessExited)
// or the attempt budget runs out (ErrTimeout). All errors leave the host
// application in a degraded mode rather than crashing it.
func (s *Supervisor) EnsureRunning(ctx context.Context) (string, error) {
	s.mu.Lock()
	switch s.state {
	case StateStarting:
		s.mu.Unlock()
		return "", ErrAlreadyRunning
	case StateReady:
		s.mu.Unlock()
		return s.Endpoint(), nil
	}
	s.state = StateStarting
	s.mu.Unlock()

	endpoint := s.Endpoint()
	if portOpen(endpoint) {
		log.Info("backend already listening on " + endpoint)
		s.setState(StateReady)
		return endpoint, nil
	}

	cmd := exec.Command(s.cfg.Binary,
		"-m", s.cfg.ModelPath,
		"--port", strconv.Itoa(s.cfg.Port),
		"--host", s.cfg.Host,
	)
	// Stdout/Stderr stay nil: the child talks to /dev/null, not our terminal.
	setProcGroup(cmd)
	if err := cmd.Start(); err != nil {
		s.setState(StateFailed)
		return "", fmt.Errorf("spawning backend: %w", err)
	}
	log.Infof("backend spawned: %s (pid=%d)", s.cfg.Binary, cmd.Process.Pid)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	s.mu.Lock()
	s.cmd = cmd
	s.waitCh = waitCh
	s.mu.Unlock()

	ticker := time.NewTicker(s.cfg.ProbeInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < s.cfg.ProbeAttempts; attempt++ {
		select {
		case <-ctx.Done():
			s.Stop()
			return "", ctx.Err()
		case err := <-waitCh:
			s.mu.Lock()
			s.cmd = nil
			s.waitCh = nil
			s.state = StateFailed
			s.mu.Unlock()
			log.Errorf("backend exited during startup: %v", err)
			return "", fmt.Errorf("%w: %v", ErrProcessExited, err)
		case <-ticker.C:
			if portOpen(endpoint) {
				log.Info("backend ready on " + endpoint)
				s.setState(StateReady)
				return endpoint, nil
			}
		}
	}

	// The child stays under supervision; Stop tears it down.
	s.setState(StateFailed)
	return "", ErrTimeout
}

// Stop terminates a spawned backend's process group: SIGTERM, bounded
// grace, then SIGKILL. No-op when nothing was spawned (externally-managed
// backends are left untouched).
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cmd := s.cmd
	waitCh := s.waitCh
	s.cmd = nil
	s.waitCh = nil
	s.state = StateStopped
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}

	log.Infof("stopping backend (pid=%d)", cmd.Process.Pid)
	if err := terminate(cmd); err != nil {
		kill(cmd)
		<-waitCh
		return
	}

	select {
	case <-waitCh:
	case <-time.After(s.cfg.GracePeriod):
		log.Warn("backend did not exit in grace period, killing")
		kill(cmd)
		<-waitCh
	}
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func portOpen(endpoint string) bool {
	conn, err := net.DialTimeout("tcp", endpoint, probeDialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
