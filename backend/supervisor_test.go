//go:build !windows

package backend

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

// writeScript drops an executable shell script that ignores the server
// arguments, standing in for the backend binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-server")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEnsureRunningAdoptsOpenPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	// Binary that would fail loudly if spawned.
	sup := New(Config{Binary: "/nonexistent/no-such-server", Port: port})

	endpoint, err := sup.EnsureRunning(context.Background())
	if err != nil {
		t.Fatalf("EnsureRunning: %v", err)
	}
	want := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	if endpoint != want {
		t.Errorf("endpoint = %q, want %q", endpoint, want)
	}
	if sup.State() != StateReady {
		t.Errorf("state = %v, want ready", sup.State())
	}

	// Stop must not touch the externally-managed listener.
	sup.Stop()
	if _, err := net.DialTimeout("tcp", endpoint, time.Second); err != nil {
		t.Errorf("external listener killed by Stop: %v", err)
	}
}

func TestEnsureRunningProcessExited(t *testing.T) {
	bin := writeScript(t, "exit 1")
	sup := New(Config{
		Binary:        bin,
		Port:          freePort(t),
		ProbeInterval: 10 * time.Millisecond,
		ProbeAttempts: 50,
	})

	_, err := sup.EnsureRunning(context.Background())
	if !errors.Is(err, ErrProcessExited) {
		t.Fatalf("err = %v, want ErrProcessExited", err)
	}
	if sup.State() != StateFailed {
		t.Errorf("state = %v, want failed", sup.State())
	}
}

func TestEnsureRunningTimeout(t *testing.T) {
	// Stays alive but never opens the port.
	bin := writeScript(t, "sleep 30")
	sup := New(Config{
		Binary:        bin,
		Port:          freePort(t),
		ProbeInterval: 10 * time.Millisecond,
		ProbeAttempts: 5,
		GracePeriod:   100 * time.Millisecond,
	})

	start := time.Now()
	_, err := sup.EnsureRunning(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v, expected bounded wait", elapsed)
	}

	// Child is still supervised; Stop reaps it.
	sup.Stop()
	if sup.State() != StateStopped {
		t.Errorf("state = %v, want stopped", sup.State())
	}
}

func TestEnsureRunningSpawnFailure(t *testing.T) {
	sup := New(Config{Binary: "/nonexistent/no-such-server", Port: freePort(t)})
	if _, err := sup.EnsureRunning(context.Background()); err == nil {
		t.Fatal("expected spawn error")
	}
	if sup.State() != StateFailed {
		t.Errorf("state = %v, want failed", sup.State())
	}
}

func TestEnsureRunningBecomesReady(t *testing.T) {
	port := freePort(t)
	// Opens the port after a short delay, like a real server warming up.
	bin := writeScript(t, "sleep 0.1\nexec nc -l 127.0.0.1 "+strconv.Itoa(port))
	if _, err := os.Stat("/bin/nc"); err != nil {
		if _, err := os.Stat("/usr/bin/nc"); err != nil {
			t.Skip("nc not available")
		}
	}

	sup := New(Config{
		Binary:        bin,
		Port:          port,
		ProbeInterval: 20 * time.Millisecond,
		ProbeAttempts: 100,
		GracePeriod:   100 * time.Millisecond,
	})
	defer sup.Stop()

	endpoint, err := sup.EnsureRunning(context.Background())
	if err != nil {
		t.Fatalf("EnsureRunning: %v", err)
	}
	if endpoint == "" || sup.State() != StateReady {
		t.Errorf("endpoint=%q state=%v", endpoint, sup.State())
	}
}

func TestStopTerminatesProcessGroup(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "worker.pid")
	// Forks a worker the way whisper-server forks threads/helpers; Stop
	// must take the whole group down, not just the shell.
	bin := writeScript(t, "sleep 30 &\necho $! > "+pidFile+"\nwait")
	sup := New(Config{
		Binary:        bin,
		Port:          freePort(t),
		ProbeInterval: 10 * time.Millisecond,
		ProbeAttempts: 5,
		GracePeriod:   time.Second,
	})

	if _, err := sup.EnsureRunning(context.Background()); !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("worker pid file: %v", err)
	}
	workerPid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatal(err)
	}

	sup.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if syscall.Kill(workerPid, 0) != nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("worker pid %d still alive after Stop", workerPid)
}

func TestStopWithoutSpawnIsNoop(t *testing.T) {
	sup := New(Config{Binary: "whatever", Port: freePort(t)})
	sup.Stop()
	sup.Stop()
	if sup.State() != StateStopped {
		t.Errorf("state = %v, want stopped", sup.State())
	}
}

func TestEnsureRunningReadyShortCircuits(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	sup := New(Config{Binary: "/nonexistent", Port: port})
	if _, err := sup.EnsureRunning(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Second call returns the endpoint directly from Ready state.
	endpoint, err := sup.EnsureRunning(context.Background())
	if err != nil || endpoint == "" {
		t.Fatalf("second EnsureRunning: %q, %v", endpoint, err)
	}
}

func TestStateString(t *testing.T) {
	for st, want := range map[State]string{
		StateNotStarted: "not_started",
		StateStarting:   "starting",
		StateReady:      "ready",
		StateFailed:     "failed",
		StateStopped:    "stopped",
	} {
		if got := st.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", st, got, want)
		}
	}
}
