//go:build windows

package backend

import "os/exec"

// Windows has no process groups in the unix sense; the direct child is all
// we can address.
func setProcGroup(cmd *exec.Cmd) {}

func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func kill(cmd *exec.Cmd) {
	cmd.Process.Kill()
}
