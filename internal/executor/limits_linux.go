//go:build linux

package executor

import (
	"os/exec"
	"syscall"
)

// setProcessGroup gives the enumeration tool its own process group, and
// Pdeathsig so an orphaned netstat or lsof dies with us rather than
// lingering past the collection.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pgid:      0,
		Pdeathsig: syscall.SIGKILL,
	}
}

// killProcessGroup tears down a timed-out tool together with anything it
// spawned. Falls back to killing just the lead process when the group
// id cannot be read.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Kill()
	}
	return syscall.Kill(-pgid, syscall.SIGKILL)
}
