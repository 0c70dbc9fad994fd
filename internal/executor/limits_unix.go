//go:build !windows && !linux

package executor

import (
	"os/exec"
	"syscall"
)

// setProcessGroup gives the enumeration tool its own process group so a
// timed-out netstat or lsof can be reaped together with its children.
// No Pdeathsig here: that knob is Linux-only.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
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
