//go:build unix

package compiler

import (
	"os/exec"
	"syscall"
)

// isolate runs cmd in its own process group, so that cancelling kills the compiler processes
// cargo started as well as cargo itself
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay
}
