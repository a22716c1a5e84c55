//go:build !unix

package compiler

import (
	"os/exec"
)

func isolate(cmd *exec.Cmd) {
	cmd.WaitDelay = waitDelay
}
