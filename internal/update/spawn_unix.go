//go:build !windows

package update

import (
	"os"
	"os/exec"
	"syscall"
)

// detach puts the child in its own session. It keeps the terminal as its
// standard streams so prompts and progress stay visible.
func detach(cmd *exec.Cmd) {
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
