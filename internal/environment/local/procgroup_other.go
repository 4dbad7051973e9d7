//go:build !unix

package local

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

const terminateSignal = os.Kill

func newSessionSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}

// signalProcessGroup can only kill the direct child on this platform.
func signalProcessGroup(pid int, sig os.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	err = proc.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// processGroupAlive can't see descendants on this platform, once the
// leader is reaped there is nothing left we can signal.
func processGroupAlive(pid int) bool { return false }

func exitCode(state *os.ProcessState, err error) int {
	if state == nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 1
		}
		state = exitErr.ProcessState
	}
	if code := state.ExitCode(); code >= 0 {
		return code
	}
	return 1
}
