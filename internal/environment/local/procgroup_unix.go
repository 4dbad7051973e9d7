//go:build unix

package local

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

const terminateSignal = syscall.SIGTERM

// newSessionSysProcAttr places the child in a new session, so it leads its
// own process group and all its descendants can be signaled together.
func newSessionSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// signalProcessGroup signals every process in the group (negative pid).
func signalProcessGroup(pgid int, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return errors.New("unsupported signal")
	}
	err := syscall.Kill(-pgid, s)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// processGroupAlive returns true while any process of the group exists.
func processGroupAlive(pgid int) bool {
	err := syscall.Kill(-pgid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// exitCode returns the exit code of a finished command, a process killed
// by a signal reports 128+signal like shells do.
func exitCode(state *os.ProcessState, err error) int {
	if state == nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 1
		}
		state = exitErr.ProcessState
	}

	status, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return state.ExitCode()
	}
	if status.Exited() {
		return status.ExitStatus()
	}
	if status.Signaled() {
		return 128 + int(status.Signal())
	}
	return 1
}
