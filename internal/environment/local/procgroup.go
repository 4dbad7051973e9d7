package local

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/slok/envctl/internal/log"
)

// drainTimeout is how long we wait for the output pipes to be closed once the
// process has exited, descendants that escaped the group may keep them open.
const drainTimeout = 500 * time.Millisecond

// groupState is the lifecycle state of a process group.
type groupState int

const (
	stateRunning groupState = iota
	stateGrace
	stateKilled
	stateReaped
)

func (s groupState) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateGrace:
		return "grace-period"
	case stateKilled:
		return "force-killed"
	case stateReaped:
		return "reaped"
	}
	return "unknown"
}

// signalFunc sends a signal to a whole process group.
type signalFunc func(pgid int, sig os.Signal) error

// processGroup runs a command as the leader of its own process group and
// owns the termination protocol:
//
//	running --timeout--> grace (SIGTERM to group) --grace period--> killed (SIGKILL to group)
//	   |                   |                                          |
//	   +------exit---------+-------------------exit-------------------+--> reaped
type processGroup struct {
	cmd         *exec.Cmd
	gracePeriod time.Duration
	signal      signalFunc
	groupAlive  func(pgid int) bool
	logger      log.Logger
	// onTransition is called on every state change, used to observe the machine.
	onTransition func(from, to groupState)

	mu      sync.Mutex
	state   groupState
	done    chan struct{}
	waitErr error
	// cancelledAt is when the timeout or the context cancellation fired.
	cancelledAt time.Time
}

func newProcessGroup(cmd *exec.Cmd, gracePeriod time.Duration, signal signalFunc, logger log.Logger) *processGroup {
	cmd.SysProcAttr = newSessionSysProcAttr()
	cmd.WaitDelay = drainTimeout

	return &processGroup{
		cmd:          cmd,
		gracePeriod:  gracePeriod,
		signal:       signal,
		groupAlive:   processGroupAlive,
		logger:       logger,
		onTransition: func(from, to groupState) {},
		done:         make(chan struct{}),
	}
}

// start starts the process and the reaper.
func (p *processGroup) start() error {
	if err := p.cmd.Start(); err != nil {
		return err
	}

	go func() {
		err := p.cmd.Wait()
		// Output still held open by escaped descendants is not a command failure.
		if errors.Is(err, exec.ErrWaitDelay) {
			err = nil
		}
		p.mu.Lock()
		p.waitErr = err
		p.mu.Unlock()
		p.transition(stateReaped)
		close(p.done)
	}()

	return nil
}

// wait waits for the process to finish. If the timeout (zero means none)
// expires or the context is cancelled the group is terminated. Returns true
// if the process had to be terminated, in case of context cancellation the
// context error is returned too.
func (p *processGroup) wait(ctx context.Context, timeout time.Duration) (terminated bool, err error) {
	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	var cancelErr error
	select {
	case <-p.done:
		return false, p.exitErr()
	case <-timeoutC:
		p.logger.Debugf("Command timed out after %s, terminating process group", timeout)
	case <-ctx.Done():
		p.logger.Debugf("Context done, terminating process group")
		cancelErr = ctx.Err()
	}

	p.mu.Lock()
	p.cancelledAt = time.Now()
	p.mu.Unlock()

	if !p.terminate() {
		// Finished on its own while we were deciding.
		<-p.done
		return false, p.exitErr()
	}

	grace := time.NewTimer(p.gracePeriod)
	defer grace.Stop()

	select {
	case <-p.done:
		// The leader is reaped but descendants ignoring SIGTERM can still be
		// in the group holding the output open.
		if p.groupAlive(p.cmd.Process.Pid) {
			p.logger.Debugf("Process group %d outlived its leader, force killing", p.cmd.Process.Pid)
			p.sendSignal(os.Kill)
		}
	case <-grace.C:
		p.kill()
		<-p.done
	}

	return true, cancelErr
}

// terminate asks the whole group to stop (running -> grace). Returns false
// if the process was not running anymore.
func (p *processGroup) terminate() bool {
	if !p.transitionFrom(stateRunning, stateGrace) {
		return false
	}
	p.sendSignal(terminateSignal)
	return true
}

// kill forces the whole group to stop (grace -> killed).
func (p *processGroup) kill() {
	if !p.transitionFrom(stateGrace, stateKilled) {
		return
	}
	p.sendSignal(os.Kill)
}

func (p *processGroup) sendSignal(sig os.Signal) {
	// The group may already be gone, that is the goal anyway.
	if err := p.signal(p.cmd.Process.Pid, sig); err != nil {
		p.logger.Debugf("Could not signal process group %d with %s: %v", p.cmd.Process.Pid, sig, err)
	}
}

func (p *processGroup) transitionFrom(from, to groupState) bool {
	p.mu.Lock()
	if p.state != from {
		p.mu.Unlock()
		return false
	}
	p.state = to
	p.mu.Unlock()

	p.onTransition(from, to)
	return true
}

func (p *processGroup) transition(to groupState) {
	p.mu.Lock()
	from := p.state
	p.state = to
	p.mu.Unlock()

	p.onTransition(from, to)
}

func (p *processGroup) currentState() groupState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *processGroup) exitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}
