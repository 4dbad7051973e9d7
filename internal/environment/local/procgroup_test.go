//go:build unix

package local

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/envctl/internal/log"
)

type transitionRecorder struct {
	mu          sync.Mutex
	transitions [][2]groupState
}

func (r *transitionRecorder) record(from, to groupState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, [2]groupState{from, to})
}

func (r *transitionRecorder) get() [][2]groupState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]groupState{}, r.transitions...)
}

func TestProcessGroupTransitions(t *testing.T) {
	tests := map[string]struct {
		script         string
		timeout        time.Duration
		signal         signalFunc
		expTerminated  bool
		expTransitions [][2]groupState
	}{
		"A process that exits before the timeout should be reaped directly.": {
			script:        "exit 0",
			timeout:       5 * time.Second,
			expTerminated: false,
			expTransitions: [][2]groupState{
				{stateRunning, stateReaped},
			},
		},

		"A process that honors SIGTERM should end in the grace period.": {
			script:        "sleep 10",
			timeout:       100 * time.Millisecond,
			expTerminated: true,
			expTransitions: [][2]groupState{
				{stateRunning, stateGrace},
				{stateGrace, stateReaped},
			},
		},

		"A process that traps SIGTERM should be force killed after the grace period.": {
			script:        `trap "" TERM; while true; do sleep 0.05; done`,
			timeout:       100 * time.Millisecond,
			expTerminated: true,
			expTransitions: [][2]groupState{
				{stateRunning, stateGrace},
				{stateGrace, stateKilled},
				{stateKilled, stateReaped},
			},
		},

		"Signal errors should be ignored and still force kill.": {
			script:  "sleep 10",
			timeout: 100 * time.Millisecond,
			signal: func(pgid int, sig os.Signal) error {
				if sig == os.Kill {
					return signalProcessGroup(pgid, sig)
				}
				return errors.New("something")
			},
			expTerminated: true,
			expTransitions: [][2]groupState{
				{stateRunning, stateGrace},
				{stateGrace, stateKilled},
				{stateKilled, stateReaped},
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			assert := assert.New(t)

			signal := test.signal
			if signal == nil {
				signal = signalProcessGroup
			}

			rec := &transitionRecorder{}
			pg := newProcessGroup(exec.Command("/bin/sh", "-c", test.script), 300*time.Millisecond, signal, log.Noop)
			pg.onTransition = rec.record

			require.NoError(pg.start())
			terminated, _ := pg.wait(context.Background(), test.timeout)

			assert.Equal(test.expTerminated, terminated)
			assert.Equal(test.expTransitions, rec.get())
			assert.Equal(stateReaped, pg.currentState())
		})
	}
}

func TestProcessGroupNoTimeout(t *testing.T) {
	pg := newProcessGroup(exec.Command("/bin/sh", "-c", "exit 4"), time.Second, signalProcessGroup, log.Noop)
	require.NoError(t, pg.start())

	terminated, err := pg.wait(context.Background(), 0)
	assert.False(t, terminated)
	assert.Equal(t, 4, exitCode(pg.cmd.ProcessState, err))
}

func TestProcessGroupContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pg := newProcessGroup(exec.Command("/bin/sh", "-c", "sleep 10"), time.Second, signalProcessGroup, log.Noop)
	require.NoError(t, pg.start())

	time.AfterFunc(100*time.Millisecond, cancel)
	terminated, err := pg.wait(ctx, 0)
	assert.True(t, terminated)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, stateReaped, pg.currentState())
}

func TestProcessGroupOrphanedPipes(t *testing.T) {
	// The background child outlives the shell and keeps stdout open.
	cmd := exec.Command("/bin/sh", "-c", "sleep 5 & echo done")
	var out syncBuffer
	cmd.Stdout = &out

	pg := newProcessGroup(cmd, time.Second, signalProcessGroup, log.Noop)
	require.NoError(t, pg.start())
	t.Cleanup(func() { _ = signalProcessGroup(cmd.Process.Pid, os.Kill) })

	start := time.Now()
	terminated, err := pg.wait(context.Background(), 0)
	assert.False(t, terminated)
	assert.NoError(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, p...)
	return len(p), nil
}
