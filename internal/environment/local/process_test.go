//go:build unix

package local_test

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

// processAlive returns true if the process exists and is not a zombie
// waiting to be reaped by an init that may never do it.
func processAlive(t *testing.T, pid string) bool {
	t.Helper()

	p, err := strconv.Atoi(strings.TrimSpace(pid))
	require.NoError(t, err)

	if syscall.Kill(p, 0) != nil {
		return false
	}

	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", p))
	if err != nil {
		return true
	}
	// pid (comm) state ...
	fields := strings.Fields(string(stat[strings.LastIndexByte(string(stat), ')')+1:]))
	return len(fields) == 0 || fields[0] != "Z"
}
