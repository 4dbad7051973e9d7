//go:build unix

package local

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// osVersion returns the `uname -sr` equivalent.
func osVersion() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return runtime.GOOS
	}
	return unix.ByteSliceToString(u.Sysname[:]) + " " + unix.ByteSliceToString(u.Release[:])
}
