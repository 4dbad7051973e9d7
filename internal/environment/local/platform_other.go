//go:build !unix

package local

import "runtime"

func osVersion() string { return runtime.GOOS + " " + runtime.GOARCH }
