package model

import "time"

// ExitCodeTimeout is the exit code of a command that was killed because it timed out.
// Real processes never report a negative exit code.
const ExitCodeTimeout = -1

// ExecOpts contains options for executing a command in an environment.
type ExecOpts struct {
	// Timeout bounds the command execution, zero means no timeout.
	Timeout time.Duration
	// WorkingDir is the directory to run the command in (optional).
	WorkingDir string
	// Env contains additional environment variables for this exec, these
	// are always visible to the command regardless of the inheritance policy.
	Env map[string]string
}

// ExecResult contains the result of an exec operation.
type ExecResult struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	TimedOut   bool   `json:"timed_out"`
	DurationMS int64  `json:"duration_ms"`
}

// ReadOpts contains options for reading a file.
type ReadOpts struct {
	// Offset is the 1-indexed first line to return, zero means from the start.
	Offset int
	// Limit is the number of lines to return, zero means all.
	Limit int
}

// GrepOpts contains options for searching file contents.
type GrepOpts struct {
	// Path is the directory or file to search, empty means the backend default.
	Path string
	// Glob restricts the search to file names matching this pattern.
	Glob            string
	CaseInsensitive bool
	// MaxResults is the max matches per file, zero means unlimited.
	MaxResults int
}
