package docker

import (
	"context"
	"time"
)

// Operation is the container operation requested to an Invoker.
type Operation string

const (
	OperationExec    Operation = "exec"
	OperationCreate  Operation = "create"
	OperationDestroy Operation = "destroy"
	OperationStatus  Operation = "status"
)

// Request is a container operation request.
type Request struct {
	Operation Operation
	// Container is the container ID or name.
	Container string
	// Command is the shell command to run on exec.
	Command string
	// WorkDir is the working directory of the exec, empty means the container one.
	WorkDir string
	// Timeout bounds the exec, zero means no timeout.
	Timeout time.Duration
	// ComposeProject destroys the whole compose stack instead of a single container.
	ComposeProject string
	// Image, Name and Env are used on create.
	Image string
	Name  string
	Env   map[string]string
}

// Response is the result of a container operation.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Container is the ID of the affected container.
	Container string
	// Status is the container state on status and create.
	Status string
}

// Invoker runs container operations. Errors are reserved for failures to
// reach the container runtime or the container, a command failing on exec
// is a response with a non zero exit code.
type Invoker interface {
	Invoke(ctx context.Context, r Request) (*Response, error)
}

// InvokerFunc is a helper to use functions as Invokers.
type InvokerFunc func(ctx context.Context, r Request) (*Response, error)

func (f InvokerFunc) Invoke(ctx context.Context, r Request) (*Response, error) { return f(ctx, r) }
