package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrNotUnique is returned when an exact string edit matches more than once.
	ErrNotUnique = errors.New("not unique")
	// ErrAmbiguousEdit is returned when an exact string edit does not match exactly once.
	ErrAmbiguousEdit = errors.New("ambiguous edit")
	// ErrPathEscape is returned when a path resolves outside the working directory.
	ErrPathEscape = errors.New("path escapes working directory")
	// ErrPermissionDenied is returned when an operation is blocked by policy.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTransport is returned when the environment itself can't be reached.
	ErrTransport = errors.New("environment unreachable")
)
