package model

import (
	"errors"
	"fmt"
)

// EnvType is the kind of execution environment backing an instance.
type EnvType string

const (
	EnvTypeLocal  EnvType = "local"
	EnvTypeDocker EnvType = "docker"
	EnvTypeSSH    EnvType = "ssh"
)

// Validate validates the environment type.
func (t EnvType) Validate() error {
	switch t {
	case EnvTypeLocal, EnvTypeDocker, EnvTypeSSH:
		return nil
	}
	return fmt.Errorf("unknown environment type %q (must be local, docker or ssh): %w", t, ErrNotValid)
}

// ErrorCategory splits failures between a broken environment and a failed request.
type ErrorCategory string

const (
	// ErrorCategoryTransport means the environment itself is unreachable or broken.
	ErrorCategoryTransport ErrorCategory = "transport"
	// ErrorCategoryOperation means the environment is healthy but the request failed.
	ErrorCategoryOperation ErrorCategory = "operation"
)

// Error codes used on EnvError.
const (
	ErrCodeFileNotFound     = "file_not_found"
	ErrCodeNotUnique        = "not_unique"
	ErrCodeStringNotFound   = "string_not_found"
	ErrCodePathEscape       = "path_escape"
	ErrCodePermissionDenied = "permission_denied"
	ErrCodeInvalid          = "invalid"
	ErrCodeGrepFailed       = "grep_failed"
	ErrCodeInstanceNotFound = "instance_not_found"
	ErrCodeAlreadyExists    = "already_exists"
	ErrCodeConnectionLost   = "connection_lost"
	ErrCodeUnknown          = "unknown"
)

// EnvError is the structured failure surfaced to callers of environment operations.
//
// Retriable is only a hint, nothing in this module retries.
type EnvError struct {
	Category    ErrorCategory
	Code        string
	Message     string
	Retriable   bool
	Environment EnvType

	err error
}

// NewEnvError returns a new EnvError, cause is optional and is used for
// errors.Is/As matching.
func NewEnvError(category ErrorCategory, code, message string, env EnvType, cause error) (*EnvError, error) {
	switch category {
	case ErrorCategoryTransport, ErrorCategoryOperation:
	default:
		return nil, fmt.Errorf("invalid error category %q: %w", category, ErrNotValid)
	}

	return &EnvError{
		Category:    category,
		Code:        code,
		Message:     message,
		Retriable:   category == ErrorCategoryTransport,
		Environment: env,
		err:         cause,
	}, nil
}

// OperationError returns an operation EnvError. It never fails as the category is known.
func OperationError(code string, env EnvType, cause error, format string, args ...any) *EnvError {
	e, _ := NewEnvError(ErrorCategoryOperation, code, fmt.Sprintf(format, args...), env, cause)
	return e
}

// TransportError returns a transport EnvError. It never fails as the category is known.
func TransportError(code string, env EnvType, cause error, format string, args ...any) *EnvError {
	if cause == nil {
		cause = ErrTransport
	} else {
		cause = fmt.Errorf("%w: %w", ErrTransport, cause)
	}
	e, _ := NewEnvError(ErrorCategoryTransport, code, fmt.Sprintf(format, args...), env, cause)
	return e
}

func (e *EnvError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EnvError) Unwrap() error { return e.err }

// ToToolError converts the error into the plain map used by tool results.
func (e *EnvError) ToToolError() map[string]any {
	return map[string]any{
		"error_type":  string(e.Category),
		"error_code":  e.Code,
		"message":     e.Message,
		"retriable":   e.Retriable,
		"environment": string(e.Environment),
	}
}

// ToToolError converts any error into the tool error map. EnvErrors keep
// their own fields, wrapped sentinels are classified as operation errors.
func ToToolError(err error, env EnvType) map[string]any {
	var envErr *EnvError
	if errors.As(err, &envErr) {
		return envErr.ToToolError()
	}

	code := ErrCodeUnknown
	switch {
	case errors.Is(err, ErrNotUnique):
		code = ErrCodeNotUnique
	case errors.Is(err, ErrAmbiguousEdit):
		code = ErrCodeStringNotFound
	case errors.Is(err, ErrNotFound):
		code = ErrCodeFileNotFound
	case errors.Is(err, ErrPathEscape):
		code = ErrCodePathEscape
	case errors.Is(err, ErrPermissionDenied):
		code = ErrCodePermissionDenied
	case errors.Is(err, ErrAlreadyExists):
		code = ErrCodeAlreadyExists
	case errors.Is(err, ErrNotValid):
		code = ErrCodeInvalid
	case errors.Is(err, ErrTransport):
		return TransportError(ErrCodeConnectionLost, env, err, "%s", err).ToToolError()
	}

	return OperationError(code, env, err, "%s", err).ToToolError()
}
