// Package wrapper has the backend decorators. A wrapper is itself an
// environment.Backend that forwards to an inner one, so wrappers nest.
package wrapper

import (
	"fmt"
	"slices"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
)

// Wrapper names.
const (
	NameLogging  = model.WrapperLogging
	NameReadOnly = model.WrapperReadOnly
)

// Validate checks that all the wrapper names are known.
func Validate(names []string) error {
	for _, n := range names {
		switch n {
		case NameLogging, NameReadOnly:
		default:
			return fmt.Errorf("unknown wrapper %q (must be %s or %s): %w", n, NameLogging, NameReadOnly, model.ErrNotValid)
		}
	}
	return nil
}

// Apply wraps b with the named wrappers. The order of names doesn't matter,
// read-only is always the inner one so a blocked write is still logged.
func Apply(b environment.Backend, names []string, logger log.Logger) (environment.Backend, error) {
	if err := Validate(names); err != nil {
		return nil, err
	}

	if slices.Contains(names, NameReadOnly) {
		b = NewReadOnly(b)
	}
	if slices.Contains(names, NameLogging) {
		b = NewLogging(b, logger)
	}

	return b, nil
}
