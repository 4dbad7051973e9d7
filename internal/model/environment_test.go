package model_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/envctl/internal/model"
)

func TestNewEnvError(t *testing.T) {
	tests := map[string]struct {
		category model.ErrorCategory
		expErr   bool
	}{
		"Transport category should be valid.": {
			category: model.ErrorCategoryTransport,
		},

		"Operation category should be valid.": {
			category: model.ErrorCategoryOperation,
		},

		"Any other category should fail.": {
			category: "fatal",
			expErr:   true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			envErr, err := model.NewEnvError(test.category, "code", "msg", model.EnvTypeLocal, nil)

			if test.expErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, model.ErrNotValid))
				assert.Nil(t, envErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, test.category, envErr.Category)
			}
		})
	}
}

func TestEnvErrorToToolError(t *testing.T) {
	err := model.OperationError(model.ErrCodeFileNotFound, model.EnvTypeDocker, model.ErrNotFound, "file not found: %s", "a.txt")

	exp := map[string]any{
		"error_type":  "operation",
		"error_code":  "file_not_found",
		"message":     "file not found: a.txt",
		"retriable":   false,
		"environment": "docker",
	}
	assert.Equal(t, exp, err.ToToolError())
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestToToolError(t *testing.T) {
	tests := map[string]struct {
		err          error
		expType      string
		expCode      string
		expRetriable bool
	}{
		"A wrapped not found should be an operation file not found.": {
			err:     fmt.Errorf("reading: %w", model.ErrNotFound),
			expType: "operation",
			expCode: model.ErrCodeFileNotFound,
		},

		"A not unique edit should be classified before the generic ambiguous edit.": {
			err:     fmt.Errorf("edit: %w: %w", model.ErrAmbiguousEdit, model.ErrNotUnique),
			expType: "operation",
			expCode: model.ErrCodeNotUnique,
		},

		"A path escape should be classified.": {
			err:     fmt.Errorf("x: %w", model.ErrPathEscape),
			expType: "operation",
			expCode: model.ErrCodePathEscape,
		},

		"A transport error should be retriable.": {
			err:          fmt.Errorf("x: %w", model.ErrTransport),
			expType:      "transport",
			expCode:      model.ErrCodeConnectionLost,
			expRetriable: true,
		},

		"An EnvError should keep its own fields.": {
			err:     fmt.Errorf("wrapped: %w", model.OperationError("custom", model.EnvTypeSSH, nil, "boom")),
			expType: "operation",
			expCode: "custom",
		},

		"An unknown error should be an unknown operation error.": {
			err:     errors.New("something"),
			expType: "operation",
			expCode: model.ErrCodeUnknown,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			got := model.ToToolError(test.err, model.EnvTypeSSH)

			assert.Equal(test.expType, got["error_type"])
			assert.Equal(test.expCode, got["error_code"])
			assert.Equal(test.expRetriable, got["retriable"])
			assert.Equal("ssh", got["environment"])
		})
	}
}
