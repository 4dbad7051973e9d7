package environment_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/model"
)

func TestReplaceOnce(t *testing.T) {
	tests := map[string]struct {
		content    string
		old        string
		new        string
		expContent string
		expErrs    []error
	}{
		"A single occurrence should be replaced.": {
			content:    "hello world",
			old:        "world",
			new:        "gopher",
			expContent: "hello gopher",
		},

		"Replacement should be literal, not a regex.": {
			content:    "a.b a+b",
			old:        "a+b",
			new:        "$1",
			expContent: "a.b $1",
		},

		"No occurrence should fail as not found.": {
			content: "hello",
			old:     "bye",
			expErrs: []error{model.ErrAmbiguousEdit, model.ErrNotFound},
		},

		"Multiple occurrences should fail as not unique.": {
			content: "x x",
			old:     "x",
			expErrs: []error{model.ErrAmbiguousEdit, model.ErrNotUnique},
		},

		"Empty old string should fail.": {
			content: "x",
			old:     "",
			expErrs: []error{model.ErrNotValid},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			got, err := environment.ReplaceOnce(test.content, "f.txt", test.old, test.new)

			if len(test.expErrs) > 0 {
				for _, expErr := range test.expErrs {
					assert.True(errors.Is(err, expErr), "expected %v in %v", expErr, err)
				}
				return
			}
			assert.NoError(err)
			assert.Equal(test.expContent, got)
			assert.Equal(strings.Replace(test.content, test.old, test.new, 1), got)
		})
	}
}
