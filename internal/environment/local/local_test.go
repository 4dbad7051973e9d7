package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/envctl/internal/environment"
	"github.com/slok/envctl/internal/environment/local"
	"github.com/slok/envctl/internal/model"
)

func newTestBackend(t *testing.T, environ ...string) (*local.Backend, string) {
	t.Helper()

	dir := t.TempDir()
	b, err := local.NewBackend(local.BackendConfig{
		WorkingDir: dir,
		Environ:    func() []string { return environ },
	})
	require.NoError(t, err)

	// The working dir is resolved, temp dirs can be symlinks (e.g macOS).
	return b, b.WorkingDirectory()
}

func TestNewBackend(t *testing.T) {
	tests := map[string]struct {
		cfg    func(t *testing.T) local.BackendConfig
		expErr bool
	}{
		"A valid working dir should create the backend.": {
			cfg: func(t *testing.T) local.BackendConfig {
				return local.BackendConfig{WorkingDir: t.TempDir()}
			},
		},

		"A missing working dir should fail.": {
			cfg: func(t *testing.T) local.BackendConfig {
				return local.BackendConfig{WorkingDir: filepath.Join(t.TempDir(), "missing")}
			},
			expErr: true,
		},

		"A working dir that is a file should fail.": {
			cfg: func(t *testing.T) local.BackendConfig {
				f := filepath.Join(t.TempDir(), "file")
				require.NoError(t, os.WriteFile(f, []byte("x"), 0644))
				return local.BackendConfig{WorkingDir: f}
			},
			expErr: true,
		},

		"An invalid env policy should fail.": {
			cfg: func(t *testing.T) local.BackendConfig {
				return local.BackendConfig{WorkingDir: t.TempDir(), EnvPolicy: "wrong"}
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			b, err := local.NewBackend(test.cfg(t))
			if test.expErr {
				assert.Error(t, err)
				assert.Nil(t, b)
			} else if assert.NoError(t, err) {
				assert.Equal(t, model.EnvTypeLocal, b.Type())
				assert.NotEmpty(t, b.Platform())
				assert.NotEmpty(t, b.OSVersion())
			}
		})
	}
}

func TestBackendFileRoundTrip(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	b, _ := newTestBackend(t)

	require.NoError(b.WriteFile(ctx, "a/b/c.txt", "x"))

	got, err := b.ReadFile(ctx, "a/b/c.txt", model.ReadOpts{})
	require.NoError(err)
	assert.Equal("x", got)

	// Depth counts levels below the listed path like find -maxdepth, so the
	// file two directories down is at depth 3.
	entries, err := b.ListDir(ctx, ".", 2)
	require.NoError(err)
	assert.Equal([]model.FileEntry{
		{Name: "a", Type: model.EntryTypeDir},
		{Name: "a/b", Type: model.EntryTypeDir},
	}, entries)

	entries, err = b.ListDir(ctx, ".", 3)
	require.NoError(err)

	one := int64(1)
	assert.Contains(entries, model.FileEntry{Name: "a/b", Type: model.EntryTypeDir})
	assert.Contains(entries, model.FileEntry{Name: "a/b/c.txt", Type: model.EntryTypeFile, Size: &one})
}

func TestBackendListDir(t *testing.T) {
	ctx := context.Background()
	b, dir := newTestBackend(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "z/y"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bb"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "z/y/deep.txt"), []byte("deep"), 0644))

	names := func(entries []model.FileEntry) []string {
		var n []string
		for _, e := range entries {
			n = append(n, e.Name)
		}
		return n
	}

	tests := map[string]struct {
		path     string
		depth    int
		expNames []string
		expErr   bool
	}{
		"Depth 1 should list only the immediate children ordered by name.": {
			path:     ".",
			depth:    1,
			expNames: []string{"a.txt", "b.txt", "z"},
		},

		"Depth 0 should be treated as 1.": {
			path:     ".",
			expNames: []string{"a.txt", "b.txt", "z"},
		},

		"Depth 3 should return nested entries relative to the path.": {
			path:     ".",
			depth:    3,
			expNames: []string{"a.txt", "b.txt", "z", "z/y", "z/y/deep.txt"},
		},

		"Listing a subdirectory should name entries relative to it.": {
			path:     "z",
			depth:    2,
			expNames: []string{"y", "y/deep.txt"},
		},

		"Listing a file should fail.": {
			path:   "a.txt",
			expErr: true,
		},

		"Listing a missing directory should fail.": {
			path:   "missing",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			entries, err := b.ListDir(ctx, test.path, test.depth)
			if test.expErr {
				assert.ErrorIs(t, err, model.ErrNotFound)
			} else if assert.NoError(t, err) {
				assert.Equal(t, test.expNames, names(entries))
			}
		})
	}
}

func TestBackendReadFile(t *testing.T) {
	ctx := context.Background()
	b, dir := newTestBackend(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("l1\nl2\nl3\nl4\n"), 0644))

	tests := map[string]struct {
		path   string
		opts   model.ReadOpts
		exp    string
		expErr error
	}{
		"Reading without options should return the whole content.": {
			path: "f.txt",
			exp:  "l1\nl2\nl3\nl4\n",
		},

		"Reading with offset should start at the 1-indexed line.": {
			path: "f.txt",
			opts: model.ReadOpts{Offset: 2},
			exp:  "l2\nl3\nl4\n",
		},

		"Reading with offset and limit should return only those lines.": {
			path: "f.txt",
			opts: model.ReadOpts{Offset: 2, Limit: 2},
			exp:  "l2\nl3\n",
		},

		"Reading with an offset after the end should return nothing.": {
			path: "f.txt",
			opts: model.ReadOpts{Offset: 10},
			exp:  "",
		},

		"Reading a missing file should fail with not found.": {
			path:   "missing.txt",
			expErr: model.ErrNotFound,
		},

		"Reading outside the working dir should fail with path escape.": {
			path:   "../../etc/passwd",
			expErr: model.ErrPathEscape,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := b.ReadFile(ctx, test.path, test.opts)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
			} else if assert.NoError(t, err) {
				assert.Equal(t, test.exp, got)
			}
		})
	}
}

func TestBackendEditFile(t *testing.T) {
	tests := map[string]struct {
		content    string
		old        string
		new        string
		expContent string
		expErr     []error
	}{
		"A unique occurrence should be replaced.": {
			content:    "hello world",
			old:        "world",
			new:        "there",
			expContent: "hello there",
		},

		"A missing occurrence should fail and keep the file.": {
			content:    "hello world",
			old:        "nope",
			new:        "x",
			expContent: "hello world",
			expErr:     []error{model.ErrAmbiguousEdit, model.ErrNotFound},
		},

		"Multiple occurrences should fail and keep the file.": {
			content:    "a a a",
			old:        "a",
			new:        "b",
			expContent: "a a a",
			expErr:     []error{model.ErrAmbiguousEdit, model.ErrNotUnique},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b, dir := newTestBackend(t)
			require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte(test.content), 0600))

			msg, err := b.EditFile(ctx, "f.txt", test.old, test.new)
			if len(test.expErr) > 0 {
				for _, e := range test.expErr {
					assert.ErrorIs(t, err, e)
				}
			} else if assert.NoError(t, err) {
				assert.Equal(t, "Edited f.txt: replaced 1 occurrence", msg)
			}

			got, err := os.ReadFile(filepath.Join(dir, "f.txt"))
			require.NoError(t, err)
			assert.Equal(t, test.expContent, string(got))

			info, err := os.Stat(filepath.Join(dir, "f.txt"))
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
		})
	}
}

func TestBackendEditMissingFile(t *testing.T) {
	b, _ := newTestBackend(t)
	_, err := b.EditFile(context.Background(), "missing.txt", "a", "b")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestBackendFileExists(t *testing.T) {
	ctx := context.Background()
	b, dir := newTestBackend(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0644))

	ok, err := b.FileExists(ctx, "f.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.FileExists(ctx, "missing.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = b.FileExists(ctx, "/etc/passwd")
	assert.ErrorIs(t, err, model.ErrPathEscape)
}

func TestBackendPathEscape(t *testing.T) {
	ctx := context.Background()
	b, dir := newTestBackend(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0644))
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "link")))

	tests := map[string]struct {
		op       func() error
		hidesDir bool
	}{
		"Writing with a parent traversal should be rejected.": {
			op: func() error { return b.WriteFile(ctx, "../escape.txt", "x") },
		},

		"Writing an absolute path outside should be rejected.": {
			op: func() error { return b.WriteFile(ctx, filepath.Join(outside, "x.txt"), "x") },
		},

		"Reading through a symlink pointing outside should be rejected.": {
			op: func() error {
				_, err := b.ReadFile(ctx, "link/secret.txt", model.ReadOpts{})
				return err
			},
			hidesDir: true,
		},

		"Writing a new file through a symlink pointing outside should be rejected.": {
			op:       func() error { return b.WriteFile(ctx, "link/new/file.txt", "x") },
			hidesDir: true,
		},

		"Executing in a workdir outside should be rejected.": {
			op: func() error {
				_, err := b.Exec(ctx, "true", model.ExecOpts{WorkingDir: outside})
				return err
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.op()
			assert.ErrorIs(t, err, model.ErrPathEscape)
			if err != nil && test.hidesDir {
				// The resolved location is never disclosed.
				assert.NotContains(t, err.Error(), outside)
			}
		})
	}

	_, err := os.Stat(filepath.Join(outside, "new"))
	assert.True(t, os.IsNotExist(err))
}

func TestBackendExec(t *testing.T) {
	tests := map[string]struct {
		cmd       string
		opts      model.ExecOpts
		environ   []string
		expStdout string
		expStderr string
		expCode   int
	}{
		"A successful command should return its output.": {
			cmd:       "echo hello",
			expStdout: "hello\n",
			expCode:   0,
		},

		"A failing command should return its exit code and stderr.": {
			cmd:       "echo oops >&2; exit 3",
			expStderr: "oops\n",
			expCode:   3,
		},

		"A command killed by a signal should return 128+signal.": {
			cmd:     "kill -9 $$",
			expCode: 137,
		},

		"A workdir should be used relative to the working directory.": {
			cmd:       "basename $(pwd)",
			opts:      model.ExecOpts{WorkingDir: "sub"},
			expStdout: "sub\n",
		},

		"Explicit env vars should be visible.": {
			cmd:       "echo $FOO",
			opts:      model.ExecOpts{Env: map[string]string{"FOO": "bar"}},
			expStdout: "bar\n",
		},

		"Secret-looking host vars should not be inherited with the default policy.": {
			cmd:       `echo "[$API_TOKEN][$EDITOR]"`,
			environ:   []string{"API_TOKEN=s3cr3t", "EDITOR=vim", "PATH=" + os.Getenv("PATH")},
			expStdout: "[][vim]\n",
		},

		"Explicit env vars should be visible even if they look secret.": {
			cmd:       "echo $API_TOKEN",
			environ:   []string{"PATH=" + os.Getenv("PATH")},
			opts:      model.ExecOpts{Env: map[string]string{"API_TOKEN": "given"}},
			expStdout: "given\n",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			environ := test.environ
			if environ == nil {
				environ = []string{"PATH=" + os.Getenv("PATH")}
			}
			b, dir := newTestBackend(t, environ...)
			require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

			res, err := b.Exec(context.Background(), test.cmd, test.opts)
			require.NoError(t, err)
			assert.Equal(t, test.expStdout, res.Stdout)
			assert.Equal(t, test.expStderr, res.Stderr)
			assert.Equal(t, test.expCode, res.ExitCode)
			assert.False(t, res.TimedOut)
		})
	}
}

func TestBackendExecTimeout(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	b, dir := newTestBackend(t, "PATH="+os.Getenv("PATH"))

	// The child writes its pid so we can check nothing is left running.
	start := time.Now()
	res, err := b.Exec(context.Background(), "sleep 10 & echo $! > child.pid; wait", model.ExecOpts{Timeout: 500 * time.Millisecond})
	elapsed := time.Since(start)
	require.NoError(err)

	assert.True(res.TimedOut)
	assert.Equal(model.ExitCodeTimeout, res.ExitCode)
	assert.Equal("", res.Stdout)
	assert.Contains(res.Stderr, "Command timed out after 500ms")
	assert.Less(elapsed, local.DefaultGracePeriod+2*time.Second)

	pid, err := os.ReadFile(filepath.Join(dir, "child.pid"))
	require.NoError(err)
	assert.Eventually(func() bool { return !processAlive(t, string(pid)) }, 2*time.Second, 50*time.Millisecond)
}

func TestBackendExecContextCancel(t *testing.T) {
	b, _ := newTestBackend(t, "PATH="+os.Getenv("PATH"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res, err := b.Exec(ctx, "sleep 10", model.ExecOpts{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, res)
}

func TestBackendExecTimeoutTermIgnoringDescendant(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	b, dir := newTestBackend(t, "PATH="+os.Getenv("PATH"))

	// The shell leader dies on SIGTERM, the nested shell and its child ignore it.
	cmd := `sh -c 'trap "" TERM; sleep 30 & echo $! > child.pid; wait'; echo after`
	res, err := b.Exec(context.Background(), cmd, model.ExecOpts{Timeout: 300 * time.Millisecond})
	require.NoError(err)
	assert.True(res.TimedOut)
	assert.Equal(model.ExitCodeTimeout, res.ExitCode)

	pid, err := os.ReadFile(filepath.Join(dir, "child.pid"))
	require.NoError(err)
	assert.Eventually(func() bool { return !processAlive(t, string(pid)) }, 3*time.Second, 50*time.Millisecond)
}

func TestBackendGrep(t *testing.T) {
	ctx := context.Background()
	b, dir := newTestBackend(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "match.txt"), []byte("a needle here\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.md"), []byte("nothing\nNEEDLE upper\n"), 0644))

	tests := map[string]struct {
		pattern  string
		opts     model.GrepOpts
		exp      string
		contains []string
		excludes []string
		expErr   bool
	}{
		"A matching pattern should return the matches.": {
			pattern:  "needle",
			contains: []string{"match.txt:1:a needle here"},
			excludes: []string{"other.md"},
		},

		"A pattern without matches should return the no matches text.": {
			pattern: "zzz_no_such_zzz",
			exp:     environment.NoMatches,
		},

		"Case insensitive should match all cases.": {
			pattern:  "needle",
			opts:     model.GrepOpts{CaseInsensitive: true},
			contains: []string{"match.txt", "other.md:2:NEEDLE upper"},
		},

		"A glob filter should only search matching files.": {
			pattern:  "needle",
			opts:     model.GrepOpts{CaseInsensitive: true, Glob: "*.md"},
			contains: []string{"other.md"},
			excludes: []string{"match.txt"},
		},

		"A malformed pattern should fail.": {
			pattern: "[unclosed",
			expErr:  true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := b.Grep(ctx, test.pattern, test.opts)
			if test.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
				return
			}

			require.NoError(t, err)
			if test.exp != "" {
				assert.Equal(t, test.exp, got)
			}
			for _, c := range test.contains {
				assert.Contains(t, got, c)
			}
			for _, e := range test.excludes {
				assert.NotContains(t, got, e)
			}
		})
	}
}

func TestBackendGlob(t *testing.T) {
	ctx := context.Background()
	b, dir := newTestBackend(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src/pkg"), 0755))
	for _, f := range []string{"main.go", "src/a.go", "src/pkg/b.go", "src/pkg/c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("x"), 0644))
	}

	tests := map[string]struct {
		pattern string
		path    string
		exp     []string
		expErr  bool
	}{
		"A recursive pattern should match at every level.": {
			pattern: "**/*.go",
			exp:     []string{"main.go", "src/a.go", "src/pkg/b.go"},
		},

		"A flat pattern should match only the base dir.": {
			pattern: "*.go",
			exp:     []string{"main.go"},
		},

		"A path should be used as the base.": {
			pattern: "**/*.go",
			path:    "src",
			exp:     []string{"a.go", "pkg/b.go"},
		},

		"No matches should return an empty result.": {
			pattern: "**/*.rs",
			exp:     nil,
		},

		"A malformed pattern should fail.": {
			pattern: "[",
			expErr:  true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := b.Glob(ctx, test.pattern, test.path)
			if test.expErr {
				assert.Error(t, err)
			} else if assert.NoError(t, err) {
				assert.ElementsMatch(t, test.exp, got)
			}
		})
	}
}
