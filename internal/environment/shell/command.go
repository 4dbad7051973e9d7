package shell

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/alessio/shellescape"

	"github.com/slok/envctl/internal/model"
	envutil "github.com/slok/envctl/internal/utils/env"
)

// Quote quotes s so it's a single shell word, safe strings are kept as they are.
func Quote(s string) string { return shellescape.Quote(s) }

// ReadCmd returns the command that reads a file, offset is the 1-indexed
// first line and limit the number of lines, zero means unset.
func ReadCmd(p string, offset, limit int) string {
	q := Quote(p)
	switch {
	case offset > 0 && limit > 0:
		// A pipeline exits with the status of head, the guard keeps a
		// missing file a failure.
		return fmt.Sprintf("test -e %s && tail -n +%d %s | head -n %d", q, offset, q, limit)
	case offset > 0:
		return fmt.Sprintf("tail -n +%d %s", offset, q)
	case limit > 0:
		return fmt.Sprintf("head -n %d %s", limit, q)
	default:
		return "cat " + q
	}
}

// WriteCmd returns the command that writes content to a file creating the parent dirs.
func WriteCmd(p, content string) string {
	write := fmt.Sprintf("printf '%%s' %s > %s", Quote(content), Quote(p))

	parent := path.Dir(p)
	if !strings.Contains(p, "/") || parent == "/" || parent == "." {
		return write
	}
	return fmt.Sprintf("mkdir -p %s && %s", Quote(parent), write)
}

func ExistsCmd(p string) string { return "test -e " + Quote(p) }

// ListCmd lists the immediate children of a directory marking dirs with a trailing slash.
func ListCmd(p string) string {
	q := Quote(p)
	return fmt.Sprintf("test -d %s && ls -1ap %s", q, q)
}

// FindCmd lists a directory up to depth levels, find succeeds with no
// output on a regular file so the path is checked to be a directory first.
func FindCmd(p string, depth int) string {
	q := Quote(p)
	return fmt.Sprintf("test -d %s && find %s -maxdepth %d -mindepth 1", q, q, depth)
}

func FindDirsCmd(p string, depth int) string {
	return FindCmd(p, depth) + " -type d"
}

func GrepCmd(pattern, p string, opts model.GrepOpts) string {
	parts := []string{"grep", "-rn"}
	if opts.CaseInsensitive {
		parts = append(parts, "-i")
	}
	if opts.MaxResults > 0 {
		parts = append(parts, "-m", strconv.Itoa(opts.MaxResults))
	}
	parts = append(parts, "-e", Quote(pattern), Quote(p))
	if opts.Glob != "" {
		parts = append(parts, "--include", Quote(opts.Glob))
	}

	return strings.Join(parts, " ")
}

// GlobCmd finds by name, find is already recursive so leading `**/` are removed.
func GlobCmd(pattern, p string) string {
	return fmt.Sprintf("find %s -name %s", Quote(p), Quote(StripRecursivePrefix(pattern)))
}

// StripRecursivePrefix removes all the leading `**/` of a pattern.
func StripRecursivePrefix(pattern string) string {
	for strings.HasPrefix(pattern, "**/") {
		pattern = strings.TrimPrefix(pattern, "**/")
	}
	return pattern
}

// WithEnv prepends the export clauses of the env vars to cmd, sorted by name.
func WithEnv(cmd string, env map[string]string) string {
	if len(env) == 0 {
		return cmd
	}

	var sb strings.Builder
	for _, k := range envutil.SortedKeys(env) {
		fmt.Fprintf(&sb, "export %s=%s && ", k, Quote(env[k]))
	}
	sb.WriteString(cmd)

	return sb.String()
}

// WithWorkDir prepends a change of directory to cmd.
func WithWorkDir(cmd, dir string) string {
	if dir == "" {
		return cmd
	}
	return fmt.Sprintf("cd %s && %s", Quote(dir), cmd)
}
