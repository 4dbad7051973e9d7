package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/envctl/internal/app/fileops"
	"github.com/slok/envctl/internal/model"
)

// withFileOps runs f with the file operations service of a session that has
// the instance attached.
func withFileOps(ctx context.Context, root *RootCommand, name string, f func(svc *fileops.Service) error) error {
	rt, err := newRuntime(ctx, root, instanceOpts(name))
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	svc, err := fileops.NewService(fileops.ServiceConfig{
		Registry: rt.registry,
		Logger:   rt.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	return f(svc)
}

type ReadCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name   string
	path   string
	offset int
	limit  int
}

// NewReadCommand returns the read command.
func NewReadCommand(rootCmd *RootCommand, app *kingpin.Application) *ReadCommand {
	c := &ReadCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("read", "Read a file of an instance.")
	c.Cmd.Arg("name", "Instance name.").Required().StringVar(&c.name)
	c.Cmd.Arg("path", "File path.").Required().StringVar(&c.path)
	c.Cmd.Flag("offset", "First line to read (1-indexed).").IntVar(&c.offset)
	c.Cmd.Flag("limit", "Number of lines to read.").IntVar(&c.limit)

	return c
}

func (c ReadCommand) Name() string { return c.Cmd.FullCommand() }

func (c ReadCommand) Run(ctx context.Context) error {
	return withFileOps(ctx, c.rootCmd, c.name, func(svc *fileops.Service) error {
		content, err := svc.Read(ctx, c.name, c.path, model.ReadOpts{Offset: c.offset, Limit: c.limit})
		if err != nil {
			return err
		}
		fmt.Fprint(c.rootCmd.Stdout, content)
		return nil
	})
}

type WriteCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name    string
	path    string
	content string
}

// NewWriteCommand returns the write command.
func NewWriteCommand(rootCmd *RootCommand, app *kingpin.Application) *WriteCommand {
	c := &WriteCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("write", "Write a file of an instance, the content is read from stdin unless --content is set.")
	c.Cmd.Arg("name", "Instance name.").Required().StringVar(&c.name)
	c.Cmd.Arg("path", "File path.").Required().StringVar(&c.path)
	c.Cmd.Flag("content", "File content.").Short('c').StringVar(&c.content)

	return c
}

func (c WriteCommand) Name() string { return c.Cmd.FullCommand() }

func (c WriteCommand) Run(ctx context.Context) error {
	content := c.content
	if content == "" {
		data, err := io.ReadAll(c.rootCmd.Stdin)
		if err != nil {
			return fmt.Errorf("could not read stdin: %w", err)
		}
		content = string(data)
	}

	return withFileOps(ctx, c.rootCmd, c.name, func(svc *fileops.Service) error {
		if err := svc.Write(ctx, c.name, c.path, content); err != nil {
			return err
		}
		fmt.Fprintf(c.rootCmd.Stdout, "Wrote %s (%d chars)\n", c.path, len([]rune(content)))
		return nil
	})
}

type EditCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name string
	path string
	old  string
	new  string
}

// NewEditCommand returns the edit command.
func NewEditCommand(rootCmd *RootCommand, app *kingpin.Application) *EditCommand {
	c := &EditCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("edit", "Replace the single occurrence of a string in a file of an instance.")
	c.Cmd.Arg("name", "Instance name.").Required().StringVar(&c.name)
	c.Cmd.Arg("path", "File path.").Required().StringVar(&c.path)
	c.Cmd.Flag("old", "String to replace, it must appear exactly once.").Required().StringVar(&c.old)
	c.Cmd.Flag("new", "Replacement string.").Required().StringVar(&c.new)

	return c
}

func (c EditCommand) Name() string { return c.Cmd.FullCommand() }

func (c EditCommand) Run(ctx context.Context) error {
	return withFileOps(ctx, c.rootCmd, c.name, func(svc *fileops.Service) error {
		msg, err := svc.Edit(ctx, c.name, c.path, c.old, c.new)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.rootCmd.Stdout, msg)
		return nil
	})
}

type ExistsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name string
	path string
}

// NewExistsCommand returns the exists command.
func NewExistsCommand(rootCmd *RootCommand, app *kingpin.Application) *ExistsCommand {
	c := &ExistsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("exists", "Check if a path exists in an instance, exits with 1 if it doesn't.")
	c.Cmd.Arg("name", "Instance name.").Required().StringVar(&c.name)
	c.Cmd.Arg("path", "Path.").Required().StringVar(&c.path)

	return c
}

func (c ExistsCommand) Name() string { return c.Cmd.FullCommand() }

func (c ExistsCommand) Run(ctx context.Context) error {
	return withFileOps(ctx, c.rootCmd, c.name, func(svc *fileops.Service) error {
		ok, err := svc.Exists(ctx, c.name, c.path)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.rootCmd.Stdout, ok)
		if !ok {
			return ExitError{Code: 1}
		}
		return nil
	})
}

type LsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name   string
	path   string
	depth  int
	format string
}

// NewLsCommand returns the ls command.
func NewLsCommand(rootCmd *RootCommand, app *kingpin.Application) *LsCommand {
	c := &LsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("ls", "List a directory of an instance.")
	c.Cmd.Arg("name", "Instance name.").Required().StringVar(&c.name)
	c.Cmd.Arg("path", "Directory path.").Default(".").StringVar(&c.path)
	c.Cmd.Flag("depth", "Listing depth, bigger than 1 lists nested entries.").Short('d').Default("1").IntVar(&c.depth)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c LsCommand) Name() string { return c.Cmd.FullCommand() }

func (c LsCommand) Run(ctx context.Context) error {
	return withFileOps(ctx, c.rootCmd, c.name, func(svc *fileops.Service) error {
		entries, err := svc.List(ctx, c.name, c.path, c.depth)
		if err != nil {
			return err
		}
		return c.rootCmd.printer(c.format).PrintEntries(entries)
	})
}

type GrepCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name            string
	pattern         string
	path            string
	glob            string
	caseInsensitive bool
	maxResults      int
}

// NewGrepCommand returns the grep command.
func NewGrepCommand(rootCmd *RootCommand, app *kingpin.Application) *GrepCommand {
	c := &GrepCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("grep", "Search file contents of an instance with a regex.")
	c.Cmd.Arg("name", "Instance name.").Required().StringVar(&c.name)
	c.Cmd.Arg("pattern", "Regex pattern.").Required().StringVar(&c.pattern)
	c.Cmd.Arg("path", "Directory or file to search.").StringVar(&c.path)
	c.Cmd.Flag("glob", "Only search files whose name match this pattern.").StringVar(&c.glob)
	c.Cmd.Flag("ignore-case", "Case insensitive search.").Short('i').BoolVar(&c.caseInsensitive)
	c.Cmd.Flag("max-results", "Max matches per file, zero means unlimited.").IntVar(&c.maxResults)

	return c
}

func (c GrepCommand) Name() string { return c.Cmd.FullCommand() }

func (c GrepCommand) Run(ctx context.Context) error {
	return withFileOps(ctx, c.rootCmd, c.name, func(svc *fileops.Service) error {
		out, err := svc.Grep(ctx, c.name, c.pattern, model.GrepOpts{
			Path:            c.path,
			Glob:            c.glob,
			CaseInsensitive: c.caseInsensitive,
			MaxResults:      c.maxResults,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(c.rootCmd.Stdout, strings.TrimRight(out, "\n"))
		return nil
	})
}

type GlobCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name    string
	pattern string
	path    string
}

// NewGlobCommand returns the glob command.
func NewGlobCommand(rootCmd *RootCommand, app *kingpin.Application) *GlobCommand {
	c := &GlobCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("glob", "Find the paths of an instance matching a glob pattern (supports **).")
	c.Cmd.Arg("name", "Instance name.").Required().StringVar(&c.name)
	c.Cmd.Arg("pattern", "Glob pattern.").Required().StringVar(&c.pattern)
	c.Cmd.Arg("path", "Base directory.").Default(".").StringVar(&c.path)

	return c
}

func (c GlobCommand) Name() string { return c.Cmd.FullCommand() }

func (c GlobCommand) Run(ctx context.Context) error {
	return withFileOps(ctx, c.rootCmd, c.name, func(svc *fileops.Service) error {
		paths, err := svc.Glob(ctx, c.name, c.pattern, c.path)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(c.rootCmd.Stdout, p)
		}
		return nil
	})
}
