package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/envctl/internal/conventions"
	"github.com/slok/envctl/internal/log"
	"github.com/slok/envctl/internal/model"
	"github.com/slok/envctl/internal/printer"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	// DockerRuntimeDocker uses the Docker daemon.
	DockerRuntimeDocker = "docker"
	// DockerRuntimeFake uses host directories as containers.
	DockerRuntimeFake = "fake"

	formatTable = "table"
	formatJSON  = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// ExitError makes the application exit with a code without printing an error,
// used to forward the exit code of executed commands.
type ExitError struct {
	Code int
}

func (e ExitError) Error() string { return fmt.Sprintf("exit code %d", e.Code) }

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug         bool
	NoLog         bool
	NoColor       bool
	LoggerType    string
	DataDir       string
	DBPath        string
	DockerRuntime string

	// Local instance flags.
	LocalWorkDir  string
	LocalWrappers []string
	EnvPolicy     string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDataDir := filepath.Join(homedir.HomeDir(), conventions.DefaultDataDir)
	app.Flag("data-dir", "Directory for the envctl state.").Envar("ENVCTL_DATA_DIR").Default(defaultDataDir).StringVar(&c.DataDir)
	app.Flag("db-path", "Path to the SQLite database file (default: <data-dir>/envctl.db).").Envar("ENVCTL_DB_PATH").StringVar(&c.DBPath)
	app.Flag("docker-runtime", "Runtime for the docker instances (docker, fake).").Default(DockerRuntimeDocker).EnumVar(&c.DockerRuntime, DockerRuntimeDocker, DockerRuntimeFake)

	app.Flag("local-workdir", "Working directory of the local instance (default: current dir).").StringVar(&c.LocalWorkDir)
	app.Flag("local-wrapper", "Wrapper for the local instance (logging, readonly). Can be repeated.").StringsVar(&c.LocalWrappers)
	app.Flag("env-policy", "Host environment inherited by the local instance (inherit_all, core_only, inherit_none).").Default(string(model.DefaultEnvVarPolicy)).
		EnumVar(&c.EnvPolicy, string(model.EnvVarPolicyInheritAll), string(model.EnvVarPolicyCoreOnly), string(model.EnvVarPolicyInheritNone))

	return c
}

func (c RootCommand) dbPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return conventions.DBPath(c.DataDir)
}

func (c RootCommand) printer(format string) printer.Printer {
	if format == formatJSON {
		return printer.NewJSONPrinter(c.Stdout)
	}
	return printer.NewTablePrinter(c.Stdout)
}

func formatFlag(cmd *kingpin.CmdClause, format *string) {
	cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(format, formatTable, formatJSON)
}
