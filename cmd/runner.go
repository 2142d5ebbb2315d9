package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/badgeidle/internal/models"
	"github.com/desertthunder/badgeidle/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	logger  *log.Logger
	output  io.Writer
	input   io.Reader
	closers []io.Closer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A nil Config means the config file named by --config is loaded per command.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
	Input  io.Reader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
		input:  opts.Input,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){runCommand, scanCommand, setupCommand} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by subsequent steps.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close releases resources opened by commands, such as log files.
func (r *Runner) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			r.logger.Warn("failed to close resource", "error", err)
		}
	}
	r.closers = nil
}

// loadConfig returns the injected config, or the file at path merged over the defaults.
//
// A missing file is not an error; the embedded defaults apply.
func (r *Runner) loadConfig(path string) (*shared.Config, error) {
	if r.config != nil {
		return r.config, r.config.Validate()
	}

	config := shared.DefaultConfig()
	if path != "" {
		loaded, err := shared.LoadConfig(path)
		switch {
		case err == nil:
			config = loaded
		case errors.Is(err, fs.ErrNotExist):
			r.logger.Debug("config file not found, using defaults", "path", path)
		default:
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	r.config = config
	return config, nil
}

// configureLogging applies [log] settings. A file logger is forced when the terminal belongs to the dashboard.
func (r *Runner) configureLogging(cfg *shared.Config, dashboard bool) error {
	path := cfg.Log.File
	if path == "" && dashboard {
		path = "./tmp/badgeidle-tui.log"
	}

	if path != "" {
		fileLogger, closer, err := shared.NewFileLogger(path, cfg.Log.MaxSizeMB)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		r.closers = append(r.closers, closer)
		r.SetLogger(fileLogger)
	}

	shared.SetLogLevel(r.logger, shared.ParseLogLevel(cfg.Log.Level))
	return nil
}

// credentials resolves account secrets: positional arguments, then flags or environment, then config.
func (r *Runner) credentials(cmd *cli.Command, cfg *shared.Config) (models.Credentials, error) {
	return resolveCredentials(
		[3]string{cmd.StringArg(argAccount), cmd.StringArg(argPassword), cmd.StringArg(argPIN)},
		[3]string{cmd.String("account"), cmd.String("password"), cmd.String("pin")},
		cfg.Account,
	)
}

func resolveCredentials(args, flags [3]string, account shared.AccountConfig) (models.Credentials, error) {
	creds := models.Credentials{
		AccountName: firstNonEmpty(args[0], flags[0], account.Name),
		Password:    firstNonEmpty(args[1], flags[1], account.Password),
		PIN:         account.PIN,
	}

	if raw := firstNonEmpty(args[2], flags[2]); raw != "" {
		pin, err := shared.ParsePIN(strings.TrimSpace(raw))
		if err != nil {
			return models.Credentials{}, err
		}
		creds.PIN = pin
	}
	return creds, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
