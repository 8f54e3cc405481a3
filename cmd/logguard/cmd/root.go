// Package cmd implements the logguard command line.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gxo-labs/logguard/internal/logger"
	"github.com/gxo-labs/logguard/internal/monitor"
	lglog "github.com/gxo-labs/logguard/pkg/logguard/v1/log"
)

const (
	ExitSuccess    = 0
	ExitFailure    = 1
	ExitUsageError = 2
	ExitAborted    = 3
	ExitSigIntBase = 128
	ExitSigInt     = ExitSigIntBase + int(syscall.SIGINT)
	ExitSigTerm    = ExitSigIntBase + int(syscall.SIGTERM)

	envPrefix         = "LOGGUARD"
	defaultLogLevel   = "info"
	defaultLogFormat  = "text"
	defaultLogDir     = "logguard-logs"
	defaultEventQueue = 256
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// app holds state shared by subcommands.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer
}

func (a *app) logger() lglog.Logger {
	return logger.New(logger.Options{
		Level:  a.v.GetString("log_level"),
		Format: a.v.GetString("log_format"),
		Writer: a.stderr,
		File:   a.v.GetString("log_file"),
	})
}

func (a *app) settingsPath() string {
	if p := a.v.GetString("settings"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".logguard", "settings.yaml")
	}
	return filepath.Join(home, ".logguard", "settings.yaml")
}

// NewRootCmd builds the command tree writing to stdout and stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}
	var cfgFile string

	root := &cobra.Command{
		Use:           "logguard",
		Short:         "Run jobs with per-task log size limits",
		Long:          `logguard runs the tasks of a job, writes each task's output to its own log file and stops any task whose log grows past its configured size.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd, cfgFile)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (yaml or toml)")
	pf.String("log-level", defaultLogLevel, "log level: debug, info, warn, error")
	pf.String("log-format", defaultLogFormat, "log format: text, json, pretty")
	pf.String("log-file", "", "also write JSON logs to this rotating file")
	pf.String("settings", "", "settings file holding the global default (default $HOME/.logguard/settings.yaml)")
	pf.Int("workers", 0, "maximum concurrent tasks (default: number of CPUs)")
	pf.String("log-dir", defaultLogDir, "directory for task log files")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	pf.Duration("check-interval", monitor.DefaultPeriod, "interval between log size checks")

	root.AddCommand(
		newRunCmd(a),
		newValidateCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

func (a *app) initConfig(cmd *cobra.Command, cfgFile string) error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	bindings := map[string]string{
		"log_level":      "log-level",
		"log_format":     "log-format",
		"log_file":       "log-file",
		"settings":       "settings",
		"workers":        "workers",
		"log_dir":        "log-dir",
		"metrics_addr":   "metrics-addr",
		"check_interval": "check-interval",
	}
	for key, flag := range bindings {
		if err := a.v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(flag)); err != nil {
			return withCode(ExitUsageError, fmt.Errorf("failed to bind flag --%s: %w", flag, err))
		}
	}

	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return withCode(ExitUsageError, fmt.Errorf("failed to read config file %s: %w", cfgFile, err))
		}
	}

	switch strings.ToLower(a.v.GetString("log_format")) {
	case logger.FormatText, logger.FormatJSON, logger.FormatPretty:
	default:
		return withCode(ExitUsageError, fmt.Errorf("--log-format must be one of text, json, pretty"))
	}
	if a.v.GetDuration("check_interval") <= 0 {
		return withCode(ExitUsageError, fmt.Errorf("--check-interval must be positive"))
	}
	return nil
}

func (a *app) checkInterval() time.Duration {
	return a.v.GetDuration("check_interval")
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCmd(os.Stdout, os.Stderr)
	return exitCode(root.Execute(), os.Stderr)
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitUsageError
}
