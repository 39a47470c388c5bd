// Package cli implements the certgen command-line interface.
//
// This package provides commands for generating certificate batches from a
// template image and CSV dataset, previewing single certificates, listing
// available fonts, retrying failed rows from past runs, and serving the
// HTTP API. The CLI is built using cobra and supports verbose logging via
// the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - generate: Render a full batch and package it into ZIP archives
//   - preview: Render one certificate with sample or supplied values
//   - fonts: List fonts available for box layouts
//   - runs: Inspect past runs and retry their failed rows
//   - serve: Run the HTTP generation API
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/certifyhq/certgen/pkg/buildinfo"
	"github.com/certifyhq/certgen/pkg/history"
)

// appName is the application name used for directories and display.
const appName = "certgen"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config *Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
		Config: DefaultConfig(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          appName,
		Short:        "Certgen renders certificate batches from templates and CSV data",
		Long:         `Certgen is a CLI tool for bulk certificate generation: it renders personalized text onto a template image for every row of a CSV dataset, in parallel, and packages the results into ZIP archives.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			c.Config = cfg
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/certgen/certgen.toml)")

	// Register all subcommands
	root.AddCommand(c.generateCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.fontsCommand())
	root.AddCommand(c.runsCommand())
	root.AddCommand(c.runsRetryCommand()) // top-level shortcut for runs retry
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newHistory creates the run history store for CLI use.
func (c *CLI) newHistory() (history.Store, error) {
	return history.NewFileStore(c.Config.HistoryDir)
}

// configDir returns the config directory using XDG standard (~/.config/certgen/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}
