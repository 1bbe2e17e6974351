// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger construction, and comparer setup
// to reduce boilerplate across commands.
package appctx

import (
	"fmt"
	"io"
	"os"

	"github.com/lherron/eotdiff/internal/compare"
	"github.com/lherron/eotdiff/internal/config"
	"github.com/lherron/eotdiff/internal/logging"
	"github.com/lherron/eotdiff/internal/render"
	"github.com/spf13/cobra"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration
	Config *config.Config

	// Log writes structured lines to the command's stderr
	Log *logging.Logger

	// Comparer runs compares with the configured matcher options
	Comparer *compare.Comparer
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
func WithApp(fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd)
		if err != nil {
			return err
		}
		return fn(app, cmd, args)
	}
}

// Bootstrap loads configuration, applies --log-level and --format flag
// overrides, and builds the logger and comparer.
func Bootstrap(cmd *cobra.Command) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if f := cmd.Flag("log-level"); f != nil && f.Value.String() != "" {
		cfg.LogLevel = f.Value.String()
	}
	if f := cmd.Flag("format"); f != nil && f.Value.String() != "" {
		cfg.Output = f.Value.String()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return New(cfg, cmd.ErrOrStderr()), nil
}

// New builds an App from an already loaded config. Log lines go to logOut.
func New(cfg *config.Config, logOut io.Writer) *App {
	log := logging.New(logOut, cfg.Level())
	return &App{
		Config:   cfg,
		Log:      log,
		Comparer: compare.New(compare.Options{Matcher: cfg.MatchOptions(), Logger: log}),
	}
}

// Renderer returns a renderer for the configured output format. Table cells
// are styled only when w is a terminal.
func (a *App) Renderer(w io.Writer) (*render.Renderer, error) {
	format, err := render.ParseFormat(a.Config.Output)
	if err != nil {
		return nil, err
	}
	return render.NewRenderer(w, render.Options{Format: format, Color: isTerminal(w)}), nil
}

// isTerminal checks if w is a character device
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
