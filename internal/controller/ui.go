// Package controller provides output adapters for displaying test discovery and run results.
package controller

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rigor.dev/pkg/rigor/internal/domain"
	m "rigor.dev/pkg/rigor/internal/model"
)

// StartMode defines the mode of operation for the UI.
type StartMode int

// Available StartMode values.
const (
	ModeDiscover StartMode = iota
	ModeRun
	ModeView
)

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode        StartMode
	onInterrupt func()
}

// WithDiscoverMode sets the UI to discovery mode.
func WithDiscoverMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeDiscover
	}
}

// WithRunMode sets the UI to test execution mode.
func WithRunMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeRun
	}
}

// WithViewMode sets the UI to report viewing mode.
func WithViewMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeView
	}
}

// WithInterrupt sets the function called when the user interrupts an
// interactive run. Terminals in raw mode do not deliver SIGINT.
func WithInterrupt(fn func()) StartOption {
	return func(c *StartConfig) {
		c.onInterrupt = fn
	}
}

func newStartConfig(options []StartOption) StartConfig {
	cfg := StartConfig{mode: ModeDiscover}
	for _, opt := range options {
		opt(&cfg)
	}

	return cfg
}

// UI defines how discovery, run progress and reports are shown.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	Wait(ctx context.Context) // Wait for UI to finish (user closes it)
	DisplayTestCases(ctx context.Context, cases []m.TestCase) error
	DisplayRunStarted(ctx context.Context, runID int32, expected int)
	DisplayTestStarted(ctx context.Context, result m.TestResult)
	DisplayTestResult(ctx context.Context, result m.TestResult)
	DisplaySummary(ctx context.Context, summary domain.Summary, run m.RunSummary)
	DisplayHashCheck(ctx context.Context, check m.HashCheck)
	DisplayReport(ctx context.Context, report m.RunReport) error
}

// NewUI returns the interactive UI when tty is true and the plain one otherwise.
func NewUI(cmd *cobra.Command, tty bool) UI {
	if tty {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether f is a terminal.
func IsTTY(f *os.File) bool {
	if f == nil {
		return false
	}

	return term.IsTerminal(int(f.Fd()))
}
