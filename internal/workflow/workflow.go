// Package workflow implements the client side commands of rigor on top of a
// connection to a test server.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rigor.dev/pkg/rigor/internal/adapter"
	"rigor.dev/pkg/rigor/internal/controller"
	"rigor.dev/pkg/rigor/internal/domain"
	m "rigor.dev/pkg/rigor/internal/model"
	"rigor.dev/pkg/rigor/internal/wire"
	pkg "rigor.dev/pkg/rigor/pkg"
)

var (
	// ErrTestsFailed is returned by Run when at least one result did not pass.
	ErrTestsFailed = errors.New("tests failed")
	// ErrRunCancelled is returned by Run when the run stopped before every test ran.
	ErrRunCancelled = errors.New("run cancelled")
)

// Client is the part of wire.Client the workflow uses.
type Client interface {
	DiscoverTests(ctx context.Context, sources []string) ([]m.TestCase, error)
	RunTests(ctx context.Context, ids []m.NodeID, opts ...wire.RunOption) (*wire.Run, error)
	RunSources(ctx context.Context, sources []string, opts ...wire.RunOption) (*wire.Run, error)
	CheckSourceHash(ctx context.Context, source string) (m.HashCheck, error)
	Cancel(ctx context.Context) error
	CallFunction(ctx context.Context, spec wire.CallSpec) error
	Close() error
}

// Connect opens a started client.
type Connect func(ctx context.Context) (Client, error)

// DiscoverArgs contains the arguments for listing tests.
type DiscoverArgs struct {
	Sources []string
}

// RunArgs contains the arguments for running tests.
type RunArgs struct {
	Sources    []string
	IDs        []m.NodeID
	Report     string
	VerifyHash bool
	Server     string
	SpillDir   string
}

// HashArgs contains the arguments for comparing source digests.
type HashArgs struct {
	Sources []string
}

// CallArgs contains the arguments for a remote call.
type CallArgs struct {
	Spec wire.CallSpec
}

// ViewArgs contains the arguments for displaying a saved report.
type ViewArgs struct {
	Report string
}

// Workflow defines the client commands.
type Workflow interface {
	Discover(ctx context.Context, args DiscoverArgs) error
	Run(ctx context.Context, args RunArgs) error
	CheckHash(ctx context.Context, args HashArgs) error
	Call(ctx context.Context, args CallArgs) error
	View(ctx context.Context, args ViewArgs) error
}

type workflow struct {
	connect Connect
	adapter.ResultStore
	controller.UI
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
func NewWorkflow(connect Connect, store adapter.ResultStore, ui controller.UI) Workflow {
	return &workflow{
		connect:     connect,
		ResultStore: store,
		UI:          ui,
	}
}

func (w *workflow) Discover(ctx context.Context, args DiscoverArgs) error {
	client, err := w.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer closeClient(client)

	cases, err := client.DiscoverTests(ctx, args.Sources)
	if err != nil {
		return fmt.Errorf("discover tests: %w", err)
	}

	if err := w.Start(ctx, controller.WithDiscoverMode()); err != nil {
		return err
	}
	defer w.Close(ctx)

	return w.DisplayTestCases(ctx, cases)
}

func (w *workflow) Run(ctx context.Context, args RunArgs) error {
	client, err := w.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer closeClient(client)

	if args.VerifyHash {
		if err := w.verifyHashes(ctx, client, args.Sources); err != nil {
			return err
		}
	}

	spillOpts := []pkg.SpillOption{pkg.WithPattern("rigor-results-*.gob")}
	if args.SpillDir != "" {
		spillOpts = append(spillOpts, pkg.WithDir(args.SpillDir))
	}

	spill, err := pkg.NewFileSpill[m.TestResult](spillOpts...)
	if err != nil {
		return fmt.Errorf("create result spill: %w", err)
	}

	defer func() {
		if err := spill.Discard(); err != nil {
			slog.Warn("Failed to discard result spill", "path", spill.Path(), "error", err)
		}
	}()

	runCtx, interrupt := context.WithCancel(ctx)
	defer interrupt()

	if err := w.Start(ctx, controller.WithRunMode(), controller.WithInterrupt(interrupt)); err != nil {
		return err
	}

	started := time.Now()

	summary, runErr := w.execute(runCtx, client, args, spill)

	// an interrupted run still gets its summary and report
	ctx = context.WithoutCancel(ctx)

	w.Close(ctx)

	if runErr != nil {
		return runErr
	}

	return w.finish(ctx, args, summary, spill, started)
}

// execute starts the run and waits for it. Cancelling ctx asks the server to
// stop; the run is still awaited so every result is collected.
func (w *workflow) execute(ctx context.Context, client Client, args RunArgs, spill pkg.FileSpill[m.TestResult]) (m.RunSummary, error) {
	var spillErr error

	var spillMu sync.Mutex

	observer := wire.WithObserver(func(event wire.RunEvent) {
		switch event.Kind {
		case wire.EventStarted:
			w.DisplayTestStarted(ctx, event.Result)
		case wire.EventResult:
			w.DisplayTestResult(context.WithoutCancel(ctx), event.Result)

			if err := spill.Append(event.Result); err != nil {
				spillMu.Lock()
				spillErr = errors.Join(spillErr, err)
				spillMu.Unlock()
			}
		case wire.EventEnded:
		}
	})

	var (
		run *wire.Run
		err error
	)

	if len(args.IDs) > 0 {
		run, err = client.RunTests(ctx, args.IDs, observer)
	} else {
		run, err = client.RunSources(ctx, args.Sources, observer)
	}

	if err != nil && run == nil {
		return m.RunSummary{}, fmt.Errorf("start run: %w", err)
	}

	w.DisplayRunStarted(ctx, run.ID, len(run.Expected()))

	stop := context.AfterFunc(ctx, func() {
		slog.Info("Interrupted, cancelling run", "run", run.ID)

		if err := client.Cancel(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Failed to send cancel", "run", run.ID, "error", err)
		}
	})
	defer stop()

	_, summary, err := run.Wait(context.WithoutCancel(ctx))
	if err != nil {
		// the results synthesized for the lost connection are already spilled
		slog.Error("Run did not complete", "run", run.ID, "error", err)
	}

	spillMu.Lock()
	defer spillMu.Unlock()

	if spillErr != nil {
		return summary, fmt.Errorf("record results: %w", spillErr)
	}

	return summary, nil
}

func (w *workflow) finish(ctx context.Context, args RunArgs, run m.RunSummary, spill pkg.FileSpill[m.TestResult], started time.Time) error {
	summary, err := domain.SummarizeResults(spill)
	if err != nil {
		return fmt.Errorf("summarize results: %w", err)
	}

	w.DisplaySummary(ctx, summary, run)

	if args.Report != "" {
		report := m.RunReport{
			RunID:     run.RunID,
			Server:    args.Server,
			Sources:   args.Sources,
			Cancelled: run.Cancelled,
			Started:   started,
			Finished:  time.Now(),
		}

		err := spill.Range(func(_ uint64, result m.TestResult) error {
			report.Results = append(report.Results, result)
			return nil
		})
		if err != nil {
			return fmt.Errorf("read results: %w", err)
		}

		if err := w.SaveReport(args.Report, report); err != nil {
			return fmt.Errorf("save report: %w", err)
		}
	}

	if run.Cancelled {
		return fmt.Errorf("%w: run %d reported %d result(s)", ErrRunCancelled, run.RunID, summary.Total)
	}

	if !summary.Succeeded() {
		return fmt.Errorf("%w: %d of %d did not pass", ErrTestsFailed, summary.Total-summary.Passed, summary.Total)
	}

	return nil
}

func (w *workflow) verifyHashes(ctx context.Context, client Client, sources []string) error {
	if len(sources) == 0 {
		slog.Warn("No sources given, skipping digest verification")
		return nil
	}

	for _, source := range sources {
		check, err := client.CheckSourceHash(ctx, source)
		if err != nil {
			return fmt.Errorf("check digest of %s: %w", source, err)
		}

		if !check.Match {
			w.DisplayHashCheck(ctx, check)
			return fmt.Errorf("%w: %s", m.ErrRemoteHashMismatch, source)
		}
	}

	return nil
}

func (w *workflow) CheckHash(ctx context.Context, args HashArgs) error {
	client, err := w.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer closeClient(client)

	var mismatched []string

	for _, source := range args.Sources {
		check, err := client.CheckSourceHash(ctx, source)
		if err != nil {
			return fmt.Errorf("check digest of %s: %w", source, err)
		}

		w.DisplayHashCheck(ctx, check)

		if !check.Match {
			mismatched = append(mismatched, source)
		}
	}

	if len(mismatched) > 0 {
		return fmt.Errorf("%w: %v", m.ErrRemoteHashMismatch, mismatched)
	}

	return nil
}

func (w *workflow) Call(ctx context.Context, args CallArgs) error {
	client, err := w.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer closeClient(client)

	if err := client.CallFunction(ctx, args.Spec); err != nil {
		return fmt.Errorf("call %s: %w", args.Spec.Method, err)
	}

	return nil
}

func (w *workflow) View(ctx context.Context, args ViewArgs) error {
	report, err := w.LoadReport(args.Report)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}

	if err := w.Start(ctx, controller.WithViewMode()); err != nil {
		return err
	}
	defer w.Close(ctx)

	return w.DisplayReport(ctx, report)
}

func closeClient(client Client) {
	if err := client.Close(); err != nil {
		slog.Warn("Failed to close client", "error", err)
	}
}
