package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rigor.dev/pkg/rigor/internal/adapter"
	"rigor.dev/pkg/rigor/internal/domain"
	m "rigor.dev/pkg/rigor/internal/model"
	"rigor.dev/pkg/rigor/internal/selftest"
	"rigor.dev/pkg/rigor/internal/wire"
)

var serveSelftestFlag bool

// serveCmd represents the serve command.
var serveCmd = newServeCmd()

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve registered test suites to clients",
		Long: `Listen on server.host:server.port and run tests for connecting clients,
one client at a time, until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps := newServeDeps(viper.GetBool(selftestKey))
			cfg := transportConfig()

			cmd.Printf("serving %d source(s) on %s\n", len(deps.registry.Sources()), cfg.Address())

			return serve(ctx, cfg, deps)
		},
	}

	cmd.Flags().BoolVar(&serveSelftestFlag, selftestFlagName, viper.GetBool(selftestKey), "serve the built-in sample suites")
	bindFlagToConfig(cmd.Flags().Lookup(selftestFlagName), selftestKey)

	return cmd
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type serveDeps struct {
	registry  *adapter.SuiteRegistry
	functions *wire.FunctionTable
	engine    domain.Engine
	hasher    adapter.SourceHasher
}

func newServeDeps(withSelftest bool) serveDeps {
	registry := adapter.NewSuiteRegistry()
	functions := wire.NewFunctionTable()

	if withSelftest {
		selftest.Register(registry)
		selftest.RegisterFunctions(functions)
	}

	if len(registry.Sources()) == 0 {
		slog.Warn("No suites registered, discovery will be empty")
	}

	return serveDeps{
		registry:  registry,
		functions: functions,
		engine:    domain.NewEngine(registry, viper.GetString(engineDomainKey)),
		hasher:    adapter.NewLocalSourceHasher(viper.GetString(sourcesRootKey), registry),
	}
}

// serve accepts clients one after another until ctx ends. A transport only
// ever carries one connection, so every client gets a fresh worker and server.
func serve(ctx context.Context, cfg adapter.TransportConfig, deps serveDeps) error {
	for ctx.Err() == nil {
		if err := serveClient(ctx, cfg, deps); err != nil {
			return err
		}
	}

	return nil
}

func serveClient(ctx context.Context, cfg adapter.TransportConfig, deps serveDeps) error {
	worker, err := adapter.NewServerWorker(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := worker.Listen(); err != nil {
		return err
	}

	server := wire.NewServer(worker, deps.engine,
		wire.WithSourceHasher(deps.hasher),
		wire.WithFunctions(deps.functions),
	)

	serveErr := server.Serve(ctx)

	if err := server.Close(); err != nil {
		slog.Warn("Failed to close server", "error", err)
	}

	switch {
	case serveErr == nil:
		slog.Info("Server stopped")
	case errors.Is(serveErr, m.ErrServerFault):
		slog.Info("Client session ended", "reason", serveErr)
	default:
		return serveErr
	}

	return nil
}
