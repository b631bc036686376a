// Package cli implements the credkit command line: key store administration and token inspection.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/turtacn/credkit/internal/config"
	"github.com/turtacn/credkit/internal/infrastructure/monitoring"
	"github.com/turtacn/credkit/internal/infrastructure/persistence"
	"github.com/turtacn/credkit/pkg/errors"
	"github.com/turtacn/credkit/pkg/keystore"
	"github.com/turtacn/credkit/pkg/logger"
)

// app holds what the subcommands share. Resources are opened lazily and released by close.
type app struct {
	configPath  string
	logLevel    string
	dumpMetrics bool

	cfg      *config.Config
	log      logger.Logger
	closeLog func()
	registry *prometheus.Registry
	metrics  *monitoring.Metrics
	tracing  *monitoring.TracingManager
	store    *keystore.Store
}

func newApp() *app {
	return &app{log: logger.NewNoopLogger()}
}

func (a *app) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "credkit",
		Short:         "Manage stored private key entries and inspect identity tokens.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: credkit.yaml in ., $HOME/.credkit, /etc/credkit)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level")
	root.PersistentFlags().BoolVar(&a.dumpMetrics, "dump-metrics", false, "print collected metrics to stderr on exit")

	root.AddCommand(a.keyCommand(), a.tokenCommand())
	return root
}

func (a *app) init(ctx context.Context) error {
	cfg, err := config.Load(a.configPath, a.log)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	log, closeLog, err := monitoring.NewZapLogger(cfg.Log)
	if err != nil {
		return err
	}
	a.log, a.closeLog = log, closeLog

	if cfg.Metrics.Enabled || a.dumpMetrics {
		a.registry = prometheus.NewRegistry()
		a.metrics = monitoring.NewMetrics(a.registry, cfg.Metrics.Namespace)
	}

	a.tracing, err = monitoring.NewTracingManager(cfg.Tracing, a.log)
	return err
}

// traced runs a subcommand inside a span named after its command path. Storage
// spans opened by the subcommand become children of it.
func (a *app) traced(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		name := cmd.CommandPath()
		return monitoring.TraceOperation(cmd.Context(), a.tracing, name, func(ctx context.Context) error {
			if id := a.tracing.GetTraceID(ctx); id != "" {
				a.log.Debug(ctx, "Running command", logger.String("command", name), logger.String("trace_id", id))
			}
			cmd.SetContext(ctx)
			return run(cmd, args)
		}, map[string]interface{}{"cli.args": len(args)})
	}
}

// keystore opens the configured backend on first use.
func (a *app) keystore(ctx context.Context) (*keystore.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	adapter, err := persistence.New(ctx, a.cfg, a.log)
	if err != nil {
		return nil, err
	}
	var metrics persistence.StorageMetrics
	if a.metrics != nil {
		metrics = a.metrics
	}
	adapter = persistence.Instrument(adapter, string(persistence.Backend(a.cfg.Storage)), metrics)

	store, err := keystore.New(keystore.FromAdapter(adapter), keystore.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *app) close(ctx context.Context, stderr io.Writer) {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn(ctx, "Failed to close key store", logger.Any("error", err.Error()))
		}
	}
	if a.dumpMetrics && a.registry != nil {
		if err := writeMetrics(stderr, a.registry); err != nil {
			a.log.Warn(ctx, "Failed to write metrics", logger.Any("error", err.Error()))
		}
	}
	if a.tracing != nil {
		_ = a.tracing.Shutdown(ctx)
	}
	if a.closeLog != nil {
		a.closeLog()
	}
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// run executes args against a fresh app and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp()
	cmd := a.command()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	a.close(ctx, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", describe(err))
		return 1
	}
	return 0
}

// describe prefers the stable description of a CredError over its wrapped chain.
func describe(err error) string {
	if ce, ok := errors.AsCredError(err); ok {
		return fmt.Sprintf("%s (%s)", err.Error(), ce.Code())
	}
	return err.Error()
}

// Execute runs the command line and exits the process on failure.
func Execute() {
	if code := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); code != 0 {
		os.Exit(code)
	}
}
