package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	testdb "github.com/carlosnayan/prisma-testdb"
	"github.com/carlosnayan/prisma-testdb/cli"
	"github.com/carlosnayan/prisma-testdb/internal/config"
	"github.com/carlosnayan/prisma-testdb/internal/limits"
	"github.com/carlosnayan/prisma-testdb/internal/logger"
	"github.com/carlosnayan/prisma-testdb/naming"
)

var (
	configFile string
	workerFlag string
	verbose    bool
)

// out receives command output; tests swap it for a buffer.
var out io.Writer = os.Stdout

var app *cli.App

// Execute runs the CLI application
func Execute() error {
	return newApp().Execute()
}

func newApp() *cli.App {
	app = cli.NewApp(
		"testdb",
		testdb.Version,
		"Create, reuse and drop per-worker test databases",
	)
	app.Out = out

	// Global flags
	app.AddGlobalFlag(&cli.Flag{
		Name:  "config",
		Short: "c",
		Usage: "Path to configuration file (default: testdb.conf)",
		Value: &configFile,
	})
	app.AddGlobalFlag(&cli.Flag{
		Name:  "worker",
		Short: "w",
		Usage: "Worker token such as gw0 (default: $" + naming.WorkerEnvVar + ")",
		Value: &workerFlag,
	})
	app.AddGlobalFlag(&cli.Flag{
		Name:  "verbose",
		Usage: "Verbose mode (show detailed logs)",
		Value: &verbose,
	})

	// Commands
	app.AddCommand(initCmd)
	app.AddCommand(setupCmd)
	app.AddCommand(dropCmd)
	app.AddCommand(markCmd)
	app.AddCommand(unmarkCmd)
	app.AddCommand(statusCmd)
	app.AddCommand(nameCmd)
	app.AddCommand(configCmd)
	app.AddCommand(watchCmd)

	return app
}

// loadConfig loads testdb.conf, or an environment-only configuration when
// no file exists, and applies the global flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configFile)
	if err != nil {
		return nil, err
	}

	if workerFlag != "" {
		cfg.Worker = workerFlag
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	if verbose {
		cfg.Log = []string{"query", "info", "warn", "error"}
	}
	if len(cfg.Log) > 0 {
		logger.SetLogLevels(cfg.Log)
	}

	return cfg, nil
}

// commandContext is cancelled on SIGINT or SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// connect loads the configuration and opens a Manager for it. The caller
// closes the Manager.
func connect(ctx context.Context) (*testdb.Manager, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	m, err := testdb.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", logger.RedactURL(cfg.DatabaseURL()), err)
	}
	return m, cfg, nil
}

// targetNames resolves the databases a command acts on: explicit names,
// else the names of n workers, else this process's own database.
func targetNames(m *testdb.Manager, args []string, workers int) ([]string, error) {
	if len(args) > 0 {
		for _, name := range args {
			if err := naming.Validate(name); err != nil {
				return nil, err
			}
		}
		return args, nil
	}
	if workers < 0 || workers > limits.MaxWorkers {
		return nil, fmt.Errorf("worker count must be between 0 and %d (got %d)", limits.MaxWorkers, workers)
	}
	if workers > 0 {
		return naming.WorkerNames(m.Options().BaseName, workers), nil
	}
	return []string{m.Name()}, nil
}
