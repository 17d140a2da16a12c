package cmd

import (
	"context"
	"fmt"
	"time"

	testdb "github.com/carlosnayan/prisma-testdb"
	"github.com/carlosnayan/prisma-testdb/cli"
	"github.com/carlosnayan/prisma-testdb/internal/config"
	"github.com/carlosnayan/prisma-testdb/internal/logger"
	"github.com/carlosnayan/prisma-testdb/internal/migrations"
	"github.com/carlosnayan/prisma-testdb/internal/server"
	"github.com/carlosnayan/prisma-testdb/naming"
)

const healthTimeout = 5 * time.Second

var statusCmd = &cli.Command{
	Name:  "status",
	Short: "Show existence, mark and migration state of test databases",
	Usage: "testdb status [-n workers] [name...]",
	Flags: []*cli.Flag{workersCountFlag()},
	Run:   runStatus,
}

var nameCmd = &cli.Command{
	Name:  "name",
	Short: "Print the test database name for this process",
	Long: `Prints the resolved test database name. With -n, prints the names of
n parallel workers, one per line.`,
	Usage: "testdb name [-n workers]",
	Flags: []*cli.Flag{workersCountFlag()},
	Run:   runName,
}

var configCmd = &cli.Command{
	Name:  "config",
	Short: "Print the effective configuration",
	Run:   runConfig,
}

func runStatus(args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	m, cfg, err := connect(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	names, err := targetNames(m, args, workersFlag)
	if err != nil {
		return err
	}

	if cfg.Path() != "" {
		fmt.Fprintln(out, Info(fmt.Sprintf("Loaded testdb config from %s.", cfg.Path())))
	}
	fmt.Fprintln(out, Info(fmt.Sprintf("Datasource: %s at %s", m.Provider(), logger.RedactURL(cfg.DatabaseURL()))))
	fmt.Fprintln(out, Info(fmt.Sprintf("Marks: %s store", cfg.Marks.Store)))
	fmt.Fprintln(out)

	runner := migrations.NewDirRunner(m.Dialect(), cfg.GetMigrationsPath(), logger.GetDefaultLogger())
	for _, name := range names {
		if err := printDatabaseStatus(ctx, m, runner, name); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func printDatabaseStatus(ctx context.Context, m *testdb.Manager, runner *migrations.Runner, name string) error {
	fmt.Fprintln(out, DatabaseName(name))

	exists, err := m.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Fprintln(out, Info("  missing"))
		fmt.Fprintln(out)
		return nil
	}

	marked, err := m.IsMarked(ctx, name)
	if err != nil {
		return err
	}
	if marked {
		fmt.Fprintln(out, Success("  marked, reused by --reuse-db"))
	} else {
		fmt.Fprintln(out, Warning("  not marked, --reuse-db will migrate it"))
	}

	db, err := m.Open(ctx, name)
	if err != nil {
		return err
	}
	defer db.Close()

	health, _ := server.CheckHealth(ctx, db, name, healthTimeout)
	server.PrintHealthCheck(out, health)

	statuses, err := runner.Status(ctx, db)
	if err != nil {
		return err
	}
	pending := 0
	for _, s := range statuses {
		state := "Applied"
		switch {
		case s.Missing:
			state = "Missing"
		case s.Modified:
			state = "Modified"
		case !s.Applied:
			state = "Pending"
			pending++
		}
		fmt.Fprintln(out, Info(fmt.Sprintf("  %-8s %s", state, s.Name)))
	}
	if pending > 0 {
		fmt.Fprintln(out, Warning(fmt.Sprintf("  %d pending migration(s)", pending)))
	} else if len(statuses) > 0 {
		fmt.Fprintln(out, Info("  All migrations are applied"))
	}
	fmt.Fprintln(out)
	return nil
}

func runName(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if workersFlag < 0 {
		return fmt.Errorf("worker count must not be negative (got %d)", workersFlag)
	}
	if workersFlag > 0 {
		for _, name := range naming.WorkerNames(cfg.BaseName(), workersFlag) {
			fmt.Fprintln(out, name)
		}
		return nil
	}
	fmt.Fprintln(out, cfg.ResolvedName())
	return nil
}

func runConfig(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	body, err := redacted(cfg).Encode()
	if err != nil {
		return err
	}
	fmt.Fprint(out, body)
	return nil
}

// redacted copies cfg with the datasource password hidden.
func redacted(cfg *config.Config) *config.Config {
	c := *cfg
	ds := *cfg.Datasource
	ds.URL = logger.RedactURL(ds.URL)
	if ds.Password != "" {
		ds.Password = "***"
	}
	c.Datasource = &ds
	return &c
}
