package cmd

import (
	"context"
	"fmt"
	"time"

	testdb "github.com/carlosnayan/prisma-testdb"
	"github.com/carlosnayan/prisma-testdb/cli"
)

var (
	reuseDBFlag  bool
	createDBFlag bool
	workersFlag  int
	markFlag     bool
)

var setupCmd = &cli.Command{
	Name:  "setup",
	Short: "Create or reuse the test database and apply migrations",
	Long: `Prepares the test database for this process, or for n workers with -n:
  - default: drop, create and migrate
  - --reuse-db: keep a marked database untouched, otherwise create it if
    missing and apply pending migrations
  - --create-db: drop, create and migrate even when --reuse-db is given`,
	Usage: "testdb setup [--reuse-db] [--create-db] [-n workers] [--mark]",
	Flags: []*cli.Flag{
		{
			Name:  "reuse-db",
			Usage: "Reuse the database when it is marked",
			Value: &reuseDBFlag,
		},
		{
			Name:  "create-db",
			Usage: "Recreate the database (wins over --reuse-db)",
			Value: &createDBFlag,
		},
		{
			Name:  "workers",
			Short: "n",
			Usage: "Prepare the databases of n parallel workers",
			Value: &workersFlag,
		},
		{
			Name:  "mark",
			Usage: "Mark each database after a successful setup",
			Value: &markFlag,
		},
	},
	Run: runSetup,
}

var dropCmd = &cli.Command{
	Name:  "drop",
	Short: "Drop test databases and clear their marks",
	Usage: "testdb drop [-n workers] [name...]",
	Flags: []*cli.Flag{workersCountFlag()},
	Run:   runDrop,
}

var markCmd = &cli.Command{
	Name:  "mark",
	Short: "Mark test databases as migrated and reusable",
	Usage: "testdb mark [-n workers] [name...]",
	Flags: []*cli.Flag{workersCountFlag()},
	Run:   runMark,
}

var unmarkCmd = &cli.Command{
	Name:  "unmark",
	Short: "Clear the setup mark of test databases",
	Usage: "testdb unmark [-n workers] [name...]",
	Flags: []*cli.Flag{workersCountFlag()},
	Run:   runUnmark,
}

func workersCountFlag() *cli.Flag {
	return &cli.Flag{
		Name:  "workers",
		Short: "n",
		Usage: "Act on the databases of n parallel workers",
		Value: &workersFlag,
	}
}

func runSetup(args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	m, cfg, err := connect(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	if reuseDBFlag {
		cfg.ReuseDB = true
	}
	if createDBFlag {
		cfg.CreateDB = true
	}
	directive := testdb.DirectiveFromFlags(cfg.ReuseDB, cfg.CreateDB)

	fmt.Fprintln(out, Info(fmt.Sprintf("Datasource: %s, directive %s", m.Provider(), directive)))
	fmt.Fprintln(out)

	var outcomes []testdb.Outcome
	if workersFlag > 0 {
		outcomes, err = m.EnsureWorkers(ctx, workersFlag, directive)
	} else {
		var o testdb.Outcome
		o, err = m.EnsureDatabase(ctx, m.Name(), directive)
		outcomes = []testdb.Outcome{o}
	}
	if err != nil {
		return err
	}

	for _, o := range outcomes {
		fmt.Fprintf(out, "  %s %s\n", DatabaseName(o.Name), Info(fmt.Sprintf("%s, %d migration(s) applied in %s",
			o.Action, o.MigrationsApplied, o.Duration.Round(time.Millisecond))))
		if markFlag {
			if err := m.Mark(ctx, o.Name); err != nil {
				return err
			}
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, Success(fmt.Sprintf("%d database(s) ready.", len(outcomes))))
	return nil
}

func runDrop(args []string) error {
	return forEachName(args, "Dropped", func(ctx context.Context, m *testdb.Manager, name string) error {
		return m.Drop(ctx, name)
	})
}

func runMark(args []string) error {
	return forEachName(args, "Marked", func(ctx context.Context, m *testdb.Manager, name string) error {
		exists, err := m.Exists(ctx, name)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("database %s does not exist; run 'testdb setup --reuse-db' first", name)
		}
		return m.Mark(ctx, name)
	})
}

func runUnmark(args []string) error {
	return forEachName(args, "Unmarked", func(ctx context.Context, m *testdb.Manager, name string) error {
		return m.Unmark(ctx, name)
	})
}

// forEachName connects and applies fn to every target database, reporting
// each one with verb.
func forEachName(args []string, verb string, fn func(ctx context.Context, m *testdb.Manager, name string) error) error {
	ctx, cancel := commandContext()
	defer cancel()

	m, _, err := connect(ctx)
	if err != nil {
		return err
	}
	defer m.Close()

	names, err := targetNames(m, args, workersFlag)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := fn(ctx, m, name); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Fprintf(out, "%s %s\n", verb, DatabaseName(name))
	}
	return nil
}
