package testdb

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carlosnayan/prisma-testdb/internal/config"
	"github.com/carlosnayan/prisma-testdb/internal/contextutil"
	"github.com/carlosnayan/prisma-testdb/internal/dialect"
	tderrors "github.com/carlosnayan/prisma-testdb/internal/errors"
	"github.com/carlosnayan/prisma-testdb/internal/limits"
	"github.com/carlosnayan/prisma-testdb/internal/logger"
	"github.com/carlosnayan/prisma-testdb/internal/migrations"
	"github.com/carlosnayan/prisma-testdb/internal/server"
	"github.com/carlosnayan/prisma-testdb/markstore"
	"github.com/carlosnayan/prisma-testdb/naming"
)

// Migrator brings a freshly opened database up to date and reports how many
// migrations it applied.
type Migrator interface {
	Migrate(ctx context.Context, db DB) (int, error)
}

// Options is the run configuration handed to a Manager. It is never read
// from the environment by the Manager itself.
type Options struct {
	// BaseName is the test database name before any worker suffix.
	BaseName string
	// Worker is this process's worker ordinal, nil outside parallel runs.
	Worker    *int
	Directive Directive
	// KeepOnFailure leaves a database whose migrations failed in place for
	// inspection instead of dropping it.
	KeepOnFailure bool
	// AutoMark sets the setup mark after a successful reuse or
	// force-recreate setup instead of leaving it to the caller.
	AutoMark bool
}

// OptionsFromConfig derives Options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseName:      cfg.BaseName(),
		Worker:        cfg.WorkerOrdinal(),
		Directive:     DirectiveFromFlags(cfg.ReuseDB, cfg.CreateDB),
		KeepOnFailure: cfg.Database.KeepOnFailure,
		AutoMark:      cfg.Database.AutoMark,
	}
}

// Manager decides, per database name, whether to create, reuse or rebuild
// a test database.
type Manager struct {
	opts     Options
	srv      Server
	marks    MarkStore
	migrator Migrator
	log      *logger.Logger
	closeSrv bool
}

// Database is a prepared test database and an open connection to it.
type Database struct {
	Name    string
	DB      DB
	Outcome Outcome
}

// New builds a Manager from its collaborators. migrator may be nil when the
// databases need no schema.
func New(opts Options, srv Server, marks MarkStore, migrator Migrator, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Manager{
		opts:     opts,
		srv:      srv,
		marks:    marks,
		migrator: migrator,
		log:      log,
	}
}

// Connect wires a Manager from configuration: it connects to the configured
// server, picks the configured mark store and reads migrations from the
// configured directory. Close releases the server connection.
func Connect(ctx context.Context, cfg *config.Config) (*Manager, error) {
	log := logger.GetDefaultLogger()
	if len(cfg.Log) > 0 {
		log = logger.NewLogger(cfg.Log, os.Stderr)
	}

	srv, err := server.Connect(ctx, cfg.DatabaseURL(), server.Options{Logger: log})
	if err != nil {
		return nil, err
	}

	marks, err := markstore.New(cfg.Marks.Store, markstore.Options{
		Dir:    cfg.GetMarksDir(),
		Opener: srv,
	})
	if err != nil {
		srv.Close()
		return nil, err
	}

	runner := migrations.NewDirRunner(srv.Dialect(), cfg.GetMigrationsPath(), log)
	m := New(OptionsFromConfig(cfg), srv, marks, runner, log)
	m.closeSrv = true
	return m, nil
}

// Close releases the server connection when the Manager opened it.
func (m *Manager) Close() error {
	if m.closeSrv {
		return m.srv.Close()
	}
	return nil
}

// Options returns the options the Manager was built with.
func (m *Manager) Options() Options {
	return m.opts
}

// Provider returns the server's provider name.
func (m *Manager) Provider() string {
	return m.srv.Provider()
}

// Dialect returns the server's SQL dialect.
func (m *Manager) Dialect() dialect.Dialect {
	return m.srv.Dialect()
}

// Name returns the database name this process uses.
func (m *Manager) Name() string {
	return naming.ResolveName(m.opts.BaseName, m.opts.Worker)
}

// Exists reports whether the named database is present on the server.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	if err := naming.Validate(name); err != nil {
		return false, err
	}
	return m.srv.Exists(ctx, name)
}

// Mark records that name is migrated and may be reused.
func (m *Manager) Mark(ctx context.Context, name string) error {
	if err := naming.Validate(name); err != nil {
		return err
	}
	if err := m.marks.Mark(ctx, name); err != nil {
		return err
	}
	m.log.WithFields(logger.Fields{"database": name}).Info("marked database")
	return nil
}

// Unmark clears the setup mark of name.
func (m *Manager) Unmark(ctx context.Context, name string) error {
	if err := naming.Validate(name); err != nil {
		return err
	}
	return m.marks.Unmark(ctx, name)
}

// IsMarked reports whether name carries a setup mark.
func (m *Manager) IsMarked(ctx context.Context, name string) (bool, error) {
	if err := naming.Validate(name); err != nil {
		return false, err
	}
	return m.marks.Exists(ctx, name)
}

// Open connects to an existing database. The caller closes it.
func (m *Manager) Open(ctx context.Context, name string) (DB, error) {
	if err := naming.Validate(name); err != nil {
		return nil, err
	}
	return m.srv.Open(ctx, name)
}

// Drop clears the mark of name and drops the database. Dropping a missing
// database is not an error.
func (m *Manager) Drop(ctx context.Context, name string) error {
	if err := naming.Validate(name); err != nil {
		return err
	}
	if err := m.marks.Unmark(ctx, name); err != nil {
		return err
	}
	return m.srv.Drop(ctx, name)
}

// EnsureDatabase prepares name according to directive:
//
//   - DirectiveReuse with a mark present: nothing is touched.
//   - DirectiveReuse without a mark: the database is created if missing and
//     pending migrations are applied.
//   - DirectiveForceRecreate and DirectiveCreate: the database is dropped,
//     unmarked, created and migrated.
//
// A database created by this call is dropped again when its migrations fail,
// unless KeepOnFailure is set.
func (m *Manager) EnsureDatabase(ctx context.Context, name string, directive Directive) (Outcome, error) {
	start := time.Now()
	out := Outcome{Name: name, Directive: directive}

	if err := naming.Validate(name); err != nil {
		return out, err
	}

	log := m.log.WithFields(logger.Fields{"database": name, "directive": directive.String()})
	created := false

	switch directive {
	case DirectiveReuse:
		marked, err := m.marks.Exists(ctx, name)
		if err != nil {
			return out, err
		}
		if marked {
			out.Action = ActionReused
			out.Duration = time.Since(start)
			log.WithFields(logger.Fields{"action": out.Action.String()}).Info("database is marked, skipping setup")
			return out, nil
		}

		exists, err := m.srv.Exists(ctx, name)
		if err != nil {
			return out, err
		}
		if exists {
			out.Action = ActionMigrated
		} else {
			if err := m.srv.Create(ctx, name); err != nil {
				return out, err
			}
			created = true
			out.Action = ActionCreated
		}

	case DirectiveCreate, DirectiveForceRecreate:
		if err := m.Drop(ctx, name); err != nil {
			return out, err
		}
		if err := m.srv.Create(ctx, name); err != nil {
			return out, err
		}
		created = true
		out.Action = ActionCreated
		if directive == DirectiveForceRecreate {
			out.Action = ActionRecreated
		}

	default:
		return out, tderrors.Wrapf(tderrors.ErrInvalidConfig, "unknown directive %s", directive)
	}

	applied, err := m.migrate(ctx, name)
	out.MigrationsApplied = applied
	if err != nil {
		if created {
			m.dropAfterFailure(ctx, log, name)
		}
		return out, err
	}

	if m.opts.AutoMark && directive != DirectiveCreate {
		if err := m.marks.Mark(ctx, name); err != nil {
			return out, err
		}
	}

	out.Duration = time.Since(start)
	log.WithFields(logger.Fields{
		"action":     out.Action.String(),
		"migrations": out.MigrationsApplied,
	}).Info("database ready in %s", out.Duration.Round(time.Millisecond))
	return out, nil
}

// dropAfterFailure removes a database this Manager just created, unless
// KeepOnFailure asks for it to be left for inspection.
func (m *Manager) dropAfterFailure(ctx context.Context, log *logger.Logger, name string) {
	if m.opts.KeepOnFailure {
		return
	}
	log.Warn("dropping %s after failed setup", name)
	cleanupCtx, cancel := contextutil.WithDDLTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if err := m.Drop(cleanupCtx, name); err != nil {
		log.Error("failed to drop %s: %v", name, err)
	}
}

func (m *Manager) migrate(ctx context.Context, name string) (int, error) {
	db, err := m.srv.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if m.migrator == nil {
		return 0, nil
	}
	return m.migrator.Migrate(ctx, db)
}

// EnsureWorkers prepares the databases of n workers concurrently. Each
// worker has its own database, so the setups do not interfere.
func (m *Manager) EnsureWorkers(ctx context.Context, n int, directive Directive) ([]Outcome, error) {
	if n < 1 || n > limits.MaxWorkers {
		return nil, tderrors.Wrapf(tderrors.ErrInvalidConfig, "worker count must be between 1 and %d (got %d)", limits.MaxWorkers, n)
	}

	names := naming.WorkerNames(m.opts.BaseName, n)
	outcomes := make([]Outcome, n)

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			out, err := m.EnsureDatabase(gctx, name, directive)
			outcomes[i] = out
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// Setup ensures this process's database using the configured directive and
// returns an open connection to it.
func (m *Manager) Setup(ctx context.Context) (*Database, error) {
	name := m.Name()
	out, err := m.EnsureDatabase(ctx, name, m.opts.Directive)
	if err != nil {
		return nil, err
	}

	db, err := m.srv.Open(ctx, name)
	if err != nil {
		if out.Action == ActionCreated || out.Action == ActionRecreated {
			m.dropAfterFailure(ctx, m.log.WithFields(logger.Fields{"database": name}), name)
		}
		return nil, err
	}
	return &Database{Name: name, DB: db, Outcome: out}, nil
}

// Teardown closes the connection and, for DirectiveCreate, drops the
// database. Reused and recreated databases are kept for the next run.
func (m *Manager) Teardown(ctx context.Context, d *Database) error {
	if d == nil {
		return nil
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			m.log.Warn("closing %s: %v", d.Name, err)
		}
	}
	if d.Outcome.Directive != DirectiveCreate {
		return nil
	}
	return m.Drop(ctx, d.Name)
}
