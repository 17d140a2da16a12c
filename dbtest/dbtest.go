// Package dbtest prepares test databases from inside Go tests.
//
//	func TestOrders(t *testing.T) {
//	    db := dbtest.Setup(t, dbtest.WithReuse())
//	    // db.DB is migrated and ready
//	}
//
// Configuration comes from testdb.conf (or the file named by TESTDB_CONFIG),
// and the run switches from TESTDB_REUSE_DB, TESTDB_CREATE_DB and
// TESTDB_WORKER so that `go test` invocations can select them without flags.
package dbtest

import (
	"context"
	"os"
	"strconv"
	"testing"

	testdb "github.com/carlosnayan/prisma-testdb"
	"github.com/carlosnayan/prisma-testdb/internal/config"
	"github.com/carlosnayan/prisma-testdb/internal/contextutil"
	"github.com/carlosnayan/prisma-testdb/naming"
)

// Environment variables read by Setup.
const (
	ConfigEnvVar   = "TESTDB_CONFIG"
	ReuseDBEnvVar  = "TESTDB_REUSE_DB"
	CreateDBEnvVar = "TESTDB_CREATE_DB"
)

type settings struct {
	configPath string
	cfg        *config.Config
	reuse      *bool
	create     *bool
	worker     *int
	baseName   string
	mark       bool
}

// Option adjusts a Setup call.
type Option func(*settings)

// WithConfigPath loads configuration from path instead of searching for it.
func WithConfigPath(path string) Option {
	return func(s *settings) { s.configPath = path }
}

// WithConfig uses an already loaded configuration. Setup works on a copy, so
// cfg is left unchanged; its ReuseDB and CreateDB hold unless the
// environment sets them.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithReuse keeps a marked database between runs.
func WithReuse() Option {
	return func(s *settings) {
		v := true
		s.reuse = &v
	}
}

// WithCreate forces the database to be rebuilt.
func WithCreate() Option {
	return func(s *settings) {
		v := true
		s.create = &v
	}
}

// WithWorker sets the worker ordinal instead of reading TESTDB_WORKER.
func WithWorker(ordinal int) Option {
	return func(s *settings) { s.worker = &ordinal }
}

// WithBaseName overrides the configured test database name.
func WithBaseName(name string) Option {
	return func(s *settings) { s.baseName = name }
}

// WithMark sets the setup mark once the database is ready, so the next run
// with reuse skips setup.
func WithMark() Option {
	return func(s *settings) { s.mark = true }
}

// lookupEnvBool reports the boolean value of key and whether it is set to
// something ParseBool accepts.
func lookupEnvBool(key string) (value, ok bool) {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return false, false
	}
	return v, true
}

func loadConfig(t testing.TB, s *settings) *config.Config {
	t.Helper()
	if s.cfg != nil {
		return s.cfg.Clone()
	}
	path := s.configPath
	if path == "" {
		path = os.Getenv(ConfigEnvVar)
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		t.Fatalf("failed to load testdb config: %v", err)
	}
	return cfg
}

// Setup ensures this test process's database and returns it open. The
// connection is closed, and under the create directive the database dropped,
// when the test finishes.
func Setup(t testing.TB, opts ...Option) *testdb.Database {
	t.Helper()

	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}

	cfg := loadConfig(t, s)
	if v, ok := lookupEnvBool(ReuseDBEnvVar); ok {
		cfg.ReuseDB = v
	}
	if v, ok := lookupEnvBool(CreateDBEnvVar); ok {
		cfg.CreateDB = v
	}
	if s.reuse != nil {
		cfg.ReuseDB = *s.reuse
	}
	if s.create != nil {
		cfg.CreateDB = *s.create
	}
	if s.worker != nil {
		cfg.Worker = naming.WorkerToken(*s.worker)
	}
	if s.baseName != "" {
		cfg.Database.TestName = s.baseName
	}

	ctx, cancel := contextutil.WithMigrationTimeout(context.Background())
	defer cancel()

	mgr, err := testdb.Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to connect to test database server: %v", err)
	}

	db, err := mgr.Setup(ctx)
	if err != nil {
		mgr.Close()
		t.Fatalf("failed to set up test database: %v", err)
	}

	if s.mark {
		if err := mgr.Mark(ctx, db.Name); err != nil {
			t.Errorf("failed to mark %s: %v", db.Name, err)
		}
	}

	t.Cleanup(func() {
		cleanupCtx, cancel := contextutil.WithDDLTimeout(context.Background())
		defer cancel()
		if err := mgr.Teardown(cleanupCtx, db); err != nil {
			t.Errorf("failed to tear down %s: %v", db.Name, err)
		}
		mgr.Close()
	})

	return db
}

// SkipIfProvider skips the test when the configured server is one of providers.
func SkipIfProvider(t testing.TB, providers ...string) {
	t.Helper()
	cfg := loadConfig(t, &settings{})
	current := cfg.Provider()
	for _, p := range providers {
		if p == current {
			t.Skipf("skipping on %s", current)
		}
	}
}

// SkipIfNoDatabase skips the test when the configured server is unreachable.
func SkipIfNoDatabase(t testing.TB) {
	t.Helper()
	cfg := loadConfig(t, &settings{})

	ctx, cancel := contextutil.WithQueryTimeout(context.Background())
	defer cancel()

	mgr, err := testdb.Connect(ctx, cfg)
	if err != nil {
		t.Skipf("test database server not available: %v", err)
	}
	mgr.Close()
}
