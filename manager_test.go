package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosnayan/prisma-testdb/internal/dialect"
	"github.com/carlosnayan/prisma-testdb/internal/driver"
	tderrors "github.com/carlosnayan/prisma-testdb/internal/errors"
	"github.com/carlosnayan/prisma-testdb/internal/limits"
	"github.com/carlosnayan/prisma-testdb/internal/logger"
	"github.com/carlosnayan/prisma-testdb/markstore"
)

type fakeDatabase struct {
	migrations int
	rows       int
}

// fakeServer keeps databases in memory and counts DDL per name.
type fakeServer struct {
	mu          sync.Mutex
	dbs         map[string]*fakeDatabase
	creates     map[string]int
	drops       map[string]int
	unavailable bool
	opens       int
	failOpenAt  int // fail the n-th Open, 0 never
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		dbs:     make(map[string]*fakeDatabase),
		creates: make(map[string]int),
		drops:   make(map[string]int),
	}
}

func (s *fakeServer) Provider() string {
	return "sqlite"
}

func (s *fakeServer) Dialect() dialect.Dialect {
	return dialect.GetDialect("sqlite")
}

func (s *fakeServer) Exists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return false, tderrors.Wrap(tderrors.ErrDatabaseUnavailable, errors.New("connection refused"))
	}
	_, ok := s.dbs[name]
	return ok, nil
}

func (s *fakeServer) Create(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return tderrors.Wrap(tderrors.ErrDatabaseUnavailable, errors.New("connection refused"))
	}
	if _, ok := s.dbs[name]; ok {
		return tderrors.Wrapf(tderrors.ErrDatabaseOperation, "database %s already exists", name)
	}
	s.dbs[name] = &fakeDatabase{}
	s.creates[name]++
	return nil
}

func (s *fakeServer) Drop(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable {
		return tderrors.Wrap(tderrors.ErrDatabaseUnavailable, errors.New("connection refused"))
	}
	if _, ok := s.dbs[name]; ok {
		s.drops[name]++
	}
	delete(s.dbs, name)
	return nil
}

func (s *fakeServer) Open(_ context.Context, name string) (driver.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dbs[name]; !ok {
		return nil, tderrors.Wrapf(tderrors.ErrDatabaseNotFound, "%s", name)
	}
	s.opens++
	if s.opens == s.failOpenAt {
		return nil, tderrors.Wrap(tderrors.ErrDatabaseUnavailable, errors.New("too many connections"))
	}
	return &fakeConn{name: name, srv: s}, nil
}

func (s *fakeServer) Close() error {
	return nil
}

func (s *fakeServer) database(name string) *fakeDatabase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dbs[name]
}

// fakeConn is an open connection handed out by fakeServer.
type fakeConn struct {
	driver.DB
	name   string
	srv    *fakeServer
	closed bool
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) SQLDB() *sql.DB {
	return nil
}

// fakeMigrator applies a fixed number of migrations per database.
type fakeMigrator struct {
	mu    sync.Mutex
	total int
	calls map[string]int
	fail  bool
}

func newFakeMigrator(total int) *fakeMigrator {
	return &fakeMigrator{total: total, calls: make(map[string]int)}
}

func (f *fakeMigrator) Migrate(_ context.Context, db DB) (int, error) {
	conn := db.(*fakeConn)
	f.mu.Lock()
	f.calls[conn.name]++
	f.mu.Unlock()

	if f.fail {
		return 0, tderrors.Wrap(tderrors.ErrMigrationFailed, errors.New("20240101000000_initial: syntax error"))
	}

	state := conn.srv.database(conn.name)
	applied := f.total - state.migrations
	state.migrations = f.total
	return applied, nil
}

func (f *fakeMigrator) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func quietLogger() *logger.Logger {
	return logger.NewLogger(nil, io.Discard)
}

func newTestManager(opts Options) (*Manager, *fakeServer, *markstore.Memory, *fakeMigrator) {
	srv := newFakeServer()
	marks := markstore.NewMemory()
	migrator := newFakeMigrator(3)
	if opts.BaseName == "" {
		opts.BaseName = "test_db"
	}
	return New(opts, srv, marks, migrator, quietLogger()), srv, marks, migrator
}

func intPtr(n int) *int { return &n }

func TestDirectiveFromFlags(t *testing.T) {
	assert.Equal(t, DirectiveCreate, DirectiveFromFlags(false, false))
	assert.Equal(t, DirectiveReuse, DirectiveFromFlags(true, false))
	assert.Equal(t, DirectiveForceRecreate, DirectiveFromFlags(false, true))
	assert.Equal(t, DirectiveForceRecreate, DirectiveFromFlags(true, true), "--create-db wins over --reuse-db")
}

func TestManager_Name(t *testing.T) {
	m, _, _, _ := newTestManager(Options{BaseName: "test_app"})
	assert.Equal(t, "test_app", m.Name())

	m, _, _, _ = newTestManager(Options{BaseName: "test_app", Worker: intPtr(0)})
	assert.Equal(t, "test_app_gw0", m.Name())
}

func TestManager_UnmarkThenIsMarked(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := newTestManager(Options{})

	require.NoError(t, m.Mark(ctx, "test_db"))
	require.NoError(t, m.Unmark(ctx, "test_db"))

	marked, err := m.IsMarked(ctx, "test_db")
	require.NoError(t, err)
	assert.False(t, marked)
}

func TestManager_MarkSurvivesReuse(t *testing.T) {
	ctx := context.Background()
	m, srv, _, migrator := newTestManager(Options{})

	_, err := m.EnsureDatabase(ctx, "test_db", DirectiveReuse)
	require.NoError(t, err)
	require.NoError(t, m.Mark(ctx, "test_db"))

	for i := 0; i < 3; i++ {
		out, err := m.EnsureDatabase(ctx, "test_db", DirectiveReuse)
		require.NoError(t, err)
		assert.Equal(t, ActionReused, out.Action)

		marked, err := m.IsMarked(ctx, "test_db")
		require.NoError(t, err)
		assert.True(t, marked)
	}
	assert.Equal(t, 1, srv.creates["test_db"])
	assert.Equal(t, 1, migrator.callCount("test_db"))
}

func TestManager_ForceRecreateClearsMark(t *testing.T) {
	ctx := context.Background()
	m, srv, _, _ := newTestManager(Options{})

	_, err := m.EnsureDatabase(ctx, "test_db", DirectiveReuse)
	require.NoError(t, err)
	require.NoError(t, m.Mark(ctx, "test_db"))

	out, err := m.EnsureDatabase(ctx, "test_db", DirectiveForceRecreate)
	require.NoError(t, err)
	assert.Equal(t, ActionRecreated, out.Action)
	assert.Equal(t, 3, out.MigrationsApplied)

	marked, err := m.IsMarked(ctx, "test_db")
	require.NoError(t, err)
	assert.False(t, marked)

	exists, err := m.Exists(ctx, "test_db")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, srv.drops["test_db"])
	assert.Equal(t, 2, srv.creates["test_db"])
}

func TestManager_ReuseScenario(t *testing.T) {
	ctx := context.Background()
	m, srv, _, migrator := newTestManager(Options{})
	const name = "test_db"

	require.NoError(t, m.Drop(ctx, name))
	exists, err := m.Exists(ctx, name)
	require.NoError(t, err)
	require.False(t, exists)

	out, err := m.EnsureDatabase(ctx, name, DirectiveReuse)
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, out.Action)
	assert.Equal(t, 3, out.MigrationsApplied)

	marked, err := m.IsMarked(ctx, name)
	require.NoError(t, err)
	assert.False(t, marked, "the mark is left to the caller")

	srv.database(name).rows = 5
	require.NoError(t, m.Mark(ctx, name))

	out, err = m.EnsureDatabase(ctx, name, DirectiveReuse)
	require.NoError(t, err)
	assert.Equal(t, ActionReused, out.Action)
	assert.Zero(t, out.MigrationsApplied)
	assert.Equal(t, 1, srv.creates[name], "no second creation")
	assert.Equal(t, 1, migrator.callCount(name), "no migration re-run")
	assert.Equal(t, 5, srv.database(name).rows, "data kept")

	out, err = m.EnsureDatabase(ctx, name, DirectiveForceRecreate)
	require.NoError(t, err)
	assert.Equal(t, ActionRecreated, out.Action)
	assert.Equal(t, 2, srv.creates[name])
	assert.Zero(t, srv.database(name).rows)

	marked, err = m.IsMarked(ctx, name)
	require.NoError(t, err)
	assert.False(t, marked)
}

func TestManager_ReuseUnmarkedExistingDatabase(t *testing.T) {
	ctx := context.Background()
	m, srv, _, _ := newTestManager(Options{})

	require.NoError(t, srv.Create(ctx, "test_db"))
	srv.database("test_db").migrations = 1

	out, err := m.EnsureDatabase(ctx, "test_db", DirectiveReuse)
	require.NoError(t, err)
	assert.Equal(t, ActionMigrated, out.Action)
	assert.Equal(t, 2, out.MigrationsApplied, "only pending migrations run")
	assert.Equal(t, 1, srv.creates["test_db"])
}

func TestManager_Workers(t *testing.T) {
	ctx := context.Background()
	m, srv, _, _ := newTestManager(Options{BaseName: "base"})

	outcomes, err := m.EnsureWorkers(ctx, 2, DirectiveReuse)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, "base_gw0", outcomes[0].Name)
	assert.Equal(t, "base_gw1", outcomes[1].Name)

	for _, name := range []string{"base_gw0", "base_gw1"} {
		exists, err := m.Exists(ctx, name)
		require.NoError(t, err)
		assert.True(t, exists, name)
		assert.Zero(t, srv.database(name).rows, name)
	}

	// Dropping one worker's database leaves the other alone.
	require.NoError(t, m.Drop(ctx, "base_gw1"))
	exists, err := m.Exists(ctx, "base_gw0")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = m.EnsureWorkers(ctx, 0, DirectiveReuse)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = m.EnsureWorkers(ctx, limits.MaxWorkers+1, DirectiveReuse)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestManager_ServerUnavailable(t *testing.T) {
	ctx := context.Background()
	m, srv, _, migrator := newTestManager(Options{})
	srv.unavailable = true

	for _, directive := range []Directive{DirectiveCreate, DirectiveReuse, DirectiveForceRecreate} {
		_, err := m.EnsureDatabase(ctx, "test_db", directive)
		require.Error(t, err, directive.String())
		assert.ErrorIs(t, err, ErrDatabaseUnavailable, directive.String())
	}
	assert.Zero(t, migrator.callCount("test_db"))
}

func TestManager_MigrationFailureDropsDatabase(t *testing.T) {
	ctx := context.Background()
	m, srv, marks, migrator := newTestManager(Options{AutoMark: true})
	migrator.fail = true

	_, err := m.EnsureDatabase(ctx, "test_db", DirectiveReuse)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMigrationFailed)

	assert.Nil(t, srv.database("test_db"), "database created by the failed call is dropped")
	marked, err := marks.Exists(ctx, "test_db")
	require.NoError(t, err)
	assert.False(t, marked)
}

func TestManager_MigrationFailureKeepOnFailure(t *testing.T) {
	ctx := context.Background()
	m, srv, _, migrator := newTestManager(Options{KeepOnFailure: true})
	migrator.fail = true

	_, err := m.EnsureDatabase(ctx, "test_db", DirectiveForceRecreate)
	assert.ErrorIs(t, err, ErrMigrationFailed)
	assert.NotNil(t, srv.database("test_db"))
}

func TestManager_MigrationFailureKeepsPreexistingDatabase(t *testing.T) {
	ctx := context.Background()
	m, srv, _, migrator := newTestManager(Options{})
	require.NoError(t, srv.Create(ctx, "test_db"))
	migrator.fail = true

	_, err := m.EnsureDatabase(ctx, "test_db", DirectiveReuse)
	assert.ErrorIs(t, err, ErrMigrationFailed)
	assert.NotNil(t, srv.database("test_db"), "a database this call did not create is left alone")
}

func TestManager_AutoMark(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := newTestManager(Options{AutoMark: true})

	_, err := m.EnsureDatabase(ctx, "test_db", DirectiveReuse)
	require.NoError(t, err)
	marked, err := m.IsMarked(ctx, "test_db")
	require.NoError(t, err)
	assert.True(t, marked)

	_, err = m.EnsureDatabase(ctx, "test_db", DirectiveCreate)
	require.NoError(t, err)
	marked, err = m.IsMarked(ctx, "test_db")
	require.NoError(t, err)
	assert.False(t, marked, "databases dropped at teardown are never marked")
}

func TestManager_InvalidName(t *testing.T) {
	ctx := context.Background()
	m, srv, _, _ := newTestManager(Options{})

	_, err := m.EnsureDatabase(ctx, "test-db; DROP", DirectiveCreate)
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.Empty(t, srv.creates)

	assert.ErrorIs(t, m.Mark(ctx, ""), ErrInvalidName)
}

func TestManager_SetupAndTeardown(t *testing.T) {
	ctx := context.Background()

	m, srv, _, _ := newTestManager(Options{Worker: intPtr(1)})
	db, err := m.Setup(ctx)
	require.NoError(t, err)
	assert.Equal(t, "test_db_gw1", db.Name)
	assert.Equal(t, ActionCreated, db.Outcome.Action)
	require.NoError(t, m.Teardown(ctx, db))
	assert.True(t, db.DB.(*fakeConn).closed)
	assert.Nil(t, srv.database("test_db_gw1"), "create directive drops at teardown")

	m, srv, _, _ = newTestManager(Options{Directive: DirectiveReuse})
	db, err = m.Setup(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Teardown(ctx, db))
	assert.NotNil(t, srv.database("test_db"), "reuse keeps the database")

	assert.NoError(t, m.Teardown(ctx, nil))
}

func TestManager_SetupDropsCreatedDatabaseWhenOpenFails(t *testing.T) {
	ctx := context.Background()

	m, srv, _, _ := newTestManager(Options{})
	srv.failOpenAt = 2
	_, err := m.Setup(ctx)
	assert.ErrorIs(t, err, ErrDatabaseUnavailable)
	assert.Nil(t, srv.database("test_db"))

	m, srv, _, _ = newTestManager(Options{KeepOnFailure: true})
	srv.failOpenAt = 2
	_, err = m.Setup(ctx)
	assert.ErrorIs(t, err, ErrDatabaseUnavailable)
	assert.NotNil(t, srv.database("test_db"), "kept for inspection")

	m, srv, _, _ = newTestManager(Options{Directive: DirectiveReuse})
	_, err = m.EnsureDatabase(ctx, "test_db", DirectiveReuse)
	require.NoError(t, err)
	require.NoError(t, m.Mark(ctx, "test_db"))
	srv.failOpenAt = srv.opens + 1
	_, err = m.Setup(ctx)
	assert.ErrorIs(t, err, ErrDatabaseUnavailable)
	assert.NotNil(t, srv.database("test_db"), "reused database is never dropped")
}

func TestOutcome_String(t *testing.T) {
	out := Outcome{Name: "test_db_gw0", Directive: DirectiveReuse, Action: ActionMigrated, MigrationsApplied: 2}
	assert.Equal(t, "test_db_gw0: migrated (reuse, 2 migrations, 0s)", out.String())
}

func TestManager_Open(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := newTestManager(Options{})

	_, err := m.Open(ctx, "test_db")
	assert.ErrorIs(t, err, ErrDatabaseNotFound)

	_, err = m.EnsureDatabase(ctx, "test_db", DirectiveReuse)
	require.NoError(t, err)

	db, err := m.Open(ctx, "test_db")
	require.NoError(t, err)
	assert.NoError(t, db.Close())

	_, err = m.Open(ctx, "bad name")
	assert.ErrorIs(t, err, ErrInvalidName)
}
