// Package testdb manages the databases a Go test suite runs against.
//
// A test run asks for one database per process. Parallel worker processes
// each get their own name (test_app_gw0, test_app_gw1, ...). With reuse
// enabled, a database that carries a setup mark is kept as is between runs
// instead of being dropped, created and migrated again:
//
//	cfg, _ := config.LoadOrDefault("")
//	cfg.ReuseDB = true
//	mgr, err := testdb.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Close()
//
//	db, err := mgr.Setup(ctx)
//	...
//	_ = mgr.Mark(ctx, db.Name) // next run with reuse skips setup
//
// CLI Commands:
//
//	testdb setup --reuse-db -n 4   # prepare four worker databases
//	testdb status                  # existence, marks and migrations
//	testdb drop --worker gw1       # drop one worker database
//
// Tests normally go through the dbtest package instead.
package testdb

import (
	"github.com/carlosnayan/prisma-testdb/internal/driver"
	tderrors "github.com/carlosnayan/prisma-testdb/internal/errors"
	"github.com/carlosnayan/prisma-testdb/internal/server"
	"github.com/carlosnayan/prisma-testdb/markstore"
)

const Version = "0.1.0"

// DB is a connection to one test database.
type DB = driver.DB

// Server creates, drops and opens databases on a database server.
type Server = server.Server

// MarkStore persists setup marks.
type MarkStore = markstore.Store

// Error sentinels, matched with errors.Is.
var (
	ErrDatabaseUnavailable  = tderrors.ErrDatabaseUnavailable
	ErrAuthenticationFailed = tderrors.ErrAuthenticationFailed
	ErrDatabaseNotFound     = tderrors.ErrDatabaseNotFound
	ErrTimeout              = tderrors.ErrTimeout
	ErrInvalidName          = tderrors.ErrInvalidName
	ErrInvalidConfig        = tderrors.ErrInvalidConfig
	ErrUnsupportedProvider  = tderrors.ErrUnsupportedProvider
	ErrMigrationFailed      = tderrors.ErrMigrationFailed
	ErrDatabaseOperation    = tderrors.ErrDatabaseOperation
)
