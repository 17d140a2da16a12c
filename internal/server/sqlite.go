package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/carlosnayan/prisma-testdb/internal/dialect"
	"github.com/carlosnayan/prisma-testdb/internal/driver"
	tderrors "github.com/carlosnayan/prisma-testdb/internal/errors"
	"github.com/carlosnayan/prisma-testdb/internal/logger"
	"github.com/carlosnayan/prisma-testdb/naming"
	// Note: the SQLite driver must be registered by the caller:
	// _ "github.com/mattn/go-sqlite3"
)

const sqliteExt = ".sqlite3"

// sqliteServer treats a directory as the server and each <name>.sqlite3 file
// in it as a database.
type sqliteServer struct {
	dir     string
	dialect dialect.Dialect
	log     *logger.Logger
	opts    Options
}

// sqliteDir extracts the database directory from sqlite://, sqlite3:// or
// file: URLs. A URL naming a database file resolves to the file's directory.
func sqliteDir(url string) (string, error) {
	path := url
	for _, prefix := range []string{"sqlite3://", "sqlite://", "file:"} {
		if strings.HasPrefix(strings.ToLower(path), prefix) {
			path = path[len(prefix):]
			break
		}
	}
	if i := strings.IndexByte(path, '?'); i != -1 {
		path = path[:i]
	}
	if path == "" {
		return "", tderrors.Wrapf(tderrors.ErrInvalidConfig, "sqlite url %q has no path", url)
	}
	switch filepath.Ext(path) {
	case ".db", ".sqlite", sqliteExt:
		path = filepath.Dir(path)
	}
	return filepath.Clean(path), nil
}

func connectSQLite(_ context.Context, url string, opts Options) (Server, error) {
	dir, err := sqliteDir(url)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, tderrors.Wrap(tderrors.ErrDatabaseUnavailable, err)
	}
	return &sqliteServer{
		dir:     dir,
		dialect: dialect.GetDialect("sqlite"),
		log:     opts.Logger,
		opts:    opts,
	}, nil
}

func (s *sqliteServer) path(name string) string {
	return filepath.Join(s.dir, name+sqliteExt)
}

func (s *sqliteServer) dsn(name string) string {
	return "file:" + s.path(name) + "?_foreign_keys=on&_busy_timeout=5000"
}

func (s *sqliteServer) Provider() string {
	return s.dialect.Name()
}

func (s *sqliteServer) Dialect() dialect.Dialect {
	return s.dialect
}

func (s *sqliteServer) Exists(_ context.Context, name string) (bool, error) {
	if err := naming.Validate(name); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, tderrors.MapDriverError(err, tderrors.OpExists)
	}
}

func (s *sqliteServer) Create(ctx context.Context, name string) error {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return tderrors.Wrapf(tderrors.ErrDatabaseOperation, "database %s already exists", name)
	}

	db, err := sql.Open(s.dialect.GetDriverName(), s.dsn(name))
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()
	// Ping alone does not write the file header.
	if _, err := db.ExecContext(ctx, "PRAGMA user_version = 0"); err != nil {
		return tderrors.MapDriverError(err, tderrors.OpCreate)
	}
	s.log.WithFields(logger.Fields{"database": name}).Info("created database")
	return nil
}

func (s *sqliteServer) Drop(_ context.Context, name string) error {
	if err := naming.Validate(name); err != nil {
		return err
	}
	base := s.path(name)
	for _, p := range []string{base, base + "-wal", base + "-shm", base + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return tderrors.MapDriverError(err, tderrors.OpDrop)
		}
	}
	s.log.WithFields(logger.Fields{"database": name}).Info("dropped database")
	return nil
}

func (s *sqliteServer) Open(ctx context.Context, name string) (driver.DB, error) {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, tderrors.Wrapf(tderrors.ErrDatabaseNotFound, "%s", s.path(name))
	}
	return openSQL(ctx, s.dialect.GetDriverName(), s.dsn(name), s.opts)
}

func (s *sqliteServer) Close() error {
	return nil
}
