package server

import (
	"context"
	"database/sql"

	"github.com/carlosnayan/prisma-testdb/internal/contextutil"
	"github.com/carlosnayan/prisma-testdb/internal/dialect"
	"github.com/carlosnayan/prisma-testdb/internal/driver"
	tderrors "github.com/carlosnayan/prisma-testdb/internal/errors"
	"github.com/carlosnayan/prisma-testdb/internal/logger"
	"github.com/carlosnayan/prisma-testdb/naming"
)

// sqlServer runs database-level DDL over an administrative database/sql
// connection. PostgreSQL and MySQL share it and differ only in how a single
// database is opened.
type sqlServer struct {
	admin   *sql.DB
	dialect dialect.Dialect
	log     *logger.Logger
	open    func(ctx context.Context, name string) (driver.DB, error)
}

// pingAdmin verifies the admin connection, closing it on failure.
func pingAdmin(ctx context.Context, db *sql.DB, opts Options) error {
	ctx, cancel := contextutil.WithTimeout(ctx, opts.connectTimeout())
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return tderrors.MapDriverError(err, tderrors.OpConnect)
	}
	return nil
}

func (s *sqlServer) Provider() string {
	return s.dialect.Name()
}

func (s *sqlServer) Dialect() dialect.Dialect {
	return s.dialect
}

func (s *sqlServer) Exists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := contextutil.WithQueryTimeout(ctx)
	defer cancel()

	var count int64
	if err := s.admin.QueryRowContext(ctx, s.dialect.DatabaseExistsQuery(), name).Scan(&count); err != nil {
		return false, tderrors.MapDriverError(err, tderrors.OpExists)
	}
	return count > 0, nil
}

func (s *sqlServer) Create(ctx context.Context, name string) error {
	if err := naming.Validate(name); err != nil {
		return err
	}

	ctx, cancel := contextutil.WithDDLTimeout(ctx)
	defer cancel()

	if _, err := s.admin.ExecContext(ctx, s.dialect.CreateDatabaseSQL(name)); err != nil {
		return tderrors.MapDriverError(err, tderrors.OpCreate)
	}
	s.log.WithFields(logger.Fields{"database": name}).Info("created database")
	return nil
}

func (s *sqlServer) Drop(ctx context.Context, name string) error {
	if err := naming.Validate(name); err != nil {
		return err
	}

	ctx, cancel := contextutil.WithDDLTimeout(ctx)
	defer cancel()

	if q := s.dialect.TerminateConnectionsQuery(); q != "" {
		if _, err := s.admin.ExecContext(ctx, q, name); err != nil {
			return tderrors.MapDriverError(err, tderrors.OpDrop)
		}
	}
	if _, err := s.admin.ExecContext(ctx, s.dialect.DropDatabaseSQL(name)); err != nil {
		return tderrors.MapDriverError(err, tderrors.OpDrop)
	}
	s.log.WithFields(logger.Fields{"database": name}).Info("dropped database")
	return nil
}

func (s *sqlServer) Open(ctx context.Context, name string) (driver.DB, error) {
	if err := naming.Validate(name); err != nil {
		return nil, err
	}
	return s.open(ctx, name)
}

func (s *sqlServer) Close() error {
	return s.admin.Close()
}
