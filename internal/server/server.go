// Package server talks to the database server that hosts test databases:
// existence checks, CREATE/DROP and connections to individual databases.
package server

import (
	"context"
	"time"

	"github.com/carlosnayan/prisma-testdb/internal/dialect"
	"github.com/carlosnayan/prisma-testdb/internal/driver"
	tderrors "github.com/carlosnayan/prisma-testdb/internal/errors"
	"github.com/carlosnayan/prisma-testdb/internal/logger"
)

// Server manages databases on one server. Drop is idempotent.
type Server interface {
	Provider() string
	Dialect() dialect.Dialect
	Exists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, name string) error
	Drop(ctx context.Context, name string) error
	Open(ctx context.Context, name string) (driver.DB, error)
	Close() error
}

// Options tunes connections made by Connect.
type Options struct {
	// Pool sizes pgx pools returned by Open on PostgreSQL.
	Pool *driver.PoolConfig
	// SQLPool sizes database/sql handles (admin connections, MySQL, SQLite).
	SQLPool *PoolConfig
	// ConnectTimeout bounds the initial ping.
	ConnectTimeout time.Duration
	Logger         *logger.Logger
}

func (o Options) logger() *logger.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.GetDefaultLogger()
}

func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout > 0 {
		return o.ConnectTimeout
	}
	return 10 * time.Second
}

// Connect opens an administrative connection to the server addressed by url
// and verifies it is reachable.
func Connect(ctx context.Context, url string, opts Options) (Server, error) {
	provider := dialect.DetectProvider(url)
	opts.Logger = opts.logger().WithFields(logger.Fields{"provider": provider})
	opts.Logger.Info("connecting to %s", logger.RedactURL(url))

	switch provider {
	case "postgresql":
		return connectPostgres(ctx, url, opts)
	case "mysql":
		return connectMySQL(ctx, url, opts)
	case "sqlite":
		return connectSQLite(ctx, url, opts)
	default:
		return nil, tderrors.Wrapf(tderrors.ErrUnsupportedProvider, "%s", provider)
	}
}
