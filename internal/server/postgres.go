package server

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/carlosnayan/prisma-testdb/internal/dialect"
	"github.com/carlosnayan/prisma-testdb/internal/driver"
	tderrors "github.com/carlosnayan/prisma-testdb/internal/errors"
)

// connectPostgres attaches the admin connection to the maintenance database,
// since a database cannot be dropped while connected to it.
func connectPostgres(ctx context.Context, url string, opts Options) (Server, error) {
	d := dialect.GetDialect("postgresql")

	connConfig, err := pgx.ParseConfig(url)
	if err != nil {
		return nil, tderrors.Wrap(tderrors.ErrInvalidConfig, err)
	}
	connConfig.Database = d.MaintenanceDatabase()

	admin := stdlib.OpenDB(*connConfig)
	ConfigurePool(admin, opts.SQLPool)
	if err := pingAdmin(ctx, admin, opts); err != nil {
		return nil, err
	}

	return &sqlServer{
		admin:   admin,
		dialect: d,
		log:     opts.Logger,
		open: func(ctx context.Context, name string) (driver.DB, error) {
			pool, err := driver.NewPgxPoolWithConfig(ctx, url, name, opts.Pool)
			if err != nil {
				return nil, tderrors.MapDriverError(err, tderrors.OpOpen)
			}
			return driver.NewPgxPool(pool), nil
		},
	}, nil
}
