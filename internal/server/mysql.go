package server

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"

	"github.com/go-sql-driver/mysql"

	"github.com/carlosnayan/prisma-testdb/internal/contextutil"
	"github.com/carlosnayan/prisma-testdb/internal/dialect"
	"github.com/carlosnayan/prisma-testdb/internal/driver"
	tderrors "github.com/carlosnayan/prisma-testdb/internal/errors"
)

// mysqlDSN converts a mysql:// URL into a go-sql-driver DSN selecting database
// (empty for the server-level admin connection).
func mysqlDSN(rawURL, database string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", tderrors.Wrap(tderrors.ErrInvalidConfig, err)
	}
	if u.Scheme != "mysql" && u.Scheme != "mariadb" {
		return "", tderrors.Wrapf(tderrors.ErrInvalidConfig, "unexpected scheme %q for mysql", u.Scheme)
	}

	cfg := mysql.NewConfig()
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
	}
	cfg.DBName = database
	cfg.ParseTime = true

	query := u.Query()
	if len(query) > 0 {
		cfg.Params = make(map[string]string, len(query))
		for key := range query {
			cfg.Params[key] = query.Get(key)
		}
	}
	return cfg.FormatDSN(), nil
}

func connectMySQL(ctx context.Context, rawURL string, opts Options) (Server, error) {
	d := dialect.GetDialect("mysql")

	adminDSN, err := mysqlDSN(rawURL, d.MaintenanceDatabase())
	if err != nil {
		return nil, err
	}
	admin, err := sql.Open(d.GetDriverName(), adminDSN)
	if err != nil {
		return nil, tderrors.Wrap(tderrors.ErrInvalidConfig, err)
	}
	ConfigurePool(admin, opts.SQLPool)
	if err := pingAdmin(ctx, admin, opts); err != nil {
		return nil, err
	}

	return &sqlServer{
		admin:   admin,
		dialect: d,
		log:     opts.Logger,
		open: func(ctx context.Context, name string) (driver.DB, error) {
			dsn, err := mysqlDSN(rawURL, name)
			if err != nil {
				return nil, err
			}
			return openSQL(ctx, d.GetDriverName(), dsn, opts)
		},
	}, nil
}

// openSQL opens and pings a database/sql handle for one database.
func openSQL(ctx context.Context, driverName, dsn string, opts Options) (driver.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	ConfigurePool(db, opts.SQLPool)

	pingCtx, cancel := contextutil.WithTimeout(ctx, opts.connectTimeout())
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, tderrors.MapDriverError(err, tderrors.OpOpen)
	}
	return driver.NewSQLDB(db), nil
}
