package dialect

import (
	"fmt"
	"strings"
)

// PostgreSQLDialect implements the PostgreSQL dialect
type PostgreSQLDialect struct{}

func (d *PostgreSQLDialect) Name() string {
	return "postgresql"
}

func (d *PostgreSQLDialect) QuoteIdentifier(name string) string {
	return quoteWith(name, `"`)
}

func (d *PostgreSQLDialect) QuoteString(value string) string {
	return fmt.Sprintf("'%s'", strings.ReplaceAll(value, "'", "''"))
}

func (d *PostgreSQLDialect) GetPlaceholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *PostgreSQLDialect) GetNowFunction() string {
	return "NOW()"
}

func (d *PostgreSQLDialect) GetDriverName() string {
	return "pgx"
}

func (d *PostgreSQLDialect) GetTimestampType() string {
	return "TIMESTAMP"
}

func (d *PostgreSQLDialect) DatabaseExistsQuery() string {
	return `SELECT COUNT(*) FROM pg_database WHERE datname = $1`
}

func (d *PostgreSQLDialect) CreateDatabaseSQL(name string) string {
	return "CREATE DATABASE " + d.QuoteIdentifier(name)
}

func (d *PostgreSQLDialect) DropDatabaseSQL(name string) string {
	return "DROP DATABASE IF EXISTS " + d.QuoteIdentifier(name)
}

func (d *PostgreSQLDialect) TerminateConnectionsQuery() string {
	return `SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()`
}

func (d *PostgreSQLDialect) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1`
}

func (d *PostgreSQLDialect) MaintenanceDatabase() string {
	return "postgres"
}
