package dialect

import (
	"fmt"
	"strings"
)

// MySQLDialect implements the MySQL/MariaDB dialect
type MySQLDialect struct{}

func (d *MySQLDialect) Name() string {
	return "mysql"
}

func (d *MySQLDialect) QuoteIdentifier(name string) string {
	return quoteWith(name, "`")
}

func (d *MySQLDialect) QuoteString(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", "''")
	return fmt.Sprintf("'%s'", escaped)
}

func (d *MySQLDialect) GetPlaceholder(index int) string {
	return "?"
}

func (d *MySQLDialect) GetNowFunction() string {
	return "NOW()"
}

func (d *MySQLDialect) GetDriverName() string {
	return "mysql"
}

// DATETIME avoids MySQL's implicit ON UPDATE behaviour for TIMESTAMP columns.
func (d *MySQLDialect) GetTimestampType() string {
	return "DATETIME(6)"
}

func (d *MySQLDialect) DatabaseExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?`
}

func (d *MySQLDialect) CreateDatabaseSQL(name string) string {
	return "CREATE DATABASE " + d.QuoteIdentifier(name)
}

func (d *MySQLDialect) DropDatabaseSQL(name string) string {
	return "DROP DATABASE IF EXISTS " + d.QuoteIdentifier(name)
}

func (d *MySQLDialect) TerminateConnectionsQuery() string {
	return ""
}

func (d *MySQLDialect) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`
}

func (d *MySQLDialect) MaintenanceDatabase() string {
	return ""
}
