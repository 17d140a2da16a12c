package dialect

import (
	"fmt"
	"strings"
)

// SQLiteDialect implements the SQLite dialect. SQLite databases are files, so
// the database-level statements are empty and the server layer works on paths.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string {
	return "sqlite"
}

func (d *SQLiteDialect) QuoteIdentifier(name string) string {
	return quoteWith(name, `"`)
}

func (d *SQLiteDialect) QuoteString(value string) string {
	return fmt.Sprintf("'%s'", strings.ReplaceAll(value, "'", "''"))
}

func (d *SQLiteDialect) GetPlaceholder(index int) string {
	return "?"
}

func (d *SQLiteDialect) GetNowFunction() string {
	return "datetime('now')"
}

func (d *SQLiteDialect) GetDriverName() string {
	return "sqlite3"
}

func (d *SQLiteDialect) GetTimestampType() string {
	return "TIMESTAMP"
}

func (d *SQLiteDialect) DatabaseExistsQuery() string {
	return ""
}

func (d *SQLiteDialect) CreateDatabaseSQL(name string) string {
	return ""
}

func (d *SQLiteDialect) DropDatabaseSQL(name string) string {
	return ""
}

func (d *SQLiteDialect) TerminateConnectionsQuery() string {
	return ""
}

func (d *SQLiteDialect) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
}

func (d *SQLiteDialect) MaintenanceDatabase() string {
	return ""
}
