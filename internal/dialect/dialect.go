package dialect

import (
	"strings"
)

// Dialect representa um dialeto de banco de dados
// Abstrai as diferenças entre PostgreSQL, MySQL e SQLite no ciclo de vida de bancos de teste.
type Dialect interface {
	// Name retorna o nome do dialeto (ex: "postgresql", "mysql", "sqlite")
	Name() string

	// QuoteIdentifier cita um identificador (banco, tabela, coluna)
	// PostgreSQL: "name", MySQL: `name`, SQLite: "name"
	QuoteIdentifier(name string) string

	// QuoteString cita uma string literal
	QuoteString(value string) string

	// GetPlaceholder retorna o placeholder para parâmetros
	// PostgreSQL: $1, $2, MySQL: ?, ?, SQLite: ?, ?
	GetPlaceholder(index int) string

	// GetNowFunction retorna a função para obter data/hora atual
	GetNowFunction() string

	// GetDriverName retorna o nome do driver Go para database/sql
	// PostgreSQL: "pgx", MySQL: "mysql", SQLite: "sqlite3"
	GetDriverName() string

	// GetTimestampType is the column type used for bookkeeping timestamps.
	GetTimestampType() string

	// DatabaseExistsQuery takes the database name as its only parameter and
	// returns a single integer row (0 or 1). Empty for file-backed dialects.
	DatabaseExistsQuery() string

	// CreateDatabaseSQL returns the statement creating the database.
	CreateDatabaseSQL(name string) string

	// DropDatabaseSQL returns an idempotent drop statement.
	DropDatabaseSQL(name string) string

	// TerminateConnectionsQuery takes the database name and disconnects other
	// sessions using it. Empty when the server does not need it before a drop.
	TerminateConnectionsQuery() string

	// TableExistsQuery takes a table name and returns a single integer row,
	// scoped to the current database/schema.
	TableExistsQuery() string

	// MaintenanceDatabase is the database administrative connections attach to.
	MaintenanceDatabase() string
}

// GetDialect retorna o dialeto apropriado para o provider
func GetDialect(provider string) Dialect {
	switch strings.ToLower(provider) {
	case "postgresql", "postgres":
		return &PostgreSQLDialect{}
	case "mysql", "mariadb":
		return &MySQLDialect{}
	case "sqlite", "sqlite3":
		return &SQLiteDialect{}
	default:
		return nil
	}
}

// Providers lists the provider names GetDialect understands.
func Providers() []string {
	return []string{"postgresql", "mysql", "sqlite"}
}

func quoteWith(name string, quote string) string {
	return quote + strings.ReplaceAll(name, quote, quote+quote) + quote
}

// DetectProvider detects the provider from a connection URL, defaulting to PostgreSQL
func DetectProvider(url string) string {
	url = strings.ToLower(url)

	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgresql"
	case strings.HasPrefix(url, "mysql://"), strings.HasPrefix(url, "mariadb://"):
		return "mysql"
	case strings.HasPrefix(url, "sqlite://"), strings.HasPrefix(url, "sqlite3://"), strings.HasPrefix(url, "file:"):
		return "sqlite"
	}

	return "postgresql"
}
