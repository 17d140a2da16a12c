package dbtest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	testdb "github.com/carlosnayan/prisma-testdb"
	"github.com/carlosnayan/prisma-testdb/internal/dialect"
	"github.com/carlosnayan/prisma-testdb/internal/driver"
)

// bookkeepingPrefix marks tables owned by testdb itself.
const bookkeepingPrefix = "_testdb_"

func listTablesQuery(provider string) string {
	switch provider {
	case "postgresql":
		return `SELECT tablename FROM pg_tables WHERE schemaname = current_schema()`
	case "mysql":
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'`
	case "sqlite":
		return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`
	default:
		return ""
	}
}

// TableNames lists the application tables of db, leaving out testdb's own
// bookkeeping tables.
func TableNames(ctx context.Context, db driver.DB, provider string) ([]string, error) {
	query := listTablesQuery(provider)
	if query == "" {
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, err
		}
		if !strings.HasPrefix(table, bookkeepingPrefix) {
			tables = append(tables, table)
		}
	}
	return tables, rows.Err()
}

// Truncate empties every application table, for reused databases whose
// previous run left rows behind.
func Truncate(t testing.TB, db *testdb.Database, provider string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tables, err := TableNames(ctx, db.DB, provider)
	if err != nil {
		t.Fatalf("failed to list tables of %s: %v", db.Name, err)
	}

	d := dialect.GetDialect(provider)
	for _, table := range tables {
		var stmt string
		switch provider {
		case "postgresql":
			stmt = fmt.Sprintf("TRUNCATE TABLE %s CASCADE", d.QuoteIdentifier(table))
		case "mysql":
			stmt = fmt.Sprintf("TRUNCATE TABLE %s", d.QuoteIdentifier(table))
		default:
			stmt = fmt.Sprintf("DELETE FROM %s", d.QuoteIdentifier(table))
		}
		if _, err := db.DB.Exec(ctx, stmt); err != nil {
			t.Fatalf("failed to empty %s: %v", table, err)
		}
	}
}

// WithTransaction runs fn inside a transaction that is always rolled back.
func WithTransaction(t testing.TB, db driver.DB, fn func(tx driver.Tx)) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
		if err := tx.Rollback(ctx); err != nil {
			t.Logf("warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(tx)
}
