//go:build sqlite

package driver

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// TestSQLDBAdapter_SQLite tests SQL adapter with SQLite
func TestSQLDBAdapter_SQLite(t *testing.T) {
	sqlDB, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "adapter.sqlite3"))
	if err != nil {
		t.Fatalf("failed to open SQLite: %v", err)
	}
	db := NewSQLDB(sqlDB)
	defer db.Close()

	ctx := context.Background()

	if _, err := db.Exec(ctx, "CREATE TABLE items (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)"); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	result, err := tx.Exec(ctx, "INSERT INTO items (name) VALUES (?)", "first")
	if err != nil {
		_ = tx.Rollback(ctx)
		t.Fatalf("Exec in transaction failed: %v", err)
	}
	if result.RowsAffected() != 1 {
		t.Errorf("Expected 1 row affected, got %d", result.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	var count int
	if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM items").Scan(&count); err != nil {
		t.Fatalf("QueryRow Scan failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 item, got %d", count)
	}

	rows, err := db.Query(ctx, "SELECT name FROM items")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()
	if !rows.Next() {
		t.Fatal("Query returned no rows")
	}
	var name string
	if err := rows.Scan(&name); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if name != "first" {
		t.Errorf("Expected name first, got %s", name)
	}

	if db.SQLDB() != sqlDB {
		t.Error("SQLDB should return the wrapped *sql.DB")
	}
}
