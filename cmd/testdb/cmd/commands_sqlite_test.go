//go:build sqlite

package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/carlosnayan/prisma-testdb/internal/config"
)

func writeSQLiteProject(t *testing.T, store string) string {
	t.Helper()
	dir := setupTestDir(t)
	writeFile(t, filepath.Join(dir, config.FileName),
		"[datasource]\nurl = \"sqlite3://"+filepath.ToSlash(filepath.Join(dir, "dbs"))+"\"\n\n"+
			"[database]\ntest_name = \"test_cli\"\n\n"+
			"[marks]\nstore = \""+store+"\"\ndir = \"marks\"\n")
	writeFile(t, filepath.Join(dir, "migrations", "20240101000000_items", "migration.sql"),
		"CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL);")
	return dir
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	buf := captureOutput(t)
	resetCommandFlags()
	if err := newApp().ExecuteArgs(args); err != nil {
		t.Fatalf("testdb %s failed: %v", strings.Join(args, " "), err)
	}
	return buf.String()
}

// resetCommandFlags clears per-command flags so each invocation starts clean.
func resetCommandFlags() {
	reuseDBFlag = false
	createDBFlag = false
	workersFlag = 0
	markFlag = false
}

func TestCommands_WorkerLifecycle(t *testing.T) {
	for _, store := range []string{config.MarkStoreTable, config.MarkStoreFile} {
		t.Run(store, func(t *testing.T) {
			resetGlobalFlags(t)
			dir := writeSQLiteProject(t, store)

			output := run(t, "setup", "--reuse-db", "-n", "2")
			assertContains(t, output, "test_cli_gw0")
			assertContains(t, output, "test_cli_gw1")
			assertContains(t, output, "created, 1 migration(s) applied")
			if !fileExists(filepath.Join(dir, "dbs", "test_cli_gw1.sqlite3")) {
				t.Error("Expected worker database file")
			}

			output = run(t, "mark", "-n", "2")
			assertContains(t, output, "Marked test_cli_gw0")

			output = run(t, "setup", "--reuse-db", "-n2")
			assertContains(t, output, "reused, 0 migration(s) applied")

			output = run(t, "status", "-n", "2")
			assertContains(t, output, "marked, reused by --reuse-db")
			assertContains(t, output, "Status: healthy")
			assertContains(t, output, "Applied  20240101000000_items")

			output = run(t, "unmark", "test_cli_gw1")
			assertContains(t, output, "Unmarked test_cli_gw1")

			output = run(t, "status", "test_cli_gw1")
			assertContains(t, output, "not marked")

			output = run(t, "drop", "-n", "2")
			assertContains(t, output, "Dropped test_cli_gw1")

			output = run(t, "status", "-n", "2")
			assertContains(t, output, "missing")
		})
	}
}

func TestCommands_SetupCreateAndMark(t *testing.T) {
	resetGlobalFlags(t)
	writeSQLiteProject(t, config.MarkStoreTable)

	output := run(t, "--worker", "gw4", "setup", "--create-db", "--mark")
	assertContains(t, output, "test_cli_gw4")
	assertContains(t, output, "directive force-recreate")

	output = run(t, "--worker=gw4", "status")
	assertContains(t, output, "marked, reused by --reuse-db")
}

func TestCommands_MarkMissingDatabase(t *testing.T) {
	resetGlobalFlags(t)
	writeSQLiteProject(t, config.MarkStoreFile)
	captureOutput(t)

	if err := newApp().ExecuteArgs([]string{"mark", "test_cli_gw9"}); err == nil {
		t.Fatal("Expected error when marking a missing database")
	}
}
