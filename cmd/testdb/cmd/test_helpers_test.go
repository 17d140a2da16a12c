package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// setupTestDir creates a temporary directory for testing and changes to it
func setupTestDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	oldDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get current dir: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change to temp dir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldDir)
	})

	return dir
}

// resetGlobalFlags resets flag globals and the environment between tests
func resetGlobalFlags(t *testing.T) {
	t.Helper()
	configFile = ""
	workerFlag = ""
	verbose = false
	providerFlag = ""
	urlFlag = ""
	forceFlag = false
	reuseDBFlag = false
	createDBFlag = false
	workersFlag = 0
	markFlag = false
	colorsEnabled = 0

	for _, key := range []string{"PG_HOST", "PG_PORT", "PG_USER", "PG_PASSWORD", "PG_DB", "TESTDB_WORKER", "DATABASE_URL"} {
		t.Setenv(key, "")
	}
}

// captureOutput redirects command output into a buffer for the test
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := out
	out = &buf
	t.Cleanup(func() { out = old })
	return &buf
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("Expected output to contain %q, got:\n%s", substr, s)
	}
}
