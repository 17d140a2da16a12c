package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_RespectsLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger([]string{"warn"}, &buf)

	l.Info("created %s", "test_app")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered, got %q", buf.String())
	}

	l.Warn("slow drop of %s", "test_app")
	if !strings.Contains(buf.String(), "slow drop of test_app") {
		t.Errorf("Expected warn line, got %q", buf.String())
	}
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger([]string{"info"}, &buf).WithFields(Fields{"database": "test_app_gw0"})

	l.Info("ensured")
	out := buf.String()
	if !strings.Contains(out, "database=test_app_gw0") {
		t.Errorf("Expected database field in %q", out)
	}
}

func TestFormatQuery_RedactsSensitiveArgs(t *testing.T) {
	got := formatQuery("SELECT 1 FROM users WHERE name = $1 AND pass = $2", []interface{}{"bob", "password123"})
	if !strings.Contains(got, "'bob'") {
		t.Errorf("Expected plain arg in %q", got)
	}
	if !strings.Contains(got, "***REDACTED***") {
		t.Errorf("Expected redacted arg in %q", got)
	}

	got = formatQuery("SELECT ? + ?", []interface{}{1, nil})
	if got != "SELECT 1 + NULL" {
		t.Errorf("Unexpected formatted query %q", got)
	}
}

func TestRedactURL(t *testing.T) {
	tests := map[string]string{
		"postgresql://app:hunter2@db:5432/app": "postgresql://app:***@db:5432/app",
		"postgresql://app@db/app":              "postgresql://app@db/app",
		"file:/tmp/x.db":                       "file:/tmp/x.db",
	}
	for in, want := range tests {
		if got := RedactURL(in); got != want {
			t.Errorf("RedactURL(%q) = %q, want %q", in, got, want)
		}
	}
}
