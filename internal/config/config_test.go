package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tderrors "github.com/carlosnayan/prisma-testdb/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PG_HOST", "PG_PORT", "PG_USER", "PG_PASSWORD", "PG_DB", "TESTDB_WORKER"} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
log = ["info"]

[datasource]
url = "postgresql://app:secret@db:5432/shop?sslmode=disable"

[database]
prefix = "test_"
keep_on_failure = true

[migrations]
path = "db/migrations"

[marks]
store = "file"
dir = "marks"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider() != "postgresql" {
		t.Errorf("Expected provider postgresql, got %s", cfg.Provider())
	}
	if cfg.BaseName() != "test_shop" {
		t.Errorf("Expected base name test_shop, got %s", cfg.BaseName())
	}
	if cfg.ResolvedName() != "test_shop" {
		t.Errorf("Expected resolved name test_shop, got %s", cfg.ResolvedName())
	}
	if !cfg.Database.KeepOnFailure {
		t.Error("Expected keep_on_failure to be true")
	}
	if cfg.Database.AutoMark {
		t.Error("Expected auto_mark to default to false")
	}
	wantMigrations := filepath.Join(filepath.Dir(path), "db", "migrations")
	if cfg.GetMigrationsPath() != wantMigrations {
		t.Errorf("Expected migrations path %s, got %s", wantMigrations, cfg.GetMigrationsPath())
	}
	wantMarks := filepath.Join(filepath.Dir(path), "marks")
	if cfg.GetMarksDir() != wantMarks {
		t.Errorf("Expected marks dir %s, got %s", wantMarks, cfg.GetMarksDir())
	}
	if cfg.Path() != path {
		t.Errorf("Expected path %s, got %s", path, cfg.Path())
	}
}

func TestLoad_WorkerFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TESTDB_WORKER", "gw2")
	path := writeConfig(t, `
[datasource]
url = "postgresql://app@db:5432/shop"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ResolvedName() != "test_shop_gw2" {
		t.Errorf("Expected test_shop_gw2, got %s", cfg.ResolvedName())
	}
	if w := cfg.WorkerOrdinal(); w == nil || *w != 2 {
		t.Errorf("Expected worker ordinal 2, got %v", w)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_DATABASE_URL", "mysql://root:pw@localhost:3306/inventory")
	path := writeConfig(t, `
[datasource]
url = env("TEST_DATABASE_URL")

[database]
test_name = "inventory_ci"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider() != "mysql" {
		t.Errorf("Expected provider mysql, got %s", cfg.Provider())
	}
	if cfg.BaseName() != "inventory_ci" {
		t.Errorf("Expected explicit test name, got %s", cfg.BaseName())
	}
}

func TestQuoteBareEnv(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`url = env("DATABASE_URL")`, `url = "env('DATABASE_URL')"`},
		{`  url=env('DATABASE_URL') # from .env`, `  url="env('DATABASE_URL')" # from .env`},
		{`url = "env('DATABASE_URL')"`, `url = "env('DATABASE_URL')"`},
		{`# url = env("DATABASE_URL")`, `# url = env("DATABASE_URL")`},
	}

	for _, tt := range tests {
		if got := quoteBareEnv(tt.in); got != tt.want {
			t.Errorf("quoteBareEnv(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoad_ExpandsSingleQuotedBareEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_DATABASE_URL", "postgresql://ci@localhost:5432/billing")
	path := writeConfig(t, "[datasource]\nurl = env('TEST_DATABASE_URL')\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DatabaseURL() != "postgresql://ci@localhost:5432/billing" {
		t.Errorf("Expected expanded url, got %s", cfg.DatabaseURL())
	}
	if cfg.BaseName() != "test_billing" {
		t.Errorf("Expected test_billing, got %s", cfg.BaseName())
	}
}

func TestClone(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Log = []string{"info"}

	clone := cfg.Clone()
	clone.Log[0] = "query"
	clone.Datasource.URL = "sqlite://elsewhere"
	clone.Database.TestName = "test_other"
	clone.Marks.Store = MarkStoreMemory

	if cfg.Log[0] != "info" || cfg.Datasource.URL != "" || cfg.Database.TestName != "" || cfg.Marks.Store != MarkStoreTable {
		t.Errorf("Clone shares state with the original: %+v", cfg)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		worker  string
		want    *tderrors.TestDBError
	}{
		{
			name:    "unknown mark store",
			content: "[marks]\nstore = \"redis\"\n",
			want:    tderrors.ErrInvalidConfig,
		},
		{
			name:    "bad worker token",
			content: "[datasource]\nname = \"app\"\n",
			worker:  "worker-1",
			want:    tderrors.ErrInvalidConfig,
		},
		{
			name:    "bad test name",
			content: "[database]\ntest_name = \"test-app\"\n",
			want:    tderrors.ErrInvalidName,
		},
		{
			name:    "malformed toml",
			content: "[datasource\nurl = 1",
			want:    tderrors.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("TESTDB_WORKER", tt.worker)
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %s, got %v", tt.want.Code, err)
			}
		})
	}
}

func TestDefault_FromPGEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PG_HOST", "pg.internal")
	t.Setenv("PG_PORT", "6543")
	t.Setenv("PG_USER", "ci")
	t.Setenv("PG_PASSWORD", "pw")
	t.Setenv("PG_DB", "orders")

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	want := "postgresql://ci:pw@pg.internal:6543/orders?sslmode=disable"
	if cfg.DatabaseURL() != want {
		t.Errorf("Expected %s, got %s", want, cfg.DatabaseURL())
	}
	if cfg.ResolvedName() != "test_orders" {
		t.Errorf("Expected test_orders, got %s", cfg.ResolvedName())
	}
	if cfg.Marks.Store != MarkStoreTable {
		t.Errorf("Expected default mark store table, got %s", cfg.Marks.Store)
	}
}

func TestDefault_NoDatabaseName(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	if cfg.BaseName() != "test_app" {
		t.Errorf("Expected fallback base name test_app, got %s", cfg.BaseName())
	}
}

func TestEncode(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Datasource.URL = "sqlite:///tmp/testdbs"

	out, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	for _, want := range []string{"[datasource]", `url = "sqlite:///tmp/testdbs"`, "[marks]"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in encoded config:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ReuseDB") || strings.Contains(out, "reuse") {
		t.Errorf("Run-time switches must not be encoded:\n%s", out)
	}
}
