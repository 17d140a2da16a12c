package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/carlosnayan/prisma-testdb/internal/dialect"
	tderrors "github.com/carlosnayan/prisma-testdb/internal/errors"
	"github.com/carlosnayan/prisma-testdb/naming"
)

// FileName is the configuration file searched for from the working directory upwards.
const FileName = "testdb.conf"

// Mark store kinds accepted in [marks].store.
const (
	MarkStoreMemory = "memory"
	MarkStoreFile   = "file"
	MarkStoreTable  = "table"
)

// Config is the complete testdb configuration. File values come from
// testdb.conf; ReuseDB, CreateDB and Worker are run-time switches set by the
// CLI or the test helper and are never read from the file.
type Config struct {
	Log        []string          `toml:"log,omitempty"` // query, info, warn, error
	Datasource *DatasourceConfig `toml:"datasource"`
	Database   *DatabaseConfig   `toml:"database"`
	Migrations *MigrationsConfig `toml:"migrations"`
	Marks      *MarksConfig      `toml:"marks"`

	ReuseDB  bool   `toml:"-"`
	CreateDB bool   `toml:"-"`
	Worker   string `toml:"-"` // worker token such as "gw0"

	path string
}

// DatasourceConfig identifies the database server. When URL is empty a
// PostgreSQL URL is assembled from the discrete fields, which default to the
// PG_HOST, PG_PORT, PG_USER, PG_PASSWORD and PG_DB environment variables.
type DatasourceConfig struct {
	URL      string `toml:"url"`
	Host     string `toml:"host,omitempty"`
	Port     string `toml:"port,omitempty"`
	User     string `toml:"user,omitempty"`
	Password string `toml:"password,omitempty"`
	Name     string `toml:"name,omitempty"`
	SSLMode  string `toml:"sslmode,omitempty"`
}

// DatabaseConfig controls how the test database is named and kept.
type DatabaseConfig struct {
	Prefix        string `toml:"prefix"`
	TestName      string `toml:"test_name,omitempty"`
	KeepOnFailure bool   `toml:"keep_on_failure"`
	AutoMark      bool   `toml:"auto_mark"`
}

// MigrationsConfig configura as migrations
type MigrationsConfig struct {
	Path string `toml:"path"`
}

// MarksConfig selects where setup marks are persisted.
type MarksConfig struct {
	Store string `toml:"store"`
	Dir   string `toml:"dir,omitempty"`
}

// Load carrega a configuração do arquivo testdb.conf
func Load(configPath string) (*Config, error) {
	loadDotEnv()

	if configPath == "" {
		found, err := Find()
		if err != nil {
			return nil, err
		}
		configPath = found
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", configPath, err)
	}

	var cfg Config
	if _, err := toml.Decode(quoteBareEnv(string(data)), &cfg); err != nil {
		return nil, tderrors.Wrap(tderrors.ErrInvalidConfig, fmt.Errorf("parsing %s: %w", configPath, err))
	}
	cfg.path = configPath

	cfg.expandEnvVars()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bareEnv matches an unquoted env("VAR") or env('VAR') value.
var bareEnv = regexp.MustCompile(`(?m)^(\s*[A-Za-z0-9_.-]+\s*=\s*)env\(\s*["']([A-Za-z_][A-Za-z0-9_]*)["']\s*\)`)

// quoteBareEnv turns `url = env("DATABASE_URL")` into a TOML string that
// expandString resolves after decoding.
func quoteBareEnv(data string) string {
	return bareEnv.ReplaceAllString(data, `${1}"env('${2}')"`)
}

// LoadOrDefault behaves like Load but falls back to an environment-only
// configuration when no explicit path is given and no file can be found.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		if _, err := Find(); err != nil {
			loadDotEnv()
			cfg := Default()
			return cfg, cfg.Validate()
		}
	}
	return Load(configPath)
}

// Default returns a configuration built from defaults and PG_* variables only.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Find looks for testdb.conf from the working directory upwards.
func Find() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("error getting working directory: %w", err)
	}

	dir := wd
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s not found", FileName)
		}
		dir = parent
	}
}

// loadDotEnv loads the nearest .env walking upwards; a missing file is not an error.
func loadDotEnv() {
	wd, _ := os.Getwd()
	if wd == "" {
		_ = godotenv.Load()
		return
	}

	dir := wd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// Path returns the file the configuration was loaded from, or "" for defaults.
func (c *Config) Path() string {
	return c.path
}

// expandEnvVars expande variáveis de ambiente no formato ${VAR}, $VAR ou env("VAR")
func (c *Config) expandEnvVars() {
	if c.Datasource != nil {
		c.Datasource.URL = expandString(c.Datasource.URL)
		c.Datasource.Host = expandString(c.Datasource.Host)
		c.Datasource.Port = expandString(c.Datasource.Port)
		c.Datasource.User = expandString(c.Datasource.User)
		c.Datasource.Password = expandString(c.Datasource.Password)
		c.Datasource.Name = expandString(c.Datasource.Name)
	}
	if c.Migrations != nil {
		c.Migrations.Path = expandString(c.Migrations.Path)
	}
	if c.Marks != nil {
		c.Marks.Dir = expandString(c.Marks.Dir)
	}
}

// expandString expande variáveis de ambiente em uma string
// Suporta: ${VAR}, $VAR, env("VAR") e env('VAR')
func expandString(s string) string {
	for {
		var start int
		var endQuote string

		if idx := strings.Index(s, `env("`); idx != -1 {
			start = idx
			endQuote = `")`
		} else if idx := strings.Index(s, `env('`); idx != -1 {
			start = idx
			endQuote = `')`
		} else {
			break
		}

		end := strings.Index(s[start+5:], endQuote)
		if end == -1 {
			break
		}
		end += start + 5

		value := os.Getenv(s[start+5 : end])
		s = s[:start] + value + s[end+2:]
	}

	return os.ExpandEnv(s)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *Config) applyDefaults() {
	if c.Datasource == nil {
		c.Datasource = &DatasourceConfig{}
	}
	ds := c.Datasource
	if ds.Host == "" {
		ds.Host = envOr("PG_HOST", "localhost")
	}
	if ds.Port == "" {
		ds.Port = envOr("PG_PORT", "5432")
	}
	if ds.User == "" {
		ds.User = envOr("PG_USER", "postgres")
	}
	if ds.Password == "" {
		ds.Password = os.Getenv("PG_PASSWORD")
	}
	if ds.Name == "" {
		ds.Name = os.Getenv("PG_DB")
	}
	if ds.SSLMode == "" {
		ds.SSLMode = "disable"
	}

	if c.Database == nil {
		c.Database = &DatabaseConfig{}
	}
	if c.Database.Prefix == "" {
		c.Database.Prefix = naming.DefaultPrefix
	}

	if c.Migrations == nil {
		c.Migrations = &MigrationsConfig{}
	}
	if c.Migrations.Path == "" {
		c.Migrations.Path = "migrations"
	}

	if c.Marks == nil {
		c.Marks = &MarksConfig{}
	}
	if c.Marks.Store == "" {
		c.Marks.Store = MarkStoreTable
	}
	if c.Marks.Dir == "" {
		c.Marks.Dir = filepath.Join(".testdb", "marks")
	}

	if c.Worker == "" {
		c.Worker = os.Getenv(naming.WorkerEnvVar)
	}
}

// Validate valida a configuração
func (c *Config) Validate() error {
	switch c.Marks.Store {
	case MarkStoreMemory, MarkStoreFile, MarkStoreTable:
	default:
		return tderrors.Wrapf(tderrors.ErrInvalidConfig, "marks.store must be one of memory, file, table (got %q)", c.Marks.Store)
	}

	if dialect.GetDialect(c.Provider()) == nil {
		return tderrors.Wrapf(tderrors.ErrUnsupportedProvider, "cannot infer provider from datasource url %q", c.DatabaseURL())
	}

	if c.Worker != "" {
		if _, ok := naming.ParseWorker(c.Worker); !ok {
			return tderrors.Wrapf(tderrors.ErrInvalidConfig, "worker must look like gw0, gw1, ... (got %q)", c.Worker)
		}
	}

	if err := naming.Validate(c.BaseName()); err != nil {
		return err
	}

	return nil
}

// DatabaseURL retorna a URL do servidor (já expandida)
func (c *Config) DatabaseURL() string {
	ds := c.Datasource
	if ds.URL != "" {
		return ds.URL
	}

	u := url.URL{
		Scheme:   "postgresql",
		Host:     net.JoinHostPort(ds.Host, ds.Port),
		Path:     "/" + ds.Name,
		RawQuery: "sslmode=" + url.QueryEscape(ds.SSLMode),
	}
	if ds.Password != "" {
		u.User = url.UserPassword(ds.User, ds.Password)
	} else {
		u.User = url.User(ds.User)
	}
	return u.String()
}

// Provider returns the provider inferred from the datasource URL.
func (c *Config) Provider() string {
	return dialect.DetectProvider(c.DatabaseURL())
}

// DatabaseName returns the configured (non-test) database name: the
// datasource name, else the last path element of a server URL, else "app".
func (c *Config) DatabaseName() string {
	if c.Datasource.Name != "" {
		return c.Datasource.Name
	}
	if c.Provider() != "sqlite" {
		if u, err := url.Parse(c.DatabaseURL()); err == nil {
			if name := strings.Trim(u.Path, "/"); name != "" && !strings.Contains(name, "/") {
				return name
			}
		}
	}
	return "app"
}

// BaseName is the test database name before any worker suffix.
func (c *Config) BaseName() string {
	if c.Database.TestName != "" {
		return c.Database.TestName
	}
	return naming.TestDatabaseName(c.Database.Prefix, c.DatabaseName())
}

// WorkerOrdinal returns the parsed worker ordinal, or nil outside parallel runs.
func (c *Config) WorkerOrdinal() *int {
	if c.Worker == "" {
		return nil
	}
	n, ok := naming.ParseWorker(c.Worker)
	if !ok {
		return nil
	}
	return &n
}

// ResolvedName is the database this process uses: the base name with the
// worker suffix applied when running as a parallel worker.
func (c *Config) ResolvedName() string {
	return naming.ResolveName(c.BaseName(), c.WorkerOrdinal())
}

// GetMigrationsPath retorna o caminho das migrations, relativo ao arquivo de configuração
func (c *Config) GetMigrationsPath() string {
	return c.relative(c.Migrations.Path)
}

// GetMarksDir returns the directory used by the file mark store.
func (c *Config) GetMarksDir() string {
	return c.relative(c.Marks.Dir)
}

func (c *Config) relative(p string) string {
	if filepath.IsAbs(p) || c.path == "" {
		return p
	}
	return filepath.Join(filepath.Dir(c.path), p)
}

// Clone returns a copy of c that can be changed without affecting c.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Log = append([]string(nil), c.Log...)
	if c.Datasource != nil {
		ds := *c.Datasource
		clone.Datasource = &ds
	}
	if c.Database != nil {
		db := *c.Database
		clone.Database = &db
	}
	if c.Migrations != nil {
		mg := *c.Migrations
		clone.Migrations = &mg
	}
	if c.Marks != nil {
		mk := *c.Marks
		clone.Marks = &mk
	}
	return &clone
}

// Encode renders the configuration back to TOML.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return "", err
	}
	return b.String(), nil
}
