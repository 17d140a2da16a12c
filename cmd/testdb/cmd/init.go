package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/carlosnayan/prisma-testdb/cli"
	"github.com/carlosnayan/prisma-testdb/internal/config"
	"github.com/carlosnayan/prisma-testdb/naming"
)

var (
	providerFlag string
	urlFlag      string
	forceFlag    bool
)

var initCmd = &cli.Command{
	Name:  "init",
	Short: "Create testdb.conf and the migrations directory",
	Long: `Creates the initial structure of a testdb project:
  - testdb.conf file with default configuration
  - migrations/ directory`,
	Usage: "testdb init [--provider postgresql|mysql|sqlite] [--url URL] [--force]",
	Flags: []*cli.Flag{
		{
			Name:  "provider",
			Short: "p",
			Usage: "Database provider (postgresql, mysql, sqlite)",
			Value: &providerFlag,
		},
		{
			Name:  "url",
			Short: "u",
			Usage: "Server URL written to testdb.conf (default: env('DATABASE_URL'))",
			Value: &urlFlag,
		},
		{
			Name:  "force",
			Usage: "Overwrite an existing testdb.conf",
			Value: &forceFlag,
		},
	},
	Run: runInit,
}

func runInit(args []string) error {
	if _, err := os.Stat(config.FileName); err == nil && !forceFlag {
		return fmt.Errorf("%s already exists in this directory. Use 'testdb init --force' to overwrite", config.FileName)
	}

	url, err := defaultURL(providerFlag)
	if err != nil {
		return err
	}
	if urlFlag != "" {
		url = urlFlag
	}

	content, err := generateConfig(url)
	if err != nil {
		return err
	}

	if err := os.MkdirAll("migrations", 0755); err != nil {
		return fmt.Errorf("error creating migrations directory: %w", err)
	}
	if err := os.WriteFile(config.FileName, []byte(content), 0644); err != nil {
		return fmt.Errorf("error creating %s: %w", config.FileName, err)
	}
	fmt.Fprintf(out, "Created %s\n", config.FileName)
	fmt.Fprintf(out, "Created %s\n", "migrations"+string(filepath.Separator))

	fmt.Fprintln(out)
	fmt.Fprintln(out, Success("Project initialized successfully!"))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Point DATABASE_URL at a server your tests may create databases on")
	fmt.Fprintln(out, "  2. Add migrations as migrations/<timestamp>_<name>/migration.sql")
	fmt.Fprintln(out, "  3. Run 'testdb setup --reuse-db' once, then 'testdb mark'")
	return nil
}

func defaultURL(provider string) (string, error) {
	switch provider {
	case "", "postgresql", "postgres", "mysql":
		return `env('DATABASE_URL')`, nil
	case "sqlite":
		return "sqlite3://" + filepath.ToSlash(filepath.Join(".testdb", "databases")), nil
	default:
		return "", fmt.Errorf("unknown provider %q (expected postgresql, mysql or sqlite)", provider)
	}
}

func generateConfig(url string) (string, error) {
	cfg := &config.Config{
		Datasource: &config.DatasourceConfig{URL: url},
		Database:   &config.DatabaseConfig{Prefix: naming.DefaultPrefix},
		Migrations: &config.MigrationsConfig{Path: "migrations"},
		Marks:      &config.MarksConfig{Store: config.MarkStoreTable},
	}
	body, err := cfg.Encode()
	if err != nil {
		return "", fmt.Errorf("error rendering %s: %w", config.FileName, err)
	}

	return `# testdb configuration
# The datasource url points at the server; test databases are created next to
# the database it names, as <prefix><name> with a _gwN suffix per worker.
# Set [marks].store to "file" or "memory" to keep setup marks outside the database.

` + body, nil
}
