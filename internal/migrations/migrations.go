package migrations

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carlosnayan/prisma-testdb/internal/contextutil"
	"github.com/carlosnayan/prisma-testdb/internal/dialect"
	"github.com/carlosnayan/prisma-testdb/internal/driver"
	tderrors "github.com/carlosnayan/prisma-testdb/internal/errors"
	"github.com/carlosnayan/prisma-testdb/internal/limits"
	"github.com/carlosnayan/prisma-testdb/internal/logger"
)

// TableName is the bookkeeping table recording applied migrations.
const TableName = "_testdb_migrations"

// Migration representa uma migration
type Migration struct {
	Name     string // Nome da migration (ex: "20241219120000_add_users")
	Path     string // Caminho do diretório dentro da origem
	SQL      string // Conteúdo do arquivo migration.sql
	Checksum string // SHA-256 do SQL
}

// Record is a row of the bookkeeping table.
type Record struct {
	Name       string
	Checksum   string
	FinishedAt time.Time
}

// Status describes one migration as seen from both sides.
type Status struct {
	Name      string
	Applied   bool
	AppliedAt time.Time
	// Modified is set when the applied checksum differs from the local file.
	Modified bool
	// Missing is set for applied migrations with no local file.
	Missing bool
}

// Runner applies migrations read from a filesystem to a database.
type Runner struct {
	fsys    fs.FS
	dialect dialect.Dialect
	log     *logger.Logger
}

// NewRunner reads migrations from fsys, whose root holds the migration
// directories. Use fs.Sub to point it inside an embed.FS.
func NewRunner(d dialect.Dialect, fsys fs.FS, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Runner{fsys: fsys, dialect: d, log: log}
}

// NewDirRunner reads migrations from a directory on disk. A missing directory
// yields no migrations.
func NewDirRunner(d dialect.Dialect, dir string, log *logger.Logger) *Runner {
	return NewRunner(d, os.DirFS(dir), log)
}

// Local retorna lista de migrations locais ordenadas pelo timestamp
func (r *Runner) Local() ([]*Migration, error) {
	entries, err := fs.ReadDir(r.fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		r.log.Warn("migrations directory not found, database will be left empty")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading migrations directory: %w", err)
	}

	var migrations []*Migration
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !isValidMigrationName(name) {
			continue
		}

		sqlPath := path.Join(name, "migration.sql")
		info, err := fs.Stat(r.fsys, sqlPath)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error reading migration %s: %w", name, err)
		}
		if info.Size() > limits.MaxMigrationSize {
			return nil, tderrors.Wrapf(tderrors.ErrMigrationFailed, "migration %s is %d bytes, limit is %d", name, info.Size(), limits.MaxMigrationSize)
		}
		if len(migrations) >= limits.MaxMigrations {
			return nil, tderrors.Wrapf(tderrors.ErrMigrationFailed, "more than %d migrations in directory", limits.MaxMigrations)
		}

		sqlContent, err := fs.ReadFile(r.fsys, sqlPath)
		if err != nil {
			return nil, fmt.Errorf("error reading migration %s: %w", name, err)
		}

		migrations = append(migrations, &Migration{
			Name:     name,
			Path:     name,
			SQL:      string(sqlContent),
			Checksum: calculateChecksum(string(sqlContent)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Name < migrations[j].Name
	})

	return migrations, nil
}

// isValidMigrationName verifica se o nome está no formato YYYYMMDDHHMMSS_nome
func isValidMigrationName(name string) bool {
	if len(name) < 16 {
		return false
	}

	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 || parts[1] == "" {
		return false
	}

	if len(parts[0]) != 14 {
		return false
	}

	for _, r := range parts[0] {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

// EnsureTable garante que a tabela de controle existe
func (r *Runner) EnsureTable(ctx context.Context, db driver.DB) error {
	ts := r.dialect.GetTimestampType()
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id VARCHAR(36) PRIMARY KEY,
	checksum VARCHAR(64) NOT NULL,
	migration_name VARCHAR(255) NOT NULL,
	started_at %s NOT NULL,
	finished_at %s,
	applied_steps_count INTEGER NOT NULL DEFAULT 0
)`, r.dialect.QuoteIdentifier(TableName), ts, ts)

	if _, err := db.Exec(ctx, query); err != nil {
		return tderrors.MapDriverError(fmt.Errorf("error creating %s: %w", TableName, err), tderrors.OpMigrate)
	}
	return nil
}

// Applied returns the finished migrations keyed by name.
func (r *Runner) Applied(ctx context.Context, db driver.DB) (map[string]Record, error) {
	if err := r.EnsureTable(ctx, db); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT migration_name, checksum, finished_at FROM %s WHERE finished_at IS NOT NULL ORDER BY started_at",
		r.dialect.QuoteIdentifier(TableName),
	)
	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, tderrors.MapDriverError(err, tderrors.OpMigrate)
	}
	defer rows.Close()

	applied := make(map[string]Record)
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Name, &rec.Checksum, &rec.FinishedAt); err != nil {
			return nil, tderrors.MapDriverError(err, tderrors.OpMigrate)
		}
		applied[rec.Name] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, tderrors.MapDriverError(err, tderrors.OpMigrate)
	}

	return applied, nil
}

// Pending retorna migrations locais ainda não aplicadas
func (r *Runner) Pending(ctx context.Context, db driver.DB) ([]*Migration, error) {
	local, err := r.Local()
	if err != nil {
		return nil, err
	}
	if len(local) == 0 {
		return nil, nil
	}

	applied, err := r.Applied(ctx, db)
	if err != nil {
		return nil, err
	}

	var pending []*Migration
	for _, m := range local {
		if _, ok := applied[m.Name]; !ok {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Migrate applies every pending migration in order and returns how many ran.
// It stops at the first failure; earlier migrations stay applied.
func (r *Runner) Migrate(ctx context.Context, db driver.DB) (int, error) {
	ctx, cancel := contextutil.WithMigrationTimeout(ctx)
	defer cancel()

	pending, err := r.Pending(ctx, db)
	if err != nil {
		return 0, err
	}

	for i, m := range pending {
		if err := r.Apply(ctx, db, m); err != nil {
			return i, err
		}
	}
	return len(pending), nil
}

// Apply aplica uma migration dentro de uma transação
func (r *Runner) Apply(ctx context.Context, db driver.DB, m *Migration) error {
	log := r.log.WithFields(logger.Fields{"migration": m.Name})
	start := time.Now()

	if err := r.EnsureTable(ctx, db); err != nil {
		return err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return tderrors.MapDriverError(err, tderrors.OpMigrate)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	table := r.dialect.QuoteIdentifier(TableName)
	p := r.dialect.GetPlaceholder
	migrationID := uuid.NewString()
	startedAt := time.Now().UTC()

	insertQuery := fmt.Sprintf(
		"INSERT INTO %s (id, checksum, migration_name, started_at, applied_steps_count) VALUES (%s, %s, %s, %s, 0)",
		table, p(1), p(2), p(3), p(4),
	)
	if _, err := tx.Exec(ctx, insertQuery, migrationID, m.Checksum, m.Name, startedAt); err != nil {
		return tderrors.Wrap(tderrors.ErrMigrationFailed, fmt.Errorf("recording %s: %w", m.Name, err))
	}

	statements := SplitSQLStatements(m.SQL, r.backslashEscapes())
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			log.Error("statement failed: %v", err)
			return tderrors.Wrap(tderrors.ErrMigrationFailed, fmt.Errorf("%s: %w\nSQL: %s", m.Name, err, stmt))
		}
	}

	updateQuery := fmt.Sprintf(
		"UPDATE %s SET finished_at = %s, applied_steps_count = %s WHERE id = %s",
		table, p(1), p(2), p(3),
	)
	if _, err := tx.Exec(ctx, updateQuery, time.Now().UTC(), len(statements), migrationID); err != nil {
		return tderrors.Wrap(tderrors.ErrMigrationFailed, fmt.Errorf("finishing %s: %w", m.Name, err))
	}

	if err := tx.Commit(ctx); err != nil {
		return tderrors.Wrap(tderrors.ErrMigrationFailed, fmt.Errorf("committing %s: %w", m.Name, err))
	}

	log.Query("migration "+m.Name, nil, time.Since(start))
	log.Info("applied migration (%d statements)", len(statements))
	return nil
}

// Status lists local and applied migrations side by side, in name order.
func (r *Runner) Status(ctx context.Context, db driver.DB) ([]Status, error) {
	local, err := r.Local()
	if err != nil {
		return nil, err
	}
	applied, err := r.Applied(ctx, db)
	if err != nil {
		return nil, err
	}

	var out []Status
	seen := make(map[string]bool, len(local))
	for _, m := range local {
		seen[m.Name] = true
		s := Status{Name: m.Name}
		if rec, ok := applied[m.Name]; ok {
			s.Applied = true
			s.AppliedAt = rec.FinishedAt
			s.Modified = rec.Checksum != m.Checksum
		}
		out = append(out, s)
	}
	for name, rec := range applied {
		if !seen[name] {
			out = append(out, Status{Name: name, Applied: true, AppliedAt: rec.FinishedAt, Missing: true})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// calculateChecksum returns the hex SHA-256 of the migration SQL.
func calculateChecksum(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}

// backslashEscapes reports whether '\' escapes a quote inside plain quoted
// strings on the target server.
func (r *Runner) backslashEscapes() bool {
	return r.dialect != nil && r.dialect.Name() == "mysql"
}

// SplitSQLStatements divide SQL em statements individuais, ignorando ';'
// dentro de strings, identificadores citados, comentários e blocos $$.
// With backslashEscapes false, '\' only escapes inside E'...' strings.
func SplitSQLStatements(sql string, backslashEscapes bool) []string {
	var statements []string
	var current strings.Builder

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for i := 0; i < len(sql); i++ {
		ch := sql[i]

		switch {
		case ch == '-' && i+1 < len(sql) && sql[i+1] == '-':
			end := strings.IndexByte(sql[i:], '\n')
			if end == -1 {
				i = len(sql)
			} else {
				i += end
				current.WriteByte('\n')
			}

		case ch == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end == -1 {
				i = len(sql)
			} else {
				i += end + 3
			}

		case ch == '\'' || ch == '"' || ch == '`':
			escapes := (ch != '`' && backslashEscapes) || (ch == '\'' && isEscapeStringPrefix(sql, i))
			j := i + 1
			for j < len(sql) {
				if sql[j] == '\\' && escapes {
					j += 2
					continue
				}
				if sql[j] == ch {
					break
				}
				j++
			}
			if j >= len(sql) {
				j = len(sql) - 1
			}
			current.WriteString(sql[i : j+1])
			i = j

		case ch == '$':
			tag, ok := dollarTag(sql[i:])
			if !ok {
				current.WriteByte(ch)
				continue
			}
			end := strings.Index(sql[i+len(tag):], tag)
			if end == -1 {
				current.WriteString(sql[i:])
				i = len(sql)
				continue
			}
			stop := i + len(tag) + end + len(tag)
			current.WriteString(sql[i:stop])
			i = stop - 1

		case ch == ';':
			flush()

		default:
			current.WriteByte(ch)
		}
	}

	flush()
	return statements
}

// isEscapeStringPrefix reports whether the quote at i opens an E'...' string.
func isEscapeStringPrefix(sql string, i int) bool {
	if i == 0 || (sql[i-1] != 'E' && sql[i-1] != 'e') {
		return false
	}
	if i == 1 {
		return true
	}
	prev := sql[i-2]
	return !(prev == '_' || prev >= '0' && prev <= '9' || prev >= 'a' && prev <= 'z' || prev >= 'A' && prev <= 'Z')
}

// dollarTag reports the PostgreSQL dollar-quote opener ($$ or $tag$) at the
// start of s. Positional parameters such as $1 are not tags.
func dollarTag(s string) (string, bool) {
	for j := 1; j < len(s); j++ {
		c := s[j]
		switch {
		case c == '$':
			return s[:j+1], true
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case c >= '0' && c <= '9' && j > 1:
		default:
			return "", false
		}
	}
	return "", false
}
