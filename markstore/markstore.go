// Package markstore persists setup marks: a per-database flag recording that
// the database has been migrated and may be reused as is.
package markstore

import (
	"context"

	"github.com/carlosnayan/prisma-testdb/internal/config"
	"github.com/carlosnayan/prisma-testdb/internal/dialect"
	"github.com/carlosnayan/prisma-testdb/internal/driver"
	tderrors "github.com/carlosnayan/prisma-testdb/internal/errors"
)

// Store records which databases carry a setup mark. Mark and Unmark are
// idempotent and Exists reflects the latest of the two for a name.
type Store interface {
	Mark(ctx context.Context, name string) error
	Unmark(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
}

// Opener gives the table store access to the databases it marks.
type Opener interface {
	Exists(ctx context.Context, name string) (bool, error)
	Open(ctx context.Context, name string) (driver.DB, error)
	Dialect() dialect.Dialect
}

// Options carries what the individual stores need; unused fields are ignored.
type Options struct {
	Dir    string
	Opener Opener
}

// New builds the store named by kind ("memory", "file" or "table").
func New(kind string, opts Options) (Store, error) {
	switch kind {
	case config.MarkStoreMemory:
		return NewMemory(), nil
	case config.MarkStoreFile:
		if opts.Dir == "" {
			return nil, tderrors.Wrapf(tderrors.ErrInvalidConfig, "file mark store needs a directory")
		}
		return NewFile(opts.Dir), nil
	case config.MarkStoreTable:
		if opts.Opener == nil {
			return nil, tderrors.Wrapf(tderrors.ErrInvalidConfig, "table mark store needs a database server")
		}
		return NewTable(opts.Opener), nil
	default:
		return nil, tderrors.Wrapf(tderrors.ErrInvalidConfig, "unknown mark store %q", kind)
	}
}
