package markstore

import (
	"context"
	"fmt"

	"github.com/carlosnayan/prisma-testdb/internal/contextutil"
	tderrors "github.com/carlosnayan/prisma-testdb/internal/errors"
)

// TableName is the bookkeeping table holding the mark inside the marked database.
const TableName = "_testdb_mark"

// Table stores the mark inside the database it describes, so dropping the
// database removes the mark with it.
type Table struct {
	opener Opener
}

func NewTable(opener Opener) *Table {
	return &Table{opener: opener}
}

func (t *Table) Mark(ctx context.Context, name string) error {
	d := t.opener.Dialect()
	db, err := t.opener.Open(ctx, name)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := contextutil.WithQueryTimeout(ctx)
	defer cancel()

	table := d.QuoteIdentifier(TableName)
	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (marked_at %s NOT NULL)", table, d.GetTimestampType())
	if _, err := db.Exec(ctx, createSQL); err != nil {
		return tderrors.MapDriverError(err, tderrors.OpMark)
	}
	if _, err := db.Exec(ctx, "DELETE FROM "+table); err != nil {
		return tderrors.MapDriverError(err, tderrors.OpMark)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (marked_at) VALUES (%s)", table, d.GetNowFunction())
	if _, err := db.Exec(ctx, insertSQL); err != nil {
		return tderrors.MapDriverError(err, tderrors.OpMark)
	}
	return nil
}

func (t *Table) Unmark(ctx context.Context, name string) error {
	exists, err := t.opener.Exists(ctx, name)
	if err != nil || !exists {
		return err
	}

	db, err := t.opener.Open(ctx, name)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := contextutil.WithQueryTimeout(ctx)
	defer cancel()

	dropSQL := "DROP TABLE IF EXISTS " + t.opener.Dialect().QuoteIdentifier(TableName)
	if _, err := db.Exec(ctx, dropSQL); err != nil {
		return tderrors.MapDriverError(err, tderrors.OpMark)
	}
	return nil
}

func (t *Table) Exists(ctx context.Context, name string) (bool, error) {
	exists, err := t.opener.Exists(ctx, name)
	if err != nil || !exists {
		return false, err
	}

	db, err := t.opener.Open(ctx, name)
	if err != nil {
		return false, err
	}
	defer db.Close()

	ctx, cancel := contextutil.WithQueryTimeout(ctx)
	defer cancel()

	var count int64
	if err := db.QueryRow(ctx, t.opener.Dialect().TableExistsQuery(), TableName).Scan(&count); err != nil {
		return false, tderrors.MapDriverError(err, tderrors.OpMark)
	}
	return count > 0, nil
}
