package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Repo struct {
	DB *sqlx.DB
}

var ErrNotFound = errors.New("not found")

// q returns the transaction when one is open, otherwise the pool.
// Reads issued during a mutation must go through the tx: SQLite holds the
// write lock for the duration of an immediate transaction.
func (r Repo) q(tx *sqlx.Tx) sqlx.ExtContext {
	if tx != nil {
		return tx
	}
	return r.DB
}

func get(ctx context.Context, q sqlx.QueryerContext, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteByID(ctx context.Context, q sqlx.ExecerContext, table, id string) error {
	return mustAffect(q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=?`, table), id))
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
