package daos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

// Begin starts a transaction.
func (dao *Database) Begin(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	tx, err := dao.Client.BeginTxx(ctx, opts)
	if err != nil {
		return nil, Classify("begin", err)
	}
	return tx, nil
}

// WithTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back on any other path, including a panic in fn.
func (dao *Database) WithTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sqlx.Tx) error) error {
	tx, err := dao.Begin(ctx, opts)
	if err != nil {
		return err
	}
	defer Rollback(tx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return Classify("commit", err)
	}
	return nil
}

// Rollback rolls tx back, logging failures other than an already finished
// transaction. It is safe to defer after Commit.
func Rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Error("rollback failed", tools.Error(Classify("rollback", err)))
	}
}
