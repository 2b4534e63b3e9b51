package daos

import (
	"context"
	"database/sql"
	"time"

	"github.com/thomas-mindruptive/pure-svelte-sub003/query"
	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

// Lock retry schedule for lock and deadlock errors.
var (
	lockRetryIntervals = []time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
		150 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
		1000 * time.Millisecond,
	}
	maxLockRetries = 12
)

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	if KindOf(err) == tools.DBLocked {
		return true
	}
	return classifyKind(err) == tools.DBLocked
}

// txExecutor is an Executor bound to an open transaction, such as *sqlx.Tx.
type txExecutor interface {
	Executor
	DriverName() string
	Commit() error
}

// retriesStatements reports whether a failed statement may be re-run on
// exec. Postgres aborts the transaction on the first error, so statements
// inside a postgres transaction run once and the transaction is retried
// as a whole by the caller.
func retriesStatements(exec Executor) bool {
	tx, ok := exec.(txExecutor)
	if !ok {
		return true
	}
	dialect, err := DialectFor(tx.DriverName())
	return err != nil || dialect != query.Postgres
}

// retryOn runs fn with withRetry when exec allows statement retries and
// once otherwise.
func retryOn(ctx context.Context, exec Executor, fn func() error) error {
	if !retriesStatements(exec) {
		return fn()
	}
	return withRetry(ctx, fn)
}

// withRetry runs fn until it succeeds, fails with a non-lock error, the
// retries run out or ctx is done.
func withRetry(ctx context.Context, fn func() error) error {
	var err error

	for attempt := 0; attempt <= maxLockRetries; attempt++ {
		err = fn()

		if err == nil || !isLockError(err) {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		sleepIdx := min(attempt, len(lockRetryIntervals)-1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryIntervals[sleepIdx]):
		}
	}

	return err
}

// RetryLocked re-runs fn while it fails with a lock error. fn must own its
// transaction so every attempt starts clean.
func RetryLocked(ctx context.Context, fn func() error) error {
	return withRetry(ctx, fn)
}

// ExecWithRetry executes a statement, retrying while the database is locked.
// The returned error is classified.
func ExecWithRetry(ctx context.Context, exec Executor, op, stmt string, args ...any) (sql.Result, error) {
	var result sql.Result
	var err error

	retryErr := retryOn(ctx, exec, func() error {
		result, err = exec.ExecContext(ctx, stmt, args...)
		return err
	})

	if retryErr != nil && retryErr != err {
		return nil, ReportDrift(Classify(op, retryErr), stmt)
	}
	if err != nil {
		return nil, ReportDrift(Classify(op, err), stmt)
	}
	return result, nil
}

// RowsAffected executes a statement with retry and returns the affected row count.
func RowsAffected(ctx context.Context, exec Executor, op, stmt string, args ...any) (int64, error) {
	res, err := ExecWithRetry(ctx, exec, op, stmt, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, Classify(op, err)
	}
	return n, nil
}
