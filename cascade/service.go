package cascade

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thomas-mindruptive/pure-svelte-sub003/daos"
	"github.com/thomas-mindruptive/pure-svelte-sub003/query"
	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

// Options are the caller's cascade flags.
type Options struct {
	Cascade      bool
	ForceCascade bool
}

// Service owns the transaction around dependency checks and deletes.
type Service struct {
	db      *daos.Database
	engine  *Engine
	checker *Checker
	log     tools.Logger
}

// NewService returns a service for db.
func NewService(db *daos.Database, log tools.Logger) *Service {
	if log == nil {
		log = tools.NewNopLogger()
	}
	return &Service{
		db:      db,
		engine:  NewEngine(db.Dialect),
		checker: NewChecker(db.Dialect),
		log:     log,
	}
}

// Dependencies reports the dependents of an entity in a read-only transaction.
func (s *Service) Dependencies(ctx context.Context, kind string, key Key) (Dependencies, error) {
	var deps Dependencies
	err := s.db.WithTx(ctx, &sql.TxOptions{ReadOnly: s.db.Dialect == query.Postgres}, func(tx *sqlx.Tx) error {
		var err error
		deps, err = s.checker.Check(ctx, tx, kind, key)
		return err
	})
	return deps, err
}

// Delete runs the engine in a new transaction, committing only when the
// entity was deleted. A lock or deadlock error restarts the whole
// transaction. The returned OpID identifies the attempt in the logs.
func (s *Service) Delete(ctx context.Context, kind string, key Key, opts Options) (Result, string, error) {
	opID := uuid.NewString()
	log := s.log.With(
		tools.String("op", opID),
		tools.String("kind", kind),
		tools.String("key", key.String()),
		tools.Bool("cascade", opts.Cascade),
		tools.Bool("force_cascade", opts.ForceCascade),
	)
	start := time.Now()

	var (
		res      Result
		attempts int
	)
	err := daos.RetryLocked(ctx, func() error {
		attempts++
		var err error
		res, err = s.deleteOnce(ctx, log, kind, key, opts)
		if daos.KindOf(err) == tools.DBLocked {
			log.Warn("delete hit a lock conflict", tools.Int("attempt", attempts), tools.Error(err))
		}
		return err
	})
	if err != nil {
		log.Error("delete failed", tools.Int("attempts", attempts), tools.Error(err))
		return Result{}, opID, err
	}

	if res.Outcome != OutcomeDeleted {
		log.Info("delete refused", tools.String("outcome", string(res.Outcome)))
		return res, opID, nil
	}

	log.Info("entity deleted",
		tools.Int64("dependents", res.Stats.Total),
		tools.Int("steps", len(res.Stats.Steps)),
		tools.Int("attempts", attempts),
		tools.Any("elapsed", time.Since(start).String()),
	)
	return res, opID, nil
}

func (s *Service) deleteOnce(ctx context.Context, log tools.Logger, kind string, key Key, opts Options) (Result, error) {
	tx, err := s.db.Begin(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer s.rollback(log, tx)

	res, err := s.engine.Delete(ctx, tx, kind, key, opts.Cascade, opts.ForceCascade)
	if err != nil || res.Outcome != OutcomeDeleted {
		return res, err
	}

	if err := tx.Commit(); err != nil {
		return Result{}, daos.Classify("commit", err)
	}
	return res, nil
}

// rollback releases tx after a refused or failed delete. A rollback failure
// is logged and never replaces the error being returned.
func (s *Service) rollback(log tools.Logger, tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Error("rollback delete", tools.Error(daos.Classify("rollback", err)))
	}
}
