package cascade

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cast"

	"github.com/thomas-mindruptive/pure-svelte-sub003/daos"
	"github.com/thomas-mindruptive/pure-svelte-sub003/query"
)

// Outcome is how a delete request ended.
type Outcome string

// Delete outcomes. Only OutcomeDeleted should be committed.
const (
	OutcomeDeleted  Outcome = "deleted"
	OutcomeConflict Outcome = "conflict"
	OutcomeNotFound Outcome = "not_found"
)

// StepStat is the number of rows one executed step touched.
type StepStat struct {
	Step   string `json:"step"`
	Table  string `json:"table"`
	Action Action `json:"action"`
	Rows   int64  `json:"rows"`
}

// Stats accounts for a cascade. Total counts deleted dependent rows; the
// master row and detached references are not included.
type Stats struct {
	Steps []StepStat `json:"steps"`
	Total int64      `json:"total"`
}

// Conflict explains why a delete was refused.
type Conflict struct {
	Hard             []string `json:"hard"`
	Soft             []string `json:"soft"`
	CascadeAvailable bool     `json:"cascade_available"`
}

// Result describes a delete attempt.
type Result struct {
	Outcome  Outcome        `json:"outcome"`
	Kind     string         `json:"kind"`
	Key      Key            `json:"key"`
	Deleted  map[string]any `json:"deleted,omitempty"`
	Stats    Stats          `json:"stats"`
	Conflict *Conflict      `json:"conflict,omitempty"`
}

// Engine performs deletes inside a caller-owned transaction. It never commits
// or rolls back; on any outcome other than OutcomeDeleted, and on error, the
// caller must roll back.
type Engine struct {
	dialect query.Dialect
	checker *Checker
}

// NewEngine returns an engine producing SQL for dialect.
func NewEngine(dialect query.Dialect) *Engine {
	return &Engine{dialect: dialect, checker: NewChecker(dialect)}
}

// Delete removes the entity, cascading to its dependents as the flags allow:
//
//	no dependents                  -> delete
//	soft only, cascade             -> delete soft dependents, then the entity
//	soft only, no cascade          -> conflict, cascade available
//	hard, force                    -> delete or detach every dependent, then the entity
//	hard, no force                 -> conflict, cascade unavailable
func (e *Engine) Delete(ctx context.Context, exec daos.Executor, kind string, key Key, cascade, force bool) (Result, error) {
	plan, err := PlanFor(kind)
	if err != nil {
		return Result{}, err
	}
	if err := plan.checkKey(key); err != nil {
		return Result{}, err
	}

	res := Result{Kind: kind, Key: key, Stats: Stats{Steps: []StepStat{}}}

	master, err := e.fetchMaster(ctx, exec, plan, key)
	if err != nil {
		return Result{}, err
	}
	if master == nil {
		res.Outcome = OutcomeNotFound
		return res, nil
	}

	if err := e.lockDependents(ctx, exec, plan, key); err != nil {
		return Result{}, err
	}

	deps, err := e.checker.check(ctx, exec, plan, key)
	if err != nil {
		return Result{}, err
	}

	switch {
	case len(deps.Hard) > 0 && !force:
		res.Outcome = OutcomeConflict
		res.Conflict = &Conflict{Hard: deps.Hard, Soft: deps.Soft, CascadeAvailable: false}
		return res, nil
	case len(deps.Hard) == 0 && len(deps.Soft) > 0 && !cascade:
		res.Outcome = OutcomeConflict
		res.Conflict = &Conflict{Hard: deps.Hard, Soft: deps.Soft, CascadeAvailable: true}
		return res, nil
	}

	counted := make(map[string]bool, len(deps.Counts))
	for _, c := range deps.Counts {
		counted[c.Step] = true
	}

	for _, step := range plan.Steps {
		if !counted[step.Name] {
			continue
		}
		n, err := e.runStep(ctx, exec, plan, step, key)
		if err != nil {
			return Result{}, err
		}
		res.Stats.Steps = append(res.Stats.Steps, StepStat{Step: step.Name, Table: step.Table, Action: step.Action, Rows: n})
		if step.Action == Delete {
			res.Stats.Total += n
		}
	}

	stmt, args, err := statements(e.dialect).Delete(plan.Table).Where(plan.keyWhere(key)).ToSql()
	if err != nil {
		return Result{}, fmt.Errorf("build delete for %s: %w", plan.Kind, err)
	}
	n, err := daos.RowsAffected(ctx, exec, "delete "+plan.Kind, stmt, args...)
	if err != nil {
		return Result{}, err
	}
	if n == 0 {
		res.Outcome = OutcomeNotFound
		return res, nil
	}

	res.Outcome = OutcomeDeleted
	res.Deleted = master
	return res, nil
}

// fetchMaster reads the key and display columns of the master row, locking it
// on postgres. It returns nil when the row does not exist.
func (e *Engine) fetchMaster(ctx context.Context, exec daos.Executor, plan Plan, key Key) (map[string]any, error) {
	cols := append(append([]string{}, plan.Key...), plan.Display...)
	sel := statements(e.dialect).Select(cols...).From(plan.Table).Where(plan.keyWhere(key))
	if e.dialect == query.Postgres {
		sel = sel.Suffix("FOR UPDATE")
	}
	stmt, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build fetch for %s: %w", plan.Kind, err)
	}

	row := map[string]any{}
	err = exec.QueryRowxContext(ctx, stmt, args...).MapScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, daos.ReportDrift(daos.Classify("fetch "+plan.Kind, err), stmt)
	}
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = cast.ToString(b)
		}
	}
	return row, nil
}

// lockDependents takes row locks on every dependent set so that rows
// referencing them cannot be inserted until the transaction ends. SQLite
// transactions opened with _txlock=immediate already hold the write lock.
func (e *Engine) lockDependents(ctx context.Context, exec daos.Executor, plan Plan, key Key) error {
	if e.dialect != query.Postgres {
		return nil
	}
	for _, step := range plan.Steps {
		stmt, args, err := statements(e.dialect).
			Select("1").
			From(step.Table).
			Where(step.Where(key)).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("build lock for %s: %w", step.Name, err)
		}
		rows, err := exec.QueryxContext(ctx, stmt, args...)
		if err != nil {
			return daos.ReportDrift(daos.Classify("lock "+step.Name, err), stmt)
		}
		for rows.Next() {
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return daos.ReportDrift(daos.Classify("lock "+step.Name, err), stmt)
		}
	}
	return nil
}

func (e *Engine) runStep(ctx context.Context, exec daos.Executor, plan Plan, step Step, key Key) (int64, error) {
	var (
		stmt string
		args []any
		err  error
	)
	switch step.Action {
	case Detach:
		stmt, args, err = statements(e.dialect).
			Update(step.Table).
			Set(step.Column, nil).
			Where(step.Where(key)).
			ToSql()
	default:
		stmt, args, err = statements(e.dialect).
			Delete(step.Table).
			Where(step.Where(key)).
			ToSql()
	}
	if err != nil {
		return 0, fmt.Errorf("build %s step for %s: %w", step.Name, plan.Kind, err)
	}
	return daos.RowsAffected(ctx, exec, string(step.Action)+" "+step.Name, stmt, args...)
}
