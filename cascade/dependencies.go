package cascade

import (
	"context"
	"fmt"

	"github.com/thomas-mindruptive/pure-svelte-sub003/daos"
	"github.com/thomas-mindruptive/pure-svelte-sub003/query"
)

// Count is the number of rows one plan step would touch.
type Count struct {
	Step     string   `json:"step"`
	Severity Severity `json:"severity"`
	Action   Action   `json:"action"`
	Rows     int64    `json:"rows"`
	Label    string   `json:"label"`
}

// Dependencies lists what deleting an entity would block on or take with it.
// Hard and Soft are rendered from Counts and are never nil.
type Dependencies struct {
	Hard   []string `json:"hard"`
	Soft   []string `json:"soft"`
	Counts []Count  `json:"counts"`
}

// SoftTotal is the number of soft-dependent rows a cascade would delete.
func (d Dependencies) SoftTotal() int64 {
	var n int64
	for _, c := range d.Counts {
		if c.Severity == Soft && c.Action == Delete {
			n += c.Rows
		}
	}
	return n
}

// Checker counts dependent rows. It never writes.
type Checker struct {
	dialect query.Dialect
}

// NewChecker returns a checker producing SQL for dialect.
func NewChecker(dialect query.Dialect) *Checker {
	return &Checker{dialect: dialect}
}

// Check runs the COUNT sequence of the kind's plan inside exec, which should
// be the transaction a following delete will use. An id with no row yields
// empty lists.
func (c *Checker) Check(ctx context.Context, exec daos.Executor, kind string, key Key) (Dependencies, error) {
	plan, err := PlanFor(kind)
	if err != nil {
		return Dependencies{}, err
	}
	if err := plan.checkKey(key); err != nil {
		return Dependencies{}, err
	}
	return c.check(ctx, exec, plan, key)
}

func (c *Checker) check(ctx context.Context, exec daos.Executor, plan Plan, key Key) (Dependencies, error) {
	deps := Dependencies{Hard: []string{}, Soft: []string{}, Counts: []Count{}}

	for _, step := range plan.Steps {
		stmt, args, err := statements(c.dialect).
			Select("COUNT(*)").
			From(step.Table).
			Where(step.Where(key)).
			ToSql()
		if err != nil {
			return Dependencies{}, fmt.Errorf("build %s count for %s: %w", step.Name, plan.Kind, err)
		}

		var n int64
		if err := exec.QueryRowxContext(ctx, stmt, args...).Scan(&n); err != nil {
			return Dependencies{}, daos.ReportDrift(daos.Classify("count "+step.Name, err), stmt)
		}
		if n == 0 {
			continue
		}

		label := step.Label.Format(n)
		deps.Counts = append(deps.Counts, Count{Step: step.Name, Severity: step.Severity, Action: step.Action, Rows: n, Label: label})
		if step.Severity == Hard {
			deps.Hard = append(deps.Hard, label)
		} else {
			deps.Soft = append(deps.Soft, label)
		}
	}
	return deps, nil
}
