// Package cascade decides whether catalog entities can be deleted and performs
// the deletes. Each deletable kind has a plan listing its dependent row sets
// leaves first; the dependency checker counts them and the delete engine
// walks the same list.
package cascade

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/thomas-mindruptive/pure-svelte-sub003/query"
	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

// Key holds primary key values in the order of Plan.Key.
type Key []int64

func (k Key) String() string {
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "/")
}

// Severity classifies a dependency.
type Severity string

// Hard dependencies reference transactional history and need a forced
// cascade. Soft ones are structural children removed by an ordinary cascade.
const (
	Hard Severity = "hard"
	Soft Severity = "soft"
)

// Action is what a cascade does to a dependent row set.
type Action string

// Delete removes the rows; Detach sets their reference column to NULL.
const (
	Delete Action = "delete"
	Detach Action = "detach"
)

// Label renders counts as "1 order item" or "5 order items".
type Label struct {
	One  string
	Many string
}

// Format renders n with the singular or plural noun.
func (l Label) Format(n int64) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, l.One)
	}
	return fmt.Sprintf("%d %s", n, l.Many)
}

// Step is one dependent row set of a plan.
type Step struct {
	Name     string
	Label    Label
	Table    string
	Severity Severity
	Action   Action
	// Column is the reference set to NULL by a Detach step.
	Column string
	// Where selects the dependent rows of the master identified by the key.
	Where func(k Key) squirrel.Sqlizer
}

// Plan describes how one entity kind is checked and deleted.
type Plan struct {
	Kind    string
	Table   string
	Key     []string
	Display []string // fetched before the delete so the result can name the row
	Steps   []Step   // leaves first
}

func (p Plan) keyWhere(k Key) squirrel.Eq {
	eq := make(squirrel.Eq, len(p.Key))
	for i, col := range p.Key {
		eq[col] = k[i]
	}
	return eq
}

func (p Plan) checkKey(k Key) error {
	if len(k) != len(p.Key) {
		return fmt.Errorf("%w: %s needs %d key values (%s), got %d",
			tools.ErrInvalidKey, p.Kind, len(p.Key), strings.Join(p.Key, ", "), len(k))
	}
	return nil
}

var plans = map[string]Plan{}

func register(p Plan) {
	if _, dup := plans[p.Kind]; dup {
		panic("cascade: duplicate plan for " + p.Kind)
	}
	plans[p.Kind] = p
}

// PlanFor returns the plan of a deletable kind.
func PlanFor(kind string) (Plan, error) {
	p, ok := plans[kind]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", tools.ErrUnknownEntityKind, kind)
	}
	return p, nil
}

// Kinds lists deletable kinds in sorted order.
func Kinds() []string {
	kinds := make([]string, 0, len(plans))
	for k := range plans {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func statements(d query.Dialect) squirrel.StatementBuilderType {
	if d == query.Postgres {
		return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	}
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}
