package query

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

// Dialect selects the placeholder style of compiled SQL.
type Dialect string

// Supported dialects.
const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// PaginationPolicy decides what happens to limits above Limits.MaxRows.
type PaginationPolicy string

// Pagination policies.
const (
	RejectOverLimit PaginationPolicy = "reject"
	ClampOverLimit  PaginationPolicy = "clamp"
)

// Entity describes one queryable table.
type Entity struct {
	Name         string
	Table        string
	Alias        string
	PrimaryKey   []string
	Columns      []string
	DefaultOrder []Sort
	// Joins registered for ad-hoc payload use.
	Joins []Join
	// RawWhereColumns limits the raw WHERE escape hatch; empty means Columns.
	RawWhereColumns []string
}

// NamedQuery fixes the join set for one entity.
type NamedQuery struct {
	Name         string `yaml:"name"`
	Entity       string `yaml:"entity"`
	Joins        []Join `yaml:"joins"`
	DefaultOrder []Sort `yaml:"defaultOrder,omitempty"`
}

// Limits bound compiled queries.
type Limits struct {
	MaxRows           int
	DefaultLimit      int
	PaginationPolicy  PaginationPolicy
	MaxConditionDepth int
	MaxInListSize     int
}

// Default limits.
const (
	DefaultMaxRows           = 1000
	DefaultDefaultLimit      = 100
	DefaultMaxConditionDepth = 8
	DefaultMaxInListSize     = 100
)

// Config is the immutable whitelist the compiler checks payloads against.
// Build it once with NewConfig and share it; it is safe for concurrent use.
type Config struct {
	dialect  Dialect
	limits   Limits
	entities map[string]*entityInfo
	tables   map[string]*entityInfo
	named    map[string]*namedInfo
}

type entityInfo struct {
	Entity
	columnSet map[string]bool
	joins     map[string]Join // by signature
}

type namedInfo struct {
	NamedQuery
	joins map[string]Join
}

// NewConfig validates entities and named queries and returns an immutable Config.
func NewConfig(dialect Dialect, limits Limits, entities []Entity, named []NamedQuery) (*Config, error) {
	switch dialect {
	case SQLite, Postgres:
	case "":
		dialect = SQLite
	default:
		return nil, fmt.Errorf("query config: unknown dialect %q", dialect)
	}

	limits, err := normalizeLimits(limits)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		dialect:  dialect,
		limits:   limits,
		entities: make(map[string]*entityInfo, len(entities)),
		tables:   make(map[string]*entityInfo, len(entities)),
		named:    make(map[string]*namedInfo, len(named)),
	}

	for _, e := range entities {
		info, err := newEntityInfo(e)
		if err != nil {
			return nil, err
		}
		if _, dup := cfg.entities[e.Name]; dup {
			return nil, fmt.Errorf("query config: duplicate entity %q", e.Name)
		}
		if _, dup := cfg.tables[e.Table]; dup {
			return nil, fmt.Errorf("query config: table %q registered twice", e.Table)
		}
		cfg.entities[e.Name] = info
		cfg.tables[e.Table] = info
	}

	// Joins reference other entities' tables, so they are checked once all
	// entities are known.
	for _, e := range entities {
		info := cfg.entities[e.Name]
		for i, j := range info.Entity.Joins {
			if err := cfg.checkJoin(info, j, info.Entity.Joins[:i]); err != nil {
				return nil, err
			}
			info.joins[j.signature()] = j
		}
		for _, s := range info.DefaultOrder {
			if _, ok := info.columnSet[s.Key]; !ok {
				return nil, fmt.Errorf("query config: default order column %q not in %s", s.Key, info.Name)
			}
		}
	}

	for _, n := range named {
		if err := tools.ValidateIdentifier(n.Name); err != nil {
			return nil, fmt.Errorf("query config: named query %q: %w", n.Name, err)
		}
		if _, dup := cfg.named[n.Name]; dup {
			return nil, fmt.Errorf("query config: duplicate named query %q", n.Name)
		}
		base, ok := cfg.entities[n.Entity]
		if !ok {
			return nil, fmt.Errorf("query config: named query %q: unknown entity %q", n.Name, n.Entity)
		}
		ni := &namedInfo{NamedQuery: cloneNamed(n), joins: make(map[string]Join, len(n.Joins))}
		for i, j := range n.Joins {
			if err := cfg.checkJoin(base, j, n.Joins[:i]); err != nil {
				return nil, fmt.Errorf("named query %q: %w", n.Name, err)
			}
			ni.joins[j.signature()] = j
		}
		b := &builder{cfg: cfg, base: base, scope: []scopeEntry{{alias: base.Alias, info: base}}}
		for _, j := range ni.Joins {
			if err := b.addJoin(j); err != nil {
				return nil, fmt.Errorf("query config: named query %q: %w", n.Name, err)
			}
		}
		for _, s := range ni.DefaultOrder {
			if _, _, _, err := b.resolveColumn(s.Key); err != nil {
				return nil, fmt.Errorf("query config: named query %q default order: %w", n.Name, err)
			}
		}
		cfg.named[n.Name] = ni
	}

	return cfg, nil
}

func normalizeLimits(l Limits) (Limits, error) {
	if l.MaxRows < 0 || l.DefaultLimit < 0 || l.MaxConditionDepth < 0 || l.MaxInListSize < 0 {
		return l, fmt.Errorf("query config: limits must not be negative")
	}
	if l.MaxRows == 0 {
		l.MaxRows = DefaultMaxRows
	}
	if l.DefaultLimit == 0 {
		l.DefaultLimit = min(DefaultDefaultLimit, l.MaxRows)
	}
	if l.DefaultLimit > l.MaxRows {
		return l, fmt.Errorf("query config: default limit %d exceeds max rows %d", l.DefaultLimit, l.MaxRows)
	}
	switch l.PaginationPolicy {
	case RejectOverLimit, ClampOverLimit:
	case "":
		l.PaginationPolicy = RejectOverLimit
	default:
		return l, fmt.Errorf("query config: unknown pagination policy %q", l.PaginationPolicy)
	}
	if l.MaxConditionDepth == 0 {
		l.MaxConditionDepth = DefaultMaxConditionDepth
	}
	if l.MaxConditionDepth > MaxDecodeDepth {
		return l, fmt.Errorf("query config: max condition depth %d exceeds %d", l.MaxConditionDepth, MaxDecodeDepth)
	}
	if l.MaxInListSize == 0 {
		l.MaxInListSize = DefaultMaxInListSize
	}
	return l, nil
}

func newEntityInfo(e Entity) (*entityInfo, error) {
	if err := tools.ValidateIdentifier(e.Name); err != nil {
		return nil, fmt.Errorf("query config: entity %q: %w", e.Name, err)
	}
	if err := tools.ValidateTableName(e.Table); err != nil {
		return nil, fmt.Errorf("query config: entity %q: %w", e.Name, err)
	}
	if err := tools.ValidateIdentifier(e.Alias); err != nil {
		return nil, fmt.Errorf("query config: entity %q alias: %w", e.Name, err)
	}
	if len(e.Columns) == 0 {
		return nil, fmt.Errorf("query config: entity %q has no columns", e.Name)
	}

	info := &entityInfo{
		Entity:    cloneEntity(e),
		columnSet: make(map[string]bool, len(e.Columns)),
		joins:     make(map[string]Join, len(e.Joins)),
	}
	for _, c := range e.Columns {
		if err := tools.ValidateColumnName(c); err != nil {
			return nil, fmt.Errorf("query config: entity %q: %w", e.Name, err)
		}
		if info.columnSet[c] {
			return nil, fmt.Errorf("query config: entity %q: duplicate column %q", e.Name, c)
		}
		info.columnSet[c] = true
	}
	for _, pk := range e.PrimaryKey {
		if !info.columnSet[pk] {
			return nil, fmt.Errorf("query config: entity %q: primary key %q is not a column", e.Name, pk)
		}
	}
	for _, c := range e.RawWhereColumns {
		if !info.columnSet[c] {
			return nil, fmt.Errorf("query config: entity %q: raw where column %q is not a column", e.Name, c)
		}
	}
	return info, nil
}

// checkJoin validates one join against the base entity and the joins
// preceding it.
func (c *Config) checkJoin(base *entityInfo, j Join, preceding []Join) error {
	switch strings.ToUpper(string(j.Type)) {
	case string(InnerJoin), string(LeftJoin), string(RightJoin):
	default:
		return fmt.Errorf("query config: join %s %s: unknown join type %q", j.Table, j.Alias, j.Type)
	}
	target, ok := c.tables[j.Table]
	if !ok {
		return fmt.Errorf("query config: join %s %s: table is not a registered entity", j.Table, j.Alias)
	}
	if err := tools.ValidateIdentifier(j.Alias); err != nil {
		return fmt.Errorf("query config: join %s alias: %w", j.Table, err)
	}
	if len(j.On) == 0 {
		return fmt.Errorf("query config: join %s %s has no on condition", j.Table, j.Alias)
	}

	known := map[string]*entityInfo{base.Alias: base}
	for _, prev := range preceding {
		if t, ok := c.tables[prev.Table]; ok {
			known[prev.Alias] = t
		}
	}
	if _, clash := known[j.Alias]; clash {
		return fmt.Errorf("query config: join alias %q is not unique", j.Alias)
	}
	known[j.Alias] = target

	for _, on := range j.On {
		op, ok := ParseOperator(string(on.Op))
		if !ok || !op.isComparison() || op == OpLike {
			return fmt.Errorf("query config: join %s %s: invalid on operator %q", j.Table, j.Alias, on.Op)
		}
		for _, ref := range []string{on.Left, on.Right} {
			alias, col, ok := strings.Cut(ref, ".")
			if !ok {
				return fmt.Errorf("query config: join %s %s: on reference %q must be qualified", j.Table, j.Alias, ref)
			}
			t, ok := known[alias]
			if !ok || !t.columnSet[col] {
				return fmt.Errorf("query config: join %s %s: on reference %q is not in scope", j.Table, j.Alias, ref)
			}
		}
	}
	return nil
}

// Dialect returns the configured SQL dialect.
func (c *Config) Dialect() Dialect { return c.dialect }

// Limits returns the configured query limits.
func (c *Config) Limits() Limits { return c.limits }

// Entity returns a copy of the named entity descriptor.
func (c *Config) Entity(name string) (Entity, bool) {
	info, ok := c.entities[name]
	if !ok {
		return Entity{}, false
	}
	return cloneEntity(info.Entity), true
}

// EntityNames returns registered entity names in sorted order.
func (c *Config) EntityNames() []string {
	names := make([]string, 0, len(c.entities))
	for name := range c.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NamedQuery returns a copy of the named query.
func (c *Config) NamedQuery(name string) (NamedQuery, bool) {
	n, ok := c.named[name]
	if !ok {
		return NamedQuery{}, false
	}
	return cloneNamed(n.NamedQuery), true
}

func cloneEntity(e Entity) Entity {
	e.PrimaryKey = slices.Clone(e.PrimaryKey)
	e.Columns = slices.Clone(e.Columns)
	e.DefaultOrder = slices.Clone(e.DefaultOrder)
	e.Joins = cloneJoins(e.Joins)
	e.RawWhereColumns = slices.Clone(e.RawWhereColumns)
	return e
}

func cloneNamed(n NamedQuery) NamedQuery {
	n.Joins = cloneJoins(n.Joins)
	n.DefaultOrder = slices.Clone(n.DefaultOrder)
	return n
}

func cloneJoins(joins []Join) []Join {
	if joins == nil {
		return nil
	}
	out := make([]Join, len(joins))
	for i, j := range joins {
		j.On = slices.Clone(j.On)
		out[i] = j
	}
	return out
}
