package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

// Target names what a payload is compiled against. NamedQuery, when set,
// fixes the join set and implies its entity.
type Target struct {
	Entity     string
	NamedQuery string
}

// Parameter is one bound value, named in placeholder order (p1, p2, ...).
type Parameter struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Metadata describes a compiled query.
type Metadata struct {
	SelectColumns  []string `json:"selectColumns"`
	HasJoins       bool     `json:"hasJoins"`
	HasWhere       bool     `json:"hasWhere"`
	ParameterCount int      `json:"parameterCount"`
	TableFixed     bool     `json:"tableFixed"`
}

// Compiled is parameterized SQL ready for the executor.
type Compiled struct {
	SQL        string      `json:"sql"`
	Parameters []Parameter `json:"parameters"`
	Args       []any       `json:"-"`
	Metadata   Metadata    `json:"metadata"`
}

// selectPattern matches "column", "alias.column" and either with " AS label".
// Labels are lower case so postgres case folding keeps them intact.
var selectPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)?)(?:\s+(?i:AS)\s+([A-Za-z_][A-Za-z0-9_]*))?$`)

var labelPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// reservedLabels are words sqlite or postgres refuse as a bare column alias.
var reservedLabels = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true, "array": true,
	"as": true, "asc": true, "asymmetric": true, "between": true, "both": true, "case": true,
	"cast": true, "check": true, "collate": true, "column": true, "constraint": true,
	"create": true, "current_date": true, "current_time": true, "current_timestamp": true,
	"current_user": true, "default": true, "deferrable": true, "delete": true, "desc": true,
	"distinct": true, "do": true, "drop": true, "else": true, "end": true, "escape": true,
	"except": true, "exists": true, "false": true, "fetch": true, "for": true, "foreign": true,
	"from": true, "grant": true, "group": true, "having": true, "in": true, "index": true,
	"initially": true, "insert": true, "intersect": true, "into": true, "is": true,
	"isnull": true, "join": true, "lateral": true, "leading": true, "like": true, "limit": true,
	"localtime": true, "localtimestamp": true, "not": true, "notnull": true, "null": true,
	"offset": true, "on": true, "only": true, "or": true, "order": true, "placing": true,
	"primary": true, "references": true, "returning": true, "select": true,
	"session_user": true, "some": true, "symmetric": true, "table": true, "then": true,
	"to": true, "trailing": true, "true": true, "union": true, "unique": true, "update": true,
	"user": true, "using": true, "values": true, "variadic": true, "when": true, "where": true,
	"window": true, "with": true,
}

// checkLabel rejects labels that would not survive as an unquoted alias.
func checkLabel(raw, label string) error {
	if !labelPattern.MatchString(label) {
		return fmt.Errorf("%w: label %q in %q must be lower case", tools.ErrColumnNotAllowed, label, raw)
	}
	if reservedLabels[label] {
		return fmt.Errorf("%w: label %q in %q is a reserved word", tools.ErrColumnNotAllowed, label, raw)
	}
	return nil
}

// Compile turns a payload into parameterized SQL. The payload is checked
// against cfg before anything is rendered; no identifier reaches the SQL text
// unless it is whitelisted.
func Compile(p *Payload, cfg *Config, target Target) (*Compiled, error) {
	b, err := newBuilder(p, cfg, target)
	if err != nil {
		return nil, err
	}

	columns, labels, err := b.selectColumns(p.Select)
	if err != nil {
		return nil, err
	}
	where, err := b.where(p.Where)
	if err != nil {
		return nil, err
	}
	order, err := b.orderBy(p.OrderBy)
	if err != nil {
		return nil, err
	}
	limit, offset, err := b.pagination(p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}

	sb := b.statements().Select(columns...).From(b.base.Table + " " + b.base.Alias)
	sb = b.applyJoins(sb)
	if where != "" {
		sb = sb.Where(squirrel.Expr(where, b.args...))
	}
	if len(order) > 0 {
		sb = sb.OrderBy(order...)
	}
	sb = sb.Limit(limit)
	if offset > 0 {
		sb = sb.Offset(offset)
	}

	return b.finish(sb, labels, where != "")
}

// CompileCount renders SELECT COUNT(*) for the joins and filter of p,
// ignoring select, order and pagination.
func CompileCount(p *Payload, cfg *Config, target Target) (*Compiled, error) {
	b, err := newBuilder(p, cfg, target)
	if err != nil {
		return nil, err
	}
	where, err := b.where(p.Where)
	if err != nil {
		return nil, err
	}

	sb := b.statements().Select("COUNT(*) AS total").From(b.base.Table + " " + b.base.Alias)
	sb = b.applyJoins(sb)
	if where != "" {
		sb = sb.Where(squirrel.Expr(where, b.args...))
	}
	return b.finish(sb, []string{"total"}, where != "")
}

// builder holds the per-call state of one compilation.
type builder struct {
	cfg        *Config
	base       *entityInfo
	named      *namedInfo
	scope      []scopeEntry
	joins      []Join
	args       []any
	tableFixed bool
}

type scopeEntry struct {
	alias string
	info  *entityInfo
}

func newBuilder(p *Payload, cfg *Config, target Target) (*builder, error) {
	if p == nil {
		p = &Payload{}
	}
	base, named, err := cfg.resolveTarget(target)
	if err != nil {
		return nil, err
	}

	b := &builder{
		cfg:   cfg,
		base:  base,
		named: named,
		scope: []scopeEntry{{alias: base.Alias, info: base}},
	}
	if p.From != nil && p.From.Table != "" && p.From.Table != base.Table {
		b.tableFixed = true
	}
	if err := b.resolveJoins(p.Joins); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Config) resolveTarget(t Target) (*entityInfo, *namedInfo, error) {
	if t.NamedQuery != "" {
		n, ok := c.named[t.NamedQuery]
		if !ok {
			return nil, nil, tools.TableNotAllowedErr(t.NamedQuery)
		}
		if t.Entity != "" && t.Entity != n.Entity {
			return nil, nil, tools.TableNotAllowedErr(t.Entity + "/" + t.NamedQuery)
		}
		return c.entities[n.Entity], n, nil
	}
	e, ok := c.entities[t.Entity]
	if !ok {
		return nil, nil, tools.TableNotAllowedErr(t.Entity)
	}
	return e, nil, nil
}

// resolveJoins fixes the join set. A named query always contributes all of
// its joins; caller joins must repeat one of them. Without a named query,
// each caller join must equal a join registered for the entity.
func (b *builder) resolveJoins(requested []Join) error {
	if b.named != nil {
		for _, j := range requested {
			if _, ok := b.named.joins[j.signature()]; !ok {
				return tools.JoinNotAllowedErr(b.named.Name, j.Table, j.Alias)
			}
		}
		for _, j := range b.named.Joins {
			if err := b.addJoin(j); err != nil {
				return err
			}
		}
		return nil
	}

	for _, j := range requested {
		registered, ok := b.base.joins[j.signature()]
		if !ok {
			return tools.JoinNotAllowedErr(b.base.Name, j.Table, j.Alias)
		}
		if err := b.addJoin(registered); err != nil {
			return err
		}
	}
	return nil
}

// addJoin brings a registered join into scope after checking that its alias
// is new and its on condition only references aliases already in scope.
func (b *builder) addJoin(j Join) error {
	if b.lookupAlias(j.Alias) != nil {
		return fmt.Errorf("%w: alias %q used twice", tools.ErrJoinNotAllowed, j.Alias)
	}
	info := b.cfg.tables[j.Table]
	b.scope = append(b.scope, scopeEntry{alias: j.Alias, info: info})
	for _, on := range j.On {
		for _, ref := range []string{on.Left, on.Right} {
			alias, _, _ := strings.Cut(ref, ".")
			if b.lookupAlias(alias) == nil {
				return fmt.Errorf("%w: %s %s references %q before it is joined", tools.ErrJoinNotAllowed, j.Table, j.Alias, alias)
			}
		}
	}
	b.joins = append(b.joins, j)
	return nil
}

func (b *builder) lookupAlias(alias string) *scopeEntry {
	for i := range b.scope {
		if b.scope[i].alias == alias {
			return &b.scope[i]
		}
	}
	return nil
}

// resolveColumn maps a bare or alias-qualified key to its qualified column.
// Bare keys resolve to the base entity first, then to exactly one joined
// table; anything else is not allowed.
func (b *builder) resolveColumn(key string) (qualified string, entry *scopeEntry, column string, err error) {
	key = strings.TrimSpace(key)
	if alias, col, ok := strings.Cut(key, "."); ok {
		e := b.lookupAlias(alias)
		if e == nil || !e.info.columnSet[col] {
			return "", nil, "", tools.ColumnNotAllowedErr(b.base.Name, key)
		}
		return alias + "." + col, e, col, nil
	}

	if b.base.columnSet[key] {
		return b.base.Alias + "." + key, &b.scope[0], key, nil
	}
	var found *scopeEntry
	for i := 1; i < len(b.scope); i++ {
		if b.scope[i].info.columnSet[key] {
			if found != nil {
				return "", nil, "", fmt.Errorf("%w: %s is ambiguous between %s and %s", tools.ErrColumnNotAllowed, key, found.alias, b.scope[i].alias)
			}
			found = &b.scope[i]
		}
	}
	if found == nil {
		return "", nil, "", tools.ColumnNotAllowedErr(b.base.Name, key)
	}
	return found.alias + "." + key, found, key, nil
}

// selectColumns renders the select list and the output column names.
// Joined columns without a label are emitted as <alias>_<column>.
func (b *builder) selectColumns(entries []string) ([]string, []string, error) {
	if len(entries) == 0 {
		columns := make([]string, len(b.base.Columns))
		for i, c := range b.base.Columns {
			columns[i] = b.base.Alias + "." + c
		}
		return columns, append([]string(nil), b.base.Columns...), nil
	}

	columns := make([]string, 0, len(entries))
	labels := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, raw := range entries {
		m := selectPattern.FindStringSubmatch(strings.TrimSpace(raw))
		if m == nil {
			return nil, nil, tools.ColumnNotAllowedErr(b.base.Name, raw)
		}
		qualified, entry, column, err := b.resolveColumn(m[1])
		if err != nil {
			return nil, nil, err
		}

		label := m[2]
		switch {
		case label != "":
			if err := checkLabel(raw, label); err != nil {
				return nil, nil, err
			}
			columns = append(columns, qualified+" AS "+label)
		case entry.alias != b.base.Alias:
			label = entry.alias + "_" + column
			columns = append(columns, qualified+" AS "+label)
		default:
			label = column
			columns = append(columns, qualified)
		}
		if seen[label] {
			return nil, nil, fmt.Errorf("%w: output column %q selected twice", tools.ErrColumnNotAllowed, label)
		}
		seen[label] = true
		labels = append(labels, label)
	}
	return columns, labels, nil
}

// pagination applies the row ceiling. A missing or zero limit means the
// configured default; LIMIT is always emitted.
func (b *builder) pagination(limit, offset *int) (uint64, uint64, error) {
	l := b.cfg.limits
	n := l.DefaultLimit
	if limit != nil {
		switch {
		case *limit < 0:
			return 0, 0, fmt.Errorf("%w: limit must not be negative, got %d", tools.ErrInvalidPagination, *limit)
		case *limit > l.MaxRows && l.PaginationPolicy == RejectOverLimit:
			return 0, 0, fmt.Errorf("%w: limit %d exceeds maximum of %d", tools.ErrInvalidPagination, *limit, l.MaxRows)
		case *limit > l.MaxRows:
			n = l.MaxRows
		case *limit > 0:
			n = *limit
		}
	}

	var off int
	if offset != nil {
		if *offset < 0 {
			return 0, 0, fmt.Errorf("%w: offset must not be negative, got %d", tools.ErrInvalidPagination, *offset)
		}
		off = *offset
	}
	return uint64(n), uint64(off), nil
}

func (b *builder) statements() squirrel.StatementBuilderType {
	if b.cfg.dialect == Postgres {
		return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	}
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)
}

func (b *builder) applyJoins(sb squirrel.SelectBuilder) squirrel.SelectBuilder {
	for _, j := range b.joins {
		clause := j.Table + " " + j.Alias + " ON " + renderOn(j.On)
		switch JoinType(strings.ToUpper(string(j.Type))) {
		case LeftJoin:
			sb = sb.LeftJoin(clause)
		case RightJoin:
			sb = sb.RightJoin(clause)
		default:
			sb = sb.InnerJoin(clause)
		}
	}
	return sb
}

func renderOn(on []On) string {
	parts := make([]string, len(on))
	for i, c := range on {
		op, _ := ParseOperator(string(c.Op))
		parts[i] = c.Left + " " + string(op) + " " + c.Right
	}
	return strings.Join(parts, " AND ")
}

func (b *builder) finish(sb squirrel.SelectBuilder, labels []string, hasWhere bool) (*Compiled, error) {
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("render %s query: %w", b.base.Name, err)
	}

	params := make([]Parameter, len(args))
	for i, a := range args {
		params[i] = Parameter{Name: fmt.Sprintf("p%d", i+1), Value: a}
	}

	return &Compiled{
		SQL:        sql,
		Parameters: params,
		Args:       args,
		Metadata: Metadata{
			SelectColumns:  labels,
			HasJoins:       len(b.joins) > 0,
			HasWhere:       hasWhere,
			ParameterCount: len(args),
			TableFixed:     b.tableFixed,
		},
	}, nil
}
