package query

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

// where renders a condition tree into SQL with ? placeholders, appending
// bound values to b.args in placeholder order.
func (b *builder) where(c Condition) (string, error) {
	if c == nil {
		return "", nil
	}
	return b.renderCondition(c, 1, false)
}

func (b *builder) renderCondition(c Condition, depth int, nested bool) (string, error) {
	switch n := c.(type) {
	case *Where:
		if n == nil {
			return "", tools.MalformedConditionErr("", "nil condition")
		}
		return b.renderWhere(n)
	case *Group:
		if n == nil {
			return "", tools.MalformedConditionErr("", "nil group")
		}
		return b.renderGroup(n, depth, nested)
	default:
		return "", tools.MalformedConditionErr("", fmt.Sprintf("unsupported condition type %T", c))
	}
}

func (b *builder) renderGroup(g *Group, depth int, nested bool) (string, error) {
	if depth > b.cfg.limits.MaxConditionDepth {
		return "", tools.MalformedConditionErr("", fmt.Sprintf("condition nesting exceeds maximum depth of %d", b.cfg.limits.MaxConditionDepth))
	}
	op := Logical(strings.ToUpper(strings.TrimSpace(string(g.Op))))
	if op != And && op != Or {
		return "", tools.MalformedConditionErr("", fmt.Sprintf("invalid logical operator %q", g.Op))
	}
	if len(g.Conditions) == 0 {
		return "", tools.MalformedConditionErr("", "group conditions cannot be empty")
	}

	parts := make([]string, 0, len(g.Conditions))
	for _, child := range g.Conditions {
		// a single child stands in for this group and inherits its nesting
		sql, err := b.renderCondition(child, depth+1, nested || len(g.Conditions) > 1)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}

	sql := strings.Join(parts, " "+string(op)+" ")
	if nested {
		sql = "(" + sql + ")"
	}
	return sql, nil
}

func (b *builder) renderWhere(w *Where) (string, error) {
	column, _, _, err := b.resolveColumn(w.Key)
	if err != nil {
		return "", err
	}
	op, ok := ParseOperator(string(w.Op))
	if !ok {
		return "", tools.MalformedConditionErr(w.Key, fmt.Sprintf("unknown operator %q", w.Op))
	}

	switch op {
	case OpIsNull, OpIsNotNull:
		return column + " " + string(op), nil

	case OpIn, OpNotIn:
		values, ok := listValue(w.Val)
		if !ok {
			return "", tools.MalformedConditionErr(w.Key, string(op)+" requires an array value")
		}
		if len(values) == 0 {
			return "", fmt.Errorf("%w: %s", tools.ErrEmptyInList, w.Key)
		}
		if len(values) > b.cfg.limits.MaxInListSize {
			return "", fmt.Errorf("%w: %s has %d values (max %d)", tools.ErrInListTooLarge, w.Key, len(values), b.cfg.limits.MaxInListSize)
		}
		for _, v := range values {
			scalar, ok := scalarValue(v)
			if !ok {
				return "", tools.MalformedConditionErr(w.Key, string(op)+" values must be scalars")
			}
			b.args = append(b.args, scalar)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
		return column + " " + string(op) + " (" + placeholders + ")", nil

	case OpBetween:
		values, ok := listValue(w.Val)
		if !ok || len(values) != 2 {
			return "", tools.MalformedConditionErr(w.Key, "BETWEEN requires exactly two values")
		}
		for _, v := range values {
			scalar, ok := scalarValue(v)
			if !ok {
				return "", tools.MalformedConditionErr(w.Key, "BETWEEN values must be scalars")
			}
			b.args = append(b.args, scalar)
		}
		return column + " BETWEEN ? AND ?", nil

	default:
		if w.Val == nil {
			return "", tools.MalformedConditionErr(w.Key, fmt.Sprintf("%s requires a value, use IS NULL to match nulls", op))
		}
		scalar, ok := scalarValue(w.Val)
		if !ok {
			return "", tools.MalformedConditionErr(w.Key, fmt.Sprintf("%s requires a scalar value", op))
		}
		b.args = append(b.args, scalar)
		return column + " " + string(op) + " ?", nil
	}
}

// scalarValue accepts strings, booleans, numbers and times.
func scalarValue(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		f, err := t.Float64()
		return f, err == nil
	case time.Time:
		return t, true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return v, true
	}
	return nil, false
}

// listValue unpacks any slice or array into []any.
func listValue(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
