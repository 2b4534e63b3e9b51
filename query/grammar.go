// Package query compiles declarative query payloads into parameterized SQL.
//
// A payload names columns, joins, a condition tree, sort descriptors and
// pagination as plain data. Compile checks every identifier against an
// immutable Config and renders SQL in which only whitelisted identifiers are
// interpolated; every value is a bound parameter.
package query

import (
	"strings"
)

// Operator is a comparison operator of a Where condition.
type Operator string

// Comparison operators.
const (
	OpEquals    Operator = "="
	OpNotEquals Operator = "!="
	OpGT        Operator = ">"
	OpGTE       Operator = ">="
	OpLT        Operator = "<"
	OpLTE       Operator = "<="
	OpLike      Operator = "LIKE"
	OpIn        Operator = "IN"
	OpNotIn     Operator = "NOT IN"
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
	OpBetween   Operator = "BETWEEN"
)

// operatorNames maps accepted spellings to operators.
var operatorNames = map[string]Operator{
	"=":           OpEquals,
	"==":          OpEquals,
	"EQUALS":      OpEquals,
	"!=":          OpNotEquals,
	"<>":          OpNotEquals,
	"NOT_EQUALS":  OpNotEquals,
	">":           OpGT,
	"GT":          OpGT,
	">=":          OpGTE,
	"GTE":         OpGTE,
	"<":           OpLT,
	"LT":          OpLT,
	"<=":          OpLTE,
	"LTE":         OpLTE,
	"LIKE":        OpLike,
	"IN":          OpIn,
	"NOT IN":      OpNotIn,
	"NOT_IN":      OpNotIn,
	"IS NULL":     OpIsNull,
	"IS_NULL":     OpIsNull,
	"IS NOT NULL": OpIsNotNull,
	"IS_NOT_NULL": OpIsNotNull,
	"BETWEEN":     OpBetween,
}

// ParseOperator normalizes an operator spelling. Both the SQL form ("NOT IN")
// and the enum form ("NOT_IN") are accepted, case-insensitively.
func ParseOperator(s string) (Operator, bool) {
	key := strings.ToUpper(strings.Join(strings.Fields(s), " "))
	op, ok := operatorNames[key]
	return op, ok
}

// isComparison reports whether op takes exactly one scalar value.
func (op Operator) isComparison() bool {
	switch op {
	case OpEquals, OpNotEquals, OpGT, OpGTE, OpLT, OpLTE, OpLike:
		return true
	}
	return false
}

// Logical combines the conditions of a Group.
type Logical string

// Logical operators.
const (
	And Logical = "AND"
	Or  Logical = "OR"
)

// Condition is a node of a filter tree: either *Where or *Group.
type Condition interface {
	condition()
}

// Where compares one column with a value.
// Val is a scalar, a non-empty slice for IN/NOT IN, a two-element slice for
// BETWEEN, and ignored for IS NULL/IS NOT NULL.
type Where struct {
	Key string
	Op  Operator
	Val any
}

// Group combines child conditions with AND or OR. Conditions must be non-empty.
type Group struct {
	Op         Logical
	Conditions []Condition
}

func (*Where) condition() {}
func (*Group) condition() {}

// Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort orders results by one column. Position in the list sets precedence.
type Sort struct {
	Key       string    `json:"key" yaml:"key"`
	Direction Direction `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// JoinType is the SQL join kind.
type JoinType string

// Join kinds.
const (
	InnerJoin JoinType = "INNER"
	LeftJoin  JoinType = "LEFT"
	RightJoin JoinType = "RIGHT"
)

// On compares two alias-qualified columns inside a join condition.
type On struct {
	Left  string   `json:"left" yaml:"left"`
	Op    Operator `json:"op" yaml:"op"`
	Right string   `json:"right" yaml:"right"`
}

// Join introduces a table under an alias.
type Join struct {
	Type  JoinType `json:"type" yaml:"type"`
	Table string   `json:"table" yaml:"table"`
	Alias string   `json:"alias" yaml:"alias"`
	On    []On     `json:"on" yaml:"on"`
}

// signature renders a canonical form used to compare caller joins with
// registered ones.
func (j Join) signature() string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(strings.TrimSpace(string(j.Type))))
	b.WriteByte(' ')
	b.WriteString(strings.TrimSpace(j.Table))
	b.WriteByte(' ')
	b.WriteString(strings.TrimSpace(j.Alias))
	for i, on := range j.On {
		if i == 0 {
			b.WriteString(" ON ")
		} else {
			b.WriteString(" AND ")
		}
		op, _ := ParseOperator(string(on.Op))
		b.WriteString(strings.TrimSpace(on.Left))
		b.WriteByte(' ')
		b.WriteString(string(op))
		b.WriteByte(' ')
		b.WriteString(strings.TrimSpace(on.Right))
	}
	return b.String()
}
