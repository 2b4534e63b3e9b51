package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

// From is the caller's view of the target table. The compiler never takes
// the table from here; the alias is honoured only if it matches configuration.
type From struct {
	Table string `json:"table"`
	Alias string `json:"alias,omitempty"`
}

// Payload describes one query over an entity.
type Payload struct {
	Select  []string  `json:"select"`
	From    *From     `json:"from,omitempty"`
	Joins   []Join    `json:"joins,omitempty"`
	Where   Condition `json:"-"`
	OrderBy []Sort    `json:"orderBy,omitempty"`
	Limit   *int      `json:"limit,omitempty"`
	Offset  *int      `json:"offset,omitempty"`
}

// DecodePayload reads a JSON payload. Numbers inside conditions keep integer
// precision; unknown members are rejected.
func DecodePayload(r io.Reader) (*Payload, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		var pe *payloadError
		if errors.As(err, &pe) {
			return nil, pe.err
		}
		return nil, fmt.Errorf("%w: %w", tools.ErrInvalidJSON, err)
	}
	return &p, nil
}

// payloadError lets UnmarshalJSON surface taxonomy errors through the json
// package, which otherwise wraps them.
type payloadError struct{ err error }

func (e *payloadError) Error() string { return e.err.Error() }
func (e *payloadError) Unwrap() error { return e.err }

type rawPayload struct {
	Select  []string        `json:"select"`
	From    *From           `json:"from,omitempty"`
	Joins   []Join          `json:"joins,omitempty"`
	Where   json.RawMessage `json:"where,omitempty"`
	OrderBy []Sort          `json:"orderBy,omitempty"`
	Limit   json.RawMessage `json:"limit,omitempty"`
	Offset  json.RawMessage `json:"offset,omitempty"`
}

// UnmarshalJSON decodes the where member into a Condition tree.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw rawPayload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	limit, err := decodePaginationValue("limit", raw.Limit)
	if err != nil {
		return &payloadError{err}
	}
	offset, err := decodePaginationValue("offset", raw.Offset)
	if err != nil {
		return &payloadError{err}
	}

	var where Condition
	if len(raw.Where) > 0 && !bytes.Equal(bytes.TrimSpace(raw.Where), []byte("null")) {
		where, err = DecodeCondition(raw.Where)
		if err != nil {
			return &payloadError{err}
		}
	}

	*p = Payload{
		Select:  raw.Select,
		From:    raw.From,
		Joins:   raw.Joins,
		Where:   where,
		OrderBy: raw.OrderBy,
		Limit:   limit,
		Offset:  offset,
	}
	return nil
}

func decodePaginationValue(name string, raw json.RawMessage) (*int, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", tools.ErrInvalidPagination, name)
	}
	v, err := n.Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer, got %s", tools.ErrInvalidPagination, name, n)
	}
	i := int(v)
	return &i, nil
}

// conditionNode is the wire shape shared by Where and Group. A non-null
// "conditions" member marks a group.
type conditionNode struct {
	Key        string            `json:"key"`
	Op         string            `json:"op"`
	Val        json.RawMessage   `json:"val"`
	Conditions []json.RawMessage `json:"conditions"`
}

// MaxDecodeDepth caps group nesting while decoding, before any configured
// limit is applied. Limits.MaxConditionDepth may not exceed it.
const MaxDecodeDepth = 64

// DecodeCondition decodes a JSON condition tree. Trees nested deeper than
// MaxDecodeDepth groups are rejected without decoding the rest.
func DecodeCondition(data []byte) (Condition, error) {
	return decodeCondition(data, 1)
}

func decodeCondition(data []byte, depth int) (Condition, error) {
	var node conditionNode
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(&node); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "" {
			return nil, tools.MalformedConditionErr("", "condition must be an object")
		}
		return nil, tools.MalformedConditionErr("", err.Error())
	}

	if node.Conditions != nil {
		if node.Key != "" || len(node.Val) > 0 {
			return nil, tools.MalformedConditionErr("", "group cannot carry key or val")
		}
		if depth > MaxDecodeDepth {
			return nil, tools.MalformedConditionErr("", fmt.Sprintf("condition nesting exceeds maximum depth of %d", MaxDecodeDepth))
		}
		g := &Group{Op: Logical(node.Op), Conditions: make([]Condition, 0, len(node.Conditions))}
		for _, child := range node.Conditions {
			c, err := decodeCondition(child, depth+1)
			if err != nil {
				return nil, err
			}
			g.Conditions = append(g.Conditions, c)
		}
		return g, nil
	}

	w := &Where{Key: node.Key, Op: Operator(node.Op)}
	if len(node.Val) > 0 {
		val, err := decodeValue(node.Val)
		if err != nil {
			return nil, tools.MalformedConditionErr(node.Key, err.Error())
		}
		w.Val = val
	}
	return w, nil
}

// decodeValue decodes a condition value, turning json.Number into int64 or
// float64 and rejecting objects.
func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeValue(v)
}

func normalizeValue(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %s", t)
		}
		return f, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			n, err := normalizeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		return nil, fmt.Errorf("objects are not valid condition values")
	default:
		return v, nil
	}
}
