package query

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

// =============================================================================
// DecodePayload Tests
// =============================================================================

func TestDecodePayload(t *testing.T) {
	body := `{
		"select": ["name", "status"],
		"from": {"table": "users", "alias": "u"},
		"where": {
			"op": "AND",
			"conditions": [
				{"key": "status", "op": "=", "val": "active"},
				{"key": "wholesaler_id", "op": "IN", "val": [1, 2, 9007199254740993]},
				{"key": "region", "op": "LIKE", "val": "E%"},
				{"op": "OR", "conditions": [{"key": "region", "op": "IS NULL"}]}
			]
		},
		"orderBy": [{"key": "name", "direction": "desc"}],
		"limit": 25,
		"offset": 5
	}`

	p, err := DecodePayload(strings.NewReader(body))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "status"}, p.Select)
	require.NotNil(t, p.From)
	assert.Equal(t, "users", p.From.Table)
	assert.Equal(t, []Sort{{Key: "name", Direction: Desc}}, p.OrderBy)
	require.NotNil(t, p.Limit)
	assert.Equal(t, 25, *p.Limit)
	require.NotNil(t, p.Offset)
	assert.Equal(t, 5, *p.Offset)

	group, ok := p.Where.(*Group)
	require.True(t, ok, "where should decode to a group")
	assert.Equal(t, And, group.Op)
	require.Len(t, group.Conditions, 4)

	first, ok := group.Conditions[0].(*Where)
	require.True(t, ok)
	assert.Equal(t, &Where{Key: "status", Op: OpEquals, Val: "active"}, first)

	in, ok := group.Conditions[1].(*Where)
	require.True(t, ok)
	assert.Equal(t, []any{int64(1), int64(2), int64(9007199254740993)}, in.Val)

	nested, ok := group.Conditions[3].(*Group)
	require.True(t, ok)
	assert.Equal(t, Or, nested.Op)
	require.Len(t, nested.Conditions, 1)
	assert.Nil(t, nested.Conditions[0].(*Where).Val)
}

func TestDecodePayload_SingleCondition(t *testing.T) {
	p, err := DecodePayload(strings.NewReader(`{"select": [], "where": {"key": "price", "op": ">", "val": 1.5}}`))
	require.NoError(t, err)

	w, ok := p.Where.(*Where)
	require.True(t, ok)
	assert.Equal(t, 1.5, w.Val)
	assert.Nil(t, p.Limit)
}

func TestDecodePayload_NullMembers(t *testing.T) {
	p, err := DecodePayload(strings.NewReader(`{"select": ["name"], "where": null, "limit": null}`))
	require.NoError(t, err)
	assert.Nil(t, p.Where)
	assert.Nil(t, p.Limit)
}

func TestDecodePayload_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"not json", `{"select": [`, tools.ErrInvalidJSON},
		{"unknown member", `{"select": [], "table": "users"}`, tools.ErrInvalidJSON},
		{"select not array", `{"select": "name"}`, tools.ErrInvalidJSON},
		{"fractional limit", `{"limit": 2.5}`, tools.ErrInvalidPagination},
		{"string limit", `{"limit": "ten"}`, tools.ErrInvalidPagination},
		{"boolean offset", `{"offset": true}`, tools.ErrInvalidPagination},
		{"where array", `{"where": [{"key": "name"}]}`, tools.ErrMalformedCondition},
		{"object value", `{"where": {"key": "name", "op": "=", "val": {"$ne": 1}}}`, tools.ErrMalformedCondition},
		{"group with key", `{"where": {"key": "name", "op": "AND", "conditions": []}}`, tools.ErrMalformedCondition},
		{"unknown condition member", `{"where": {"key": "name", "op": "=", "value": 1}}`, tools.ErrMalformedCondition},
		{"nested bad condition", `{"where": {"op": "OR", "conditions": [{"key": "a", "op": "=", "val": {}}]}}`, tools.ErrMalformedCondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodePayload(strings.NewReader(tt.body))
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func nestedGroups(depth int) string {
	return `{"where": ` + strings.Repeat(`{"op": "AND", "conditions": [`, depth) +
		`{"key": "name", "op": "=", "val": "x"}` + strings.Repeat(`]}`, depth) + `}`
}

func TestDecodePayload_NestingCap(t *testing.T) {
	p, err := DecodePayload(strings.NewReader(nestedGroups(MaxDecodeDepth)))
	require.NoError(t, err)
	require.IsType(t, &Group{}, p.Where)

	start := time.Now()
	p, err = DecodePayload(strings.NewReader(nestedGroups(1000)))
	assert.Nil(t, p)
	assert.ErrorIs(t, err, tools.ErrMalformedCondition)
	assert.Contains(t, err.Error(), "maximum depth")
	assert.Less(t, time.Since(start), time.Second)

	_, err = DecodePayload(strings.NewReader(nestedGroups(MaxDecodeDepth + 1)))
	assert.ErrorIs(t, err, tools.ErrMalformedCondition)
}

func TestDecodePayload_CompileEmptyIn(t *testing.T) {
	cfg := testConfig(t, SQLite, Limits{})
	p, err := DecodePayload(strings.NewReader(`{"select": ["name"], "where": {"key": "status", "op": "IN", "val": []}}`))
	require.NoError(t, err)

	got, err := Compile(p, cfg, Target{Entity: "wholesaler"})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, tools.ErrEmptyInList)
}
