package query

import (
	"fmt"
	"strings"

	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

// orderBy renders the caller's sorts followed by the configured default
// order. A default column already covered by the caller is skipped; the
// caller naming the same column twice is an error.
func (b *builder) orderBy(sorts []Sort) ([]string, error) {
	defaults := b.base.DefaultOrder
	if b.named != nil && len(b.named.DefaultOrder) > 0 {
		defaults = b.named.DefaultOrder
	}

	clauses := make([]string, 0, len(sorts)+len(defaults))
	covered := make(map[string]bool, len(sorts)+len(defaults))

	for _, s := range sorts {
		column, _, _, err := b.resolveColumn(s.Key)
		if err != nil {
			return nil, err
		}
		if covered[column] {
			return nil, fmt.Errorf("%w: %s", tools.ErrDuplicateSortColumn, column)
		}
		dir, err := parseDirection(s)
		if err != nil {
			return nil, err
		}
		covered[column] = true
		clauses = append(clauses, column+" "+dir)
	}

	for _, s := range defaults {
		column, _, _, err := b.resolveColumn(s.Key)
		if err != nil {
			return nil, fmt.Errorf("default order for %s: %w", b.base.Name, err)
		}
		if covered[column] {
			continue
		}
		dir, err := parseDirection(s)
		if err != nil {
			return nil, err
		}
		covered[column] = true
		clauses = append(clauses, column+" "+dir)
	}
	return clauses, nil
}

func parseDirection(s Sort) (string, error) {
	switch strings.ToLower(strings.TrimSpace(string(s.Direction))) {
	case "", string(Asc):
		return "ASC", nil
	case string(Desc):
		return "DESC", nil
	default:
		return "", tools.MalformedConditionErr(s.Key, fmt.Sprintf("invalid sort direction %q", s.Direction))
	}
}
