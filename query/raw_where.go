package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

// The raw WHERE validator is a text scanner for a privileged escape hatch.
// It is not a parser: anything it cannot positively classify is rejected.

var blockedKeywords = map[string]bool{
	"DROP": true, "DELETE": true, "UPDATE": true, "INSERT": true,
	"EXEC": true, "EXECUTE": true, "UNION": true, "ALTER": true,
	"CREATE": true, "TRUNCATE": true, "MERGE": true, "GRANT": true,
	"REVOKE": true,
}

var allowedKeywords = map[string]bool{
	"AND": true, "OR": true, "NOT": true, "NULL": true, "IS": true,
	"IN": true, "LIKE": true, "BETWEEN": true, "TRUE": true, "FALSE": true,
}

var (
	blockedSequences = []string{";", "--", "/*", "*/", "?", `"`, "`", `\`}

	wordPattern       = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)?\b`)
	procPrefixPattern = regexp.MustCompile(`(?i)\b(?:xp|sp)_`)
	safeCharsPattern  = regexp.MustCompile(`^[A-Za-z0-9_\s.,()=<>!+\-]*$`)
	comparisonPattern = regexp.MustCompile(`(?i)\b([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)?)\s*(?:<>|!=|<=|>=|=|<|>|\bNOT\s+LIKE\b|\bLIKE\b|\bNOT\s+IN\b|\bIN\b|\bIS\b|\bNOT\s+BETWEEN\b|\bBETWEEN\b)`)
)

// ValidateRawWhere checks a raw WHERE fragment against a column whitelist.
// Column references may be bare or alias-qualified; qualified references
// must appear in allowedColumns in that form.
func ValidateRawWhere(text string, allowedColumns []string) error {
	if strings.TrimSpace(text) == "" {
		return tools.RawWhereRejectedErr("empty clause")
	}

	for _, seq := range blockedSequences {
		if strings.Contains(text, seq) {
			return tools.RawWhereRejectedErr(fmt.Sprintf("forbidden sequence %q", seq))
		}
	}
	if procPrefixPattern.MatchString(text) {
		return tools.RawWhereRejectedErr("stored procedure prefix")
	}
	// Keywords are blocked even inside string literals.
	for _, word := range wordPattern.FindAllString(text, -1) {
		if blockedKeywords[strings.ToUpper(word)] {
			return tools.RawWhereRejectedErr("blocked keyword " + strings.ToUpper(word))
		}
	}

	stripped, err := stripStringLiterals(text)
	if err != nil {
		return err
	}
	if !safeCharsPattern.MatchString(stripped) {
		return tools.RawWhereRejectedErr("unsupported characters")
	}
	if err := checkParens(stripped); err != nil {
		return err
	}

	allowed := make(map[string]bool, len(allowedColumns))
	for _, c := range allowedColumns {
		allowed[strings.ToLower(c)] = true
	}
	for _, word := range wordPattern.FindAllString(stripped, -1) {
		if allowedKeywords[strings.ToUpper(word)] {
			continue
		}
		if !allowed[strings.ToLower(word)] {
			return tools.RawWhereRejectedErr("column not allowed: " + word)
		}
	}

	for _, m := range comparisonPattern.FindAllStringSubmatch(stripped, -1) {
		if allowed[strings.ToLower(m[1])] {
			return nil
		}
	}
	return tools.RawWhereRejectedErr("no column comparison found")
}

// stripStringLiterals blanks out single-quoted literals ('' escapes a quote)
// so their contents are not mistaken for identifiers.
func stripStringLiterals(text string) (string, error) {
	var b strings.Builder
	b.Grow(len(text))
	inLiteral := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if !inLiteral {
			if ch == '\'' {
				inLiteral = true
				b.WriteString(" 0")
				continue
			}
			b.WriteByte(ch)
			continue
		}
		if ch == '\'' {
			if i+1 < len(text) && text[i+1] == '\'' {
				i++
				continue
			}
			inLiteral = false
			b.WriteByte(' ')
		}
	}
	if inLiteral {
		return "", tools.RawWhereRejectedErr("unterminated string literal")
	}
	return b.String(), nil
}

func checkParens(text string) error {
	depth := 0
	for _, r := range text {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return tools.RawWhereRejectedErr("unbalanced parentheses")
			}
		}
	}
	if depth != 0 {
		return tools.RawWhereRejectedErr("unbalanced parentheses")
	}
	return nil
}

// CompileRaw selects every column of an entity filtered by a validated raw
// WHERE fragment. It is meant for privileged callers only.
func CompileRaw(entity, rawWhere string, cfg *Config) (*Compiled, error) {
	base, ok := cfg.entities[entity]
	if !ok {
		return nil, tools.TableNotAllowedErr(entity)
	}

	allowedCols := base.RawWhereColumns
	if len(allowedCols) == 0 {
		allowedCols = base.Columns
	}
	whitelist := make([]string, 0, 2*len(allowedCols))
	for _, c := range allowedCols {
		whitelist = append(whitelist, c, base.Alias+"."+c)
	}
	if err := ValidateRawWhere(rawWhere, whitelist); err != nil {
		return nil, err
	}

	b := &builder{
		cfg:   cfg,
		base:  base,
		scope: []scopeEntry{{alias: base.Alias, info: base}},
	}
	columns, labels, err := b.selectColumns(nil)
	if err != nil {
		return nil, err
	}
	order, err := b.orderBy(nil)
	if err != nil {
		return nil, err
	}

	sb := b.statements().Select(columns...).
		From(base.Table + " " + base.Alias).
		Where(squirrel.Expr("(" + strings.TrimSpace(rawWhere) + ")"))
	if len(order) > 0 {
		sb = sb.OrderBy(order...)
	}
	sb = sb.Limit(uint64(cfg.limits.DefaultLimit))
	return b.finish(sb, labels, true)
}
