package daos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cast"

	"github.com/thomas-mindruptive/pure-svelte-sub003/query"
	"github.com/thomas-mindruptive/pure-svelte-sub003/tools"
)

// Row is one result row keyed by column label.
type Row map[string]any

// Query executes a compiled statement and returns its rows. An empty result
// is an empty slice, never nil.
func Query(ctx context.Context, exec Executor, c *query.Compiled) ([]Row, error) {
	var rows *sqlx.Rows
	err := retryOn(ctx, exec, func() error {
		var qerr error
		rows, qerr = exec.QueryxContext(ctx, c.SQL, c.Args...)
		return qerr
	})
	if err != nil {
		return nil, ReportDrift(Classify("query", err), c.SQL)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		row := Row{}
		if err := rows.MapScan(row); err != nil {
			return nil, Classify("scan", err)
		}
		normalizeRow(row)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, ReportDrift(Classify("query", err), c.SQL)
	}
	return out, nil
}

// Count executes a compiled COUNT statement and returns its single value.
func Count(ctx context.Context, exec Executor, c *query.Compiled) (int64, error) {
	var total int64
	err := retryOn(ctx, exec, func() error {
		return exec.QueryRowxContext(ctx, c.SQL, c.Args...).Scan(&total)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, ReportDrift(Classify("count", err), c.SQL)
	}
	return total, nil
}

// normalizeRow turns driver byte slices into strings so rows encode as JSON text.
func normalizeRow(row Row) {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = cast.ToString(b)
		}
	}
}

// ReportDrift logs failures caused by a column or table the entity descriptors
// or cascade plans list but the database lacks. Those are configuration bugs,
// not caller errors. The error is returned unchanged.
func ReportDrift(err error, stmt string) error {
	if KindOf(err) == tools.DBSchemaDrift {
		logger.Error("entity descriptors out of sync with database schema",
			tools.String("sql", stmt), tools.Error(err))
	}
	return err
}
