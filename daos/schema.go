package daos

import (
	"context"
	"fmt"
	"strings"

	"github.com/thomas-mindruptive/pure-svelte-sub003/query"
)

// Table is a table as the database reports it.
type Table struct {
	Name    string
	Columns map[string]string // column name -> declared type
}

const sqliteColumnsQuery = `
	SELECT m.name, l.name AS col, l.type AS col_type
	FROM sqlite_master m
	JOIN pragma_table_info(m.name) l
	WHERE m.type = 'table'
	ORDER BY m.name ASC, col ASC`

const postgresColumnsQuery = `
	SELECT table_name, column_name, data_type
	FROM information_schema.columns
	WHERE table_schema = current_schema()
	ORDER BY table_name ASC, column_name ASC`

// SchemaTables reads table and column names from the database catalog.
func (dao *Database) SchemaTables(ctx context.Context) (map[string]Table, error) {
	stmt := sqliteColumnsQuery
	if dao.Dialect == query.Postgres {
		stmt = postgresColumnsQuery
	}

	rows, err := dao.Client.QueryContext(ctx, stmt)
	if err != nil {
		return nil, Classify("read schema", err)
	}
	defer rows.Close()

	tables := map[string]Table{}
	for rows.Next() {
		var name, col, colType string
		if err := rows.Scan(&name, &col, &colType); err != nil {
			return nil, Classify("read schema", err)
		}
		tbl, ok := tables[name]
		if !ok {
			tbl = Table{Name: name, Columns: map[string]string{}}
			tables[name] = tbl
		}
		tbl.Columns[col] = colType
	}
	return tables, Classify("read schema", rows.Err())
}

// VerifySchema checks that every table and column the entity descriptors
// whitelist exists in the database. Missing ones are listed in the error.
func (dao *Database) VerifySchema(ctx context.Context, entities []query.Entity) error {
	tables, err := dao.SchemaTables(ctx)
	if err != nil {
		return err
	}

	var missing []string
	for _, e := range entities {
		tbl, ok := tables[e.Table]
		if !ok {
			missing = append(missing, e.Table)
			continue
		}
		for _, col := range e.Columns {
			if _, ok := tbl.Columns[col]; !ok {
				missing = append(missing, e.Table+"."+col)
			}
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrSchemaDrift, strings.Join(missing, ", "))
	}
	return nil
}
