package source

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
)

// PgxRows adapts an open pgx result set into a row iterator. The caller owns
// the connection and the query; this adapter only walks the rows, so no
// connecting, pooling, or SQL happens here. Like every iterator, the result
// set is consumed in a single pass.
type PgxRows struct {
	rows    pgx.Rows
	columns []string
}

// FromPgxRows wraps a result set the caller has already opened. Column names
// come from the result's field descriptions.
func FromPgxRows(rows pgx.Rows) *PgxRows {
	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, field := range fields {
		columns[i] = field.Name
	}
	return &PgxRows{rows: rows, columns: columns}
}

// Next advances the result set and maps the current row by column name.
func (p *PgxRows) Next(ctx context.Context) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.rows.Next() {
		if err := p.rows.Err(); err != nil {
			return nil, fmt.Errorf("reading result set: %w", err)
		}
		return nil, io.EOF
	}

	values, err := p.rows.Values()
	if err != nil {
		return nil, fmt.Errorf("decoding row values: %w", err)
	}

	row := make(Row, len(p.columns))
	for i, column := range p.columns {
		if i >= len(values) || values[i] == nil {
			continue
		}
		row[column] = values[i]
	}
	return row, nil
}

// Close releases the result set and surfaces any deferred read error.
func (p *PgxRows) Close() error {
	p.rows.Close()
	return p.rows.Err()
}
