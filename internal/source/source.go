package source

import (
	"context"
	"io"
	"sort"
)

// Row is one table row keyed by column name. Values carry whatever the
// provider decoded; coercion to schema types happens downstream.
type Row map[string]any

// Iterator produces a finite, single-pass sequence of rows. Next returns
// io.EOF once the sequence ends. Implementations own any blocking I/O, so
// callers never suspend outside Next.
type Iterator interface {
	Next(ctx context.Context) (Row, error)
	Close() error
}

// Provider hands out one row iterator per table. A table the provider has no
// data for yields an empty iterator, not an error.
type Provider interface {
	Rows(ctx context.Context, table string) (Iterator, error)
}

// Static serves rows held in memory, mainly for embedding callers and tests.
type Static struct {
	tables map[string][]Row
}

// NewStatic creates an empty in-memory provider.
func NewStatic() *Static {
	return &Static{tables: make(map[string][]Row)}
}

// Add appends rows for a table, preserving insertion order.
func (s *Static) Add(table string, rows ...Row) *Static {
	s.tables[table] = append(s.tables[table], rows...)
	return s
}

// Tables returns the table names with data, sorted.
func (s *Static) Tables() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rows returns an iterator over the stored rows for the table.
func (s *Static) Rows(_ context.Context, table string) (Iterator, error) {
	return &sliceIterator{rows: s.tables[table]}, nil
}

type sliceIterator struct {
	rows []Row
	next int
}

func (it *sliceIterator) Next(ctx context.Context) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.next >= len(it.rows) {
		return nil, io.EOF
	}
	row := it.rows[it.next]
	it.next++
	return row, nil
}

func (it *sliceIterator) Close() error {
	it.next = len(it.rows)
	return nil
}
