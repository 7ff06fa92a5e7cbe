package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Tabular serves rows from delimited files, one file per table at
// <dir>/<table>.csv or <dir>/<table>.xlsx. The first row of each file names
// the columns; cells are produced as strings and empty cells are treated as
// null. Files are read row by row, never whole.
type Tabular struct {
	dir string
}

// NewTabular creates a provider over the given directory.
func NewTabular(dir string) *Tabular {
	return &Tabular{dir: filepath.Clean(dir)}
}

// Rows opens the table's file, preferring CSV when both formats exist.
func (t *Tabular) Rows(_ context.Context, table string) (Iterator, error) {
	csvPath := filepath.Join(t.dir, table+".csv")
	if _, err := os.Stat(csvPath); err == nil {
		return newCSVIterator(csvPath)
	}

	xlsxPath := filepath.Join(t.dir, table+".xlsx")
	if _, err := os.Stat(xlsxPath); err == nil {
		return newXLSXIterator(xlsxPath)
	}

	return &sliceIterator{}, nil
}

type csvIterator struct {
	path    string
	file    *os.File
	reader  *csv.Reader
	headers []string
	line    int
}

func newCSVIterator(path string) (Iterator, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	buffered := bufio.NewReader(file)
	if prefix, err := buffered.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = buffered.Discard(len(byteOrderMark))
	}

	reader := csv.NewReader(buffered)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		file.Close()
		if errors.Is(err, io.EOF) {
			return &sliceIterator{}, nil
		}
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}

	return &csvIterator{
		path:    path,
		file:    file,
		reader:  reader,
		headers: sanitizeHeaders(header),
	}, nil
}

func (it *csvIterator) Next(ctx context.Context) (Row, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := it.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("reading row %d of %s: %w", it.line+2, it.path, err)
		}
		it.line++
		if row := cellsToRow(it.headers, record); len(row) > 0 {
			return row, nil
		}
	}
}

func (it *csvIterator) Close() error {
	return it.file.Close()
}

type xlsxIterator struct {
	path    string
	book    *excelize.File
	rows    *excelize.Rows
	headers []string
	line    int
}

func newXLSXIterator(path string) (Iterator, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		book.Close()
		return nil, fmt.Errorf("%s has no sheets", path)
	}

	rows, err := book.Rows(sheets[0])
	if err != nil {
		book.Close()
		return nil, fmt.Errorf("reading rows of %s: %w", path, err)
	}

	if !rows.Next() {
		err := rows.Error()
		rows.Close()
		book.Close()
		if err != nil {
			return nil, fmt.Errorf("reading header of %s: %w", path, err)
		}
		return &sliceIterator{}, nil
	}
	header, err := rows.Columns()
	if err != nil {
		rows.Close()
		book.Close()
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}

	return &xlsxIterator{
		path:    path,
		book:    book,
		rows:    rows,
		headers: sanitizeHeaders(header),
	}, nil
}

func (it *xlsxIterator) Next(ctx context.Context) (Row, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !it.rows.Next() {
			if err := it.rows.Error(); err != nil {
				return nil, fmt.Errorf("reading rows of %s: %w", it.path, err)
			}
			return nil, io.EOF
		}
		record, err := it.rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("reading row %d of %s: %w", it.line+2, it.path, err)
		}
		it.line++
		if row := cellsToRow(it.headers, record); len(row) > 0 {
			return row, nil
		}
	}
}

func (it *xlsxIterator) Close() error {
	err := it.rows.Close()
	if closeErr := it.book.Close(); err == nil {
		err = closeErr
	}
	return err
}

// cellsToRow pairs cells with their headers, dropping empty cells so they
// surface as null values downstream. A fully empty record yields an empty
// row, which iterators skip.
func cellsToRow(headers []string, record []string) Row {
	row := make(Row, len(headers))
	for i, cell := range record {
		if i >= len(headers) {
			break
		}
		value := strings.TrimSpace(cell)
		if value == "" {
			continue
		}
		row[headers[i]] = value
	}
	return row
}

// sanitizeHeaders normalizes raw header labels into column names: spaces,
// dots and dashes become underscores, blanks get positional names, and
// duplicates get numeric suffixes.
func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}
