package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DataDir serves rows from newline-delimited JSON files, one file per table
// at <dir>/<table>.ndjson. The first value in each file is the table name as
// a JSON string; every following value is one row object. A table without a
// file yields an empty iterator.
type DataDir struct {
	dir string
}

// NewDataDir creates a provider over the given directory.
func NewDataDir(dir string) *DataDir {
	return &DataDir{dir: filepath.Clean(dir)}
}

// Tables lists the table names that have an .ndjson file in the directory.
func (d *DataDir) Tables() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(d.dir, "*.ndjson"))
	if err != nil {
		return nil, fmt.Errorf("listing data files in %s: %w", d.dir, err)
	}
	tables := make([]string, 0, len(matches))
	for _, match := range matches {
		base := filepath.Base(match)
		tables = append(tables, base[:len(base)-len(".ndjson")])
	}
	return tables, nil
}

// Rows opens the table's data file and validates its header before any row
// is produced.
func (d *DataDir) Rows(_ context.Context, table string) (Iterator, error) {
	path := filepath.Join(d.dir, table+".ndjson")
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &sliceIterator{}, nil
		}
		return nil, fmt.Errorf("opening data file for table %s: %w", table, err)
	}

	decoder := json.NewDecoder(file)
	var header string
	if err := decoder.Decode(&header); err != nil {
		if errors.Is(err, io.EOF) {
			file.Close()
			return &sliceIterator{}, nil
		}
		file.Close()
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	if header != table {
		file.Close()
		return nil, fmt.Errorf("data file %s declares table %q, expected %q", path, header, table)
	}

	return &ndjsonIterator{path: path, file: file, decoder: decoder}, nil
}

type ndjsonIterator struct {
	path    string
	file    *os.File
	decoder *json.Decoder
	line    int
}

func (it *ndjsonIterator) Next(ctx context.Context) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var row Row
	if err := it.decoder.Decode(&row); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("decoding row %d of %s: %w", it.line+1, it.path, err)
	}
	it.line++
	return row, nil
}

func (it *ndjsonIterator) Close() error {
	return it.file.Close()
}
