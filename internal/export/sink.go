package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pfbio/pfbex/internal/domain"
	"github.com/pfbio/pfbex/internal/schema"
)

// Sink receives the rendered schema document and the entity stream. The
// service serializes every call, so implementations need no locking of
// their own.
type Sink interface {
	WriteSchema(doc schema.Document) error
	WriteEntity(entity domain.Entity) error
	Close() error
}

// JSONSink writes the schema document as indented JSON to one writer and
// the entity stream as NDJSON lines to another. Close closes whichever of
// the writers are closers.
type JSONSink struct {
	schema   io.Writer
	entities io.Writer
}

// NewJSONSink creates a sink over the two output writers.
func NewJSONSink(schemaWriter, entityWriter io.Writer) *JSONSink {
	return &JSONSink{schema: schemaWriter, entities: entityWriter}
}

func (s *JSONSink) WriteSchema(doc schema.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding schema document: %w", err)
	}
	data = append(data, '\n')
	if _, err := s.schema.Write(data); err != nil {
		return fmt.Errorf("writing schema document: %w", err)
	}
	return nil
}

func (s *JSONSink) WriteEntity(entity domain.Entity) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encoding entity: %w", err)
	}
	data = append(data, '\n')
	if _, err := s.entities.Write(data); err != nil {
		return fmt.Errorf("writing entity: %w", err)
	}
	return nil
}

func (s *JSONSink) Close() error {
	var firstErr error
	if closer, ok := s.schema.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			firstErr = err
		}
	}
	if s.entities == s.schema {
		return firstErr
	}
	if closer, ok := s.entities.(io.Closer); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DiscardSink drops everything it receives. It backs dry runs and tests
// that only care about the summary.
type DiscardSink struct{}

func (DiscardSink) WriteSchema(schema.Document) error { return nil }
func (DiscardSink) WriteEntity(domain.Entity) error   { return nil }
func (DiscardSink) Close() error                      { return nil }
