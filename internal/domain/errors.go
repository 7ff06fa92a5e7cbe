package domain

import (
	"errors"
	"fmt"
)

// Schema construction errors are fatal to the run: no partial schema is
// usable, so they unwind immediately to the caller.

// UnsupportedTypeError reports a column whose declared type has no mapping
// into the graph schema's type vocabulary.
type UnsupportedTypeError struct {
	Column     string
	SourceType ColumnType
}

func (e UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported column type %q on column %s", e.SourceType, e.Column)
}

// DuplicateNodeTypeError reports two tables normalizing to the same node
// type name.
type DuplicateNodeTypeError struct {
	Name   string
	Tables []string
}

func (e DuplicateNodeTypeError) Error() string {
	if len(e.Tables) > 0 {
		return fmt.Sprintf("duplicate node type %s derived from tables %v", e.Name, e.Tables)
	}
	return fmt.Sprintf("duplicate node type %s", e.Name)
}

// DanglingForeignKeyError reports a foreign key whose target table is not
// part of the input set.
type DanglingForeignKeyError struct {
	Table  string
	Column string
	Target string
}

func (e DanglingForeignKeyError) Error() string {
	return fmt.Sprintf(
		"foreign key %s.%s references table %s not present in the input set",
		e.Table, e.Column, e.Target,
	)
}

// RowError marks the recoverable per-row failures. The run skips and records
// the offending row instead of aborting. The taxonomy is closed: only the
// three row error types below implement it.
type RowError interface {
	error
	rowError()
}

// IsRowError reports whether err is, or wraps, a recoverable row error.
func IsRowError(err error) bool {
	var re RowError
	return errors.As(err, &re)
}

// MissingPrimaryKeyError reports a row with an absent or null primary-key
// value. Such a row cannot become an addressable entity.
type MissingPrimaryKeyError struct {
	Table  string
	Column string
}

func (e MissingPrimaryKeyError) Error() string {
	return fmt.Sprintf("row in table %s has no value for primary key %s", e.Table, e.Column)
}

func (MissingPrimaryKeyError) rowError() {}

// MissingRequiredLinkError reports a null value in a non-nullable foreign
// key column.
type MissingRequiredLinkError struct {
	Table  string
	Column string
}

func (e MissingRequiredLinkError) Error() string {
	return fmt.Sprintf("row in table %s has no value for required link column %s", e.Table, e.Column)
}

func (MissingRequiredLinkError) rowError() {}

// TypeCoercionError reports a row value that could not be coerced to its
// property's declared schema type.
type TypeCoercionError struct {
	Column string
	Want   SchemaTypeKind
	Value  any
	Err    error
}

func (e TypeCoercionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("column %s: cannot coerce %v to %s: %v", e.Column, e.Value, e.Want, e.Err)
	}
	return fmt.Sprintf("column %s: cannot coerce %v to %s", e.Column, e.Value, e.Want)
}

func (e TypeCoercionError) Unwrap() error { return e.Err }

func (TypeCoercionError) rowError() {}

// FailureKind names one class of recoverable row failure in failure records
// and summaries.
type FailureKind string

const (
	FailureMissingPrimaryKey   FailureKind = "missing_primary_key"
	FailureMissingRequiredLink FailureKind = "missing_required_link"
	FailureTypeCoercion        FailureKind = "type_coercion"
	FailureValidation          FailureKind = "validation"
)

// ClassifyFailure maps a row error to its failure kind. Validation failures
// are classified by the caller, not through an error type.
func ClassifyFailure(err error) FailureKind {
	var (
		pkErr     MissingPrimaryKeyError
		linkErr   MissingRequiredLinkError
		coerceErr TypeCoercionError
	)
	switch {
	case errors.As(err, &pkErr):
		return FailureMissingPrimaryKey
	case errors.As(err, &linkErr):
		return FailureMissingRequiredLink
	case errors.As(err, &coerceErr):
		return FailureTypeCoercion
	default:
		return FailureValidation
	}
}
