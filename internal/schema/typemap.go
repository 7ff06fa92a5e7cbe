package schema

import (
	"github.com/pfbio/pfbex/internal/domain"
)

// LogicalTypeUUID annotates string properties whose source column held
// database UUIDs.
const LogicalTypeUUID = "uuid"

// primitiveKinds maps the scalar relational column types to their schema
// type kind. Composite column types (array, enum, json) are handled
// separately in MapColumnType.
var primitiveKinds = map[domain.ColumnType]domain.SchemaTypeKind{
	domain.ColumnTypeText:       domain.TypeString,
	domain.ColumnTypeString:     domain.TypeString,
	domain.ColumnTypeVarchar:    domain.TypeString,
	domain.ColumnTypeUUID:       domain.TypeString,
	domain.ColumnTypeDateTime:   domain.TypeString,
	domain.ColumnTypeDate:       domain.TypeString,
	domain.ColumnTypeBoolean:    domain.TypeBoolean,
	domain.ColumnTypeInteger:    domain.TypeInt,
	domain.ColumnTypeSmallInt:   domain.TypeInt,
	domain.ColumnTypeBigInteger: domain.TypeLong,
	domain.ColumnTypeFloat:      domain.TypeFloat,
	domain.ColumnTypeDouble:     domain.TypeDouble,
	domain.ColumnTypeNumeric:    domain.TypeDouble,
}

// logicalTypes maps column types to the logical annotation their schema type
// carries. Datetime columns stay plain strings: values travel as ISO-8601
// text and reconstructing consumers parse them, so no annotation is emitted.
var logicalTypes = map[domain.ColumnType]string{
	domain.ColumnTypeUUID: LogicalTypeUUID,
}

// MapColumnType maps one relational column to its graph schema type. The
// mapping is deterministic: the same column type always yields the same
// schema type. Columns whose type has no mapping fail with
// UnsupportedTypeError, which is fatal to schema construction.
func MapColumnType(col domain.ColumnDefinition) (domain.SchemaType, error) {
	switch col.Type {
	case domain.ColumnTypeArray:
		items, ok := primitiveKinds[col.Element]
		if !ok {
			return domain.SchemaType{}, domain.UnsupportedTypeError{
				Column:     col.Name,
				SourceType: col.Element,
			}
		}
		return domain.SchemaType{Kind: domain.TypeArray, Items: items}, nil

	case domain.ColumnTypeEnum:
		if len(col.EnumValues) == 0 {
			return domain.SchemaType{}, domain.UnsupportedTypeError{
				Column:     col.Name,
				SourceType: col.Type,
			}
		}
		symbols := make([]string, len(col.EnumValues))
		copy(symbols, col.EnumValues)
		return domain.SchemaType{Kind: domain.TypeEnum, Symbols: symbols}, nil

	case domain.ColumnTypeJSON, domain.ColumnTypeJSONB:
		return domain.SchemaType{Kind: domain.TypeMap, Items: domain.TypeString}, nil
	}

	kind, ok := primitiveKinds[col.Type]
	if !ok {
		return domain.SchemaType{}, domain.UnsupportedTypeError{
			Column:     col.Name,
			SourceType: col.Type,
		}
	}
	return domain.SchemaType{Kind: kind, LogicalType: logicalTypes[col.Type]}, nil
}
