package domain

// ColumnType represents the semantic type of a relational column as declared
// by the table definitions handed to the engine. The set mirrors the column
// types the upstream model declarations can express; anything outside it is
// rejected by the type mapper.
type ColumnType string

const (
	ColumnTypeText       ColumnType = "text"
	ColumnTypeString     ColumnType = "string"
	ColumnTypeVarchar    ColumnType = "varchar"
	ColumnTypeUUID       ColumnType = "uuid"
	ColumnTypeDateTime   ColumnType = "datetime"
	ColumnTypeDate       ColumnType = "date"
	ColumnTypeBoolean    ColumnType = "boolean"
	ColumnTypeInteger    ColumnType = "integer"
	ColumnTypeSmallInt   ColumnType = "smallint"
	ColumnTypeBigInteger ColumnType = "biginteger"
	ColumnTypeFloat      ColumnType = "float"
	ColumnTypeDouble     ColumnType = "double"
	ColumnTypeNumeric    ColumnType = "numeric"
	ColumnTypeJSON       ColumnType = "json"
	ColumnTypeJSONB      ColumnType = "jsonb"
	ColumnTypeArray      ColumnType = "array"
	ColumnTypeEnum       ColumnType = "enum"
)

// ColumnDefinition describes one column of a relational table. Array columns
// carry their element type in Element; enum columns carry their legal symbols
// in EnumValues.
type ColumnDefinition struct {
	Name       string     `json:"name" yaml:"name"`
	Type       ColumnType `json:"type" yaml:"type"`
	Element    ColumnType `json:"element,omitempty" yaml:"element,omitempty"`
	EnumValues []string   `json:"enum_values,omitempty" yaml:"enum_values,omitempty"`
	Nullable   bool       `json:"nullable" yaml:"nullable"`
	Default    any        `json:"default,omitempty" yaml:"default,omitempty"`
	Doc        string     `json:"doc,omitempty" yaml:"doc,omitempty"`
	PrimaryKey bool       `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
}

// Required reports whether a value must be present for this column: not
// nullable and no declared default.
func (c ColumnDefinition) Required() bool {
	return !c.Nullable && c.Default == nil
}

// ForeignKeyDefinition describes one foreign key of a relational table.
// Cardinality is an optional hint; when empty the schema builder applies the
// MANY_TO_ONE default and flags the key for review.
type ForeignKeyDefinition struct {
	Name         string       `json:"name,omitempty" yaml:"name,omitempty"`
	Column       string       `json:"column" yaml:"column"`
	TargetTable  string       `json:"target_table" yaml:"target_table"`
	TargetColumn string       `json:"target_column" yaml:"target_column"`
	Cardinality  Multiplicity `json:"cardinality,omitempty" yaml:"cardinality,omitempty"`
}

// TableDefinition is the read-only description of one relational table:
// ordered columns plus the foreign keys pointing at other tables. Instances
// are supplied once per export run and never mutated by the engine.
type TableDefinition struct {
	Name        string                 `json:"name" yaml:"name"`
	Columns     []ColumnDefinition     `json:"columns" yaml:"columns"`
	ForeignKeys []ForeignKeyDefinition `json:"foreign_keys,omitempty" yaml:"foreign_keys,omitempty"`
}

// PrimaryKey returns the first column flagged as primary key and whether one
// exists. Composite keys collapse to their first declared column.
func (t TableDefinition) PrimaryKey() (ColumnDefinition, bool) {
	for _, col := range t.Columns {
		if col.PrimaryKey {
			return col, true
		}
	}
	return ColumnDefinition{}, false
}

// Column returns the column definition with the given name.
func (t TableDefinition) Column(name string) (ColumnDefinition, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnDefinition{}, false
}

// ForeignKeyFor returns the foreign key declared on the given local column.
func (t TableDefinition) ForeignKeyFor(column string) (ForeignKeyDefinition, bool) {
	for _, fk := range t.ForeignKeys {
		if fk.Column == column {
			return fk, true
		}
	}
	return ForeignKeyDefinition{}, false
}

// IsForeignKeyColumn reports whether the named column participates in any
// foreign key of the table.
func (t TableDefinition) IsForeignKeyColumn(name string) bool {
	_, ok := t.ForeignKeyFor(name)
	return ok
}

// PropertyColumns returns the columns that surface as node properties:
// everything except the primary key and foreign key columns, in declaration
// order. The primary key travels as the entity id and foreign keys travel as
// relations, so neither is repeated in the property payload.
func (t TableDefinition) PropertyColumns() []ColumnDefinition {
	props := make([]ColumnDefinition, 0, len(t.Columns))
	for _, col := range t.Columns {
		if col.PrimaryKey || t.IsForeignKeyColumn(col.Name) {
			continue
		}
		props = append(props, col)
	}
	return props
}
