package model

import (
	"fmt"

	"github.com/pfbio/pfbex/internal/domain"
)

// Validate checks the structural integrity of a loaded model before any
// schema is built: tables are well formed, composite column types carry
// their parameters, and every foreign key resolves inside the set. The
// first problem found is returned.
func Validate(tables []domain.TableDefinition) error {
	byName := make(map[string]domain.TableDefinition, len(tables))
	for _, table := range tables {
		if table.Name == "" {
			return fmt.Errorf("model declares a table without a name")
		}
		if _, ok := byName[table.Name]; ok {
			return fmt.Errorf("table %s is defined more than once", table.Name)
		}
		byName[table.Name] = table
	}

	for _, table := range tables {
		if len(table.Columns) == 0 {
			return fmt.Errorf("table %s declares no columns", table.Name)
		}
		if _, ok := table.PrimaryKey(); !ok {
			return fmt.Errorf("table %s declares no primary key column", table.Name)
		}

		columns := make(map[string]struct{}, len(table.Columns))
		for _, col := range table.Columns {
			if col.Name == "" {
				return fmt.Errorf("table %s declares a column without a name", table.Name)
			}
			if _, ok := columns[col.Name]; ok {
				return fmt.Errorf("column %s.%s is defined more than once", table.Name, col.Name)
			}
			columns[col.Name] = struct{}{}

			if col.Type == domain.ColumnTypeEnum && len(col.EnumValues) == 0 {
				return fmt.Errorf("enum column %s.%s declares no values", table.Name, col.Name)
			}
			if col.Type == domain.ColumnTypeArray && col.Element == "" {
				return fmt.Errorf("array column %s.%s declares no element type", table.Name, col.Name)
			}
		}

		for _, fk := range table.ForeignKeys {
			if _, ok := table.Column(fk.Column); !ok {
				return fmt.Errorf("foreign key on %s references unknown local column %s", table.Name, fk.Column)
			}
			target, ok := byName[fk.TargetTable]
			if !ok {
				return fmt.Errorf("foreign key %s.%s references unknown table %s", table.Name, fk.Column, fk.TargetTable)
			}
			if _, ok := target.Column(fk.TargetColumn); !ok {
				return fmt.Errorf(
					"foreign key %s.%s references unknown column %s.%s",
					table.Name, fk.Column, fk.TargetTable, fk.TargetColumn,
				)
			}
			if fk.Cardinality != "" && !fk.Cardinality.Valid() {
				return fmt.Errorf("foreign key %s.%s declares invalid cardinality %q", table.Name, fk.Column, fk.Cardinality)
			}
		}
	}
	return nil
}
