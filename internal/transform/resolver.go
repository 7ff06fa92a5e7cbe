package transform

import (
	"fmt"

	"github.com/pfbio/pfbex/internal/domain"
	"github.com/pfbio/pfbex/internal/schema"
	"github.com/pfbio/pfbex/internal/source"
)

// ResolveRelations derives the instance-level edges of one row from the
// foreign-key links of its node type. Resolution is pure: only the row and
// the schema participate, no lookups against other tables, so a null foreign
// key in a nullable column simply drops the edge. The root link is handled
// by the transformer and skipped here.
func ResolveRelations(row source.Row, table domain.TableDefinition, graph domain.GraphSchema) ([]domain.Relation, error) {
	node, ok := graph.Node(schema.NormalizeNodeName(table.Name))
	if !ok {
		return nil, fmt.Errorf("table %s has no node type in the schema", table.Name)
	}

	relations := make([]domain.Relation, 0, len(node.Links))
	for _, link := range node.Links {
		if link.Destination == domain.RootNodeName {
			continue
		}
		value := row[link.Name]
		if isNullValue(value) {
			if link.Required {
				return nil, domain.MissingRequiredLinkError{Table: table.Name, Column: link.Name}
			}
			continue
		}
		id, err := coerceString(value)
		if err != nil {
			return nil, domain.TypeCoercionError{
				Column: link.Name,
				Want:   domain.TypeString,
				Value:  value,
				Err:    err,
			}
		}
		relations = append(relations, domain.Relation{DstID: id, DstName: link.Destination})
	}
	return relations, nil
}
