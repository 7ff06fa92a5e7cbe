package transform

import (
	"fmt"

	"github.com/pfbio/pfbex/internal/domain"
	"github.com/pfbio/pfbex/internal/schema"
	"github.com/pfbio/pfbex/internal/source"
)

// DefaultRootSentinel is the id the root relation of every entity points at
// unless the caller overrides it.
const DefaultRootSentinel = "root"

// Transformer turns source rows into graph entities for one schema. It holds
// no per-row state, so a single instance serves concurrent tables.
type Transformer struct {
	graph        domain.GraphSchema
	rootSentinel string
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithRootSentinel overrides the destination id of the root relation that
// every row entity carries.
func WithRootSentinel(id string) Option {
	return func(t *Transformer) {
		if id != "" {
			t.rootSentinel = id
		}
	}
}

// NewTransformer creates a transformer over a built graph schema.
func NewTransformer(graph domain.GraphSchema, opts ...Option) *Transformer {
	t := &Transformer{graph: graph, rootSentinel: DefaultRootSentinel}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MetadataEntity returns the schema-describing entity that precedes every
// row entity in the output stream. Its id is null and it never carries
// relations.
func (t *Transformer) MetadataEntity() domain.Entity {
	return domain.NewMetadataEntity(t.graph.TableNodes())
}

// TransformRow converts one source row into its entity. Failures that
// implement RowError mean the row should be skipped and recorded; any other
// error is fatal to the table.
func (t *Transformer) TransformRow(table domain.TableDefinition, row source.Row) (domain.Entity, error) {
	nodeName := schema.NormalizeNodeName(table.Name)
	node, ok := t.graph.Node(nodeName)
	if !ok {
		return domain.Entity{}, fmt.Errorf("table %s has no node type in the schema", table.Name)
	}

	pk, ok := table.PrimaryKey()
	if !ok {
		return domain.Entity{}, fmt.Errorf("table %s declares no primary key", table.Name)
	}
	idValue := row[pk.Name]
	if isNullValue(idValue) {
		return domain.Entity{}, domain.MissingPrimaryKeyError{Table: table.Name, Column: pk.Name}
	}
	id, err := coerceString(idValue)
	if err != nil {
		return domain.Entity{}, domain.TypeCoercionError{
			Column: pk.Name,
			Want:   domain.TypeString,
			Value:  idValue,
			Err:    err,
		}
	}

	object := make(domain.RowObject, len(node.Properties))
	for _, prop := range node.Properties {
		value, present := row[prop.Name]
		if !present {
			continue
		}
		if value == nil {
			object[prop.Name] = nil
			continue
		}
		coerced, err := coerceValue(prop.Type, value)
		if err != nil {
			return domain.Entity{}, domain.TypeCoercionError{
				Column: prop.Name,
				Want:   prop.Type.Kind,
				Value:  value,
				Err:    err,
			}
		}
		object[prop.Name] = coerced
	}

	relations, err := ResolveRelations(row, table, t.graph)
	if err != nil {
		return domain.Entity{}, err
	}
	relations = append(relations, domain.Relation{DstID: t.rootSentinel, DstName: domain.RootNodeName})

	return domain.NewRowEntity(id, nodeName, object, relations), nil
}
