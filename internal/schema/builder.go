package schema

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-openapi/inflect"

	"github.com/pfbio/pfbex/internal/domain"
)

// NormalizeNodeName converts a table name into its node type name. Camel and
// mixed case collapse to lower snake case, so distinct spellings of the same
// name surface as a duplicate instead of two node types.
func NormalizeNodeName(name string) string {
	return inflect.Underscore(strings.TrimSpace(name))
}

// DefaultedLink records a foreign key that carried no cardinality hint and
// was assigned the MANY_TO_ONE default. The default is a convention, not a
// verified property, so callers get the list for review.
type DefaultedLink struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Target string `json:"target"`
}

// NodeCounts summarizes the shape of one built node type.
type NodeCounts struct {
	Properties int `json:"properties"`
	Links      int `json:"links"`
}

// BuildReport describes what the builder derived: per-node shape counts and
// any foreign keys whose cardinality was defaulted.
type BuildReport struct {
	Nodes          map[string]NodeCounts `json:"nodes"`
	DefaultedLinks []DefaultedLink       `json:"defaulted_links,omitempty"`
}

// Builder derives a graph schema from relational table definitions. A
// builder is stateless across runs and safe to reuse.
type Builder struct {
	logger *log.Logger
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger the builder reports progress on.
func WithLogger(logger *log.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a schema builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	builder := &Builder{
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder
}

// Build derives the graph schema for the given tables: one node type per
// table plus the root and Metadata sentinels, with properties mapped through
// the type vocabulary and links derived from foreign keys. Errors are fatal;
// no partial schema is returned.
func (b *Builder) Build(tables []domain.TableDefinition) (domain.GraphSchema, *BuildReport, error) {
	names := make(map[string]string, len(tables))
	for _, table := range tables {
		name := NormalizeNodeName(table.Name)
		if name == "" {
			return domain.GraphSchema{}, nil, fmt.Errorf("table with empty name in input set")
		}
		if strings.EqualFold(name, domain.RootNodeName) || strings.EqualFold(name, domain.MetadataNodeName) {
			return domain.GraphSchema{}, nil, fmt.Errorf("table name %s collides with the reserved %s node type", table.Name, name)
		}
		if first, exists := names[name]; exists {
			return domain.GraphSchema{}, nil, domain.DuplicateNodeTypeError{
				Name:   name,
				Tables: []string{first, table.Name},
			}
		}
		names[name] = table.Name
	}

	report := &BuildReport{Nodes: make(map[string]NodeCounts, len(tables))}
	nodes := make([]domain.NodeType, 0, len(tables)+2)
	nodes = append(nodes,
		domain.NodeType{
			Name:       domain.RootNodeName,
			Values:     map[string]string{},
			Properties: []domain.PropertyDefinition{},
			Links:      []domain.LinkDefinition{},
		},
		domain.NodeType{
			Name:       domain.MetadataNodeName,
			Values:     map[string]string{},
			Properties: []domain.PropertyDefinition{},
			Links:      []domain.LinkDefinition{},
		},
	)

	for _, table := range tables {
		node, err := b.buildNode(table, names, report)
		if err != nil {
			return domain.GraphSchema{}, nil, err
		}
		nodes = append(nodes, node)
		report.Nodes[node.Name] = NodeCounts{
			Properties: len(node.Properties),
			Links:      len(node.Links),
		}
	}

	graph, err := domain.NewGraphSchema(nodes)
	if err != nil {
		return domain.GraphSchema{}, nil, err
	}

	b.logger.Info("graph schema built",
		"tables", len(tables),
		"nodes", graph.Len(),
		"defaulted_links", len(report.DefaultedLinks))
	return graph, report, nil
}

func (b *Builder) buildNode(table domain.TableDefinition, names map[string]string, report *BuildReport) (domain.NodeType, error) {
	name := NormalizeNodeName(table.Name)
	b.logger.Debug("building node type", "table", table.Name, "node", name)

	properties := make([]domain.PropertyDefinition, 0, len(table.Columns))
	for _, col := range table.PropertyColumns() {
		mapped, err := MapColumnType(col)
		if err != nil {
			return domain.NodeType{}, fmt.Errorf("table %s: %w", table.Name, err)
		}
		properties = append(properties, domain.PropertyDefinition{
			Name:              col.Name,
			OntologyReference: "",
			Type:              mapped,
			Nullable:          col.Nullable,
			Default:           col.Default,
			Doc:               col.Doc,
		})
	}

	links := make([]domain.LinkDefinition, 0, len(table.ForeignKeys)+1)
	for _, fk := range table.ForeignKeys {
		target := NormalizeNodeName(fk.TargetTable)
		if _, ok := names[target]; !ok {
			return domain.NodeType{}, domain.DanglingForeignKeyError{
				Table:  table.Name,
				Column: fk.Column,
				Target: fk.TargetTable,
			}
		}

		multiplicity := fk.Cardinality
		if multiplicity == "" {
			multiplicity = domain.ManyToOne
			report.DefaultedLinks = append(report.DefaultedLinks, DefaultedLink{
				Table:  name,
				Column: fk.Column,
				Target: target,
			})
			b.logger.Info("foreign key has no cardinality hint, defaulting to MANY_TO_ONE",
				"table", table.Name, "column", fk.Column, "target", fk.TargetTable)
		} else if !multiplicity.Valid() {
			return domain.NodeType{}, fmt.Errorf(
				"table %s: foreign key %s carries unknown cardinality %q",
				table.Name, fk.Column, multiplicity,
			)
		}

		required := false
		if col, ok := table.Column(fk.Column); ok {
			required = !col.Nullable
		}
		links = append(links, domain.LinkDefinition{
			Name:         fk.Column,
			Destination:  target,
			Multiplicity: multiplicity,
			Required:     required,
		})
	}

	// The root link always follows the foreign-key links.
	links = append(links, domain.LinkDefinition{
		Name:         domain.RootNodeName,
		Destination:  domain.RootNodeName,
		Multiplicity: domain.ManyToOne,
	})

	return domain.NodeType{
		Name:              name,
		OntologyReference: "",
		Values:            map[string]string{},
		Properties:        properties,
		Links:             links,
	}, nil
}
