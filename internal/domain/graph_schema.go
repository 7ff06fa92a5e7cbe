package domain

import (
	"encoding/json"
	"fmt"
)

// Names of the two node types injected into every graph schema. Root anchors
// all first-class nodes so exports from different sources can be merged;
// Metadata carries the denormalized schema description.
const (
	RootNodeName     = "root"
	MetadataNodeName = "Metadata"
)

// Multiplicity tags the cardinality of a link between two node types.
type Multiplicity string

const (
	OneToOne   Multiplicity = "ONE_TO_ONE"
	OneToMany  Multiplicity = "ONE_TO_MANY"
	ManyToOne  Multiplicity = "MANY_TO_ONE"
	ManyToMany Multiplicity = "MANY_TO_MANY"
)

// Multiplicities returns the legal multiplicity symbols in declaration order.
func Multiplicities() []Multiplicity {
	return []Multiplicity{OneToOne, OneToMany, ManyToOne, ManyToMany}
}

// Valid reports whether m is one of the four declared symbols.
func (m Multiplicity) Valid() bool {
	switch m {
	case OneToOne, OneToMany, ManyToOne, ManyToMany:
		return true
	}
	return false
}

// SchemaTypeKind is one of the primitive or composite type names of the
// graph schema's type vocabulary. Primitive names follow the Avro spelling so
// rendered documents need no further translation.
type SchemaTypeKind string

const (
	TypeString  SchemaTypeKind = "string"
	TypeBoolean SchemaTypeKind = "boolean"
	TypeInt     SchemaTypeKind = "int"
	TypeLong    SchemaTypeKind = "long"
	TypeFloat   SchemaTypeKind = "float"
	TypeDouble  SchemaTypeKind = "double"
	TypeNull    SchemaTypeKind = "null"
	TypeArray   SchemaTypeKind = "array"
	TypeMap     SchemaTypeKind = "map"
	TypeEnum    SchemaTypeKind = "enum"
)

// SchemaType is the mapped type of one property. Composite kinds carry their
// parameters: arrays and maps an item kind, enums their symbols. LogicalType
// annotates primitives that carry a refined interpretation (uuid).
type SchemaType struct {
	Kind        SchemaTypeKind `json:"kind"`
	Items       SchemaTypeKind `json:"items,omitempty"`
	Symbols     []string       `json:"symbols,omitempty"`
	LogicalType string         `json:"logical_type,omitempty"`
}

// Primitive reports whether the type is one of the scalar kinds.
func (st SchemaType) Primitive() bool {
	switch st.Kind {
	case TypeString, TypeBoolean, TypeInt, TypeLong, TypeFloat, TypeDouble, TypeNull:
		return true
	}
	return false
}

func (st SchemaType) String() string {
	switch st.Kind {
	case TypeArray, TypeMap:
		return fmt.Sprintf("%s<%s>", st.Kind, st.Items)
	case TypeEnum:
		return fmt.Sprintf("enum%v", st.Symbols)
	default:
		return string(st.Kind)
	}
}

// PropertyDefinition describes one property of a node type. Nullable and
// Default mirror the source column so required-ness survives into validation
// and document rendering.
type PropertyDefinition struct {
	Name              string     `json:"name"`
	OntologyReference string     `json:"ontology_reference"`
	Type              SchemaType `json:"type"`
	Nullable          bool       `json:"nullable,omitempty"`
	Default           any        `json:"default,omitempty"`
	Doc               string     `json:"doc,omitempty"`
}

// Required reports whether entities of this node type must carry the
// property: not nullable and no declared default.
func (p PropertyDefinition) Required() bool {
	return !p.Nullable && p.Default == nil
}

// LinkDefinition describes one typed edge from the owning node type to a
// destination node type. Required marks links derived from non-nullable
// foreign keys.
type LinkDefinition struct {
	Name         string       `json:"name"`
	Destination  string       `json:"dst"`
	Multiplicity Multiplicity `json:"multiplicity"`
	Required     bool         `json:"required,omitempty"`
}

// NodeType is the schema-level description of one node: its properties and
// the links leaving it. Values is an open annotation map reserved for
// ontology tooling and defaults to empty.
type NodeType struct {
	Name              string               `json:"name"`
	OntologyReference string               `json:"ontology_reference"`
	Values            map[string]string    `json:"values"`
	Properties        []PropertyDefinition `json:"properties"`
	Links             []LinkDefinition     `json:"links"`
}

// Property returns the named property definition.
func (n NodeType) Property(name string) (PropertyDefinition, bool) {
	for _, prop := range n.Properties {
		if prop.Name == name {
			return prop, true
		}
	}
	return PropertyDefinition{}, false
}

// Link returns the named link definition.
func (n NodeType) Link(name string) (LinkDefinition, bool) {
	for _, link := range n.Links {
		if link.Name == name {
			return link, true
		}
	}
	return LinkDefinition{}, false
}

// LinksTo reports whether the node declares any link whose destination is
// the given node type name.
func (n NodeType) LinksTo(destination string) bool {
	for _, link := range n.Links {
		if link.Destination == destination {
			return true
		}
	}
	return false
}

// GraphSchema is the immutable set of node types built once per export run.
// Node order is preserved from construction: root, Metadata, then one node
// per table in input order.
type GraphSchema struct {
	nodes []NodeType
	index map[string]int
}

// NewGraphSchema constructs a schema from the given nodes, enforcing the two
// structural invariants: node names are unique, and every link destination
// names a node present in the same schema.
func NewGraphSchema(nodes []NodeType) (GraphSchema, error) {
	index := make(map[string]int, len(nodes))
	for i, node := range nodes {
		if _, exists := index[node.Name]; exists {
			return GraphSchema{}, DuplicateNodeTypeError{Name: node.Name}
		}
		index[node.Name] = i
	}
	for _, node := range nodes {
		for _, link := range node.Links {
			if _, ok := index[link.Destination]; !ok {
				return GraphSchema{}, fmt.Errorf(
					"node %s: link %s targets undeclared node type %s",
					node.Name, link.Name, link.Destination,
				)
			}
		}
	}
	return GraphSchema{nodes: copyNodes(nodes), index: index}, nil
}

// Nodes returns the node types in schema order as a defensive copy.
func (gs GraphSchema) Nodes() []NodeType {
	return copyNodes(gs.nodes)
}

// TableNodes returns the node types derived from tables, excluding the root
// and Metadata sentinels, in schema order.
func (gs GraphSchema) TableNodes() []NodeType {
	nodes := make([]NodeType, 0, len(gs.nodes))
	for _, node := range gs.nodes {
		if node.Name == RootNodeName || node.Name == MetadataNodeName {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// Node returns the named node type.
func (gs GraphSchema) Node(name string) (NodeType, bool) {
	i, ok := gs.index[name]
	if !ok {
		return NodeType{}, false
	}
	return gs.nodes[i], true
}

// HasNode reports whether the schema declares the named node type.
func (gs GraphSchema) HasNode(name string) bool {
	_, ok := gs.index[name]
	return ok
}

// Len returns the number of node types, sentinels included.
func (gs GraphSchema) Len() int {
	return len(gs.nodes)
}

// MarshalJSON renders the schema as its ordered node list.
func (gs GraphSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(gs.nodes)
}

func copyNodes(nodes []NodeType) []NodeType {
	if nodes == nil {
		return nil
	}
	clone := make([]NodeType, len(nodes))
	copy(clone, nodes)
	return clone
}
