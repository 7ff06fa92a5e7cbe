package domain

// Relation is the instance-level edge carried by an entity: the id and node
// type name of the destination entity. Relation records are intentionally
// redundant per entity, so no deduplication happens across the stream.
type Relation struct {
	DstID   string `json:"dst_id"`
	DstName string `json:"dst_name"`
}

// ObjectPayload is the polymorphic object carried by an entity: either the
// fixed Metadata shape or a per-node-type property mapping. The variant is
// keyed by the entity name, never inspected dynamically.
type ObjectPayload interface {
	payloadVariant()
}

// RowObject is the property payload of a row-derived entity: property name to
// coerced value for every declared property present in the source row.
type RowObject map[string]any

func (RowObject) payloadVariant() {}

// MetadataObject is the payload of the single Metadata entity: one descriptor
// per table-derived node type plus an open annotation map.
type MetadataObject struct {
	Nodes []NodeDescriptor  `json:"nodes"`
	Misc  map[string]string `json:"misc"`
}

func (MetadataObject) payloadVariant() {}

// PropertyDescriptor is the metadata rendering of one property: its name,
// ontology reference, and an open annotation map. The property's type lives
// in the schema document, not here.
type PropertyDescriptor struct {
	Name              string            `json:"name"`
	OntologyReference string            `json:"ontology_reference"`
	Values            map[string]string `json:"values"`
}

// LinkDescriptor is the metadata rendering of one link.
type LinkDescriptor struct {
	Multiplicity Multiplicity `json:"multiplicity"`
	Dst          string       `json:"dst"`
	Name         string       `json:"name"`
}

// NodeDescriptor is the metadata rendering of one node type: a denormalized
// copy of its name, annotations, links, and properties.
type NodeDescriptor struct {
	Name              string               `json:"name"`
	OntologyReference string               `json:"ontology_reference"`
	Values            map[string]string    `json:"values"`
	Links             []LinkDescriptor     `json:"links"`
	Properties        []PropertyDescriptor `json:"properties"`
}

// DescribeNode renders one node type into its metadata descriptor. All
// collections are materialized so empty ones serialize as [] and {}.
func DescribeNode(node NodeType) NodeDescriptor {
	descriptor := NodeDescriptor{
		Name:              node.Name,
		OntologyReference: node.OntologyReference,
		Values:            map[string]string{},
		Links:             make([]LinkDescriptor, 0, len(node.Links)),
		Properties:        make([]PropertyDescriptor, 0, len(node.Properties)),
	}
	for k, v := range node.Values {
		descriptor.Values[k] = v
	}
	for _, link := range node.Links {
		descriptor.Links = append(descriptor.Links, LinkDescriptor{
			Multiplicity: link.Multiplicity,
			Dst:          link.Destination,
			Name:         link.Name,
		})
	}
	for _, prop := range node.Properties {
		descriptor.Properties = append(descriptor.Properties, PropertyDescriptor{
			Name:              prop.Name,
			OntologyReference: prop.OntologyReference,
			Values:            map[string]string{},
		})
	}
	return descriptor
}

// Entity is one record of the output stream. ID is nil only for the Metadata
// entity; every row-derived entity carries its primary-key value. Relations
// is never nil once constructed, so an empty set serializes as [].
type Entity struct {
	ID        *string       `json:"id"`
	Name      string        `json:"name"`
	Object    ObjectPayload `json:"object"`
	Relations []Relation    `json:"relations"`
}

// IsMetadata reports whether the entity is the schema-describing Metadata
// record that must lead every export.
func (e Entity) IsMetadata() bool {
	return e.Name == MetadataNodeName && e.ID == nil
}

// NewRowEntity constructs an entity for one table row. Relations may be
// empty but never nil.
func NewRowEntity(id, name string, object RowObject, relations []Relation) Entity {
	if object == nil {
		object = RowObject{}
	}
	if relations == nil {
		relations = []Relation{}
	}
	return Entity{
		ID:        &id,
		Name:      name,
		Object:    object,
		Relations: relations,
	}
}

// NewMetadataEntity constructs the Metadata entity describing the given
// nodes. Its id is null and it carries no relations.
func NewMetadataEntity(nodes []NodeType) Entity {
	descriptors := make([]NodeDescriptor, 0, len(nodes))
	for _, node := range nodes {
		descriptors = append(descriptors, DescribeNode(node))
	}
	return Entity{
		ID:   nil,
		Name: MetadataNodeName,
		Object: MetadataObject{
			Nodes: descriptors,
			Misc:  map[string]string{},
		},
		Relations: []Relation{},
	}
}
