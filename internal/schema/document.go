package schema

import (
	"fmt"

	"github.com/go-openapi/inflect"

	"github.com/pfbio/pfbex/internal/domain"
)

// Names of the fixed records in the rendered document. Consumers resolve
// entities against these, so they never change with the input tables.
const (
	EntityRecordName         = "Entity"
	MetadataRecordName       = "Metadata"
	NodeRecordName           = "Node"
	LinkRecordName           = "Link"
	PropertyRecordName       = "Property"
	RelationRecordName       = "Relation"
	MultiplicityEnumName     = "Multiplicity"
	DefaultDocumentNamespace = "pfbex"
)

// Document is the JSON-representable container schema: the top-level Entity
// record whose object union holds the Metadata record plus one record per
// table node.
type Document struct {
	Type      string          `json:"type"`
	Name      string          `json:"name"`
	Namespace string          `json:"namespace,omitempty"`
	Fields    []DocumentField `json:"fields"`
}

// DocumentField is one field of a rendered record. Type holds an Avro type
// reference: a primitive name, a ["null", T] union, or a nested composite.
// Default distinguishes a declared null default from no default at all.
type DocumentField struct {
	Name        string `json:"name"`
	Type        any    `json:"type"`
	LogicalType string `json:"logicalType,omitempty"`
	Default     *any   `json:"default,omitempty"`
	Doc         string `json:"doc,omitempty"`
}

// DocumentRecord is a named nested record schema.
type DocumentRecord struct {
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Fields []DocumentField `json:"fields"`
}

// DocumentEnum is a named enum schema.
type DocumentEnum struct {
	Type    string   `json:"type"`
	Name    string   `json:"name"`
	Symbols []string `json:"symbols"`
}

// DocumentArray is an array schema.
type DocumentArray struct {
	Type  string `json:"type"`
	Items any    `json:"items"`
}

// DocumentMap is a map schema.
type DocumentMap struct {
	Type   string `json:"type"`
	Values any    `json:"values"`
}

func defaultOf(v any) *any {
	return &v
}

// RenderDocument renders a graph schema into the container schema document.
// The object union lists the Metadata record first and then one record per
// table node in schema order; the root sentinel has no record of its own.
// Rendering is deterministic for a given schema.
func RenderDocument(graph domain.GraphSchema, namespace string) (Document, error) {
	if namespace == "" {
		namespace = DefaultDocumentNamespace
	}

	object := []any{metadataRecord()}
	for _, node := range graph.TableNodes() {
		record, err := nodeRecord(node)
		if err != nil {
			return Document{}, err
		}
		object = append(object, record)
	}

	return Document{
		Type:      "record",
		Name:      EntityRecordName,
		Namespace: namespace,
		Fields: []DocumentField{
			{Name: "id", Type: []any{"null", "string"}, Default: defaultOf(nil)},
			{Name: "name", Type: "string"},
			{Name: "object", Type: object},
			{
				Name:    "relations",
				Type:    DocumentArray{Type: "array", Items: relationRecord()},
				Default: defaultOf([]any{}),
			},
		},
	}, nil
}

// nodeRecord renders one table node as a record with one field per property.
func nodeRecord(node domain.NodeType) (DocumentRecord, error) {
	fields := make([]DocumentField, 0, len(node.Properties))
	for _, prop := range node.Properties {
		rendered, err := fieldType(node.Name, prop)
		if err != nil {
			return DocumentRecord{}, err
		}
		field := DocumentField{
			Name:        prop.Name,
			Type:        rendered,
			LogicalType: prop.Type.LogicalType,
			Doc:         prop.Doc,
		}
		if prop.Nullable {
			field.Type = []any{"null", rendered}
			field.Default = defaultOf(nil)
		} else if prop.Default != nil {
			field.Default = defaultOf(prop.Default)
		}
		fields = append(fields, field)
	}
	return DocumentRecord{Type: "record", Name: node.Name, Fields: fields}, nil
}

// fieldType renders the Avro type reference of one property. Enum types are
// named after their node and property so names stay unique document-wide.
func fieldType(nodeName string, prop domain.PropertyDefinition) (any, error) {
	st := prop.Type
	switch st.Kind {
	case domain.TypeArray:
		return DocumentArray{Type: "array", Items: string(st.Items)}, nil
	case domain.TypeMap:
		return DocumentMap{Type: "map", Values: string(st.Items)}, nil
	case domain.TypeEnum:
		return DocumentEnum{
			Type:    "enum",
			Name:    inflect.Camelize(nodeName + "_" + prop.Name),
			Symbols: st.Symbols,
		}, nil
	}
	if !st.Primitive() {
		return nil, fmt.Errorf("property %s.%s: unrenderable schema type %s", nodeName, prop.Name, st)
	}
	return string(st.Kind), nil
}

// metadataRecord renders the fixed Metadata record: the node descriptor list
// plus the open misc map.
func metadataRecord() DocumentRecord {
	property := DocumentRecord{
		Type: "record",
		Name: PropertyRecordName,
		Fields: []DocumentField{
			{Name: "name", Type: "string"},
			{Name: "ontology_reference", Type: "string"},
			{Name: "values", Type: DocumentMap{Type: "map", Values: "string"}},
		},
	}

	link := DocumentRecord{
		Type: "record",
		Name: LinkRecordName,
		Fields: []DocumentField{
			{
				Name: "multiplicity",
				Type: DocumentEnum{
					Type:    "enum",
					Name:    MultiplicityEnumName,
					Symbols: multiplicitySymbols(),
				},
			},
			{Name: "dst", Type: "string"},
			{Name: "name", Type: "string"},
		},
	}

	node := DocumentRecord{
		Type: "record",
		Name: NodeRecordName,
		Fields: []DocumentField{
			{Name: "name", Type: "string"},
			{Name: "ontology_reference", Type: "string"},
			{Name: "values", Type: DocumentMap{Type: "map", Values: "string"}},
			{Name: "links", Type: DocumentArray{Type: "array", Items: link}},
			{Name: "properties", Type: DocumentArray{Type: "array", Items: property}},
		},
	}

	return DocumentRecord{
		Type: "record",
		Name: MetadataRecordName,
		Fields: []DocumentField{
			{Name: "nodes", Type: DocumentArray{Type: "array", Items: node}},
			{Name: "misc", Type: DocumentMap{Type: "map", Values: "string"}},
		},
	}
}

func relationRecord() DocumentRecord {
	return DocumentRecord{
		Type: "record",
		Name: RelationRecordName,
		Fields: []DocumentField{
			{Name: "dst_id", Type: "string"},
			{Name: "dst_name", Type: "string"},
		},
	}
}

func multiplicitySymbols() []string {
	symbols := make([]string, 0, 4)
	for _, m := range domain.Multiplicities() {
		symbols = append(symbols, string(m))
	}
	return symbols
}
