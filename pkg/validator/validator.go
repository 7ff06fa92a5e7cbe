package validator

import (
	"fmt"
	"sort"

	"github.com/pfbio/pfbex/internal/domain"
)

// Check names one of the ordered validation checks.
type Check string

const (
	CheckNodeDeclared     Check = "node_declared"
	CheckRelationDeclared Check = "relation_declared"
	CheckPropertyDeclared Check = "property_declared"
	CheckPropertyType     Check = "property_type"
	CheckRequiredPresent  Check = "required_present"
)

// Violation is one failed check on one entity.
type Violation struct {
	Check   Check  `json:"check"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationResult collects every violation found on one entity. Checks do
// not short-circuit, so a single pass reports every problem with a row.
// Whether a violation aborts the run or only skips the entity is the
// caller's policy, never decided here.
type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
}

func (r *ValidationResult) add(v Violation) {
	r.Valid = false
	r.Violations = append(r.Violations, v)
}

// ValidateEntity checks one entity against the graph schema. Checks run in
// order: the entity's node type is declared, every relation targets a
// declared link destination, every object key is a declared property whose
// value conforms to its schema type, and every required property is present.
func ValidateEntity(entity domain.Entity, graph domain.GraphSchema) ValidationResult {
	result := ValidationResult{Valid: true, Violations: []Violation{}}

	node, ok := graph.Node(entity.Name)
	if !ok {
		result.add(Violation{
			Check:   CheckNodeDeclared,
			Message: fmt.Sprintf("entity name %q is not a declared node type", entity.Name),
		})
		return result
	}

	for _, relation := range entity.Relations {
		if !node.LinksTo(relation.DstName) {
			result.add(Violation{
				Check:   CheckRelationDeclared,
				Field:   relation.DstName,
				Message: fmt.Sprintf("relation to %q matches no declared link of %s", relation.DstName, entity.Name),
			})
		}
	}

	object, ok := entity.Object.(domain.RowObject)
	if !ok {
		// The Metadata payload has a fixed shape with no per-property schema.
		return result
	}

	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := object[key]
		prop, declared := node.Property(key)
		if !declared {
			result.add(Violation{
				Check:   CheckPropertyDeclared,
				Field:   key,
				Message: fmt.Sprintf("property %q is not declared on node type %s", key, entity.Name),
				Value:   value,
			})
			continue
		}
		if value == nil {
			continue
		}
		if err := conformsTo(prop.Type, value); err != nil {
			result.add(Violation{
				Check:   CheckPropertyType,
				Field:   key,
				Message: fmt.Sprintf("property %q %v", key, err),
				Value:   value,
			})
		}
	}

	for _, prop := range node.Properties {
		if !prop.Required() {
			continue
		}
		if value, present := object[prop.Name]; !present || value == nil {
			result.add(Violation{
				Check:   CheckRequiredPresent,
				Field:   prop.Name,
				Message: fmt.Sprintf("required property %q is missing", prop.Name),
			})
		}
	}

	return result
}

// conformsTo reports whether a coerced value inhabits the schema type.
func conformsTo(st domain.SchemaType, value any) error {
	switch st.Kind {
	case domain.TypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("must be a string, got %T", value)
		}
	case domain.TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("must be a boolean, got %T", value)
		}
	case domain.TypeInt, domain.TypeLong:
		if !isInteger(value) {
			return fmt.Errorf("must be an integer, got %T", value)
		}
	case domain.TypeFloat, domain.TypeDouble:
		if !isNumber(value) {
			return fmt.Errorf("must be a number, got %T", value)
		}
	case domain.TypeArray:
		return arrayConformsTo(st, value)
	case domain.TypeMap:
		switch value.(type) {
		case map[string]string, map[string]any:
		default:
			return fmt.Errorf("must be a map, got %T", value)
		}
	case domain.TypeEnum:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("must be an enum symbol string, got %T", value)
		}
		for _, symbol := range st.Symbols {
			if symbol == s {
				return nil
			}
		}
		return fmt.Errorf("value %q is not one of %v", s, st.Symbols)
	default:
		return fmt.Errorf("has no validation for schema type %s", st)
	}
	return nil
}

func arrayConformsTo(st domain.SchemaType, value any) error {
	element := domain.SchemaType{Kind: st.Items}
	switch items := value.(type) {
	case []any:
		for i, item := range items {
			if item == nil {
				continue
			}
			if err := conformsTo(element, item); err != nil {
				return fmt.Errorf("element %d %v", i, err)
			}
		}
	case []string:
		if st.Items != domain.TypeString {
			return fmt.Errorf("must hold %s items, got strings", st.Items)
		}
	default:
		return fmt.Errorf("must be an array, got %T", value)
	}
	return nil
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int16, int32, int64:
		return true
	case float64:
		return v == float64(int64(v))
	default:
		return false
	}
}

func isNumber(value any) bool {
	switch value.(type) {
	case int, int16, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}
