package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pfbio/pfbex/internal/domain"
)

// coerceValue converts a raw source value into the representation of the
// target schema type. Raw values arrive in whatever shape the provider
// decoded them: JSON rows carry float64 numbers, delimited files carry
// strings, database rows carry native driver types.
func coerceValue(target domain.SchemaType, value any) (any, error) {
	switch target.Kind {
	case domain.TypeString:
		return coerceString(value)
	case domain.TypeBoolean:
		return coerceBool(value)
	case domain.TypeInt:
		n, err := coerceInt(value)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("value %d overflows int", n)
		}
		return n, nil
	case domain.TypeLong:
		return coerceInt(value)
	case domain.TypeFloat, domain.TypeDouble:
		return coerceFloat(value)
	case domain.TypeArray:
		return coerceArray(target, value)
	case domain.TypeMap:
		return coerceMap(value)
	case domain.TypeEnum:
		return coerceEnum(target, value)
	default:
		return nil, fmt.Errorf("no coercion for schema type %s", target)
	}
}

// isNullValue treats absent values, explicit nulls, and blank strings as
// null. Delimited sources cannot distinguish an empty cell from a missing
// one, so blank strings collapse into null everywhere.
func isNullValue(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && strings.TrimSpace(s) == ""
}

// coerceString renders scalars into their canonical string form. Timestamps
// become ISO-8601 text. Structured values never collapse into strings.
func coerceString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("unable to coerce %T to string", value)
	}
}

func coerceBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		normalized := strings.ToLower(strings.TrimSpace(v))
		switch normalized {
		case "1", "yes", "y":
			return true, nil
		case "0", "no", "n":
			return false, nil
		}
		if b, err := strconv.ParseBool(normalized); err == nil {
			return b, nil
		}
	case float64:
		switch v {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case int64:
		switch v {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	}
	return false, fmt.Errorf("unable to coerce %v to boolean", value)
}

func coerceInt(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if math.Mod(v, 1) == 0 {
			return int64(v), nil
		}
		return 0, fmt.Errorf("unable to coerce %v to integer", v)
	case string:
		trimmed := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil && math.Mod(f, 1) == 0 {
			return int64(f), nil
		}
		return 0, fmt.Errorf("unable to coerce %q to integer", v)
	}
	return 0, fmt.Errorf("unable to coerce %T to integer", value)
}

func coerceFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, nil
		}
		return 0, fmt.Errorf("unable to coerce %q to float", v)
	}
	return 0, fmt.Errorf("unable to coerce %T to float", value)
}

func coerceArray(target domain.SchemaType, value any) ([]any, error) {
	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case []string:
		items = make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
	case string:
		if err := json.Unmarshal([]byte(v), &items); err != nil {
			return nil, fmt.Errorf("unable to coerce %q to array: %w", v, err)
		}
	default:
		return nil, fmt.Errorf("unable to coerce %T to array", value)
	}

	element := domain.SchemaType{Kind: target.Items}
	out := make([]any, len(items))
	for i, item := range items {
		coerced, err := coerceValue(element, item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = coerced
	}
	return out, nil
}

func coerceMap(value any) (map[string]string, error) {
	switch v := value.(type) {
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, val := range v {
			out[key] = val
		}
		return out, nil
	case map[string]any:
		return flattenMap(v)
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, fmt.Errorf("unable to coerce %q to map: %w", v, err)
		}
		return flattenMap(decoded)
	}
	return nil, fmt.Errorf("unable to coerce %T to map", value)
}

// flattenMap renders map values into strings. Nested structures keep their
// compact JSON form so no information is lost.
func flattenMap(in map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for key, val := range in {
		switch nested := val.(type) {
		case nil:
			out[key] = ""
		case string:
			out[key] = nested
		case map[string]any, []any:
			encoded, err := json.Marshal(nested)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", key, err)
			}
			out[key] = string(encoded)
		default:
			s, err := coerceString(val)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", key, err)
			}
			out[key] = s
		}
	}
	return out, nil
}

func coerceEnum(target domain.SchemaType, value any) (string, error) {
	s, err := coerceString(value)
	if err != nil {
		return "", err
	}
	for _, symbol := range target.Symbols {
		if symbol == s {
			return s, nil
		}
	}
	return "", fmt.Errorf("value %q is not one of the enum symbols %v", s, target.Symbols)
}
