package util

import (
	"fmt"
	"reflect"
	"sort"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateParameters validates parameters against the JSON schema subset used
// by tool definitions: required, properties.type, items.type, enum, minimum
// and additionalProperties=false. Null values skip type checks.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	for _, fieldName := range stringList(schema["required"]) {
		if _, exists := params[fieldName]; !exists {
			return &ValidationError{Field: fieldName, Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	closed := schema["additionalProperties"] == false

	// Sorted for deterministic error reporting.
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, fieldName := range names {
		value := params[fieldName]
		propSchema, exists := properties[fieldName]
		if !exists {
			if closed {
				return &ValidationError{Field: fieldName, Value: value, Message: "unknown field"}
			}
			continue
		}
		propMap, ok := propSchema.(map[string]any)
		if !ok || value == nil {
			continue
		}
		if err := validateValue(fieldName, value, propMap); err != nil {
			return err
		}
	}

	return nil
}

func validateValue(field string, value any, prop map[string]any) error {
	expectedType, _ := prop["type"].(string)
	if !isValidType(value, expectedType) {
		return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf("expected type %s, got %T", expectedType, value)}
	}

	if enum := prop["enum"]; enum != nil {
		allowed := stringList(enum)
		s, _ := value.(string)
		found := false
		for _, a := range allowed {
			if a == s {
				found = true
				break
			}
		}
		if !found {
			return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf("must be one of %v", allowed)}
		}
	}

	if minimum, ok := toFloat(prop["minimum"]); ok {
		if v, ok := toFloat(value); ok && v < minimum {
			return &ValidationError{Field: field, Value: value, Message: fmt.Sprintf("must be >= %v", minimum)}
		}
	}

	if items, ok := prop["items"].(map[string]any); ok && expectedType == "array" {
		rv := reflect.ValueOf(value)
		for i := 0; i < rv.Len(); i++ {
			item := rv.Index(i).Interface()
			if item == nil {
				return &ValidationError{Field: fmt.Sprintf("%s[%d]", field, i), Message: "null item"}
			}
			if err := validateValue(fmt.Sprintf("%s[%d]", field, i), item, items); err != nil {
				return err
			}
		}
	}
	return nil
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// isValidType checks if a value is valid according to the expected JSON schema type.
func isValidType(value any, expectedType string) bool {
	if value == nil {
		return true // nil is valid for any type
	}

	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // JSON unmarshaling often produces float64 for numbers
			return v == float64(int64(v)) // Check if it's actually an integer
		}
		return false
	case "number":
		_, ok := toFloat(value)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		k := reflect.ValueOf(value).Kind()
		return k == reflect.Slice || k == reflect.Array
	case "object":
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Map {
			return rv.Type().Key().Kind() == reflect.String
		}
		return rv.Kind() == reflect.Struct
	default:
		return true // Unknown types are assumed valid
	}
}
