package vizn

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zoobzio/sentinel"
)

// generateJSONSchema creates a JSON Schema for a tool argument type using sentinel.
func generateJSONSchema[T any]() (string, error) {
	// Use sentinel to extract metadata for struct types
	metadata := sentinel.Inspect[T]()

	// Build JSON Schema object
	schema := map[string]any{
		"type":                 "object",
		"properties":           buildProperties(metadata.Fields),
		"required":             buildRequiredFields(metadata.Fields),
		"additionalProperties": false,
	}

	// Marshal to JSON
	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to generate schema: %w", err)
	}

	return string(jsonBytes), nil
}

// buildProperties converts field metadata to JSON Schema properties.
// A desc tag becomes the property description shown to planners.
func buildProperties(fields []sentinel.FieldMetadata) map[string]any {
	properties := make(map[string]any, len(fields))

	for _, field := range fields {
		name := getJSONFieldName(field)
		if name == "-" {
			continue
		}

		prop := map[string]any{"type": goTypeToJSONType(field.Type)}
		if desc := field.Tags["desc"]; desc != "" {
			prop["description"] = desc
		}
		properties[name] = prop
	}

	return properties
}

// buildRequiredFields lists every field without omitempty.
func buildRequiredFields(fields []sentinel.FieldMetadata) []string {
	required := []string{}
	for _, field := range fields {
		name := getJSONFieldName(field)
		if name == "-" || hasOmitempty(field) {
			continue
		}
		required = append(required, name)
	}
	return required
}

// getJSONFieldName extracts the JSON field name from metadata.
func getJSONFieldName(field sentinel.FieldMetadata) string {
	if name, _, _ := strings.Cut(field.Tags["json"], ","); name != "" {
		return name
	}
	return strings.ToLower(field.Name[:1]) + field.Name[1:]
}

func hasOmitempty(field sentinel.FieldMetadata) bool {
	_, opts, _ := strings.Cut(field.Tags["json"], ",")
	return strings.Contains(opts, "omitempty")
}

// goTypeToJSONType maps Go types to JSON Schema types.
func goTypeToJSONType(goType string) string {
	switch {
	case strings.HasPrefix(goType, "string"):
		return "string"
	case strings.HasPrefix(goType, "int"), strings.HasPrefix(goType, "uint"):
		return "integer"
	case strings.HasPrefix(goType, "float"), strings.HasPrefix(goType, "complex"):
		return "number"
	case strings.HasPrefix(goType, "bool"):
		return "boolean"
	case strings.HasPrefix(goType, "[]"):
		return "array"
	case strings.HasPrefix(goType, "map["):
		return "object"
	default:
		return "object"
	}
}
