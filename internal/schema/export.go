package schema

import (
	"fmt"
	"strings"
)

// Format names a target tool-calling wire format.
type Format string

const (
	FormatAnthropic Format = "anthropic"
	FormatOpenAI    Format = "openai"
	FormatGemini    Format = "gemini"
)

// knownTypes is the set of JSON Schema types the conversion understands.
// Anything else falls back to string.
var knownTypes = map[string]bool{
	"object":  true,
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
	"array":   true,
}

// Export converts a capability's structural input schema into the tool
// declaration shape of the given wire format.
//
// The conversion is a stateless structural mapping with no failure mode
// beyond an unknown format: unsupported property types fall back to
// string, and a missing input schema exports as an empty object schema.
func Export(name, description string, input map[string]any, format Format) (map[string]any, error) {
	if input == nil {
		input = map[string]any{"type": "object"}
	}

	switch format {
	case FormatAnthropic:
		return map[string]any{
			"name":         name,
			"description":  description,
			"input_schema": convertSchema(input, false),
		}, nil

	case FormatOpenAI:
		return map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        name,
				"description": description,
				"parameters":  convertSchema(input, false),
			},
		}, nil

	case FormatGemini:
		return map[string]any{
			"name":        name,
			"description": description,
			"parameters":  convertSchema(input, true),
		}, nil

	default:
		return nil, fmt.Errorf("unknown schema format: %q", format)
	}
}

// convertSchema recursively maps one schema node. Gemini spells type names
// in upper case; the other formats use standard JSON Schema casing.
func convertSchema(node map[string]any, uppercaseTypes bool) map[string]any {
	out := map[string]any{}

	nodeType, _ := node["type"].(string)
	if !knownTypes[nodeType] {
		nodeType = "string"
	}

	if uppercaseTypes {
		out["type"] = strings.ToUpper(nodeType)
	} else {
		out["type"] = nodeType
	}

	if desc, ok := node["description"].(string); ok && desc != "" {
		out["description"] = desc
	}

	if enum, ok := node["enum"].([]any); ok && len(enum) > 0 {
		out["enum"] = enum
	}

	switch nodeType {
	case "object":
		props, _ := node["properties"].(map[string]any)
		outProps := make(map[string]any, len(props))

		for name, propVal := range props {
			propNode, ok := propVal.(map[string]any)
			if !ok {
				propNode = map[string]any{}
			}

			outProps[name] = convertSchema(propNode, uppercaseTypes)
		}

		out["properties"] = outProps
		out["required"] = requiredFields(node, props)

	case "array":
		items, ok := node["items"].(map[string]any)
		if !ok {
			items = map[string]any{"type": "string"}
		}

		out["items"] = convertSchema(items, uppercaseTypes)
	}

	return out
}

// requiredFields returns the schema's required list filtered to declared
// properties. Properties absent from the list are optional.
func requiredFields(node map[string]any, props map[string]any) []string {
	required := []string{}

	rawRequired, _ := node["required"].([]any)
	for _, rv := range rawRequired {
		name, ok := rv.(string)
		if !ok {
			continue
		}

		if _, declared := props[name]; declared {
			required = append(required, name)
		}
	}

	return required
}
