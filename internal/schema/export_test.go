package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func shotSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"shotId": map[string]any{
				"type":        "string",
				"description": "Shot identifier",
			},
			"status": map[string]any{
				"type": "string",
				"enum": []any{"todo", "in_progress", "done"},
			},
			"frames": map[string]any{"type": "integer"},
			"metadata": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"colorSpace": map[string]any{"type": "string"},
					"fps":        map[string]any{"type": "number"},
				},
				"required": []any{"colorSpace"},
			},
			"tags": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []any{"shotId", "status", "ghost_field"},
	}
}

func TestExport_Anthropic(t *testing.T) {
	out, err := Export("update_shot_status", "Update a shot", shotSchema(), FormatAnthropic)
	require.NoError(t, err)

	require.Equal(t, "update_shot_status", out["name"])
	require.Equal(t, "Update a shot", out["description"])

	input, ok := out["input_schema"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "object", input["type"])

	// Required entries not matching a declared property are dropped.
	require.ElementsMatch(t, []string{"shotId", "status"}, input["required"])

	props, ok := input["properties"].(map[string]any)
	require.True(t, ok)

	status, ok := props["status"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, []any{"todo", "in_progress", "done"}, status["enum"])

	// Nested objects convert recursively.
	metadata, ok := props["metadata"].(map[string]any)
	require.True(t, ok)

	metaProps, ok := metadata["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, metaProps, "colorSpace")
	require.Equal(t, []string{"colorSpace"}, metadata["required"])

	tags, ok := props["tags"].(map[string]any)
	require.True(t, ok)

	items, ok := tags["items"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "string", items["type"])
}

func TestExport_OpenAI(t *testing.T) {
	out, err := Export("update_shot_status", "Update a shot", shotSchema(), FormatOpenAI)
	require.NoError(t, err)

	require.Equal(t, "function", out["type"])

	fn, ok := out["function"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "update_shot_status", fn["name"])

	params, ok := fn["parameters"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "object", params["type"])
}

func TestExport_GeminiUppercasesTypes(t *testing.T) {
	out, err := Export("update_shot_status", "Update a shot", shotSchema(), FormatGemini)
	require.NoError(t, err)

	params, ok := out["parameters"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "OBJECT", params["type"])

	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)

	frames, ok := props["frames"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "INTEGER", frames["type"])

	tags, ok := props["tags"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "ARRAY", tags["type"])

	items, ok := tags["items"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "STRING", items["type"])
}

func TestExport_UnsupportedTypeFallsBackToString(t *testing.T) {
	input := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"weird": map[string]any{"type": "tuple"},
			"empty": map[string]any{},
		},
	}

	out, err := Export("odd", "odd schema", input, FormatAnthropic)
	require.NoError(t, err)

	schema, ok := out["input_schema"].(map[string]any)
	require.True(t, ok)

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)

	weird, ok := props["weird"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "string", weird["type"])

	empty, ok := props["empty"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "string", empty["type"])
}

func TestExport_NilSchemaExportsEmptyObject(t *testing.T) {
	out, err := Export("bare", "no schema", nil, FormatAnthropic)
	require.NoError(t, err)

	schema, ok := out["input_schema"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "object", schema["type"])
	require.Equal(t, map[string]any{}, schema["properties"])
}

func TestExport_UnknownFormat(t *testing.T) {
	_, err := Export("x", "y", nil, Format("cohere"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown schema format")
}
