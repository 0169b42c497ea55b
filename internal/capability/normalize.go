package capability

import "encoding/json"

// NormalizeContentResult adapts the content-list result shape shared by
// both sources ({content: [{type, text}], isError}) into a uniform Result.
//
// If isError is set, the first content item's text becomes the error
// message. Otherwise the first text is parsed as JSON when possible; text
// that is not JSON is preserved along with the raw content array so the
// caller loses no information.
func NormalizeContentResult(content []any, isError bool) Result {
	var firstText string

	if len(content) > 0 {
		if item, ok := content[0].(map[string]any); ok {
			firstText, _ = item["text"].(string)
		}
	}

	if isError {
		if firstText == "" {
			firstText = "capability execution failed"
		}

		return Errorf(firstText)
	}

	if firstText != "" {
		var structured any
		if err := json.Unmarshal([]byte(firstText), &structured); err == nil {
			return Result{Success: true, Data: structured}
		}
	}

	return Result{
		Success: true,
		Data: map[string]any{
			"content": content,
			"text":    firstText,
		},
	}
}
