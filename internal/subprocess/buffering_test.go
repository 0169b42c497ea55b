package subprocess

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// mockChunkReader delivers data in controlled chunks to simulate arbitrary
// read boundaries on the peer's stdout stream.
type mockChunkReader struct {
	chunks [][]byte
	index  int
}

func newMockChunkReader(chunks ...string) *mockChunkReader {
	byteChunks := make([][]byte, len(chunks))
	for i, chunk := range chunks {
		byteChunks[i] = []byte(chunk)
	}

	return &mockChunkReader{chunks: byteChunks}
}

func (r *mockChunkReader) Read(p []byte) (int, error) {
	if r.index >= len(r.chunks) {
		return 0, io.EOF
	}

	chunk := r.chunks[r.index]
	r.index++

	n := copy(p, chunk)

	return n, nil
}

// TestResponseSplitAcrossReads feeds a single response envelope in two
// chunks split mid-object and verifies exactly one message is parsed,
// identical to feeding the full line at once.
func TestResponseSplitAcrossReads(t *testing.T) {
	reader := newMockChunkReader(`{"id":1,"result":`, "{}}\n")
	split := parseJSONLines(t, reader)

	reader = newMockChunkReader(`{"id":1,"result":{}}` + "\n")
	whole := parseJSONLines(t, reader)

	require.Len(t, split, 1)
	require.Equal(t, whole, split)
	require.Equal(t, float64(1), split[0]["id"])
}

// TestMultipleEnvelopesInOneRead verifies parsing when several responses
// arrive in a single read separated by newlines.
func TestMultipleEnvelopesInOneRead(t *testing.T) {
	resp1 := map[string]any{"jsonrpc": "2.0", "id": 1, "result": map[string]any{"ok": true}}
	resp2 := map[string]any{"jsonrpc": "2.0", "id": 2, "error": map[string]any{"message": "boom"}}

	json1, err := json.Marshal(resp1)
	require.NoError(t, err)

	json2, err := json.Marshal(resp2)
	require.NoError(t, err)

	reader := newMockChunkReader(string(json1) + "\n" + string(json2) + "\n")
	messages := parseJSONLines(t, reader)

	require.Len(t, messages, 2)
	require.Equal(t, float64(1), messages[0]["id"])
	require.Equal(t, float64(2), messages[1]["id"])
}

// TestEmbeddedNewlinesInStrings verifies that newlines escaped inside JSON
// string values do not split the envelope.
func TestEmbeddedNewlinesInStrings(t *testing.T) {
	resp := map[string]any{
		"id": 7,
		"result": map[string]any{
			"content": []any{
				map[string]any{"type": "text", "text": "line 1\nline 2\nline 3"},
			},
		},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	reader := newMockChunkReader(string(data) + "\n")
	messages := parseJSONLines(t, reader)

	require.Len(t, messages, 1)

	result, ok := messages[0]["result"].(map[string]any)
	require.True(t, ok)

	content, ok := result["content"].([]any)
	require.True(t, ok)
	require.Len(t, content, 1)
}

// TestNonJSONLinesSkipped verifies that diagnostic noise interleaved with
// protocol lines is dropped without losing protocol messages.
func TestNonJSONLinesSkipped(t *testing.T) {
	input := "peer starting up...\n" +
		`{"id":1,"result":{"tools":[]}}` + "\n" +
		"warning: slow disk\n" +
		`{"id":2,"result":{"tools":[]}}` + "\n"

	reader := newMockChunkReader(input)
	messages := parseJSONLinesSkipInvalid(t, reader)

	require.Len(t, messages, 2)
	require.Equal(t, float64(1), messages[0]["id"])
	require.Equal(t, float64(2), messages[1]["id"])
}

// TestLargeDiscoveryPayload verifies that a large tools/list response split
// across many 64KB chunks reassembles into one message.
func TestLargeDiscoveryPayload(t *testing.T) {
	tools := make([]map[string]any, 500)
	for i := range tools {
		tools[i] = map[string]any{
			"name":        "tool_" + strings.Repeat("x", 20),
			"description": strings.Repeat("d", 200),
			"inputSchema": map[string]any{"type": "object"},
		}
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": 2, "result": map[string]any{"tools": tools}}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	data = append(data, '\n')

	chunkSize := 64 * 1024

	var chunks []string

	for i := 0; i < len(data); i += chunkSize {
		end := min(i+chunkSize, len(data))
		chunks = append(chunks, string(data[i:end]))
	}

	reader := newMockChunkReader(chunks...)
	messages := parseJSONLines(t, reader)

	require.Len(t, messages, 1)

	result, ok := messages[0]["result"].(map[string]any)
	require.True(t, ok)

	gotTools, ok := result["tools"].([]any)
	require.True(t, ok)
	require.Len(t, gotTools, 500)
}

// TestScannerBufferLimit verifies that a line exceeding the scanner buffer
// surfaces a scanner error rather than silently truncating.
func TestScannerBufferLimit(t *testing.T) {
	limit := 1024
	huge := `{"data": "` + strings.Repeat("x", limit+100) + `"}` + "\n"

	scanner := bufio.NewScanner(strings.NewReader(huge))

	buf := make([]byte, limit)
	scanner.Buffer(buf, limit)

	require.False(t, scanner.Scan())
	require.Error(t, scanner.Err())
	require.Contains(t, scanner.Err().Error(), "token too long")
}

// parseJSONLines is a helper that mimics the transport's JSON parsing logic.
func parseJSONLines(t *testing.T, reader io.Reader) []map[string]any {
	t.Helper()

	var messages []map[string]any

	scanner := bufio.NewScanner(reader)

	buf := make([]byte, maxScanTokenSize)
	scanner.Buffer(buf, maxScanTokenSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg map[string]any

		if err := json.Unmarshal(line, &msg); err != nil {
			t.Fatalf("Failed to unmarshal JSON: %v, line: %s", err, string(line))
		}

		messages = append(messages, msg)
	}

	require.NoError(t, scanner.Err())

	return messages
}

// parseJSONLinesSkipInvalid is a helper that drops unparsable lines, the
// way the transport treats diagnostic noise.
func parseJSONLinesSkipInvalid(t *testing.T, reader io.Reader) []map[string]any {
	t.Helper()

	var messages []map[string]any

	scanner := bufio.NewScanner(reader)

	buf := make([]byte, maxScanTokenSize)
	scanner.Buffer(buf, maxScanTokenSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg map[string]any

		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}

		messages = append(messages, msg)
	}

	require.NoError(t, scanner.Err())

	return messages
}
