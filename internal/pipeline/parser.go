package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/flipsave/flipsave/internal/domain"
)

// ParseModelResponse locates the JSON object in a raw model response and
// validates it against the record schema.
//
// The model may wrap the object in prose or Markdown fences; only the first
// decodable JSON object is considered. A response with no such object fails
// with ErrMalformedOutput, an object that does not satisfy the schema fails
// with a *SchemaViolation.
func ParseModelResponse(raw string) (domain.Record, error) {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return domain.Record{}, ErrMalformedOutput
	}
	return ValidateDocument(obj)
}

// extractJSONObject returns the first JSON object found in raw.
func extractJSONObject(raw string) (map[string]any, bool) {
	s := cleanModelJSON(raw)
	if s == "" {
		return nil, false
	}

	if obj, ok := decodeObject(s); ok {
		return obj, true
	}

	// Prose around the object: try every opening brace in turn.
	for offset := 0; offset < len(s); {
		idx := strings.IndexByte(s[offset:], '{')
		if idx == -1 {
			break
		}
		start := offset + idx
		if obj, ok := decodeObject(s[start:]); ok {
			return obj, true
		}
		offset = start + 1
	}
	return nil, false
}

// decodeObject decodes the leading JSON value of s, accepting only objects.
// Numbers are kept as json.Number so amounts keep their precision.
func decodeObject(s string) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// cleanModelJSON strips Markdown code fences the model may add despite instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return strings.Trim(s, "`")
		}
		s = strings.TrimSpace(s[idx+1:])
		if end := strings.LastIndex(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	return strings.TrimSpace(s)
}
