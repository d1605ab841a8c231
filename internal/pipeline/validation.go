package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/flipsave/flipsave/internal/domain"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateDocument checks a decoded JSON document against the record schema
// and converts it into a typed Record.
func ValidateDocument(doc any) (domain.Record, error) {
	schema, err := compiledRecordSchema()
	if err != nil {
		return domain.Record{}, err
	}

	if obj, ok := doc.(map[string]any); ok {
		normalizeEnumFields(obj)
	}

	if err := schema.Validate(doc); err != nil {
		return domain.Record{}, schemaViolationFrom(err)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return domain.Record{}, &SchemaViolation{Reason: fmt.Sprintf("document is %T, want object", doc)}
	}
	return DecodeRecord(obj)
}

// normalizeEnumFields trims surrounding whitespace from the enumerated fields
// so that " Shopping " still matches its enum value exactly.
func normalizeEnumFields(obj map[string]any) {
	for _, key := range []string{"transaction_type", "category"} {
		if s, ok := obj[key].(string); ok {
			obj[key] = strings.TrimSpace(s)
		}
	}
}

var quotedName = regexp.MustCompile(`'([^']+)'`)

// schemaViolationFrom reduces a jsonschema validation error to its most specific cause.
func schemaViolationFrom(err error) *SchemaViolation {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &SchemaViolation{Reason: err.Error()}
	}

	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}

	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	if field == "" {
		if m := quotedName.FindStringSubmatch(leaf.Message); m != nil {
			field = m[1]
		}
	}
	return &SchemaViolation{Field: field, Reason: leaf.Message}
}
