package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/flipsave/flipsave/internal/domain"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const recordSchemaURL = "flipsave://schemas/record.json"

// fieldDescriptions are shown to the model through the JSON schema.
var fieldDescriptions = map[string]string{
	"transaction_type": "The primary type of the message. Must be one of: " + quotedList(domain.TransactionTypes) + ".",
	"vendor":           "The merchant, bank, or company name mentioned (e.g., Zomato, HDFC Bank, Amazon).",
	"amount":           "The monetary value of the transaction if present.",
	"offer_details":    "A summary of the promotional offer if one exists (e.g., '50% off up to Rs. 100').",
	"coupon_code":      "The specific promotional code to be used (e.g., 'FLIP50').",
	"expiry_date":      "The expiration date of an offer or voucher, formatted as YYYY-MM-DD.",
	"category":         "A relevant spending category for the transaction or offer. Must be one of: " + quotedList(domain.Categories) + ".",
}

// RecordJSONSchema returns the JSON Schema document describing a domain.Record.
func RecordJSONSchema() []byte {
	return recordSchemaJSON()
}

var recordSchemaJSON = sync.OnceValue(func() []byte {
	nullable := func(typ, field string) map[string]any {
		return map[string]any{
			"type":        []string{typ, "null"},
			"description": fieldDescriptions[field],
		}
	}

	schema := map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"title":   "ExtractedInfo",
		"type":    "object",
		"properties": map[string]any{
			"transaction_type": map[string]any{
				"type":        "string",
				"enum":        domain.TransactionTypes,
				"description": fieldDescriptions["transaction_type"],
			},
			"vendor":        nullable("string", "vendor"),
			"amount":        nullable("number", "amount"),
			"offer_details": nullable("string", "offer_details"),
			"coupon_code":   nullable("string", "coupon_code"),
			"expiry_date":   nullable("string", "expiry_date"),
			"category": map[string]any{
				"type":        "string",
				"enum":        domain.Categories,
				"description": fieldDescriptions["category"],
			},
		},
		"required": []string{"transaction_type", "category"},
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(schema); err != nil {
		panic(fmt.Sprintf("pipeline: marshal record schema: %v", err))
	}
	return bytes.TrimSpace(buf.Bytes())
})

var compiledRecordSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(recordSchemaURL, bytes.NewReader(RecordJSONSchema())); err != nil {
		return nil, fmt.Errorf("load record schema: %w", err)
	}
	schema, err := compiler.Compile(recordSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	return schema, nil
})

// FormatInstructions describes the expected output format for inclusion in a prompt.
func FormatInstructions() string {
	var b strings.Builder
	b.WriteString("The output should be formatted as a JSON instance that conforms to the JSON schema below.\n\n")
	b.WriteString("As an example, for the schema {\"properties\": {\"foo\": {\"type\": \"string\"}}, \"required\": [\"foo\"]}\n")
	b.WriteString("the object {\"foo\": \"bar\"} is a well-formatted instance of the schema.\n")
	b.WriteString("Use null for optional fields that cannot be determined.\n\n")
	b.WriteString("Here is the output schema:\n```\n")
	b.Write(RecordJSONSchema())
	b.WriteString("\n```")
	return b.String()
}

func quotedList[T ~string](values []T) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + string(v) + "'"
	}
	return strings.Join(quoted, ", ")
}
