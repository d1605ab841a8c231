package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flipsave/flipsave/internal/domain"
	"github.com/shopspring/decimal"
)

// DecodeRecord converts an untyped JSON object into a Record.
// It fails with *SchemaViolation on a missing required field, a wrong type,
// or a value outside an enumeration.
func DecodeRecord(obj map[string]any) (domain.Record, error) {
	var rec domain.Record

	txType, err := getStringField(obj, "transaction_type", true)
	if err != nil {
		return domain.Record{}, err
	}
	rec.TransactionType, err = domain.ParseTransactionType(txType)
	if err != nil {
		return domain.Record{}, &SchemaViolation{Field: "transaction_type", Reason: err.Error()}
	}

	category, err := getStringField(obj, "category", true)
	if err != nil {
		return domain.Record{}, err
	}
	rec.Category, err = domain.ParseCategory(category)
	if err != nil {
		return domain.Record{}, &SchemaViolation{Field: "category", Reason: err.Error()}
	}

	if rec.Vendor, err = getOptionalStringField(obj, "vendor"); err != nil {
		return domain.Record{}, err
	}
	if rec.Amount, err = getOptionalDecimalField(obj, "amount"); err != nil {
		return domain.Record{}, err
	}
	if rec.OfferDetails, err = getOptionalStringField(obj, "offer_details"); err != nil {
		return domain.Record{}, err
	}
	if rec.CouponCode, err = getOptionalStringField(obj, "coupon_code"); err != nil {
		return domain.Record{}, err
	}
	if rec.ExpiryDate, err = getOptionalStringField(obj, "expiry_date"); err != nil {
		return domain.Record{}, err
	}

	return rec, nil
}

func getStringField(m map[string]any, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", &SchemaViolation{Field: key, Reason: "missing required field"}
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", &SchemaViolation{Field: key, Reason: "required field is empty"}
		}
		return val, nil
	default:
		return "", &SchemaViolation{Field: key, Reason: fmt.Sprintf("has type %T, want string", v)}
	}
}

func getOptionalStringField(m map[string]any, key string) (*string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	default:
		return nil, &SchemaViolation{Field: key, Reason: fmt.Sprintf("has type %T, want string or null", v)}
	}
}

func getOptionalDecimalField(m map[string]any, key string) (*decimal.Decimal, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return nil, &SchemaViolation{Field: key, Reason: fmt.Sprintf("invalid number %q", val)}
		}
		return &d, nil
	case float64:
		d := decimal.NewFromFloat(val)
		return &d, nil
	case int:
		d := decimal.NewFromInt(int64(val))
		return &d, nil
	default:
		return nil, &SchemaViolation{Field: key, Reason: fmt.Sprintf("has type %T, want number or null", v)}
	}
}
