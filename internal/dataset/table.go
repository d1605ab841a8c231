package dataset

import (
	"fmt"
	"strings"

	"github.com/flipsave/flipsave/internal/domain"
	"github.com/shopspring/decimal"
)

// Columns is the header of the processed offers table.
var Columns = []string{
	"transaction_type",
	"vendor",
	"amount",
	"offer_details",
	"coupon_code",
	"expiry_date",
	"category",
	"original_text",
}

// amountColumn is the zero-based position of "amount" in Columns.
const amountColumn = 2

// entryRow renders an entry as table cells; absent optional fields are empty.
func entryRow(e domain.Entry) []string {
	r := e.Record
	amount := ""
	if r.Amount != nil {
		amount = r.Amount.String()
	}
	return []string{
		string(r.TransactionType),
		deref(r.Vendor),
		amount,
		deref(r.OfferDetails),
		deref(r.CouponCode),
		deref(r.ExpiryDate),
		string(r.Category),
		e.OriginalText(),
	}
}

// rowEntry parses table cells back into an entry. index is the row position.
func rowEntry(index int, header map[string]int, row []string) (domain.Entry, error) {
	cell := func(name string) string {
		i, ok := header[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	txType, err := domain.ParseTransactionType(cell("transaction_type"))
	if err != nil {
		return domain.Entry{}, fmt.Errorf("row %d: transaction_type: %w", index+1, err)
	}
	category, err := domain.ParseCategory(cell("category"))
	if err != nil {
		return domain.Entry{}, fmt.Errorf("row %d: category: %w", index+1, err)
	}

	rec := domain.Record{
		TransactionType: txType,
		Vendor:          optional(cell("vendor")),
		OfferDetails:    optional(cell("offer_details")),
		CouponCode:      optional(cell("coupon_code")),
		ExpiryDate:      optional(cell("expiry_date")),
		Category:        category,
	}
	if s := strings.TrimSpace(cell("amount")); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return domain.Entry{}, fmt.Errorf("row %d: amount %q: %w", index+1, s, err)
		}
		rec.Amount = &d
	}

	return domain.Entry{
		Item:   domain.RawItem{Index: index, RawText: cell("original_text")},
		Record: rec,
	}, nil
}

func headerIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[cleanHeader(name)] = i
	}
	for _, required := range []string{"transaction_type", "category"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	return idx, nil
}

// cleanHeader strips whitespace and a UTF-8 byte order mark from a header cell.
func cleanHeader(name string) string {
	return strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
