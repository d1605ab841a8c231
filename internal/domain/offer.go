package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the primary type of a financial message.
type TransactionType string

const (
	TransactionOffer   TransactionType = "Offer"
	TransactionDebit   TransactionType = "Debit"
	TransactionCredit  TransactionType = "Credit"
	TransactionReceipt TransactionType = "Receipt"
	TransactionInfo    TransactionType = "Info"
)

// TransactionTypes lists every accepted TransactionType in prompt order.
var TransactionTypes = []TransactionType{
	TransactionOffer,
	TransactionDebit,
	TransactionCredit,
	TransactionReceipt,
	TransactionInfo,
}

// ParseTransactionType returns the TransactionType matching s exactly
// (surrounding whitespace ignored).
func ParseTransactionType(s string) (TransactionType, error) {
	s = strings.TrimSpace(s)
	for _, t := range TransactionTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%q is not one of %s", s, joinQuoted(TransactionTypes))
}

// Category is the spending category of a transaction or offer.
type Category string

const (
	CategoryFoodDining    Category = "Food & Dining"
	CategoryShopping      Category = "Shopping"
	CategoryTravel        Category = "Travel"
	CategoryBills         Category = "Bills & Utilities"
	CategoryGroceries     Category = "Groceries"
	CategoryEntertainment Category = "Entertainment"
	CategoryFinance       Category = "Finance"
	CategoryOther         Category = "Other"
)

// Categories lists every accepted Category in prompt order.
var Categories = []Category{
	CategoryFoodDining,
	CategoryShopping,
	CategoryTravel,
	CategoryBills,
	CategoryGroceries,
	CategoryEntertainment,
	CategoryFinance,
	CategoryOther,
}

// ParseCategory returns the Category matching s exactly (surrounding whitespace ignored).
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%q is not one of %s", s, joinQuoted(Categories))
}

func joinQuoted[T ~string](values []T) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("'%s'", v)
	}
	return strings.Join(quoted, ", ")
}

// Record is the structured information extracted from one financial text.
// Optional fields are nil when the model could not determine them.
type Record struct {
	TransactionType TransactionType  `json:"transaction_type"`
	Vendor          *string          `json:"vendor"`
	Amount          *decimal.Decimal `json:"amount"`
	OfferDetails    *string          `json:"offer_details"`
	CouponCode      *string          `json:"coupon_code"`
	ExpiryDate      *string          `json:"expiry_date"` // YYYY-MM-DD as returned by the model
	Category        Category         `json:"category"`
}

// MarshalJSON writes amount as a bare JSON number, the shape the model returns.
func (r Record) MarshalJSON() ([]byte, error) {
	var amount json.RawMessage
	if r.Amount != nil {
		amount = json.RawMessage(r.Amount.String())
	}
	out := struct {
		TransactionType TransactionType `json:"transaction_type"`
		Vendor          *string         `json:"vendor"`
		Amount          json.RawMessage `json:"amount"`
		OfferDetails    *string         `json:"offer_details"`
		CouponCode      *string         `json:"coupon_code"`
		ExpiryDate      *string         `json:"expiry_date"`
		Category        Category        `json:"category"`
	}{
		TransactionType: r.TransactionType,
		Vendor:          r.Vendor,
		Amount:          amount,
		OfferDetails:    r.OfferDetails,
		CouponCode:      r.CouponCode,
		ExpiryDate:      r.ExpiryDate,
		Category:        r.Category,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// NormalizeNewlines turns CRLF line endings into LF. Sources apply it to every
// text they produce.
func NormalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// RawItem is one unit of unstructured input text.
type RawItem struct {
	Index   int    `json:"-"`
	RawText string `json:"raw_text"`
}

// Entry pairs a validated Record with the item it was extracted from.
type Entry struct {
	Item   RawItem
	Record Record
}

// OriginalText returns the raw text the record was extracted from.
func (e Entry) OriginalText() string {
	return e.Item.RawText
}

// Dataset is the ordered output of one batch run.
type Dataset struct {
	RunID     string
	CreatedAt time.Time
	Entries   []Entry
}

// Len returns the number of entries in the dataset.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Entries)
}
