package bigquery

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/flipsave/flipsave/internal/domain"
	"github.com/shopspring/decimal"
)

type OfferRow struct {
	OfferID string `bigquery:"offer_id"` // REQUIRED
	RunID   string `bigquery:"run_id"`   // REQUIRED
	RowNo   int64  `bigquery:"row_no"`   // REQUIRED, position in the run's dataset

	TransactionType string `bigquery:"transaction_type"` // REQUIRED
	Category        string `bigquery:"category"`         // REQUIRED

	Vendor       bigquery.NullString `bigquery:"vendor"`        // NULLABLE
	Amount       *big.Rat            `bigquery:"amount"`        // NULLABLE NUMERIC
	OfferDetails bigquery.NullString `bigquery:"offer_details"` // NULLABLE
	CouponCode   bigquery.NullString `bigquery:"coupon_code"`   // NULLABLE

	ExpiryDate    bigquery.NullDate   `bigquery:"expiry_date"`     // NULLABLE, set when the model's date parses
	ExpiryDateRaw bigquery.NullString `bigquery:"expiry_date_raw"` // NULLABLE, as returned by the model

	OriginalText string    `bigquery:"original_text"` // REQUIRED
	CreatedTS    time.Time `bigquery:"created_ts"`    // REQUIRED
}

// OfferRowsFromDataset converts every entry of ds into a row. offerID returns
// the id of the row at position i.
func OfferRowsFromDataset(ds *domain.Dataset, offerID func(i int) string) []*OfferRow {
	created := ds.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	rows := make([]*OfferRow, 0, ds.Len())
	for i, e := range ds.Entries {
		r := e.Record
		row := &OfferRow{
			OfferID:         offerID(i),
			RunID:           ds.RunID,
			RowNo:           int64(i),
			TransactionType: string(r.TransactionType),
			Category:        string(r.Category),
			Vendor:          nullString(r.Vendor),
			OfferDetails:    nullString(r.OfferDetails),
			CouponCode:      nullString(r.CouponCode),
			ExpiryDateRaw:   nullString(r.ExpiryDate),
			OriginalText:    e.OriginalText(),
			CreatedTS:       created,
		}
		if r.Amount != nil {
			row.Amount = r.Amount.Rat()
		}
		if r.ExpiryDate != nil {
			if d, err := civil.ParseDate(strings.TrimSpace(*r.ExpiryDate)); err == nil {
				row.ExpiryDate = bigquery.NullDate{Date: d, Valid: true}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Entry converts a stored row back into a dataset entry.
func (row *OfferRow) Entry() (domain.Entry, error) {
	txType, err := domain.ParseTransactionType(row.TransactionType)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("offer %s: %w", row.OfferID, err)
	}
	category, err := domain.ParseCategory(row.Category)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("offer %s: %w", row.OfferID, err)
	}

	rec := domain.Record{
		TransactionType: txType,
		Category:        category,
		Vendor:          stringPtr(row.Vendor),
		OfferDetails:    stringPtr(row.OfferDetails),
		CouponCode:      stringPtr(row.CouponCode),
		ExpiryDate:      stringPtr(row.ExpiryDateRaw),
	}
	if row.Amount != nil {
		d, err := decimal.NewFromString(row.Amount.FloatString(9))
		if err != nil {
			return domain.Entry{}, fmt.Errorf("offer %s: amount: %w", row.OfferID, err)
		}
		rec.Amount = &d
	}

	return domain.Entry{
		Item:   domain.RawItem{Index: int(row.RowNo), RawText: row.OriginalText},
		Record: rec,
	}, nil
}

func nullString(s *string) bigquery.NullString {
	if s == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}

func stringPtr(ns bigquery.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.StringVal
	return &s
}
