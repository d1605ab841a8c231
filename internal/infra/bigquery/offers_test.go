package bigquery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/flipsave/flipsave/internal/domain"
	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func sampleDataset() *domain.Dataset {
	amount := decimal.RequireFromString("1299.5")
	return &domain.Dataset{
		RunID:     "run-1",
		CreatedAt: time.Date(2025, 9, 20, 10, 0, 0, 0, time.UTC),
		Entries: []domain.Entry{
			{
				Item: domain.RawItem{Index: 0, RawText: "Myntra sale. Flat 50% off with MYN50"},
				Record: domain.Record{
					TransactionType: domain.TransactionOffer,
					Vendor:          strPtr("Myntra"),
					OfferDetails:    strPtr("Flat 50% off"),
					CouponCode:      strPtr("MYN50"),
					ExpiryDate:      strPtr("2025-10-05"),
					Category:        domain.CategoryShopping,
				},
			},
			{
				Item: domain.RawItem{Index: 1, RawText: "Rs. 1,299.50 debited for Swiggy"},
				Record: domain.Record{
					TransactionType: domain.TransactionDebit,
					Vendor:          strPtr("Swiggy"),
					Amount:          &amount,
					ExpiryDate:      strPtr("next Sunday"),
					Category:        domain.CategoryFoodDining,
				},
			},
		},
	}
}

func TestOfferRowsFromDataset(t *testing.T) {
	ds := sampleDataset()
	rows := OfferRowsFromDataset(ds, func(i int) string { return fmt.Sprintf("offer-%d", i) })

	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}

	first := rows[0]
	if first.OfferID != "offer-0" || first.RunID != "run-1" || first.RowNo != 0 {
		t.Errorf("Unexpected identity columns: %+v", first)
	}
	if !first.ExpiryDate.Valid || first.ExpiryDate.Date.String() != "2025-10-05" {
		t.Errorf("Expected parsed expiry date, got %+v", first.ExpiryDate)
	}
	if first.Amount != nil {
		t.Errorf("Expected nil amount, got %v", first.Amount)
	}
	if !first.CreatedTS.Equal(ds.CreatedAt) {
		t.Errorf("Expected created_ts from dataset, got %s", first.CreatedTS)
	}

	second := rows[1]
	if second.ExpiryDate.Valid {
		t.Errorf("Expected unparseable expiry to leave expiry_date null, got %+v", second.ExpiryDate)
	}
	if !second.ExpiryDateRaw.Valid || second.ExpiryDateRaw.StringVal != "next Sunday" {
		t.Errorf("Expected raw expiry to be kept, got %+v", second.ExpiryDateRaw)
	}
	if second.Amount == nil || second.Amount.FloatString(2) != "1299.50" {
		t.Errorf("Expected amount 1299.50, got %v", second.Amount)
	}
	if second.OfferDetails.Valid {
		t.Errorf("Expected null offer_details, got %+v", second.OfferDetails)
	}
}

func TestOfferRow_Entry(t *testing.T) {
	ds := sampleDataset()
	rows := OfferRowsFromDataset(ds, func(i int) string { return fmt.Sprintf("offer-%d", i) })

	for i, row := range rows {
		e, err := row.Entry()
		if err != nil {
			t.Fatalf("row %d: Entry returned error: %v", i, err)
		}
		want := ds.Entries[i]
		if e.OriginalText() != want.OriginalText() || e.Item.Index != i {
			t.Errorf("row %d: item %+v, want %+v", i, e.Item, want.Item)
		}
		if e.Record.TransactionType != want.Record.TransactionType || e.Record.Category != want.Record.Category {
			t.Errorf("row %d: enums %s/%s", i, e.Record.TransactionType, e.Record.Category)
		}
		if (e.Record.Amount == nil) != (want.Record.Amount == nil) ||
			(e.Record.Amount != nil && !e.Record.Amount.Equal(*want.Record.Amount)) {
			t.Errorf("row %d: amount %v, want %v", i, e.Record.Amount, want.Record.Amount)
		}
		if *e.Record.ExpiryDate != *want.Record.ExpiryDate {
			t.Errorf("row %d: expiry %q, want %q", i, *e.Record.ExpiryDate, *want.Record.ExpiryDate)
		}
	}
}

func TestOfferRow_EntryRejectsUnknownCategory(t *testing.T) {
	row := &OfferRow{OfferID: "x", TransactionType: "Offer", Category: "Fashion"}
	if _, err := row.Entry(); err == nil {
		t.Fatal("Expected error for unknown category")
	}
}

// MockOfferRepository is a mock implementation of OfferRepository.
type MockOfferRepository struct {
	InsertOffersFunc func(ctx context.Context, rows []*OfferRow) error
	offers           []*OfferRow
	runs             []*RunRow
	latest           string
}

func (m *MockOfferRepository) EnsureTables(ctx context.Context) error { return nil }

func (m *MockOfferRepository) InsertOffers(ctx context.Context, rows []*OfferRow) error {
	if m.InsertOffersFunc != nil {
		if err := m.InsertOffersFunc(ctx, rows); err != nil {
			return err
		}
	}
	m.offers = append(m.offers, rows...)
	return nil
}

func (m *MockOfferRepository) InsertRun(ctx context.Context, row *RunRow) error {
	m.runs = append(m.runs, row)
	return nil
}

func (m *MockOfferRepository) ListOffersByRun(ctx context.Context, runID string) ([]*OfferRow, error) {
	var out []*OfferRow
	for _, r := range m.offers {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockOfferRepository) LatestRunID(ctx context.Context) (string, error) {
	return m.latest, nil
}

func TestSink_Publish(t *testing.T) {
	repo := &MockOfferRepository{}
	sink := NewSink(repo)

	if err := sink.Publish(context.Background(), sampleDataset()); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if len(repo.offers) != 2 {
		t.Fatalf("Expected 2 offer rows, got %d", len(repo.offers))
	}
	if repo.offers[0].OfferID == "" || repo.offers[0].OfferID == repo.offers[1].OfferID {
		t.Errorf("Expected distinct offer ids, got %q and %q", repo.offers[0].OfferID, repo.offers[1].OfferID)
	}
	if len(repo.runs) != 1 || repo.runs[0].Records != 2 || repo.runs[0].Status != RunStatusPublished {
		t.Errorf("Unexpected run rows: %+v", repo.runs)
	}
}

func TestSink_PublishInsertError(t *testing.T) {
	insertErr := errors.New("quota exceeded")
	repo := &MockOfferRepository{
		InsertOffersFunc: func(ctx context.Context, rows []*OfferRow) error { return insertErr },
	}

	err := NewSink(repo).Publish(context.Background(), sampleDataset())
	if !errors.Is(err, insertErr) {
		t.Fatalf("Expected insert error, got %v", err)
	}
	if len(repo.runs) != 0 {
		t.Error("Expected no run row after a failed insert")
	}
}

func TestLoadDataset_LatestRun(t *testing.T) {
	repo := &MockOfferRepository{latest: "run-1"}
	if err := NewSink(repo).Publish(context.Background(), sampleDataset()); err != nil {
		t.Fatal(err)
	}

	ds, err := LoadDataset(context.Background(), repo, "")
	if err != nil {
		t.Fatalf("LoadDataset returned error: %v", err)
	}
	if ds.RunID != "run-1" || ds.Len() != 2 {
		t.Errorf("Unexpected dataset: run %q, %d entries", ds.RunID, ds.Len())
	}

	if _, err := LoadDataset(context.Background(), &MockOfferRepository{}, ""); err == nil {
		t.Error("Expected error when no runs are published")
	}
}
