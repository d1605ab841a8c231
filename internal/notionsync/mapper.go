package notionsync

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/flipsave/flipsave/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the offers database.
const (
	PropVendor       = "Vendor"
	PropOfferKey     = "Offer Key"
	PropType         = "Type"
	PropCategory     = "Category"
	PropAmount       = "Amount"
	PropOfferDetails = "Offer Details"
	PropCouponCode   = "Coupon Code"
	PropExpiry       = "Expiry"
	PropOriginalText = "Original Text"
	PropRunID        = "Run ID"
)

// Notion caps a single rich text object at 2000 characters.
const maxRichText = 2000

// OfferKey identifies an entry by its source text, so the same message is
// mirrored once no matter how many runs extracted it.
func OfferKey(e domain.Entry) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(e.OriginalText())))
	return hex.EncodeToString(sum[:8])
}

// EntryToNotionProperties converts a dataset entry to Notion properties.
func EntryToNotionProperties(runID string, e domain.Entry) notionapi.Properties {
	rec := e.Record

	title := "Unknown vendor"
	if rec.Vendor != nil && strings.TrimSpace(*rec.Vendor) != "" {
		title = strings.TrimSpace(*rec.Vendor)
	}

	props := notionapi.Properties{
		PropVendor: notionapi.TitleProperty{
			Title: richText(title),
		},
		PropOfferKey: notionapi.RichTextProperty{
			RichText: richText(OfferKey(e)),
		},
		PropType: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(rec.TransactionType)},
		},
		PropCategory: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(rec.Category)},
		},
		PropOriginalText: notionapi.RichTextProperty{
			RichText: richText(e.OriginalText()),
		},
	}

	if runID != "" {
		props[PropRunID] = notionapi.RichTextProperty{RichText: richText(runID)}
	}
	if rec.Amount != nil {
		props[PropAmount] = notionapi.NumberProperty{Number: rec.Amount.InexactFloat64()}
	}
	if rec.OfferDetails != nil && *rec.OfferDetails != "" {
		props[PropOfferDetails] = notionapi.RichTextProperty{RichText: richText(*rec.OfferDetails)}
	}
	if rec.CouponCode != nil && *rec.CouponCode != "" {
		props[PropCouponCode] = notionapi.RichTextProperty{RichText: richText(*rec.CouponCode)}
	}

	// Expiry dates the model returned in another shape are left off.
	if rec.ExpiryDate != nil {
		if t, err := time.Parse(time.DateOnly, strings.TrimSpace(*rec.ExpiryDate)); err == nil {
			d := notionapi.Date(t)
			props[PropExpiry] = notionapi.DateProperty{
				Date: &notionapi.DateObject{Start: &d},
			}
		}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	if r := []rune(content); len(r) > maxRichText {
		content = string(r[:maxRichText])
	}
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}
