package notionsync

import (
	"context"

	"github.com/jomei/notionapi"
)

// NotionService is the part of the Notion API the offers sync needs.
type NotionService interface {
	CreateOfferPage(ctx context.Context, databaseID notionapi.DatabaseID, offerKey string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryOfferPages returns the page of results starting at cursor, oldest first.
	QueryOfferPages(ctx context.Context, databaseID notionapi.DatabaseID, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error)

	ArchiveOfferPage(ctx context.Context, pageID notionapi.PageID, offerKey string) error
}
