package notionsync

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jomei/notionapi"
)

// queryPageSize is the largest page size the Notion API accepts.
const queryPageSize = 100

// OffersClient is the NotionService backed by the Notion API.
type OffersClient struct {
	api *notionapi.Client
}

// NewOffersClient creates a client authenticated with an integration token.
// httpClient may be nil.
func NewOffersClient(token string, httpClient *http.Client) *OffersClient {
	var opts []notionapi.ClientOption
	if httpClient != nil {
		opts = append(opts, notionapi.WithHTTPClient(httpClient))
	}
	return &OffersClient{api: notionapi.NewClient(notionapi.Token(token), opts...)}
}

// CreateOfferPage adds the page for one offer to the offers database.
func (c *OffersClient) CreateOfferPage(ctx context.Context, databaseID notionapi.DatabaseID, offerKey string, properties notionapi.Properties) (*notionapi.Page, error) {
	page, err := c.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: databaseID,
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("create page for offer %s: %w", offerKey, err)
	}
	return page, nil
}

// QueryOfferPages returns one page of the offers database, oldest first.
// An empty cursor starts from the beginning.
func (c *OffersClient) QueryOfferPages(ctx context.Context, databaseID notionapi.DatabaseID, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := c.api.Database.Query(ctx, databaseID, &notionapi.DatabaseQueryRequest{
		Sorts: []notionapi.SortObject{
			{Timestamp: notionapi.TimestampCreated, Direction: notionapi.SortOrderASC},
		},
		StartCursor: cursor,
		PageSize:    queryPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("query offers database %s: %w", databaseID, err)
	}
	return resp, nil
}

// ArchiveOfferPage archives the page holding offerKey. Notion has no hard
// delete; archived pages drop out of database queries.
func (c *OffersClient) ArchiveOfferPage(ctx context.Context, pageID notionapi.PageID, offerKey string) error {
	if _, err := c.api.Page.Update(ctx, pageID, &notionapi.PageUpdateRequest{Archived: true}); err != nil {
		return fmt.Errorf("archive page %s for offer %s: %w", pageID, offerKey, err)
	}
	return nil
}
