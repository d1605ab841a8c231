package notionsync

import (
	"context"
	"fmt"

	"github.com/flipsave/flipsave/internal/domain"
	"github.com/flipsave/flipsave/internal/logger"
	"github.com/jomei/notionapi"
)

// Stats summarises one sync.
type Stats struct {
	Created int
	Skipped int
	Deleted int
	Failed  int
}

// SyncDataset mirrors ds into a Notion database. Pages whose Offer Key is
// already present are skipped; pages for keys no longer in the dataset are
// archived, as are later copies of a key, so the database tracks the latest
// dataset.
func SyncDataset(ctx context.Context, notionClient NotionService, databaseID notionapi.DatabaseID, ds *domain.Dataset, dryRun bool) (Stats, error) {
	log := logger.FromContext(ctx)
	var stats Stats

	log.Info().
		Str("run_id", ds.RunID).
		Int("entries", ds.Len()).
		Bool("dry_run", dryRun).
		Msg("Starting offers sync to Notion")

	wanted := make(map[string]domain.Entry, ds.Len())
	var order []string
	for _, e := range ds.Entries {
		key := OfferKey(e)
		if _, dup := wanted[key]; dup {
			continue
		}
		wanted[key] = e
		order = append(order, key)
	}

	notionPages, err := queryAllOfferPages(ctx, notionClient, databaseID)
	if err != nil {
		return stats, fmt.Errorf("failed to query Notion pages: %w", err)
	}

	existing := make(map[string]bool)
	for _, page := range notionPages {
		key := extractOfferKey(page)
		if key != "" && !existing[key] {
			if _, ok := wanted[key]; ok {
				existing[key] = true
				continue
			}
		}

		if dryRun {
			log.Info().Str("offer_key", key).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			stats.Deleted++
			continue
		}
		if err := notionClient.ArchiveOfferPage(ctx, notionapi.PageID(page.ID), key); err != nil {
			log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		stats.Deleted++
	}

	for _, key := range order {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if existing[key] {
			stats.Skipped++
			continue
		}
		if dryRun {
			log.Info().Str("offer_key", key).Msg("[DRY RUN] Would create Notion page")
			stats.Created++
			continue
		}

		page, err := notionClient.CreateOfferPage(ctx, databaseID, key, EntryToNotionProperties(ds.RunID, wanted[key]))
		if err != nil {
			log.Warn().Err(err).Str("offer_key", key).Msg("Failed to create Notion page")
			stats.Failed++
			continue
		}
		log.Debug().Str("offer_key", key).Str("page_id", string(page.ID)).Msg("Created Notion page")
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("skipped", stats.Skipped).
		Int("deleted", stats.Deleted).
		Int("failed", stats.Failed).
		Msg("Offers sync completed")

	return stats, nil
}

// Sink publishes datasets to Notion as part of a pipeline run.
type Sink struct {
	client     NotionService
	databaseID notionapi.DatabaseID
}

func NewSink(client NotionService, databaseID string) *Sink {
	return &Sink{client: client, databaseID: notionapi.DatabaseID(databaseID)}
}

func (s *Sink) Name() string { return "notion" }

func (s *Sink) Publish(ctx context.Context, ds *domain.Dataset) error {
	stats, err := SyncDataset(ctx, s.client, s.databaseID, ds, false)
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		return fmt.Errorf("notion sync: %d page operations failed", stats.Failed)
	}
	return nil
}

// queryAllOfferPages follows the cursor until every page of the database is read.
func queryAllOfferPages(ctx context.Context, notionClient NotionService, databaseID notionapi.DatabaseID) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		resp, err := notionClient.QueryOfferPages(ctx, databaseID, cursor)
		if err != nil {
			return nil, err
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

// extractOfferKey returns "" when the page has no Offer Key.
func extractOfferKey(page notionapi.Page) string {
	if prop, ok := page.Properties[PropOfferKey]; ok {
		if richText, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(richText.RichText) > 0 {
				return richText.RichText[0].PlainText
			}
		}
	}
	return ""
}
