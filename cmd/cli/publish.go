package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flipsave/flipsave/internal/bootstrap"
	"github.com/flipsave/flipsave/internal/domain"
	"github.com/flipsave/flipsave/internal/gcsuploader"
	"github.com/flipsave/flipsave/internal/notionsync"
	"github.com/google/uuid"
	"github.com/jomei/notionapi"
	"github.com/spf13/cobra"
)

var (
	publishInput string
	uploadFiles  []string
	uploadBucket string
	notionDryRun bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload the raw data file and the dataset files to GCS",
	Long: `Upload copies local files to gs://<bucket>/<prefix>/<upload id>/.
By default the raw data file and every OUTPUT_PATH are uploaded.

Examples:
  flipsave upload
  flipsave upload --bucket flipsave-data --file data/offers.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := newApp(cmd)
		defer app.Close()

		bucket := uploadBucket
		if bucket == "" {
			bucket = cfg.GCSBucket
		}
		if bucket == "" {
			return fmt.Errorf("--bucket or GCS_BUCKET is required")
		}

		files := uploadFiles
		if len(files) == 0 {
			files = append([]string{cfg.RawDataPath}, app.Writer.Paths()...)
		}
		var local []string
		for _, f := range files {
			if gcsuploader.IsGCSURI(f) {
				continue
			}
			if _, err := os.Stat(f); err != nil {
				return fmt.Errorf("upload %s: %w", f, err)
			}
			local = append(local, f)
		}

		uploadID := time.Now().UTC().Format("20060102T150405Z")
		sink := gcsuploader.NewSink(app.Storage, bucket, cfg.GCSPrefix, local...)
		if err := sink.Publish(cmd.Context(), &domain.Dataset{RunID: uploadID}); err != nil {
			return err
		}
		for _, f := range local {
			fmt.Printf("Uploaded %s to gs://%s/%s\n", f, bucket, sink.ObjectName(uploadID, f))
		}
		return nil
	},
}

var loadBQCmd = &cobra.Command{
	Use:   "load-bq",
	Short: "Load the offers dataset into BigQuery",
	Long: `Load-bq reads the dataset file and inserts one row per offer into
<BQ_DATASET>.offers, plus a runs row, creating the tables when missing.

Examples:
  flipsave load-bq
  flipsave load-bq --input data/offers.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app := newApp(cmd)
		defer app.Close()

		ds, err := loadDataset(cmd, app)
		if err != nil {
			return err
		}
		sinkList, err := app.Sinks(ctx, bootstrap.SinkBigQuery)
		if err != nil {
			return err
		}
		if err := sinkList[0].Publish(ctx, ds); err != nil {
			return err
		}
		fmt.Printf("Loaded %d offers into %s.%s.offers (run %s)\n", ds.Len(), cfg.BQProject, cfg.BQDataset, ds.RunID)
		return nil
	},
}

var syncNotionCmd = &cobra.Command{
	Use:   "sync-notion",
	Short: "Mirror the offers dataset into a Notion database",
	Long: `Sync-notion creates a page per offer in NOTION_DATABASE_ID, skipping offers
already present and archiving pages whose offer is no longer in the dataset.

Examples:
  flipsave sync-notion --dry-run
  flipsave sync-notion --input data/offers.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := newApp(cmd)
		defer app.Close()

		if cfg.NotionToken == "" || cfg.NotionDatabaseID == "" {
			return fmt.Errorf("NOTION_TOKEN and NOTION_DATABASE_ID are required")
		}
		ds, err := loadDataset(cmd, app)
		if err != nil {
			return err
		}

		client := notionsync.NewOffersClient(cfg.NotionToken, nil)
		stats, err := notionsync.SyncDataset(cmd.Context(), client, notionapi.DatabaseID(cfg.NotionDatabaseID), ds, notionDryRun)
		if err != nil {
			return err
		}
		fmt.Printf("Notion sync: created %d, skipped %d, archived %d, failed %d\n",
			stats.Created, stats.Skipped, stats.Deleted, stats.Failed)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringSliceVar(&uploadFiles, "file", nil, "file to upload (repeatable)")
	uploadCmd.Flags().StringVar(&uploadBucket, "bucket", "", "GCS bucket (default GCS_BUCKET)")

	for _, c := range []*cobra.Command{loadBQCmd, syncNotionCmd} {
		c.Flags().StringVar(&publishInput, "input", "", "dataset file or gs:// URI (default: first OUTPUT_PATH)")
	}
	syncNotionCmd.Flags().BoolVar(&notionDryRun, "dry-run", false, "log changes without touching Notion")
}

// loadDataset reads a dataset file back into a Dataset with a fresh run id.
func loadDataset(cmd *cobra.Command, app *bootstrap.App) (*domain.Dataset, error) {
	path := publishInput
	if path == "" {
		path = app.Writer.Paths()[0]
	}
	entries, err := bootstrap.LoadEntries(cmd.Context(), app.Storage, path)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s has no records", filepath.Base(strings.TrimSuffix(path, "/")))
	}

	created := time.Now().UTC()
	if info, err := os.Stat(path); err == nil {
		created = info.ModTime().UTC()
	}
	return &domain.Dataset{RunID: uuid.New().String(), CreatedAt: created, Entries: entries}, nil
}
