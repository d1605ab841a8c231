package main

import (
	"errors"

	"github.com/flipsave/flipsave/internal/bootstrap"
	"github.com/flipsave/flipsave/internal/domain"
	infraBQ "github.com/flipsave/flipsave/internal/infra/bigquery"
	"github.com/flipsave/flipsave/internal/report"
	"github.com/spf13/cobra"
)

var (
	reportOutput     string
	reportInput      string
	reportVendors    []string
	reportCategories []string
	reportFromBQ     bool
	reportRunID      string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarise the offers dataset",
	Long: `Report loads the offers dataset and prints the dashboard aggregates:
total offers, unique vendors, the top vendors and the category distribution.
Vendor names are normalized (trimmed, title case) before counting.

Examples:
  flipsave report
  flipsave report -o json --category Shopping --vendor Amazon --vendor Flipkart
  flipsave report --from-bigquery --run-id 5f0c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app := newApp(cmd)
		defer app.Close()

		var entries []domain.Entry
		var err error
		switch {
		case reportFromBQ:
			repo, rerr := app.OfferRepository(ctx)
			if rerr != nil {
				return rerr
			}
			ds, lerr := infraBQ.LoadDataset(ctx, repo, reportRunID)
			if lerr != nil {
				return lerr
			}
			entries = ds.Entries
		case reportInput != "":
			entries, err = bootstrap.LoadEntries(ctx, app.Storage, reportInput)
		default:
			entries, err = app.LoadEntries(ctx)
		}
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.New("dataset is empty")
		}

		rep := report.Build(entries, report.Filter{Vendors: reportVendors, Categories: reportCategories})
		return report.Write(cmd.OutOrStdout(), rep, reportOutput)
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", report.OutputTable, "output format: table, json or yaml")
	reportCmd.Flags().StringVar(&reportInput, "input", "", "dataset file or gs:// URI (default: first OUTPUT_PATH)")
	reportCmd.Flags().StringSliceVar(&reportVendors, "vendor", nil, "only include these vendors (repeatable)")
	reportCmd.Flags().StringSliceVar(&reportCategories, "category", nil, "only include these categories (repeatable)")
	reportCmd.Flags().BoolVar(&reportFromBQ, "from-bigquery", false, "read offers from BigQuery instead of a file")
	reportCmd.Flags().StringVar(&reportRunID, "run-id", "", "BigQuery run to report on (default: latest)")
}
