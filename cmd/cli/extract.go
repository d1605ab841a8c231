package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/flipsave/flipsave/internal/dataset"
	"github.com/spf13/cobra"
)

var (
	extractText     string
	extractCSV      string
	extractEndpoint string
	extractDelay    time.Duration
	extractRows     int
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a record from one text, or post CSV rows to a running API",
	Long: `With --text, extract a single record locally and print it as JSON.

With --csv, post the text_input column of a CSV file to the API's
/process-text/ endpoint one row at a time, waiting --delay between rows,
and print each response.

Examples:
  flipsave extract --text "Zomato: 50% off up to Rs. 100 with ZOMATO50"
  flipsave extract --csv data/offers_input.csv --rows 5
  flipsave extract --csv data/offers_input.csv --endpoint http://api:8000/process-text/`,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case extractText != "" && extractCSV != "":
			return errors.New("use either --text or --csv, not both")
		case extractText != "":
			return extractOne(cmd)
		case extractCSV != "":
			return postRows(cmd.Context(), cmd.OutOrStdout())
		default:
			return errors.New("one of --text or --csv is required")
		}
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractText, "text", "", "text to extract a record from")
	extractCmd.Flags().StringVar(&extractCSV, "csv", "", "CSV file with a text_input column to post to the API")
	extractCmd.Flags().StringVar(&extractEndpoint, "endpoint", "http://localhost:8000/process-text/", "extraction endpoint URL")
	extractCmd.Flags().DurationVar(&extractDelay, "delay", time.Second, "wait between posted rows")
	extractCmd.Flags().IntVar(&extractRows, "rows", 5, "number of rows to post, 0 for all")
}

func extractOne(cmd *cobra.Command) error {
	app := newApp(cmd)
	defer app.Close()

	if app.Extractor == nil {
		return app.ExtractorErr
	}
	record, err := app.Extractor.Extract(cmd.Context(), extractText)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}

func postRows(ctx context.Context, out io.Writer) error {
	f, err := os.Open(extractCSV)
	if err != nil {
		return fmt.Errorf("open %s: %w", extractCSV, err)
	}
	defer f.Close()

	items, err := dataset.ReadTextInputs(f)
	if err != nil {
		return err
	}
	if extractRows > 0 && extractRows < len(items) {
		items = items[:extractRows]
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	var failed int
	for i, item := range items {
		if i > 0 && extractDelay > 0 {
			select {
			case <-time.After(extractDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		fmt.Fprintf(out, "--- Row %d ---\nInput: %s\n", i+1, item.RawText)
		status, body, err := postText(ctx, client, extractEndpoint, item.RawText)
		if err != nil {
			failed++
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if status != http.StatusOK {
			failed++
		}
		fmt.Fprintf(out, "Status: %d\nResponse: %s\n", status, strings.TrimSpace(body))
	}

	fmt.Fprintf(out, "Posted %d rows, %d failed\n", len(items), failed)
	return nil
}

func postText(ctx context.Context, client *http.Client, endpoint, text string) (int, string, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg != nil && cfg.APIKey != "" {
		req.Header.Set("X-API-Key", cfg.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(body), nil
}
