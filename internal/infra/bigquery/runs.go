package bigquery

import (
	"time"
)

// Run statuses recorded in the runs table.
const (
	RunStatusPublished = "PUBLISHED"
)

type RunRow struct {
	RunID       string    `bigquery:"run_id"`       // REQUIRED
	CreatedTS   time.Time `bigquery:"created_ts"`   // REQUIRED, when the dataset was built
	PublishedTS time.Time `bigquery:"published_ts"` // REQUIRED
	Records     int64     `bigquery:"records"`      // REQUIRED
	Status      string    `bigquery:"status"`       // REQUIRED
}
