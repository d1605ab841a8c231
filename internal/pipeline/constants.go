package pipeline

import "time"

// Default values for extraction and batch runs.
// They can be overridden through configuration.
const (
	// DefaultModelName is the default Gemini model used for extraction.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultMaxAttempts bounds the model calls made for one text.
	DefaultMaxAttempts = 2

	// DefaultPace is the wait after each attempted item in a batch.
	DefaultPace = time.Second

	// DefaultLimit is the number of items a batch processes; 0 means all.
	DefaultLimit = 10

	// DefaultRawDataPath is where fetched items are handed off to the process stage.
	DefaultRawDataPath = "data/raw_api_data.json"

	// DefaultOutputPath is where the processed dataset is written.
	DefaultOutputPath = "data/processed_offers_from_api.csv"
)
