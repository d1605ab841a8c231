package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/flipsave/flipsave/internal/domain"
)

// TextInputColumn is the column holding input texts in a CSV text source.
const TextInputColumn = "text_input"

// ReadTextInputs returns the non-blank values of the text_input column in order.
func ReadTextInputs(r io.Reader) ([]domain.RawItem, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := -1
	for i, name := range header {
		if cleanHeader(name) == TextInputColumn {
			col = i
			break
		}
	}
	if col == -1 {
		return nil, fmt.Errorf("missing column %q", TextInputColumn)
	}

	var items []domain.RawItem
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			continue
		}
		items = append(items, domain.RawItem{Index: len(items), RawText: domain.NormalizeNewlines(row[col])})
	}
	return items, nil
}

// CSVSource is a TextSource reading the text_input column of a local CSV file.
type CSVSource struct {
	Path string
}

func (s *CSVSource) Name() string {
	return "csv:" + s.Path
}

func (s *CSVSource) Fetch(ctx context.Context) ([]domain.RawItem, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open text inputs: %w", err)
	}
	defer f.Close()
	return ReadTextInputs(f)
}
