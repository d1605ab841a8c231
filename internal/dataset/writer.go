package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/flipsave/flipsave/internal/domain"
	"github.com/flipsave/flipsave/internal/logger"
)

// Format is a tabular file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatForPath picks the format from the file extension. Anything but .xlsx is CSV.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// FileWriter writes a dataset to one or more local files, replacing each wholesale.
type FileWriter struct {
	paths []string
}

func NewFileWriter(paths ...string) *FileWriter {
	return &FileWriter{paths: paths}
}

func (w *FileWriter) Paths() []string {
	return w.paths
}

// WriteDataset implements pipeline.DatasetWriter.
func (w *FileWriter) WriteDataset(ctx context.Context, ds *domain.Dataset) error {
	log := logger.FromContext(ctx)
	for _, path := range w.paths {
		if FormatForPath(path) == FormatXLSX {
			if err := CheckXLSX(ds); err != nil {
				return fmt.Errorf("write dataset %s: %w", path, err)
			}
		}
	}
	for _, path := range w.paths {
		if err := WriteFile(path, ds); err != nil {
			return err
		}
		log.Info().Str("path", path).Int("records", ds.Len()).Msg("dataset written")
	}
	return nil
}

// WriteFile writes ds to path in the format implied by its extension.
func WriteFile(path string, ds *domain.Dataset) error {
	write := func(f *os.File) error { return WriteCSV(f, ds) }
	if FormatForPath(path) == FormatXLSX {
		write = func(f *os.File) error { return WriteXLSX(f, ds) }
	}
	if err := writeFileAtomic(path, write); err != nil {
		return fmt.Errorf("write dataset %s: %w", path, err)
	}
	return nil
}

// ReadFile reads a table written by WriteFile.
func ReadFile(path string) ([]domain.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Read(f, FormatForPath(path))
}

// Read decodes a table in the given format.
func Read(r io.Reader, format Format) ([]domain.Entry, error) {
	if format == FormatXLSX {
		return ReadXLSX(r)
	}
	return ReadCSV(r)
}
