// Package dataset reads and writes the files exchanged between pipeline stages:
// the raw item handoff, the processed offers table and CSV text inputs.
package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flipsave/flipsave/internal/domain"
	"github.com/flipsave/flipsave/internal/gcsuploader"
)

// RawFile is the JSON handoff between fetch and process, stored locally or at a gs:// URI.
type RawFile struct {
	path    string
	storage gcsuploader.StorageService
}

// NewRawFile returns a RawFile at path. storage is only used for gs:// paths and may be nil otherwise.
func NewRawFile(path string, storage gcsuploader.StorageService) *RawFile {
	return &RawFile{path: path, storage: storage}
}

func (f *RawFile) Path() string {
	return f.path
}

// SaveRaw writes items as an indented JSON array of {"raw_text": ...} objects.
func (f *RawFile) SaveRaw(ctx context.Context, items []domain.RawItem) error {
	data, err := EncodeRawItems(items)
	if err != nil {
		return err
	}

	if gcsuploader.IsGCSURI(f.path) {
		if f.storage == nil {
			return fmt.Errorf("save raw items to %s: no storage configured", f.path)
		}
		bucket, object, err := gcsuploader.ParseGCSURI(f.path)
		if err != nil {
			return err
		}
		return f.storage.UploadBytes(ctx, bucket, object, "application/json", data)
	}

	if err := writeFileAtomic(f.path, func(w *os.File) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return fmt.Errorf("save raw items: %w", err)
	}
	return nil
}

// LoadRaw reads the handoff. Item indexes are the positions in the file.
func (f *RawFile) LoadRaw(ctx context.Context) ([]domain.RawItem, error) {
	var (
		data []byte
		err  error
	)
	if gcsuploader.IsGCSURI(f.path) {
		if f.storage == nil {
			return nil, fmt.Errorf("load raw items from %s: no storage configured", f.path)
		}
		data, err = f.storage.FetchFromGCS(ctx, f.path)
	} else {
		data, err = os.ReadFile(f.path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s not found, run fetch first: %w", f.path, err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load raw items: %w", err)
	}
	return DecodeRawItems(data)
}

// EncodeRawItems renders items in the handoff format.
func EncodeRawItems(items []domain.RawItem) ([]byte, error) {
	if items == nil {
		items = []domain.RawItem{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return nil, fmt.Errorf("encode raw items: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRawItems parses the handoff format.
func DecodeRawItems(data []byte) ([]domain.RawItem, error) {
	var items []domain.RawItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode raw items: %w", err)
	}
	for i := range items {
		items[i].Index = i
		items[i].RawText = domain.NormalizeNewlines(items[i].RawText)
	}
	return items, nil
}

// writeFileAtomic writes path through a temporary file in the same directory
// and renames it into place, so readers never see a partial file.
func writeFileAtomic(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
