package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spontis-app/spontis/internal/event"
)

// File reads raw records written by an external scraper.
type File struct {
	name string
	path string
}

// NewFile creates a File source.
func NewFile(name, path string) *File {
	return &File{name: name, path: path}
}

func (f *File) Name() string { return f.name }

// Fetch decodes the file as a JSON array of objects. Records without a
// source are attributed to this source.
func (f *File) Fetch(ctx context.Context) ([]event.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := ReadRawFile(f.path)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if s, ok := r["source"].(string); !ok || s == "" {
			r["source"] = f.name
		}
	}
	return records, nil
}

// ReadRawFile decodes a JSON array of raw records.
func ReadRawFile(path string) ([]event.Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var records []event.Raw
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	out := records[:0]
	for _, r := range records {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}
