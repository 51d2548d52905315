package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spontis-app/spontis/internal/event"
	"github.com/spontis-app/spontis/internal/logger"
	"github.com/spontis-app/spontis/internal/report"
	"github.com/spontis-app/spontis/internal/views"
)

// File names inside the data directory.
const (
	FeedFile     = "events.json"
	TodayFile    = "today.json"
	TonightFile  = "tonight.json"
	HeatmapFile  = "heatmap.json"
	CalendarFile = "events.ics"
	MetaFile     = "generated/meta.json"
)

// Storage handles persistence of pipeline artifacts
type Storage struct {
	dataDir string
}

// New creates a new Storage instance
func New(dataDir string) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{
		dataDir: dataDir,
	}, nil
}

// Dir returns the resolved data directory.
func (s *Storage) Dir() string {
	return s.dataDir
}

// Path joins name onto the data directory.
func (s *Storage) Path(name string) string {
	return filepath.Join(s.dataDir, filepath.FromSlash(name))
}

// SaveFeed writes the canonical feed to events.json.
func (s *Storage) SaveFeed(events []*event.Event) error {
	return WriteFeed(s.Path(FeedFile), events)
}

// LoadFeed reads events.json. A missing file yields an empty feed.
func (s *Storage) LoadFeed() ([]*event.Event, error) {
	return ReadFeed(s.Path(FeedFile))
}

// SaveViews writes today, tonight and heatmap next to the feed.
func (s *Storage) SaveViews(set views.Set) error {
	return WriteViews(s.dataDir, set)
}

// SaveCalendar writes the iCalendar export.
func (s *Storage) SaveCalendar(ics string) error {
	return WriteFileAtomic(s.Path(CalendarFile), []byte(ics))
}

// SaveMeta writes run metadata to generated/meta.json.
func (s *Storage) SaveMeta(m *report.Meta) error {
	return WriteJSON(s.Path(MetaFile), m)
}

// LoadMeta reads generated/meta.json.
func (s *Storage) LoadMeta() (*report.Meta, error) {
	data, err := os.ReadFile(s.Path(MetaFile))
	if err != nil {
		return nil, fmt.Errorf("reading run metadata: %w", err)
	}
	var m report.Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing run metadata: %w", err)
	}
	return &m, nil
}

// WriteFeed writes events to path. A nil feed is written as [].
func WriteFeed(path string, events []*event.Event) error {
	if events == nil {
		events = []*event.Event{}
	}
	return WriteJSON(path, events)
}

// ReadFeed decodes a feed file. A missing file is logged and treated as an
// empty feed.
func ReadFeed(path string) ([]*event.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("Feed file not found, using empty feed", logger.Fields{"path": path})
			return []*event.Event{}, nil
		}
		return nil, fmt.Errorf("reading feed: %w", err)
	}

	var events []*event.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", path, err)
	}

	out := make([]*event.Event, 0, len(events))
	for _, e := range events {
		if e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// WriteViews writes the three view files into dir.
func WriteViews(dir string, set views.Set) error {
	files := []struct {
		name  string
		value any
	}{
		{TodayFile, nonNil(set.Today)},
		{TonightFile, nonNil(set.Tonight)},
		{HeatmapFile, set.Heatmap},
	}
	for _, f := range files {
		if err := WriteJSON(filepath.Join(dir, f.name), f.value); err != nil {
			return err
		}
	}
	return nil
}

func nonNil(events []*event.Event) []*event.Event {
	if events == nil {
		return []*event.Event{}
	}
	return events
}

// Encode renders v as two-space indented JSON without HTML escaping,
// terminated by a newline.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON encodes v and writes it atomically to path.
func WriteJSON(path string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to a temp file beside path and renames it over
// path. Parent directories are created as needed.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() // nolint:errcheck
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() // nolint:errcheck
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
