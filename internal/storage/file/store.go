// Package file implements a JSON-file snapshot store.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/internradar/crawler/internal/scrape"
)

// Store persists the snapshot as one pretty-printed JSON array.
type Store struct {
	path string
}

// New creates a Store writing to path, creating parent directories as
// needed.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("snapshot path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create snapshot directory: %w", err)
		}
	}
	return &Store{path: path}, nil
}

// Load reads the current snapshot. A missing file is an empty snapshot, not
// an error.
func (s *Store) Load(_ context.Context) ([]scrape.Listing, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var listings []scrape.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return listings, nil
}

// Save writes the full snapshot. The data goes to a temp file in the same
// directory first and is renamed into place, so a failed write never leaves
// a partial snapshot behind.
func (s *Store) Save(_ context.Context, listings []scrape.Listing) error {
	if listings == nil {
		listings = []scrape.Listing{}
	}
	data, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
