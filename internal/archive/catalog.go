// Package archive provides metadata lookup for interview records.
//
// Interviews live in a flat JSON file maintained outside this process.
// Catalog caches the parsed file and re-reads it only when the file's
// modification time changes.
package archive

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Interview is one interview record from the metadata file.
type Interview struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	ParticipantID   string `json:"participant_id"`
	ParticipantName string `json:"participant_name"`
	RecordedAt      string `json:"recorded_at,omitempty"`
	Summary         string `json:"summary,omitempty"`
}

// StatFunc reports file metadata. Injected so tests can force cache
// invalidation without touching the filesystem clock.
type StatFunc func(name string) (fs.FileInfo, error)

// ReadFunc reads a file's contents.
type ReadFunc func(name string) ([]byte, error)

// Option configures a Catalog.
type Option func(*Catalog)

// WithStat overrides the stat function used for invalidation checks.
func WithStat(stat StatFunc) Option {
	return func(c *Catalog) { c.stat = stat }
}

// WithReadFile overrides the file reader.
func WithReadFile(read ReadFunc) Option {
	return func(c *Catalog) { c.read = read }
}

// Catalog is a read-through cache over the interview metadata file.
// Safe for concurrent use.
type Catalog struct {
	path   string
	stat   StatFunc
	read   ReadFunc
	logger *slog.Logger

	mu      sync.Mutex
	loaded  bool
	modTime time.Time
	byID    map[string]Interview
	ordered []Interview
}

// NewCatalog creates a Catalog over the metadata file at path.
// The file is not read until the first lookup.
func NewCatalog(path string, logger *slog.Logger, opts ...Option) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		path:   path,
		stat:   os.Stat,
		read:   os.ReadFile,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ByIDs returns the interviews for the given ids, in the order requested.
// Unknown ids are skipped.
func (c *Catalog) ByIDs(ids []string) ([]Interview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.refreshLocked(); err != nil {
		return nil, err
	}

	out := make([]Interview, 0, len(ids))
	for _, id := range ids {
		if iv, ok := c.byID[id]; ok {
			out = append(out, iv)
		}
	}
	return out, nil
}

// All returns every interview in file order.
func (c *Catalog) All() ([]Interview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.refreshLocked(); err != nil {
		return nil, err
	}

	out := make([]Interview, len(c.ordered))
	copy(out, c.ordered)
	return out, nil
}

// refreshLocked reloads the file when its modification time differs from
// the cached one. Caller holds c.mu.
func (c *Catalog) refreshLocked() error {
	info, err := c.stat(c.path)
	if err != nil {
		return fmt.Errorf("stat interview metadata %q: %w", c.path, err)
	}

	if c.loaded && info.ModTime().Equal(c.modTime) {
		return nil
	}

	data, err := c.read(c.path)
	if err != nil {
		return fmt.Errorf("reading interview metadata %q: %w", c.path, err)
	}

	var interviews []Interview
	if err := json.Unmarshal(data, &interviews); err != nil {
		return fmt.Errorf("parsing interview metadata %q: %w", c.path, err)
	}

	byID := make(map[string]Interview, len(interviews))
	for _, iv := range interviews {
		byID[iv.ID] = iv
	}

	c.byID = byID
	c.ordered = interviews
	c.modTime = info.ModTime()
	c.loaded = true

	c.logger.Debug("reloaded interview metadata",
		"path", c.path, "count", len(interviews), "mod_time", c.modTime)
	return nil
}
