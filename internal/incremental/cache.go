package incremental

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	derrors "git.home.luguber.info/inful/mdocpack/internal/foundation/errors"
	"git.home.luguber.info/inful/mdocpack/internal/logfields"
)

// ManifestVersion is bumped whenever the manifest layout or hashing changes.
const ManifestVersion = 1

// Entry is the cached record of one compiled document.
type Entry struct {
	Signature *Signature `json:"signature"`
	Output    string     `json:"output"`
	BuildID   string     `json:"build_id"`
	Timestamp time.Time  `json:"timestamp"`
}

// Manifest is the on-disk cache layout.
type Manifest struct {
	Version int               `json:"version"`
	BuildID string            `json:"build_id"`
	Entries map[string]*Entry `json:"entries"`
}

// Cache tracks compiled documents across builds. It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	path     string
	buildID  string
	manifest *Manifest
	logger   *slog.Logger
}

// Open loads the manifest at path. A missing, unreadable or outdated
// manifest starts an empty cache.
func Open(path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		path:     path,
		buildID:  uuid.NewString(),
		manifest: &Manifest{Version: ManifestVersion, Entries: map[string]*Entry{}},
		logger:   logger,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Failed to read build cache", logfields.File(path), logfields.Error(err))
		}
		return c
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil || m.Version != ManifestVersion || m.Entries == nil {
		logger.Warn("Discarding incompatible build cache", logfields.File(path))
		return c
	}
	c.manifest = &m
	return c
}

// BuildID identifies the current build.
func (c *Cache) BuildID() string { return c.buildID }

// Fresh reports whether file can be skipped: an entry exists, its output is
// still on disk and recomputing its signature yields the same hash.
func (c *Cache) Fresh(file, source string, options any) bool {
	c.mu.Lock()
	entry := c.manifest.Entries[file]
	c.mu.Unlock()
	if entry == nil || entry.Signature == nil {
		return false
	}
	if _, err := os.Stat(entry.Output); err != nil {
		return false
	}

	in := Inputs{Source: source, Options: options}
	for _, d := range entry.Signature.Files {
		in.Files = append(in.Files, d.Path)
	}
	for _, d := range entry.Signature.Dirs {
		in.Dirs = append(in.Dirs, d.Path)
	}
	sig, err := ComputeSignature(in)
	if err != nil {
		c.logger.Debug("Cannot recompute signature", logfields.File(file), logfields.Error(err))
		return false
	}
	return sig.Equals(entry.Signature)
}

// Record stores the signature of a successful compilation.
func (c *Cache) Record(file, output string, sig *Signature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manifest.Entries[file] = &Entry{
		Signature: sig,
		Output:    output,
		BuildID:   c.buildID,
		Timestamp: time.Now().UTC(),
	}
}

// Forget drops file, e.g. after a failed compilation.
func (c *Cache) Forget(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.manifest.Entries, file)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.manifest.Entries)
}

// Save writes the manifest atomically.
func (c *Cache) Save() error {
	c.mu.Lock()
	c.manifest.BuildID = c.buildID
	data, err := json.MarshalIndent(c.manifest, "", "  ")
	c.mu.Unlock()
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryInternal, "encode build cache").Build()
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "create cache directory").Build()
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "write build cache").Build()
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "replace build cache").Build()
	}
	return nil
}
