package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/sync/singleflight"
)

// DefaultFilePath is the document path used when FileConfig.Path is empty.
const DefaultFilePath = "itemcache.json"

// FileConfig configures a File store.
type FileConfig struct {
	// FS is the filesystem holding the document.
	// Default: osfs rooted at the working directory
	FS billy.Filesystem

	// Path is the document path within FS.
	// Default: DefaultFilePath
	Path string

	// Perm is the permission used when creating the document.
	// Default: 0600
	Perm os.FileMode
}

// File is a durable Store that keeps every entry in one JSON document.
//
// The document is read lazily on first access and rewritten through a
// temporary file and rename on every mutation.
type File struct {
	config FileConfig

	mu      sync.RWMutex
	entries map[string]string
	loaded  bool
	group   singleflight.Group
}

// NewFile creates a file-backed store.
func NewFile(config FileConfig) *File {
	if config.FS == nil {
		config.FS = osfs.New(".")
	}
	if config.Path == "" {
		config.Path = DefaultFilePath
	}
	if config.Perm == 0 {
		config.Perm = 0o600
	}
	return &File{config: config}
}

// Config returns the store configuration.
func (f *File) Config() FileConfig {
	return f.config
}

// Get retrieves the text for key. Returns ("", false, nil) on miss.
func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	if err := f.ensureLoaded(ctx); err != nil {
		return "", false, err
	}
	f.mu.RLock()
	v, ok := f.entries[key]
	f.mu.RUnlock()
	return v, ok, nil
}

// Set stores text under key and rewrites the document.
func (f *File) Set(ctx context.Context, key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := f.ensureLoaded(ctx); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.entries[key]
	f.entries[key] = value
	if err := f.writeLocked(); err != nil {
		// Keep memory consistent with what is on disk.
		if had {
			f.entries[key] = prev
		} else {
			delete(f.entries, key)
		}
		return err
	}
	return nil
}

// Remove deletes key and rewrites the document. Idempotent - no error on miss.
func (f *File) Remove(ctx context.Context, key string) error {
	if err := f.ensureLoaded(ctx); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.entries[key]
	if !had {
		return nil
	}
	delete(f.entries, key)
	if err := f.writeLocked(); err != nil {
		f.entries[key] = prev
		return err
	}
	return nil
}

// Reload discards the in-memory view so the next access rereads the document.
func (f *File) Reload() {
	f.mu.Lock()
	f.entries = nil
	f.loaded = false
	f.mu.Unlock()
}

func (f *File) ensureLoaded(ctx context.Context) error {
	f.mu.RLock()
	loaded := f.loaded
	f.mu.RUnlock()
	if loaded {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Concurrent first readers share a single document read.
	_, err, _ := f.group.Do("load", func() (any, error) {
		entries, err := f.read()
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		if !f.loaded {
			f.entries = entries
			f.loaded = true
		}
		f.mu.Unlock()
		return nil, nil
	})
	return err
}

func (f *File) read() (map[string]string, error) {
	data, err := util.ReadFile(f.config.FS, f.config.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", f.config.Path, err)
	}

	entries := make(map[string]string)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, f.config.Path, err)
	}
	return entries, nil
}

func (f *File) writeLocked() error {
	data, err := json.Marshal(f.entries)
	if err != nil {
		return fmt.Errorf("store: encode document: %w", err)
	}

	if dir := path.Dir(f.config.Path); dir != "." && dir != "/" {
		if err := f.config.FS.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("store: create %s: %w", dir, err)
		}
	}

	tmp := f.config.Path + ".tmp"
	if err := util.WriteFile(f.config.FS, tmp, data, f.config.Perm); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := f.config.FS.Rename(tmp, f.config.Path); err != nil {
		_ = f.config.FS.Remove(tmp)
		return fmt.Errorf("store: rename %s: %w", tmp, err)
	}
	return nil
}

// Ensure File implements Store
var _ Store = (*File)(nil)
