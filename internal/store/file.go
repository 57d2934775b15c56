package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Locker serialises writers across processes. lock.Locker satisfies it.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Config configures a file Store.
type Config struct {
	Path    string
	Locker  Locker
	LockKey string
	LockTTL time.Duration
}

// Store persists the Document as a single JSON file. Writers are serialised in-process and,
// when a Locker is configured, across processes. Concurrent writers are last-write-wins.
type Store struct {
	path    string
	locker  Locker
	lockKey string
	lockTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	hooksMu sync.RWMutex
	hooks   []func(context.Context, Document)
}

// New constructs a file-backed Store.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("store: path is required")
	}
	key := cfg.LockKey
	if key == "" {
		key = "lock:catalog-document"
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Store{path: cfg.Path, locker: cfg.Locker, lockKey: key, lockTTL: ttl, now: time.Now}, nil
}

// Path returns the data file location.
func (s *Store) Path() string { return s.path }

// OnWrite registers fn to run after every successful write.
func (s *Store) OnWrite(fn func(context.Context, Document)) {
	if fn == nil {
		return
	}
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, fn)
	s.hooksMu.Unlock()
}

// Load reads the current document. A missing file yields an empty document.
func (s *Store) Load(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	return s.read()
}

// Update applies fn to the current document and persists the result. fn's error aborts the write.
func (s *Store) Update(ctx context.Context, fn func(*Document) error) (Document, error) {
	var out Document
	err := s.exclusive(ctx, func(context.Context) error {
		doc, err := s.read()
		if err != nil {
			return err
		}
		if err := fn(&doc); err != nil {
			return err
		}
		doc.Version++
		doc.UpdatedAt = s.now().UTC()
		if err := s.write(doc); err != nil {
			return err
		}
		out = doc
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	s.notify(ctx, out)
	return out, nil
}

// Replace overwrites the whole document, keeping the version counter monotonic.
func (s *Store) Replace(ctx context.Context, doc Document) (Document, error) {
	return s.Update(ctx, func(current *Document) error {
		version := current.Version
		*current = doc
		current.Version = version
		current.normalise()
		return nil
	})
}

func (s *Store) exclusive(ctx context.Context, fn func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithLock(ctx, s.lockKey, s.lockTTL, fn)
}

func (s *Store) read() (Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		doc := Document{}
		doc.normalise()
		return doc, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("store: read %s: %w", s.path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("store: decode %s: %w", s.path, err)
	}
	doc.normalise()
	return doc, nil
}

func (s *Store) write(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".catalog-*.json")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}

func (s *Store) notify(ctx context.Context, doc Document) {
	s.hooksMu.RLock()
	hooks := append([]func(context.Context, Document){}, s.hooks...)
	s.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, doc)
	}
}
