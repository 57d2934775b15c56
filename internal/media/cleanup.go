package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/glassworks/internal/obs"
	"github.com/noah-isme/glassworks/internal/store"
)

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}, ".gif": {}, ".svg": {}, ".avif": {},
}

// DocumentLoader reads the catalog document.
type DocumentLoader interface {
	Load(ctx context.Context) (store.Document, error)
}

// Orphan is an image file no catalog entry points at.
type Orphan struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// ScanResult summarises a media directory walk.
type ScanResult struct {
	Total      int      `json:"total"`
	Referenced int      `json:"referenced"`
	Orphans    []Orphan `json:"orphans"`
	Bytes      int64    `json:"bytes"`
}

// FileError records a file that could not be removed.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// CleanupResult reports what Cleanup removed.
type CleanupResult struct {
	DryRun  bool        `json:"dryRun"`
	Removed []string    `json:"removed"`
	Bytes   int64       `json:"bytesReclaimed"`
	Errors  []FileError `json:"errors,omitempty"`
}

// Cleaner finds and removes unreferenced images under a media root.
type Cleaner struct {
	root   string
	loader DocumentLoader
	logger zerolog.Logger
}

// NewCleaner constructs a Cleaner for dir.
func NewCleaner(dir string, loader DocumentLoader, logger zerolog.Logger) (*Cleaner, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("media: directory is required")
	}
	if loader == nil {
		return nil, errors.New("media: document loader is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("media: resolve %s: %w", dir, err)
	}
	return &Cleaner{root: abs, loader: loader, logger: logger}, nil
}

// Root returns the absolute media directory.
func (c *Cleaner) Root() string { return c.root }

// Scan walks the media directory and reports image files not referenced by the catalog.
// A missing directory scans as empty.
func (c *Cleaner) Scan(ctx context.Context) (ScanResult, error) {
	doc, err := c.loader.Load(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("media: load document: %w", err)
	}
	refs := References(doc)

	out := ScanResult{Orphans: []Orphan{}}
	err = filepath.WalkDir(c.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) && p == c.root {
				return fs.SkipAll
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(p))]; !ok {
			return nil
		}
		rel, err := filepath.Rel(c.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		out.Total++
		if _, ok := refs[rel]; ok {
			out.Referenced++
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out.Orphans = append(out.Orphans, Orphan{Path: rel, Size: info.Size()})
		out.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return ScanResult{}, fmt.Errorf("media: scan %s: %w", c.root, err)
	}
	sort.Slice(out.Orphans, func(i, j int) bool { return out.Orphans[i].Path < out.Orphans[j].Path })
	return out, nil
}

// Cleanup removes orphaned images, or only lists them when dryRun is set.
func (c *Cleaner) Cleanup(ctx context.Context, dryRun bool) (CleanupResult, error) {
	scan, err := c.Scan(ctx)
	if err != nil {
		return CleanupResult{}, err
	}
	out := CleanupResult{DryRun: dryRun, Removed: []string{}}
	for _, o := range scan.Orphans {
		full, ok := c.resolve(o.Path)
		if !ok {
			out.Errors = append(out.Errors, FileError{Path: o.Path, Error: "outside media directory"})
			continue
		}
		if !dryRun {
			if err := os.Remove(full); err != nil {
				out.Errors = append(out.Errors, FileError{Path: o.Path, Error: err.Error()})
				continue
			}
			if obs.MediaOrphansRemoved != nil {
				obs.MediaOrphansRemoved.Inc()
			}
		}
		out.Removed = append(out.Removed, o.Path)
		out.Bytes += o.Size
	}
	c.logger.Info().
		Bool("dry_run", dryRun).
		Int("removed", len(out.Removed)).
		Int64("bytes", out.Bytes).
		Int("errors", len(out.Errors)).
		Msg("media cleanup finished")
	return out, nil
}

func (c *Cleaner) resolve(rel string) (string, bool) {
	full := filepath.Join(c.root, filepath.FromSlash(rel))
	within, err := filepath.Rel(c.root, full)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}

// References returns the normalised image paths used by products and categories.
func References(doc store.Document) map[string]struct{} {
	refs := make(map[string]struct{})
	add := func(ref string) {
		if n := NormaliseRef(ref); n != "" {
			refs[n] = struct{}{}
		}
	}
	for _, p := range doc.Products {
		for _, img := range p.Images {
			add(img)
		}
	}
	for _, cat := range doc.Categories {
		add(cat.Image)
	}
	return refs
}

// NormaliseRef maps "/images/a/b.jpg", "/a/b.jpg" and "a/b.jpg" to "a/b.jpg".
// Absolute URLs and paths escaping the media root normalise to "".
func NormaliseRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, "://") {
		return ""
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimPrefix(ref, "/images/")
	ref = strings.TrimPrefix(ref, "/")
	cleaned := path.Clean(ref)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return ""
	}
	return cleaned
}
