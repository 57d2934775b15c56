package media

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/glassworks/internal/store"
)

type staticLoader struct{ doc store.Document }

func (s staticLoader) Load(context.Context) (store.Document, error) { return s.doc, nil }

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
}

func newCleaner(t *testing.T) (*Cleaner, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "beaker.jpg", "used")
	writeFile(t, root, "flasks/conical.PNG", "used")
	writeFile(t, root, "category/flasks.webp", "used")
	writeFile(t, root, "old/unused.jpeg", "12345")
	writeFile(t, root, "stray.svg", "abc")
	writeFile(t, root, "notes.txt", "not an image")

	doc := store.Document{
		Categories: []store.Category{{ID: "c1", Image: "/category/flasks.webp"}},
		Products: []store.Product{
			{ID: "p1", Images: []string{"/images/beaker.jpg", "https://cdn.example.com/x.jpg"}},
			{ID: "p2", Images: []string{"flasks/conical.PNG?v=2"}},
		},
	}
	c, err := NewCleaner(root, staticLoader{doc: doc}, zerolog.Nop())
	require.NoError(t, err)
	return c, root
}

func TestNormaliseRef(t *testing.T) {
	cases := map[string]string{
		"/images/a/b.jpg":        "a/b.jpg",
		"/a/b.jpg":               "a/b.jpg",
		"a/b.jpg":                "a/b.jpg",
		" /images/x.png#frag ":   "x.png",
		"https://cdn/x.jpg":      "",
		"/images/../../etc/pass": "",
		"":                       "",
	}
	for in, want := range cases {
		require.Equal(t, want, NormaliseRef(in), in)
	}
}

func TestScanFindsOrphans(t *testing.T) {
	c, _ := newCleaner(t)
	res, err := c.Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, res.Total)
	require.Equal(t, 3, res.Referenced)
	require.Equal(t, []Orphan{{Path: "old/unused.jpeg", Size: 5}, {Path: "stray.svg", Size: 3}}, res.Orphans)
	require.Equal(t, int64(8), res.Bytes)
}

func TestCleanupDryRunKeepsFiles(t *testing.T) {
	c, root := newCleaner(t)
	res, err := c.Cleanup(context.Background(), true)
	require.NoError(t, err)
	require.True(t, res.DryRun)
	require.Equal(t, []string{"old/unused.jpeg", "stray.svg"}, res.Removed)
	require.FileExists(t, filepath.Join(root, "stray.svg"))
}

func TestCleanupRemovesOrphans(t *testing.T) {
	c, root := newCleaner(t)
	res, err := c.Cleanup(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, res.Removed, 2)
	require.Equal(t, int64(8), res.Bytes)
	require.Empty(t, res.Errors)
	require.NoFileExists(t, filepath.Join(root, "stray.svg"))
	require.FileExists(t, filepath.Join(root, "beaker.jpg"))
	require.FileExists(t, filepath.Join(root, "notes.txt"))

	again, err := c.Scan(context.Background())
	require.NoError(t, err)
	require.Empty(t, again.Orphans)
}

func TestScanMissingDirectory(t *testing.T) {
	c, err := NewCleaner(filepath.Join(t.TempDir(), "absent"), staticLoader{}, zerolog.Nop())
	require.NoError(t, err)
	res, err := c.Scan(context.Background())
	require.NoError(t, err)
	require.Zero(t, res.Total)
}

func TestResolveStaysInsideRoot(t *testing.T) {
	c, _ := newCleaner(t)
	_, ok := c.resolve("../outside.jpg")
	require.False(t, ok)
	_, ok = c.resolve("inside/ok.jpg")
	require.True(t, ok)
}

func TestHandlers(t *testing.T) {
	c, root := newCleaner(t)
	h := &Handler{Cleaner: c}

	rec := httptest.NewRecorder()
	h.Orphans(rec, httptest.NewRequest(http.MethodGet, "/images/orphans", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "stray.svg")

	rec = httptest.NewRecorder()
	h.Cleanup(rec, httptest.NewRequest(http.MethodPost, "/images/cleanup?dryRun=maybe", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Cleanup(rec, httptest.NewRequest(http.MethodPost, "/images/cleanup", bytes.NewBufferString(`{"dryRun":true}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.FileExists(t, filepath.Join(root, "stray.svg"))

	rec = httptest.NewRecorder()
	h.Cleanup(rec, httptest.NewRequest(http.MethodPost, "/images/cleanup", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoFileExists(t, filepath.Join(root, "stray.svg"))
}
