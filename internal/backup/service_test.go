package backup_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/glassworks/internal/backup"
	"github.com/noah-isme/glassworks/internal/lock"
	"github.com/noah-isme/glassworks/internal/store"
)

type fixture struct {
	svc   *backup.Service
	store *store.Store
	mr    *miniredis.Miniredis
}

func newFixture(t *testing.T, ttl time.Duration) fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	st, err := store.New(store.Config{Path: filepath.Join(t.TempDir(), "catalog.json")})
	require.NoError(t, err)
	_, err = st.Update(context.Background(), func(d *store.Document) error {
		d.Categories = append(d.Categories, store.Category{ID: "c1", Name: "Beakers", Slug: "beakers"})
		return nil
	})
	require.NoError(t, err)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := backup.NewService(backup.Config{
		Redis:  client,
		Store:  st,
		TTL:    ttl,
		Logger: zerolog.Nop(),
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
	require.NoError(t, err)
	return fixture{svc: svc, store: st, mr: mr}
}

func TestCreateListGet(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, "")
	require.NoError(t, err)
	require.Equal(t, backup.ReasonManual, first.Reason)
	require.Equal(t, int64(1), first.Version)
	require.Equal(t, "2026-03-01T12:00:01Z", first.ID)
	require.True(t, f.mr.Exists("backup:"+first.ID))

	second, err := f.svc.Create(ctx, "before import")
	require.NoError(t, err)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)
	require.Equal(t, first.ID, list[1].ID)

	got, err := f.svc.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, first, got.Meta)
	require.Len(t, got.Document.Categories, 1)

	_, err = f.svc.Get(ctx, "missing")
	require.ErrorIs(t, err, backup.ErrNotFound)
}

func TestRestoreTakesSafetyCopy(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	snap, err := f.svc.Create(ctx, backup.ReasonManual)
	require.NoError(t, err)

	_, err = f.store.Update(ctx, func(d *store.Document) error {
		d.Categories = nil
		return nil
	})
	require.NoError(t, err)

	res, err := f.svc.Restore(ctx, snap.ID)
	require.NoError(t, err)
	require.Equal(t, snap.ID, res.Restored.ID)
	require.Equal(t, backup.ReasonPreRestore, res.SafetyCopy.Reason)
	require.Equal(t, int64(3), res.Version)

	doc, err := f.store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Categories, 1)
	require.Equal(t, int64(3), doc.Version)

	safety, err := f.svc.Get(ctx, res.SafetyCopy.ID)
	require.NoError(t, err)
	require.Empty(t, safety.Document.Categories)
}

func TestDeleteAndPrune(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		m, err := f.svc.Create(ctx, backup.ReasonScheduled)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	require.NoError(t, f.svc.Delete(ctx, ids[0]))
	require.ErrorIs(t, f.svc.Delete(ctx, ids[0]), backup.ErrNotFound)

	removed, err := f.svc.Prune(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, ids[3], list[0].ID)
	require.False(t, f.mr.Exists("backup:"+ids[1]))
}

func TestListDropsExpiredBlobs(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	m, err := f.svc.Create(ctx, "")
	require.NoError(t, err)
	f.mr.FastForward(2 * time.Minute)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	require.False(t, f.mr.Exists("backup:index"))
	require.False(t, f.mr.Exists("backup:"+m.ID))
}

func TestScheduledHandler(t *testing.T) {
	f := newFixture(t, 0)
	h := &backup.ScheduledHandler{Svc: f.svc, Keep: 2}
	for i := 0; i < 3; i++ {
		require.NoError(t, h.ProcessTask(context.Background(), backup.NewScheduledTask()))
	}
	list, err := f.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, backup.ReasonScheduled, list[0].Reason)
}

func TestScheduledHandlerOneBackupPerTickAcrossWorkers(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	window, err := backup.ClaimWindow("@hourly", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, window)

	newWorker := func() *backup.ScheduledHandler {
		client := redis.NewClient(&redis.Options{Addr: f.mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return &backup.ScheduledHandler{Svc: f.svc, Keep: 5, Locker: lock.Locker{R: client}, Window: window}
	}
	workers := []*backup.ScheduledHandler{newWorker(), newWorker()}

	for _, w := range workers {
		require.NoError(t, w.ProcessTask(ctx, backup.NewScheduledTask()))
	}
	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.True(t, f.mr.Exists("lock:backup:scheduled"))

	f.mr.FastForward(time.Hour)
	for _, w := range workers {
		require.NoError(t, w.ProcessTask(ctx, backup.NewScheduledTask()))
	}
	list, err = f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestClaimWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w, err := backup.ClaimWindow("@daily", now)
	require.NoError(t, err)
	require.Equal(t, 12*time.Hour, w)

	w, err = backup.ClaimWindow("@every 10s", now)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, w)

	_, err = backup.ClaimWindow("every day", now)
	require.Error(t, err)
}

func TestHandlers(t *testing.T) {
	f := newFixture(t, 0)
	h := &backup.Handler{Svc: f.svc}
	r := chi.NewRouter()
	r.Get("/backups", h.List)
	r.Post("/backups", h.Create)
	r.Get("/backups/{id}", h.Get)
	r.Delete("/backups/{id}", h.Delete)
	r.Post("/backups/{id}/restore", h.Restore)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/backups", bytes.NewBufferString(`{"reason":"nightly"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data backup.Meta `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "nightly", created.Data.Reason)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/backups", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/backups/"+created.Data.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/backups/"+created.Data.ID+"/restore", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/backups/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "NOT_FOUND")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/backups/"+created.Data.ID, nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/backups", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Data []backup.Meta `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 2)
}
