package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/glassworks/internal/obs"
	"github.com/noah-isme/glassworks/internal/store"
)

const (
	keyPrefix = "backup:"
	indexKey  = "backup:index"
	metaKey   = "backup:meta"

	// ReasonManual marks backups requested by an admin.
	ReasonManual = "manual"
	// ReasonScheduled marks backups taken by the periodic worker task.
	ReasonScheduled = "scheduled"
	// ReasonPreRestore marks the safety copy taken before a restore.
	ReasonPreRestore = "pre-restore"
)

// ErrNotFound is returned when a backup id is unknown or its blob has expired.
var ErrNotFound = errors.New("backup: not found")

// DocumentStore is what backups read from and restore into.
type DocumentStore interface {
	Load(ctx context.Context) (store.Document, error)
	Replace(ctx context.Context, doc store.Document) (store.Document, error)
}

// Meta describes one stored snapshot.
type Meta struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	Reason    string    `json:"reason"`
	Size      int       `json:"size"`
}

// Backup is a snapshot together with its document.
type Backup struct {
	Meta     Meta           `json:"meta"`
	Document store.Document `json:"document"`
}

// RestoreResult reports what a restore replaced.
type RestoreResult struct {
	Restored   Meta  `json:"restored"`
	SafetyCopy Meta  `json:"safetyCopy"`
	Version    int64 `json:"version"`
}

// Service snapshots the catalog document into Redis.
type Service struct {
	rdb    *redis.Client
	store  DocumentStore
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// Config groups Service dependencies. TTL zero keeps blobs forever.
type Config struct {
	Redis  *redis.Client
	Store  DocumentStore
	TTL    time.Duration
	Logger zerolog.Logger
	Now    func() time.Time
}

// NewService constructs a backup Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Redis == nil {
		return nil, errors.New("backup: redis client is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("backup: store is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{rdb: cfg.Redis, store: cfg.Store, ttl: cfg.TTL, logger: cfg.Logger, now: now}, nil
}

// Create snapshots the current document.
func (s *Service) Create(ctx context.Context, reason string) (Meta, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		obs.Inc(obs.BackupOperationsTotal, "create", "error")
		return Meta{}, fmt.Errorf("backup: load document: %w", err)
	}
	meta, err := s.save(ctx, doc, reason)
	if err != nil {
		obs.Inc(obs.BackupOperationsTotal, "create", "error")
		return Meta{}, err
	}
	obs.Inc(obs.BackupOperationsTotal, "create", "ok")
	s.logger.Info().Str("backup_id", meta.ID).Str("reason", meta.Reason).Int64("version", meta.Version).Msg("backup created")
	return meta, nil
}

func (s *Service) save(ctx context.Context, doc store.Document, reason string) (Meta, error) {
	blob, err := json.Marshal(doc)
	if err != nil {
		return Meta{}, fmt.Errorf("backup: encode document: %w", err)
	}
	created := s.now().UTC()
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = ReasonManual
	}
	meta := Meta{
		ID:        created.Format(time.RFC3339Nano),
		Version:   doc.Version,
		CreatedAt: created,
		Reason:    reason,
		Size:      len(blob),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return Meta{}, fmt.Errorf("backup: encode meta: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, keyPrefix+meta.ID, blob, s.ttl)
		p.HSet(ctx, metaKey, meta.ID, metaJSON)
		p.ZAdd(ctx, indexKey, redis.Z{Score: float64(created.UnixMilli()), Member: meta.ID})
		return nil
	})
	if err != nil {
		return Meta{}, fmt.Errorf("backup: store: %w", err)
	}
	return meta, nil
}

// List returns backup metadata, newest first. Entries whose blob has expired are dropped.
func (s *Service) List(ctx context.Context) ([]Meta, error) {
	ids, err := s.rdb.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("backup: list: %w", err)
	}
	if len(ids) == 0 {
		return []Meta{}, nil
	}
	exists := make([]*redis.IntCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			exists[i] = p.Exists(ctx, keyPrefix+id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("backup: list: %w", err)
	}
	raw, err := s.rdb.HMGet(ctx, metaKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("backup: list meta: %w", err)
	}
	out := make([]Meta, 0, len(ids))
	var stale []string
	for i, id := range ids {
		str, ok := raw[i].(string)
		if exists[i].Val() == 0 || !ok {
			stale = append(stale, id)
			continue
		}
		var m Meta
		if err := json.Unmarshal([]byte(str), &m); err != nil {
			s.logger.Warn().Err(err).Str("backup_id", id).Msg("backup meta unreadable")
			continue
		}
		out = append(out, m)
	}
	if len(stale) > 0 {
		s.forget(ctx, stale...)
	}
	return out, nil
}

// Get returns the backup with the given id.
func (s *Service) Get(ctx context.Context, id string) (Backup, error) {
	id = strings.TrimSpace(id)
	blob, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Backup{}, ErrNotFound
	}
	if err != nil {
		return Backup{}, fmt.Errorf("backup: get %s: %w", id, err)
	}
	var out Backup
	if err := json.Unmarshal(blob, &out.Document); err != nil {
		return Backup{}, fmt.Errorf("backup: decode %s: %w", id, err)
	}
	metaJSON, err := s.rdb.HGet(ctx, metaKey, id).Result()
	if err == nil {
		_ = json.Unmarshal([]byte(metaJSON), &out.Meta)
	}
	if out.Meta.ID == "" {
		out.Meta = Meta{ID: id, Version: out.Document.Version, Size: len(blob)}
	}
	return out, nil
}

// Restore writes backup id back to the store after snapshotting the current document.
// Concurrent admin edits are last-write-wins.
func (s *Service) Restore(ctx context.Context, id string) (RestoreResult, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		obs.Inc(obs.BackupOperationsTotal, "restore", "error")
		return RestoreResult{}, err
	}
	safety, err := s.Create(ctx, ReasonPreRestore)
	if err != nil {
		obs.Inc(obs.BackupOperationsTotal, "restore", "error")
		return RestoreResult{}, fmt.Errorf("backup: safety copy: %w", err)
	}
	doc, err := s.store.Replace(ctx, b.Document)
	if err != nil {
		obs.Inc(obs.BackupOperationsTotal, "restore", "error")
		return RestoreResult{}, fmt.Errorf("backup: replace document: %w", err)
	}
	obs.Inc(obs.BackupOperationsTotal, "restore", "ok")
	s.logger.Info().Str("backup_id", b.Meta.ID).Str("safety_id", safety.ID).Int64("version", doc.Version).Msg("backup restored")
	return RestoreResult{Restored: b.Meta, SafetyCopy: safety, Version: doc.Version}, nil
}

// Delete removes a backup.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	removed, err := s.rdb.ZRem(ctx, indexKey, id).Result()
	if err != nil {
		return fmt.Errorf("backup: delete %s: %w", id, err)
	}
	deleted, err := s.rdb.Del(ctx, keyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("backup: delete %s: %w", id, err)
	}
	_ = s.rdb.HDel(ctx, metaKey, id).Err()
	if removed == 0 && deleted == 0 {
		return ErrNotFound
	}
	obs.Inc(obs.BackupOperationsTotal, "delete", "ok")
	return nil
}

// Prune keeps the newest keep backups and deletes the rest. It returns how many were removed.
func (s *Service) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	ids, err := s.rdb.ZRevRange(ctx, indexKey, int64(keep), -1).Result()
	if err != nil {
		return 0, fmt.Errorf("backup: prune: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	s.forget(ctx, ids...)
	obs.Inc(obs.BackupOperationsTotal, "prune", "ok")
	s.logger.Info().Int("removed", len(ids)).Int("kept", keep).Msg("backups pruned")
	return len(ids), nil
}

func (s *Service) forget(ctx context.Context, ids ...string) {
	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + id
		members[i] = id
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys...)
		p.HDel(ctx, metaKey, ids...)
		p.ZRem(ctx, indexKey, members...)
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Int("count", len(ids)).Msg("backup cleanup failed")
	}
}
