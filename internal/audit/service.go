package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/glassworks/internal/common"
)

const redisListKey = "audit:admin"

// Entry is one recorded admin mutation.
type Entry struct {
	Time       time.Time `json:"time"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resourceId,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	IP         string    `json:"ip,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// RedisStore keeps the newest MaxEntries entries in a Redis list.
type RedisStore struct {
	Client     *redis.Client
	MaxEntries int64
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: encode: %w", err)
	}
	pipe := s.Client.TxPipeline()
	pipe.LPush(ctx, redisListKey, data)
	if s.MaxEntries > 0 {
		pipe.LTrim(ctx, redisListKey, 0, s.MaxEntries-1)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Recent implements Store, newest first.
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	raw, err := s.Client.LRange(ctx, redisListKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

// Service records admin mutations to the store and the log.
type Service struct {
	Store   Store
	Enabled bool
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Record builds an entry from req and persists it when auditing is enabled.
// An empty action defaults to "METHOD /route".
func (s Service) Record(ctx context.Context, req *http.Request, route, action, resourceID string, status int) error {
	if !s.Enabled {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	actor, ok := common.Admin(ctx)
	if !ok || actor == "" {
		actor = "anonymous"
	}
	if status == 0 {
		status = http.StatusOK
	}
	e := Entry{
		Time:       now().UTC(),
		Actor:      actor,
		Action:     buildAction(action, req.Method, route),
		Resource:   buildResource(route),
		ResourceID: strings.TrimSpace(resourceID),
		Method:     req.Method,
		Path:       req.URL.Path,
		Status:     status,
		IP:         common.ClientIP(req),
		UserAgent:  strings.TrimSpace(req.UserAgent()),
		RequestID:  strings.TrimSpace(req.Header.Get("X-Request-ID")),
	}
	s.Logger.Info().
		Str("actor", e.Actor).
		Str("action", e.Action).
		Str("resource", e.Resource).
		Str("resource_id", e.ResourceID).
		Int("status", e.Status).
		Msg("admin_audit")
	return s.Store.Append(ctx, e)
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

// buildResource maps "/api/v1/admin/products/{id}/price" to "products.price".
func buildResource(route string) string {
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	var parts []string
	for i, seg := range strings.Split(route, "/") {
		if i < 3 && (seg == "api" || seg == "v1" || seg == "admin") {
			continue
		}
		if strings.HasPrefix(seg, "{") {
			continue
		}
		parts = append(parts, seg)
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, ".")
}
