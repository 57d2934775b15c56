package queue

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/glassworks/internal/common"
)

// Queues served by the worker.
var Queues = []string{"default", "maintenance"}

// Inspector is the subset of *asynq.Inspector the admin API needs.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	RunTask(queue, id string) error
}

// AdminHandler exposes dead-lettered (archived) worker tasks.
type AdminHandler struct {
	Inspector Inspector
	PageSize  int
	Logger    zerolog.Logger
}

type archivedItem struct {
	ID           string    `json:"id"`
	Queue        string    `json:"queue"`
	Type         string    `json:"type"`
	Payload      string    `json:"payload"`
	Retried      int       `json:"retried"`
	MaxRetry     int       `json:"maxRetry"`
	LastError    string    `json:"lastError,omitempty"`
	LastFailedAt time.Time `json:"lastFailedAt"`
}

type queueStats struct {
	Queue     string  `json:"queue"`
	Size      int     `json:"size"`
	Pending   int     `json:"pending"`
	Active    int     `json:"active"`
	Scheduled int     `json:"scheduled"`
	Retry     int     `json:"retry"`
	Archived  int     `json:"archived"`
	Processed int     `json:"processedToday"`
	Failed    int     `json:"failedToday"`
	LatencyMS float64 `json:"latencyMs"`
	Paused    bool    `json:"paused"`
}

// ListArchived handles GET /api/v1/admin/tasks/archived?queue=&page=&limit=.
func (h *AdminHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	queue, ok := queueParam(w, r.URL.Query().Get("queue"))
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, h.pageSize())
	tasks, err := h.Inspector.ListArchivedTasks(queue, asynq.Page(page), asynq.PageSize(perPage))
	if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
		common.JSONError(w, http.StatusInternalServerError, "QUEUE_UNAVAILABLE", err.Error(), nil)
		return
	}
	items := make([]archivedItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, archivedItem{
			ID:           t.ID,
			Queue:        t.Queue,
			Type:         t.Type,
			Payload:      string(t.Payload),
			Retried:      t.Retried,
			MaxRetry:     t.MaxRetry,
			LastError:    t.LastErr,
			LastFailedAt: t.LastFailedAt,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "queue": queue, "page": page})
}

// Replay handles POST /api/v1/admin/tasks/archived/{id}/run?queue=.
func (h *AdminHandler) Replay(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	queue, ok := queueParam(w, r.URL.Query().Get("queue"))
	if !ok {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if err := h.Inspector.RunTask(queue, id); err != nil {
		QueueReplayedTotal.WithLabelValues(queue, "error").Inc()
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "task not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "QUEUE_UNAVAILABLE", err.Error(), nil)
		return
	}
	QueueReplayedTotal.WithLabelValues(queue, "ok").Inc()
	h.Logger.Info().Str("queue", queue).Str("task_id", id).Msg("archived task replayed")
	common.JSON(w, http.StatusAccepted, map[string]any{"data": map[string]string{"id": id, "queue": queue}})
}

// Stats handles GET /api/v1/admin/tasks/stats and refreshes the queue gauges.
func (h *AdminHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	if !h.ready(w) {
		return
	}
	out := make([]queueStats, 0, len(Queues))
	for _, q := range Queues {
		info, err := h.Inspector.GetQueueInfo(q)
		if errors.Is(err, asynq.ErrQueueNotFound) {
			out = append(out, queueStats{Queue: q})
			continue
		}
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "QUEUE_UNAVAILABLE", err.Error(), nil)
			return
		}
		QueueDepth.WithLabelValues(q).Set(float64(info.Pending))
		QueueArchivedSize.WithLabelValues(q).Set(float64(info.Archived))
		out = append(out, queueStats{
			Queue:     q,
			Size:      info.Size,
			Pending:   info.Pending,
			Active:    info.Active,
			Scheduled: info.Scheduled,
			Retry:     info.Retry,
			Archived:  info.Archived,
			Processed: info.Processed,
			Failed:    info.Failed,
			LatencyMS: float64(info.Latency.Milliseconds()),
			Paused:    info.Paused,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *AdminHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue inspector unavailable", nil)
		return false
	}
	return true
}

func (h *AdminHandler) pageSize() int {
	if h.PageSize <= 0 {
		return 50
	}
	return h.PageSize
}

func queueParam(w http.ResponseWriter, raw string) (string, bool) {
	queue := strings.TrimSpace(raw)
	if queue == "" {
		return "default", true
	}
	for _, q := range Queues {
		if q == queue {
			return queue, true
		}
	}
	common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown queue", map[string]any{"queues": Queues})
	return "", false
}
