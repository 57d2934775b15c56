package lead

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/glassworks/internal/common"
	"github.com/noah-isme/glassworks/internal/obs"
)

// Enqueuer schedules background tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Config groups Service dependencies. Enqueuer may be nil.
type Config struct {
	Store    Store
	Enqueuer Enqueuer
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Service accepts contact submissions.
type Service struct {
	store    Store
	enqueuer Enqueuer
	logger   zerolog.Logger
	now      func() time.Time
}

// Meta carries request context stored alongside a lead.
type Meta struct {
	IP        string
	UserAgent string
}

// NewService constructs a lead Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("lead: store is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{store: cfg.Store, enqueuer: cfg.Enqueuer, logger: cfg.Logger, now: now}, nil
}

// Submit validates and stores a submission, then queues its notification.
// A failed enqueue is logged; the lead is already saved.
func (s *Service) Submit(ctx context.Context, in Submission, meta Meta) (Lead, error) {
	in = trimSubmission(in)
	if err := common.ValidateStruct(in); err != nil {
		obs.Inc(obs.LeadsTotal, "invalid")
		return Lead{}, err
	}
	l := Lead{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     strings.ToLower(in.Email),
		Phone:     in.Phone,
		Company:   in.Company,
		Message:   in.Message,
		Products:  in.Products,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: s.now().UTC(),
	}
	if l.Products == nil {
		l.Products = []string{}
	}
	if err := s.store.Save(ctx, l); err != nil {
		obs.Inc(obs.LeadsTotal, "error")
		return Lead{}, err
	}
	obs.Inc(obs.LeadsTotal, "stored")
	s.logger.Info().Str("lead_id", l.ID).Int("products", len(l.Products)).Msg("lead received")

	if s.enqueuer != nil {
		task, err := NewNotifyTask(l)
		if err == nil {
			_, err = s.enqueuer.EnqueueContext(ctx, task)
		}
		if err != nil {
			s.logger.Error().Err(err).Str("lead_id", l.ID).Msg("enqueue lead notification")
		}
	}
	return l, nil
}

// List returns a page of leads, newest first.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Lead, common.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > common.MaxPerPage {
		perPage = 50
	}
	p := common.Pagination{Page: page, PerPage: perPage}
	items, total, err := s.store.List(ctx, p.Offset(), perPage)
	if err != nil {
		return nil, common.Pagination{}, err
	}
	return items, common.NewPagination(page, perPage, total), nil
}

func trimSubmission(in Submission) Submission {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Company = strings.TrimSpace(in.Company)
	in.Message = strings.TrimSpace(in.Message)
	products := make([]string, 0, len(in.Products))
	for _, p := range in.Products {
		if p = strings.TrimSpace(p); p != "" {
			products = append(products, p)
		}
	}
	in.Products = products
	return in
}
