package lead

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/glassworks/internal/common"
	"github.com/noah-isme/glassworks/internal/obs"
	"github.com/noah-isme/glassworks/internal/resilience"
)

// TypeNotify is the asynq task type that fans a new lead out to email and webhook.
const TypeNotify = "lead:notify"

// NewNotifyTask encodes l as a notification task.
func NewNotifyTask(l Lead) (*asynq.Task, error) {
	payload, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("lead: encode task: %w", err)
	}
	return asynq.NewTask(TypeNotify, payload, asynq.MaxRetry(5), asynq.Timeout(time.Minute)), nil
}

// Webhook posts JSON to an external endpoint.
type Webhook interface {
	PostJSON(ctx context.Context, url string, payload any) (int, error)
}

var _ Webhook = (*resilience.HTTPClient)(nil)

// NotifyHandler delivers lead notifications. Email and webhook are each optional.
type NotifyHandler struct {
	Email      common.EmailSender
	EmailTo    string
	Webhook    Webhook
	WebhookURL string
	Replay     ReplayGuard
	ReplayTTL  time.Duration
	Logger     zerolog.Logger
}

// ProcessTask implements asynq.Handler. Any channel failure fails the task so asynq retries it.
func (h *NotifyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var l Lead
	if err := json.Unmarshal(t.Payload(), &l); err != nil {
		return fmt.Errorf("lead: decode task: %w: %w", err, asynq.SkipRetry)
	}
	var errs []error
	if h.Email != nil && h.EmailTo != "" {
		errs = append(errs, h.deliver(ctx, l.ID, "email", func() error {
			if err := h.Email.Send(h.EmailTo, "New enquiry from "+l.Name, renderEmail(l)); err != nil {
				obs.Inc(obs.LeadNotificationsTotal, "email", "error")
				return fmt.Errorf("email: %w", err)
			}
			obs.Inc(obs.LeadNotificationsTotal, "email", "ok")
			return nil
		}))
	}
	if h.Webhook != nil && h.WebhookURL != "" {
		errs = append(errs, h.deliver(ctx, l.ID, "webhook", func() error {
			start := time.Now()
			_, err := h.Webhook.PostJSON(ctx, h.WebhookURL, map[string]any{"event": "lead.received", "lead": l})
			result := "ok"
			if err != nil {
				result = "error"
			}
			obs.Inc(obs.LeadNotificationsTotal, "webhook", result)
			if obs.LeadWebhookLatency != nil {
				obs.LeadWebhookLatency.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
			}
			if err != nil {
				return fmt.Errorf("webhook: %w", err)
			}
			return nil
		}))
	}
	if err := errors.Join(errs...); err != nil {
		h.Logger.Warn().Err(err).Str("lead_id", l.ID).Msg("lead notification failed")
		return err
	}
	h.Logger.Info().Str("lead_id", l.ID).Msg("lead notification sent")
	return nil
}

// deliver runs send once per lead and channel. A failed send releases the guard for the retry.
func (h *NotifyHandler) deliver(ctx context.Context, leadID, channel string, send func() error) error {
	if h.Replay == nil {
		return send()
	}
	ttl := h.ReplayTTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	key := "lead:notified:" + leadID + ":" + channel
	ok, err := h.Replay.Acquire(ctx, key, ttl)
	if err != nil {
		h.Logger.Warn().Err(err).Str("lead_id", leadID).Str("channel", channel).Msg("replay guard unavailable")
		return send()
	}
	if !ok {
		h.Logger.Debug().Str("lead_id", leadID).Str("channel", channel).Msg("already delivered")
		return nil
	}
	if err := send(); err != nil {
		if relErr := h.Replay.Release(ctx, key); relErr != nil {
			h.Logger.Warn().Err(relErr).Str("key", key).Msg("release replay guard")
		}
		return err
	}
	return nil
}

func renderEmail(l Lead) string {
	var b strings.Builder
	b.WriteString("<h2>New enquiry</h2><table>")
	row := func(k, v string) {
		if v == "" {
			return
		}
		b.WriteString("<tr><th align=\"left\">" + k + "</th><td>" + html.EscapeString(v) + "</td></tr>")
	}
	row("Name", l.Name)
	row("Email", l.Email)
	row("Phone", l.Phone)
	row("Company", l.Company)
	row("Products", strings.Join(l.Products, ", "))
	row("Received", l.CreatedAt.Format(time.RFC1123))
	b.WriteString("</table><p>" + strings.ReplaceAll(html.EscapeString(l.Message), "\n", "<br>") + "</p>")
	return b.String()
}
