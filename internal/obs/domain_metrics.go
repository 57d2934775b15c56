package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CatalogCacheTotal counts catalog cache lookups by result (hit, miss, error).
	CatalogCacheTotal *prometheus.CounterVec
	// PricePreviewsTotal counts admin discount previews by kind (single, range).
	PricePreviewsTotal *prometheus.CounterVec
	// CouponPreviewsTotal counts coupon previews by outcome.
	CouponPreviewsTotal *prometheus.CounterVec
	// QuotesTotal counts basket quotes by discount mode (coupon, tiered).
	QuotesTotal *prometheus.CounterVec
	// BackupOperationsTotal counts backup operations by op and result.
	BackupOperationsTotal *prometheus.CounterVec
	// LeadsTotal counts contact submissions by result.
	LeadsTotal *prometheus.CounterVec
	// LeadNotificationsTotal counts lead notifications by channel and result.
	LeadNotificationsTotal *prometheus.CounterVec
	// LeadWebhookLatency records webhook delivery latency in milliseconds.
	LeadWebhookLatency *prometheus.HistogramVec
	// MediaOrphansRemoved counts image files deleted by cleanup.
	MediaOrphansRemoved prometheus.Counter
	// RateLimitedTotal counts requests rejected by a sliding-window limiter, by scope.
	RateLimitedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CatalogCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_total",
			Help:      "Catalog cache lookups by result.",
		}, []string{"result"})
		PricePreviewsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_previews_total",
			Help:      "Admin discount previews by price kind.",
		}, []string{"kind"})
		CouponPreviewsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_previews_total",
			Help:      "Coupon previews by outcome.",
		}, []string{"result"})
		QuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Basket quotes by discount mode.",
		}, []string{"mode"})
		BackupOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_operations_total",
			Help:      "Backup operations by op and result.",
		}, []string{"op", "result"})
		LeadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_total",
			Help:      "Contact form submissions by result.",
		}, []string{"result"})
		LeadNotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lead_notifications_total",
			Help:      "Lead notifications by channel and result.",
		}, []string{"channel", "result"})
		LeadWebhookLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lead_webhook_duration_ms",
			Help:      "Latency for lead webhook deliveries in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})
		MediaOrphansRemoved = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_orphans_removed_total",
			Help:      "Orphaned image files removed by cleanup.",
		})

		RateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a sliding-window rate limit.",
		}, []string{"scope"})

		for _, vec := range []**prometheus.CounterVec{
			&CatalogCacheTotal, &PricePreviewsTotal, &CouponPreviewsTotal, &QuotesTotal,
			&BackupOperationsTotal, &LeadsTotal, &LeadNotificationsTotal, &RateLimitedTotal,
		} {
			*vec = registerOrReuse(reg, *vec)
		}
		LeadWebhookLatency = registerOrReuse(reg, LeadWebhookLatency)
		MediaOrphansRemoved = registerOrReuse(reg, MediaOrphansRemoved)
	})
}

// Inc increments vec for labels when the collector has been registered.
func Inc(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}
