package queue

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Pending tasks per queue as last observed by the admin API",
		},
		[]string{"queue"},
	)
	QueueArchivedSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_archived_size",
			Help: "Tasks that exhausted their retries per queue",
		},
		[]string{"queue"},
	)
	QueueReplayedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_replayed_total",
			Help: "Archived tasks re-run from the admin API grouped by result",
		},
		[]string{"queue", "result"},
	)
)

// RegisterMetrics registers the queue collectors on reg, tolerating repeat registration.
func RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{QueueDepth, QueueArchivedSize, QueueReplayedTotal} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
