package resilience

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// BreakerState is 0 closed, 1 open, 2 half-open per target.
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "outbound_breaker_state",
		Help: "Current breaker state: 0=closed,1=open,2=half-open",
	}, []string{"target"})
	// BreakerTransitions counts state changes per target.
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbound_breaker_transition_total",
		Help: "Count of breaker state transitions",
	}, []string{"target", "from", "to"})
	// BreakerOpenedTotal counts how often each target's breaker opened.
	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbound_breaker_open_total",
		Help: "Number of times a breaker transitioned into open state",
	}, []string{"target"})
)

// RegisterMetrics registers the breaker collectors on reg, tolerating repeat registration.
func RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{BreakerState, BreakerTransitions, BreakerOpenedTotal} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
