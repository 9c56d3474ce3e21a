// Package metrics collects Prometheus metrics for the session and
// notification core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector records counters for credential refreshes, notification polls
// and toast delivery.
type Collector struct {
	refreshSuccess prometheus.Counter
	refreshFail    *prometheus.CounterVec
	pollTicks      prometheus.Counter
	pollSkips      prometheus.Counter
	pollFail       prometheus.Counter
	toastsShown    prometheus.Counter
	toastsEvicted  prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		refreshSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clientcore_refresh_success_total",
			Help: "Successful credential refreshes",
		}),
		refreshFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clientcore_refresh_fail_total",
			Help: "Failed credential refreshes by failure kind",
		}, []string{"kind"}),
		pollTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clientcore_poll_ticks_total",
			Help: "Notification poll ticks executed",
		}),
		pollSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clientcore_poll_skips_total",
			Help: "Poll ticks skipped because the surface was not visible",
		}),
		pollFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clientcore_poll_fail_total",
			Help: "Poll ticks whose fetch failed",
		}),
		toastsShown: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clientcore_toasts_shown_total",
			Help: "Toasts inserted into the queue",
		}),
		toastsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clientcore_toasts_evicted_total",
			Help: "Toasts evicted because the queue was full",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.refreshSuccess,
			c.refreshFail,
			c.pollTicks,
			c.pollSkips,
			c.pollFail,
			c.toastsShown,
			c.toastsEvicted,
		)
	}
	return c
}

func (c *Collector) RecordRefreshSuccess() {
	c.refreshSuccess.Inc()
}

// RecordRefreshFailure records a failed refresh. kind is "transient" or
// "invalid_session".
func (c *Collector) RecordRefreshFailure(kind string) {
	c.refreshFail.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordPollTick() {
	c.pollTicks.Inc()
}

func (c *Collector) RecordPollSkip() {
	c.pollSkips.Inc()
}

func (c *Collector) RecordPollFailure() {
	c.pollFail.Inc()
}

func (c *Collector) RecordToastShown() {
	c.toastsShown.Inc()
}

func (c *Collector) RecordToastEvicted() {
	c.toastsEvicted.Inc()
}
