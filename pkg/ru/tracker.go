package ru

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for RU budget tracking.
var (
	ruPageChargeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seedctl_ru_page_charge_total",
		Help: "Cumulative request units reported for export pages",
	})

	ruPageSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seedctl_ru_page_size",
		Help: "Current adaptive page size (max-item-count)",
	})

	ruThrottleDelaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seedctl_ru_throttle_delays_total",
		Help: "Total number of inter-page delays applied for budget overruns",
	})

	ruThrottleDelaySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "seedctl_ru_throttle_delay_seconds",
		Help:    "Duration of inter-page delays applied for budget overruns",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// Tracker owns the RU budget state for the duration of one export run and
// applies the inter-page delay. State is mutated only between sequential
// page fetches; there is no concurrent access and no locking.
type Tracker struct {
	state      State
	cumulative float64
	logger     zerolog.Logger
}

// NewTracker creates a tracker with the initial budget state.
func NewTracker(state State, logger zerolog.Logger) *Tracker {
	ruPageSize.Set(float64(state.PageSize))
	return &Tracker{state: state, logger: logger}
}

// PageSize returns the max-item-count to request for the next page.
func (t *Tracker) PageSize() int {
	return t.state.PageSize
}

// Cumulative returns the total RU observed so far in this run.
func (t *Tracker) Cumulative() float64 {
	return t.cumulative
}

// Observe records the RU charge of the page just fetched, adjusts the page
// size, and sleeps out any budget-overrun delay. The sleep honors context
// cancellation.
func (t *Tracker) Observe(ctx context.Context, charge float64) error {
	t.cumulative += charge
	ruPageChargeTotal.Add(charge)

	next, delay := Adjust(t.state, charge)

	if next.PageSize != t.state.PageSize {
		event := t.logger.Debug()
		if t.state.OverBudget(charge) {
			event = t.logger.Warn()
		}
		event.
			Float64("request_charge", charge).
			Float64("max_ru", t.state.MaxRU).
			Int("page_size", t.state.PageSize).
			Int("next_page_size", next.PageSize).
			Dur("delay", delay).
			Msg("Adjusted page size from request charge")
	}

	t.state = next
	ruPageSize.Set(float64(next.PageSize))

	if delay <= 0 {
		return nil
	}

	ruThrottleDelaysTotal.Inc()
	ruThrottleDelaySeconds.Observe(delay.Seconds())

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
