// Package metrics exposes calibration telemetry to Prometheus.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/herlein/lgwcal/pkg/channels"
	"github.com/herlein/lgwcal/pkg/rssi"
)

// Collector bundles the sweep and planner metrics. A nil *Collector is valid
// and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	LockAttempts *prometheus.CounterVec
	LockFailures *prometheus.CounterVec
	Steps        *prometheus.CounterVec
	Samples      prometheus.Counter
	Frequency    prometheus.Gauge
	Percentiles  *prometheus.GaugeVec
	PlanWarnings *prometheus.CounterVec
}

// New registers the metrics against reg, defaulting to the global registry
// when nil.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	attempts, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lgwcal_pll_lock_attempts_total",
		Help: "PLL lock attempts, labeled by front-end.",
	}, []string{"front_end"}), "lgwcal_pll_lock_attempts_total")
	if err != nil {
		return nil, err
	}
	failures, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lgwcal_pll_lock_failures_total",
		Help: "Tune requests that exhausted every lock attempt, labeled by front-end.",
	}, []string{"front_end"}), "lgwcal_pll_lock_failures_total")
	if err != nil {
		return nil, err
	}
	steps, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lgwcal_sweep_steps_total",
		Help: "Sweep steps, labeled by result (measured or skipped).",
	}, []string{"result"}), "lgwcal_sweep_steps_total")
	if err != nil {
		return nil, err
	}
	samples, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lgwcal_rssi_samples_total",
		Help: "RSSI codes accumulated from capture RAM.",
	}), "lgwcal_rssi_samples_total")
	if err != nil {
		return nil, err
	}
	frequency, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lgwcal_sweep_frequency_hz",
		Help: "Frequency of the last measured sweep step.",
	}), "lgwcal_sweep_frequency_hz")
	if err != nil {
		return nil, err
	}
	percentiles, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lgwcal_rssi_percentile_dbm",
		Help: "RSSI percentiles of the last measured step; absent when undefined.",
	}, []string{"percentile"}), "lgwcal_rssi_percentile_dbm")
	if err != nil {
		return nil, err
	}
	warnings, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lgwcal_plan_warnings_total",
		Help: "Channel planner warnings, labeled by kind.",
	}, []string{"kind"}), "lgwcal_plan_warnings_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:     gatherer,
		LockAttempts: attempts,
		LockFailures: failures,
		Steps:        steps,
		Samples:      samples,
		Frequency:    frequency,
		Percentiles:  percentiles,
		PlanWarnings: warnings,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveLock records one Tune call on frontEnd.
func (c *Collector) ObserveLock(frontEnd, attempts int, locked bool) {
	if c == nil {
		return
	}
	fe := strconv.Itoa(frontEnd)
	c.LockAttempts.WithLabelValues(fe).Add(float64(attempts))
	if !locked {
		c.LockFailures.WithLabelValues(fe).Inc()
	}
}

// ObserveStep records a measured sweep step.
func (c *Collector) ObserveStep(freqHz uint32, samples uint64, r rssi.Report) {
	if c == nil {
		return
	}
	c.Steps.WithLabelValues("measured").Inc()
	c.Samples.Add(float64(samples))
	c.Frequency.Set(float64(freqHz))
	for name, t := range map[string]rssi.Threshold{"20": r.P20, "50": r.P50, "80": r.P80} {
		if t.Set {
			c.Percentiles.WithLabelValues(name).Set(float64(t.DBm))
		} else {
			c.Percentiles.DeleteLabelValues(name)
		}
	}
}

// ObserveSkip records a sweep step dropped after a lock failure.
func (c *Collector) ObserveSkip() {
	if c == nil {
		return
	}
	c.Steps.WithLabelValues("skipped").Inc()
}

// ObservePlan records the warnings of a planner run.
func (c *Collector) ObservePlan(warnings []channels.Warning) {
	if c == nil {
		return
	}
	for _, w := range warnings {
		c.PlanWarnings.WithLabelValues(w.Kind.String()).Inc()
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
