// Package metrics records classification outcomes as Prometheus metrics.
//
// A CLI run is short-lived, so metrics are written to a node_exporter
// textfile instead of being scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Veraticus/the-bill-must-split/internal/classification"
	"github.com/Veraticus/the-bill-must-split/internal/model"
)

const namespace = "split"

// Collector owns a private registry so tests and multiple engines never
// collide on the default one.
type Collector struct {
	registry  *prometheus.Registry
	receipts  *prometheus.CounterVec
	items     *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	steps     *prometheus.CounterVec
	llmCalls  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewCollector creates and registers every metric.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		receipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_classified_total",
			Help:      "Receipts classified, by engine and validation status.",
		}, []string{"engine", "status"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_classified_total",
			Help:      "Receipt lines classified, by category and method.",
		}, []string{"category", "method"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Receipts classified by the local keyword fallback.",
		}, []string{"engine"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_steps_total",
			Help:      "Strategy invocations in the chain, by decision.",
		}, []string{"strategy", "decision"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Requests sent to the language model.",
		}, []string{"engine"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classification_duration_seconds",
			Help:      "Wall time spent classifying one receipt.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"engine"}),
	}

	c.registry.MustRegister(c.receipts, c.items, c.fallbacks, c.steps, c.llmCalls, c.duration)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveReceipt records a finished receipt.
func (c *Collector) ObserveReceipt(engine string, r *model.ClassifiedReceipt, elapsed time.Duration) {
	if r == nil {
		return
	}

	c.receipts.WithLabelValues(engine, string(r.ValidationStatus)).Inc()
	c.duration.WithLabelValues(engine).Observe(elapsed.Seconds())

	for _, item := range r.AllItems() {
		c.items.WithLabelValues(string(item.Category), string(item.ClassificationMethod)).Inc()
	}

	for _, issue := range r.Issues {
		if issue.Type == model.IssueFallbackUsed {
			c.fallbacks.WithLabelValues(engine).Inc()
			break
		}
	}
}

// ObserveStep records one chain step.
func (c *Collector) ObserveStep(step classification.Step) {
	c.steps.WithLabelValues(step.Strategy, string(step.Decision)).Inc()
}

// ObserveLLMCalls adds n model requests.
func (c *Collector) ObserveLLMCalls(engine string, n int) {
	if n <= 0 {
		return
	}
	c.llmCalls.WithLabelValues(engine).Add(float64(n))
}

// WriteTextfile writes every metric in the text exposition format.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
