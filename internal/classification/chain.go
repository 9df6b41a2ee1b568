package classification

import (
	"context"
	"log/slog"

	"github.com/Veraticus/the-bill-must-split/internal/model"
)

// ChainConfig holds the confidence thresholds of a Chain.
type ChainConfig struct {
	HighConfidenceThreshold   float64
	MediumConfidenceThreshold float64
}

// DefaultChainConfig returns thresholds of 0.8 and 0.6.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		HighConfidenceThreshold:   0.8,
		MediumConfidenceThreshold: 0.6,
	}
}

func (c ChainConfig) withDefaults() ChainConfig {
	d := DefaultChainConfig()
	if c.HighConfidenceThreshold <= 0 {
		c.HighConfidenceThreshold = d.HighConfidenceThreshold
	}
	if c.MediumConfidenceThreshold <= 0 {
		c.MediumConfidenceThreshold = d.MediumConfidenceThreshold
	}
	return c
}

// Decision describes what the chain did with a strategy's result.
type Decision string

// Decision constants.
const (
	DecisionSkipped   Decision = "skipped"
	DecisionAccepted  Decision = "accepted"
	DecisionCandidate Decision = "candidate"
	DecisionContinued Decision = "continued"
)

// Step is reported to the observer for every strategy the chain considers.
type Step struct {
	Item     model.ReceiptItem
	Strategy string
	Decision Decision
	Result   model.ClassificationResult
	Position int
}

// Observer receives chain steps. It must not block.
type Observer func(Step)

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithObserver reports every step to o.
func WithObserver(o Observer) ChainOption {
	return func(c *Chain) { c.observer = o }
}

// Chain runs strategies in order until one is confident enough.
type Chain struct {
	observer   Observer
	strategies []Strategy
	config     ChainConfig
}

// NewChain creates a chain over strategies in the given order.
func NewChain(strategies []Strategy, cfg ChainConfig, opts ...ChainOption) *Chain {
	c := &Chain{
		strategies: strategies,
		config:     cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StrategyNames returns strategy names in run order.
func (c *Chain) StrategyNames() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

func (c *Chain) observe(step Step) {
	if c.observer != nil {
		c.observer(step)
	}
}

// Classify returns the first result at or above the high threshold. Otherwise
// it returns the most confident result seen, later strategies winning ties,
// or unknown with zero confidence when no strategy had any confidence.
func (c *Chain) Classify(ctx context.Context, item model.ReceiptItem, position int, rctx model.ReceiptContext) model.ClassificationResult {
	var best model.ClassificationResult
	found := false

	for _, strategy := range c.strategies {
		if ctx.Err() != nil {
			break
		}

		step := Step{Item: item, Position: position, Strategy: strategy.Name()}

		if !strategy.CanClassify(item, position, rctx) {
			step.Decision = DecisionSkipped
			c.observe(step)
			continue
		}

		result := strategy.Classify(ctx, item, position, rctx)
		step.Result = result

		if result.Confidence >= c.config.HighConfidenceThreshold {
			step.Decision = DecisionAccepted
			c.observe(step)
			return result
		}

		if result.Confidence >= c.config.MediumConfidenceThreshold {
			step.Decision = DecisionCandidate
		} else {
			step.Decision = DecisionContinued
		}
		c.observe(step)

		if result.Confidence > 0 && (!found || result.Confidence >= best.Confidence) {
			best = result
			found = true
		}
	}

	if found {
		return best
	}

	reasoning := "no strategy produced a classification"
	if ctx.Err() != nil {
		reasoning = "classification canceled: " + ctx.Err().Error()
	}
	return model.UnknownResult(model.MethodHeuristic, 0, reasoning)
}

// LogObserver logs each step at debug level.
func LogObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return func(step Step) {
		logger.Debug("classification step",
			"item", step.Item.Name,
			"position", step.Position,
			"strategy", step.Strategy,
			"decision", step.Decision,
			"category", step.Result.Category,
			"confidence", step.Result.Confidence)
	}
}
