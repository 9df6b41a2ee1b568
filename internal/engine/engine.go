// Package engine turns a list of receipt lines into a validated
// ClassifiedReceipt using either the strategy chain or the batch LLM
// classifier.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-bill-must-split/internal/classification"
	"github.com/Veraticus/the-bill-must-split/internal/common"
	"github.com/Veraticus/the-bill-must-split/internal/llm"
	"github.com/Veraticus/the-bill-must-split/internal/model"
	"github.com/Veraticus/the-bill-must-split/internal/secrets"
	"github.com/Veraticus/the-bill-must-split/internal/validation"
)

// Kind selects the classification engine.
type Kind string

// Engine kinds.
const (
	KindChain Kind = "chain"
	KindBatch Kind = "batch"
)

// AllKinds lists the selectable engines.
func AllKinds() []Kind {
	return []Kind{KindChain, KindBatch}
}

// ParseKind accepts the kind names plus a few spellings users type.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chain", "strategy", "strategy_chain", "strategy-chain":
		return KindChain, nil
	case "batch", "batch_llm", "batch-llm", "llm":
		return KindBatch, nil
	default:
		return "", fmt.Errorf("%w: unknown engine %q (want chain or batch)", common.ErrInvalidConfig, s)
	}
}

// Description returns a human readable summary of the engine.
func (k Kind) Description() string {
	switch k {
	case KindChain:
		return "strategy chain: price relationships, patterns, then per-line LLM fallback"
	case KindBatch:
		return "batch LLM: one request per receipt, keyword fallback when unavailable"
	default:
		return string(k)
	}
}

// Config is read once per classification run.
type Config struct {
	Kind        Kind
	Chain       classification.ChainConfig
	LLMBudget   int
	Concurrency int
	Tolerance   float64
	EnableLLM   bool
}

// DefaultConfig returns the chain engine with a budget of five LLM calls
// per receipt.
func DefaultConfig() Config {
	return Config{
		Kind:        KindChain,
		Chain:       classification.DefaultChainConfig(),
		LLMBudget:   5,
		Concurrency: 1,
		Tolerance:   validation.DefaultTolerance,
		EnableLLM:   true,
	}
}

// Recorder receives classification telemetry.
type Recorder interface {
	ObserveReceipt(engine string, r *model.ClassifiedReceipt, elapsed time.Duration)
	ObserveStep(step classification.Step)
	ObserveLLMCalls(engine string, n int)
}

// Engine classifies receipts. It holds no per-receipt state and is safe for
// concurrent use.
type Engine struct {
	client    llm.Client
	keys      secrets.Provider
	logger    *slog.Logger
	cache     *llm.ResponseCache
	recorder  Recorder
	pattern   *classification.PatternStrategy
	price     *classification.PriceRelationshipStrategy
	llmConfig llm.Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCache shares an LLM response cache across receipts.
func WithCache(cache *llm.ResponseCache) Option {
	return func(e *Engine) { e.cache = cache }
}

// WithRecorder reports telemetry to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLLMConfig sets the timeout and retry behaviour for model calls.
func WithLLMConfig(cfg llm.Config) Option {
	return func(e *Engine) { e.llmConfig = cfg.WithDefaults() }
}

// WithPatternStrategy replaces the default keyword tables.
func WithPatternStrategy(p *classification.PatternStrategy) Option {
	return func(e *Engine) {
		if p != nil {
			e.pattern = p
		}
	}
}

// New creates an engine. client and keys may be nil, in which case the LLM
// is never consulted.
func New(client llm.Client, keys secrets.Provider, opts ...Option) *Engine {
	e := &Engine{
		client:    client,
		keys:      keys,
		logger:    slog.Default(),
		pattern:   classification.NewPatternStrategy(),
		price:     classification.NewPriceRelationshipStrategy(),
		llmConfig: llm.Config{}.WithDefaults(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify runs the selected engine and validates the result. A receipt is
// always produced unless the configuration is invalid or ctx is done.
func (e *Engine) Classify(ctx context.Context, items []model.ReceiptItem, rctx model.ReceiptContext, cfg Config) (*model.ClassifiedReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	var (
		receipt  *model.ClassifiedReceipt
		llmCalls int
		err      error
	)
	switch cfg.Kind {
	case KindChain:
		receipt, llmCalls, err = e.classifyChain(ctx, items, rctx, cfg)
	case KindBatch:
		receipt, llmCalls = e.batchClassifier(cfg).classify(ctx, items, rctx)
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", common.ErrInvalidConfig, cfg.Kind)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	receipt = validation.New(cfg.Tolerance).Validate(receipt, rctx)
	receipt.Engine = string(cfg.Kind)

	elapsed := time.Since(start)
	e.logger.Info("Classified receipt",
		"engine", cfg.Kind,
		"receipt_id", receipt.ID,
		"items", receipt.ItemCount(),
		"status", receipt.ValidationStatus,
		"confidence", fmt.Sprintf("%.2f", receipt.TotalConfidence),
		"issues", len(receipt.Issues),
		"llm_calls", llmCalls,
		"elapsed", elapsed)

	if e.recorder != nil {
		e.recorder.ObserveLLMCalls(string(cfg.Kind), llmCalls)
		e.recorder.ObserveReceipt(string(cfg.Kind), receipt, elapsed)
	}

	return receipt, nil
}

func (e *Engine) batchClassifier(cfg Config) *BatchClassifier {
	var client llm.Client
	if cfg.EnableLLM && cfg.LLMBudget > 0 {
		client = e.client
	}
	return NewBatchClassifier(BatchConfig{
		Client:  client,
		Keys:    e.keys,
		Logger:  e.logger,
		Timeout: e.llmConfig.Timeout,
		Retry:   e.llmConfig.RetryOptions(),
	})
}
