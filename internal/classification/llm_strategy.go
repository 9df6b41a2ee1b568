package classification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-bill-must-split/internal/llm"
	"github.com/Veraticus/the-bill-must-split/internal/model"
	"github.com/Veraticus/the-bill-must-split/internal/secrets"
)

// LLMStrategyConfig wires the per-line LLM fallback.
type LLMStrategyConfig struct {
	Client  llm.Client
	Keys    secrets.Provider
	Budget  *llm.CallBudget
	Cache   *llm.ResponseCache
	Logger  *slog.Logger
	Timeout time.Duration
	Enabled bool
}

// LLMStrategy asks a language model about a single line. Calls are limited
// by a per-receipt budget shared between concurrent callers.
type LLMStrategy struct {
	client  llm.Client
	keys    secrets.Provider
	budget  *llm.CallBudget
	cache   *llm.ResponseCache
	logger  *slog.Logger
	timeout time.Duration
	enabled bool
}

// NewLLMStrategy creates the strategy. A nil budget allows no calls.
func NewLLMStrategy(cfg LLMStrategyConfig) *LLMStrategy {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = llm.DefaultTimeout
	}
	if cfg.Budget == nil {
		cfg.Budget = llm.NewCallBudget(0)
	}
	return &LLMStrategy{
		client:  cfg.Client,
		keys:    cfg.Keys,
		budget:  cfg.Budget,
		cache:   cfg.Cache,
		logger:  cfg.Logger,
		timeout: cfg.Timeout,
		enabled: cfg.Enabled,
	}
}

// Name implements Strategy.
func (s *LLMStrategy) Name() string { return StrategyLLM }

// CanClassify requires the feature to be enabled, budget left for this
// receipt and an API key.
func (s *LLMStrategy) CanClassify(model.ReceiptItem, int, model.ReceiptContext) bool {
	return s.enabled &&
		s.client != nil &&
		s.keys != nil &&
		s.budget.HasRemaining() &&
		s.keys.HasKey()
}

func llmFailure(reasoning string) model.ClassificationResult {
	return model.UnknownResult(model.MethodLLM, 0, reasoning)
}

// Classify implements Strategy. Every failure becomes an unknown result
// with zero confidence.
func (s *LLMStrategy) Classify(ctx context.Context, item model.ReceiptItem, position int, rctx model.ReceiptContext) model.ClassificationResult {
	if !s.enabled || s.client == nil || s.keys == nil {
		return llmFailure("LLM classification is disabled")
	}

	prompt := llm.ItemPrompt(item, position, rctx)
	cacheKey := llm.PromptKey(prompt)

	if s.cache != nil {
		if text, ok := s.cache.Get(cacheKey); ok {
			if parsed, err := llm.ParseItemResponse(text); err == nil {
				s.logger.Debug("llm cache hit", "item", item.Name, "position", position)
				return model.NewClassificationResult(parsed.Category, parsed.Confidence, model.MethodLLM, parsed.Reasoning)
			}
		}
	}

	if !s.budget.TryAcquire() {
		return llmFailure("LLM call budget exhausted for this receipt")
	}

	apiKey, ok := s.keys.GetKey()
	if !ok {
		return llmFailure("no API key available")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.client.GenerateContent(callCtx, llm.GenerateRequest{
		Prompt:          prompt,
		APIKey:          apiKey,
		MaxOutputTokens: 256,
	})
	if err != nil {
		s.logger.Warn("llm classification failed",
			"item", item.Name,
			"position", position,
			"error", err)
		return llmFailure(fmt.Sprintf("LLM request failed: %v", err))
	}

	parsed, err := llm.ParseItemResponse(text)
	if err != nil {
		s.logger.Warn("unusable llm response",
			"item", item.Name,
			"position", position,
			"error", err)
		return llmFailure(fmt.Sprintf("LLM response rejected: %v", err))
	}

	if s.cache != nil {
		s.cache.Set(cacheKey, text)
	}

	reasoning := parsed.Reasoning
	if reasoning == "" {
		reasoning = "classified by LLM"
	}
	return model.NewClassificationResult(parsed.Category, parsed.Confidence, model.MethodLLM, reasoning)
}
