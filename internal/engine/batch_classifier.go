package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-bill-must-split/internal/common"
	"github.com/Veraticus/the-bill-must-split/internal/llm"
	"github.com/Veraticus/the-bill-must-split/internal/model"
	"github.com/Veraticus/the-bill-must-split/internal/secrets"
)

// Confidence given to lines the model skipped or mislabeled.
const missingEntryConfidence = 0.3

// BatchConfig wires a BatchClassifier.
type BatchConfig struct {
	Client  llm.Client
	Keys    secrets.Provider
	Logger  *slog.Logger
	Retry   common.RetryOptions
	Timeout time.Duration
}

// BatchClassifier classifies a whole receipt with one model request. When
// the model cannot be reached it falls back to local keyword rules.
type BatchClassifier struct {
	client  llm.Client
	keys    secrets.Provider
	logger  *slog.Logger
	retry   common.RetryOptions
	timeout time.Duration
}

// NewBatchClassifier creates a classifier. A nil client always falls back.
func NewBatchClassifier(cfg BatchConfig) *BatchClassifier {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = llm.DefaultTimeout
	}
	return &BatchClassifier{
		client:  cfg.Client,
		keys:    cfg.Keys,
		logger:  cfg.Logger,
		retry:   cfg.Retry,
		timeout: cfg.Timeout,
	}
}

// Classify returns a receipt built from the model's answer, or from the
// keyword fallback when the request or its parsing fails.
func (b *BatchClassifier) Classify(ctx context.Context, items []model.ReceiptItem, rctx model.ReceiptContext) *model.ClassifiedReceipt {
	receipt, _ := b.classify(ctx, items, rctx)
	return receipt
}

func (b *BatchClassifier) classify(ctx context.Context, items []model.ReceiptItem, rctx model.ReceiptContext) (*model.ClassifiedReceipt, int) {
	if len(items) == 0 {
		return model.NewClassifiedReceipt(nil), 0
	}

	entries, calls, err := b.request(ctx, items, rctx)
	if err != nil {
		b.logger.Warn("Batch classification failed, using keyword fallback",
			"items", len(items),
			"error", err)
		return FallbackClassify(items, err), calls
	}

	receipt, missing := assemble(items, entries, b.logger)
	if missing > 0 {
		receipt = receipt.WithIssues(model.ValidationIssue{
			Type:     model.IssueMissingResponses,
			Message:  fmt.Sprintf("model returned no usable answer for %d of %d lines", missing, len(items)),
			Severity: model.SeverityInfo,
		})
	}
	return receipt, calls
}

func (b *BatchClassifier) request(ctx context.Context, items []model.ReceiptItem, rctx model.ReceiptContext) ([]llm.BatchEntry, int, error) {
	if b.client == nil {
		return nil, 0, errors.New("LLM classification is disabled")
	}
	if b.keys == nil {
		return nil, 0, common.ErrMissingKey
	}
	apiKey, ok := b.keys.GetKey()
	if !ok {
		return nil, 0, common.ErrMissingKey
	}

	prompt := llm.BatchPrompt(items, rctx)
	calls := 0

	var text string
	err := common.WithRetry(ctx, func() error {
		calls++
		callCtx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()

		var err error
		text, err = b.client.GenerateContent(callCtx, llm.GenerateRequest{
			Prompt:          prompt,
			APIKey:          apiKey,
			MaxOutputTokens: 256 + 96*len(items),
		})
		return err
	}, b.retry)
	if err != nil {
		return nil, calls, fmt.Errorf("batch request: %w", err)
	}

	entries, err := llm.ParseBatchResponse(text)
	if err != nil {
		return nil, calls, fmt.Errorf("batch response: %w", err)
	}
	return entries, calls, nil
}

// assemble maps entries onto items by 1-based item number. Lines without a
// usable entry become unknown at missingEntryConfidence.
func assemble(items []model.ReceiptItem, entries []llm.BatchEntry, logger *slog.Logger) (*model.ClassifiedReceipt, int) {
	byNumber := make(map[int]llm.BatchEntry, len(entries))
	for _, entry := range entries {
		if entry.ItemNumber < 1 || entry.ItemNumber > len(items) {
			logger.Warn("Ignoring classification for unknown line",
				"item_number", entry.ItemNumber,
				"items", len(items))
			continue
		}
		if _, dup := byNumber[entry.ItemNumber]; dup {
			logger.Warn("Ignoring repeated classification", "item_number", entry.ItemNumber)
			continue
		}
		byNumber[entry.ItemNumber] = entry
	}

	if len(entries) != len(items) {
		logger.Warn("Classification count does not match line count",
			"expected", len(items),
			"received", len(entries))
	}

	missing := 0
	classified := make([]model.ClassifiedReceiptItem, len(items))
	for i, item := range items {
		entry, ok := byNumber[i+1]
		if !ok {
			missing++
			logger.Warn("No classification returned for line", "item_number", i+1, "item", item.Name)
			classified[i] = model.NewClassifiedReceiptItem(item, i,
				model.UnknownResult(model.MethodLLM, missingEntryConfidence, "no classification returned"))
			continue
		}

		category, err := model.ParseItemCategory(entry.Category)
		if err != nil {
			missing++
			logger.Warn("Unrecognized category returned for line",
				"item_number", i+1,
				"category", entry.Category)
			classified[i] = model.NewClassifiedReceiptItem(item, i,
				model.UnknownResult(model.MethodLLM, missingEntryConfidence, fmt.Sprintf("unrecognized category %q", entry.Category)))
			continue
		}

		reasoning := entry.Reasoning
		if reasoning == "" {
			reasoning = "classified by LLM"
		}
		classified[i] = model.NewClassifiedReceiptItem(item, i,
			model.NewClassificationResult(category, entry.Confidence, model.MethodLLM, reasoning))
	}

	return model.NewClassifiedReceipt(classified), missing
}
