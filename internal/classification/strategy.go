package classification

import (
	"context"

	"github.com/Veraticus/the-bill-must-split/internal/model"
)

// Strategy is one classification technique.
//
// CanClassify is a cheap precondition check. Classify always returns a
// result; a strategy with no opinion returns model.CategoryUnknown with a
// low confidence. Errors never escape a strategy.
type Strategy interface {
	Name() string
	CanClassify(item model.ReceiptItem, position int, rctx model.ReceiptContext) bool
	Classify(ctx context.Context, item model.ReceiptItem, position int, rctx model.ReceiptContext) model.ClassificationResult
}

// Strategy names.
const (
	StrategyPattern           = "pattern"
	StrategyPriceRelationship = "price_relationship"
	StrategyLLM               = "llm"
)
