package classification

import (
	"context"
	"fmt"
	"math"

	"github.com/Veraticus/the-bill-must-split/internal/model"
)

var standardTipRates = []float64{0.15, 0.18, 0.20, 0.22, 0.25}

// Typical tip window, independent of receipt type.
var typicalTipRange = model.RateRange{Min: 0.10, Max: 0.30}

// PriceRelationshipStrategy classifies lines from how their price relates
// to the receipt subtotal and total.
type PriceRelationshipStrategy struct{}

// NewPriceRelationshipStrategy creates the strategy.
func NewPriceRelationshipStrategy() *PriceRelationshipStrategy {
	return &PriceRelationshipStrategy{}
}

// Name implements Strategy.
func (s *PriceRelationshipStrategy) Name() string { return StrategyPriceRelationship }

// CanClassify requires a known subtotal or total.
func (s *PriceRelationshipStrategy) CanClassify(_ model.ReceiptItem, _ int, rctx model.ReceiptContext) bool {
	_, ok := rctx.RatioBase()
	return ok
}

func priced(category model.ItemCategory, confidence float64, reasoning string) model.ClassificationResult {
	return model.NewClassificationResult(category, confidence, model.MethodPriceRelationship, reasoning)
}

// Classify implements Strategy.
func (s *PriceRelationshipStrategy) Classify(_ context.Context, item model.ReceiptItem, _ int, rctx model.ReceiptContext) model.ClassificationResult {
	base, ok := rctx.RatioBase()
	if !ok {
		return model.UnknownResult(model.MethodPriceRelationship, 0, "no subtotal or total to compare against")
	}

	name := item.Name
	ratio := item.Price.Div(base).InexactFloat64()

	if hasTaxKeyword(name) {
		if result, ok := taxRate(name, ratio, rctx.ReceiptType); ok {
			return result
		}
	}

	if hasTipKeyword(name) || hasGratuityKeyword(name) {
		if result, ok := tipRate(name, ratio); ok {
			return result
		}
	}

	if isTotalName(name) && rctx.TotalAmount != nil && rctx.TotalAmount.IsPositive() {
		diff := item.Price.Sub(*rctx.TotalAmount).Abs().Div(*rctx.TotalAmount).InexactFloat64()
		switch {
		case diff < 0.01:
			return priced(model.CategoryTotal, 0.95, "matches the receipt total")
		case diff < 0.05:
			return priced(model.CategoryTotal, 0.75, fmt.Sprintf("within %.1f%% of the receipt total", diff*100))
		}
	}

	if isSubtotalName(name) && rctx.SubtotalAmount != nil && rctx.SubtotalAmount.IsPositive() {
		diff := item.Price.Sub(*rctx.SubtotalAmount).Abs().Div(*rctx.SubtotalAmount).InexactFloat64()
		switch {
		case diff < 0.02:
			return priced(model.CategorySubtotal, 0.92, "matches the receipt subtotal")
		case diff < 0.05:
			return priced(model.CategorySubtotal, 0.70, fmt.Sprintf("within %.1f%% of the receipt subtotal", diff*100))
		}
	}

	return magnitude(name, ratio, rctx.ReceiptType)
}

func taxRate(name string, ratio float64, receiptType model.ReceiptType) (model.ClassificationResult, bool) {
	taxRange := receiptType.TaxRateRange()

	if taxRange.Contains(ratio) {
		closeness := 1.0
		if hw := taxRange.HalfWidth(); hw > 0 {
			closeness = 1 - math.Abs(ratio-taxRange.Center())/hw
		}
		confidence := 0.5 + 0.5*clamp01(closeness)
		if normalizedName(name) == "tax" {
			confidence += 0.15
		}
		return priced(model.CategoryTax, math.Min(confidence, 1.0),
			fmt.Sprintf("%.1f%% of subtotal is a typical %s tax rate", ratio*100, receiptType)), true
	}

	if ratio > 0 && ratio < 0.20 {
		return priced(model.CategoryTax, 0.60,
			fmt.Sprintf("%.1f%% of subtotal is outside the usual tax range", ratio*100)), true
	}

	// A line named just "tax" stays tax whatever its amount.
	if normalizedName(name) == "tax" {
		return priced(model.CategoryTax, 0.50,
			fmt.Sprintf("tax line at an unusual %.1f%% of subtotal", ratio*100)), true
	}
	return model.ClassificationResult{}, false
}

func tipRate(name string, ratio float64) (model.ClassificationResult, bool) {
	category := model.CategoryTip
	if suggestsAutoCharge(name) {
		category = model.CategoryGratuity
	}

	if typicalTipRange.Contains(ratio) {
		nearest := math.Inf(1)
		for _, rate := range standardTipRates {
			nearest = math.Min(nearest, math.Abs(ratio-rate))
		}
		confidence := 0.6 + 0.3*(1-math.Min(nearest/0.05, 1))
		if n := normalizedName(name); n == "tip" || n == "gratuity" {
			confidence += 0.1
		}
		return priced(category, math.Min(confidence, 1.0),
			fmt.Sprintf("%.1f%% of subtotal is a typical tip rate", ratio*100)), true
	}

	if ratio >= 0.05 && ratio <= 0.40 {
		return priced(category, 0.55,
			fmt.Sprintf("%.1f%% of subtotal is an unusual tip rate", ratio*100)), true
	}
	return model.ClassificationResult{}, false
}

// magnitude guesses from the ratio alone.
func magnitude(name string, ratio float64, receiptType model.ReceiptType) model.ClassificationResult {
	switch {
	case ratio >= 0.02 && ratio < 0.15:
		if receiptType.TaxRateRange().Contains(ratio) {
			return priced(model.CategoryTax, 0.55, fmt.Sprintf("%.1f%% of subtotal fits the tax range", ratio*100))
		}
		return priced(model.CategoryServiceCharge, 0.50, fmt.Sprintf("%.1f%% of subtotal looks like a fee", ratio*100))
	case ratio >= 0.15 && ratio <= 0.30 && hasTipKeyword(name):
		return priced(model.CategoryTip, 0.60, fmt.Sprintf("%.1f%% of subtotal with a tip keyword", ratio*100))
	case ratio >= 0.50 && isSummaryName(name):
		if isSubtotalName(name) {
			return priced(model.CategorySubtotal, 0.65, "large amount with a subtotal keyword")
		}
		return priced(model.CategoryTotal, 0.65, "large amount with a total keyword")
	case ratio >= 0.05 && ratio < 0.50:
		return priced(model.CategoryFood, 0.50, fmt.Sprintf("%.1f%% of subtotal is a plausible item price", ratio*100))
	}
	return model.UnknownResult(model.MethodPriceRelationship, 0.1, "no price relationship found")
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
