package engine

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Veraticus/the-bill-must-split/internal/model"
)

// Confidences of the local keyword fallback.
const (
	fallbackKeywordConfidence = 0.6
	fallbackFoodConfidence    = 0.5
	fallbackUnknownConfidence = 0.2
)

// fallbackKeywords are checked in order; subtotal precedes total so that
// "subtotal" is not read as a total.
var fallbackKeywords = []struct {
	category model.ItemCategory
	words    []string
}{
	{model.CategorySubtotal, []string{"subtotal", "sub total", "sub-total"}},
	{model.CategoryTotal, []string{"total"}},
	{model.CategoryTax, []string{"tax", "vat", "gst", "hst", "iva"}},
	{model.CategoryGratuity, []string{"gratuity", "service charge"}},
	{model.CategoryTip, []string{"tip"}},
}

// fallbackResult classifies a single line without any external service.
func fallbackResult(item model.ReceiptItem) model.ClassificationResult {
	name := strings.ToLower(item.Name)

	if item.Price.IsNegative() {
		return model.NewClassificationResult(model.CategoryDiscount, fallbackKeywordConfidence, model.MethodHeuristic, "negative amount")
	}

	for _, kw := range fallbackKeywords {
		for _, word := range kw.words {
			if strings.Contains(name, word) {
				return model.NewClassificationResult(kw.category, fallbackKeywordConfidence, model.MethodHeuristic,
					fmt.Sprintf("contains %q", word))
			}
		}
	}

	if r := []rune(strings.TrimSpace(item.Name)); len(r) > 0 && unicode.IsDigit(r[0]) {
		return model.NewClassificationResult(model.CategoryFood, fallbackFoodConfidence, model.MethodHeuristic, "starts with a quantity")
	}

	return model.UnknownResult(model.MethodHeuristic, fallbackUnknownConfidence, "no keyword matched")
}

// FallbackClassify classifies every line with local keyword rules and marks
// the receipt for review. cause is recorded in the fallback issue.
func FallbackClassify(items []model.ReceiptItem, cause error) *model.ClassifiedReceipt {
	classified := make([]model.ClassifiedReceiptItem, len(items))
	for i, item := range items {
		classified[i] = model.NewClassifiedReceiptItem(item, i, fallbackResult(item))
	}

	message := "classified with local keyword rules"
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}

	return model.NewClassifiedReceipt(classified).
		WithStatus(model.StatusNeedsReview).
		WithIssues(model.ValidationIssue{
			Type:     model.IssueFallbackUsed,
			Message:  message,
			Severity: model.SeverityWarning,
		})
}
