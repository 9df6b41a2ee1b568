package classification

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-bill-must-split/internal/model"
)

var (
	percentRe  = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*%`)
	quantityRe = regexp.MustCompile(`^\d{1,3}\s*(?:[xX×]\s*)?\p{L}`)
)

var fifty = decimal.NewFromInt(50)

var (
	taxAbbreviations = map[string]bool{"tx": true, "tax": true, "vat": true, "gst": true, "hst": true, "pst": true, "iva": true, "tva": true, "mwst": true, "ust": true}
	tipAbbreviations = map[string]bool{"tp": true, "tip": true, "grt": true, "grat": true}
)

// PatternStrategy classifies lines from their text and the sign and
// magnitude of their price.
type PatternStrategy struct {
	keywords *KeywordMatcher
}

// NewPatternStrategy creates the strategy with the default keyword table.
func NewPatternStrategy() *PatternStrategy {
	matcher, err := NewKeywordMatcher(DefaultKeywordRules())
	if err != nil {
		// the default table is static
		panic(err)
	}
	return &PatternStrategy{keywords: matcher}
}

// NewPatternStrategyWithRules creates the strategy with a custom keyword table.
func NewPatternStrategyWithRules(rules []KeywordRule) (*PatternStrategy, error) {
	matcher, err := NewKeywordMatcher(rules)
	if err != nil {
		return nil, err
	}
	return &PatternStrategy{keywords: matcher}, nil
}

// Name implements Strategy.
func (s *PatternStrategy) Name() string { return StrategyPattern }

// CanClassify always returns true.
func (s *PatternStrategy) CanClassify(model.ReceiptItem, int, model.ReceiptContext) bool {
	return true
}

// Classify implements Strategy. Rules are tried in order and the first
// match wins.
func (s *PatternStrategy) Classify(_ context.Context, item model.ReceiptItem, _ int, rctx model.ReceiptContext) model.ClassificationResult {
	name := item.Name

	if item.Price.IsNegative() {
		return s.negativePrice(name)
	}

	if result, ok := s.percentage(name); ok {
		return result
	}

	if quantityRe.MatchString(name) {
		return heuristic(model.CategoryFood, 0.90, "line starts with a quantity")
	}

	if rule, ok := s.keywords.Match(name); ok {
		return heuristic(rule.Category, rule.Confidence, fmt.Sprintf("matched %s keyword", strings.ToLower(rule.Name)))
	}

	if result, ok := abbreviation(name); ok {
		return result
	}

	if result, ok := priceMagnitude(item, rctx); ok {
		return result
	}

	return model.UnknownResult(model.MethodHeuristic, 0.1, "no pattern matched")
}

func heuristic(category model.ItemCategory, confidence float64, reasoning string) model.ClassificationResult {
	return model.NewClassificationResult(category, confidence, model.MethodHeuristic, reasoning)
}

func (s *PatternStrategy) negativePrice(name string) model.ClassificationResult {
	if hasDiscountKeyword(name) {
		return heuristic(model.CategoryDiscount, 0.95, "negative price with discount keyword")
	}
	return heuristic(model.CategoryDiscount, 0.85, "negative price")
}

func (s *PatternStrategy) percentage(name string) (model.ClassificationResult, bool) {
	m := percentRe.FindStringSubmatch(name)
	if m == nil {
		return model.ClassificationResult{}, false
	}

	switch {
	case mentionsService(name) || hasServiceKeyword(name):
		return heuristic(model.CategoryGratuity, 0.95, "percentage with service keyword"), true
	case hasTaxKeyword(name):
		return heuristic(model.CategoryTax, 0.90, "percentage with tax keyword"), true
	case hasDiscountKeyword(name):
		return heuristic(model.CategoryDiscount, 0.88, "percentage with discount keyword"), true
	}

	pct, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return model.ClassificationResult{}, false
	}

	switch {
	case pct >= 15 && pct <= 25:
		return heuristic(model.CategoryGratuity, 0.80, fmt.Sprintf("%.4g%% is a typical gratuity rate", pct)), true
	case pct >= 5 && pct < 15:
		return heuristic(model.CategoryTax, 0.70, fmt.Sprintf("%.4g%% is a typical tax rate", pct)), true
	}
	return model.ClassificationResult{}, false
}

func abbreviation(name string) (model.ClassificationResult, bool) {
	short := utf8.RuneCountInString(name) <= 3
	upper := isUpperCase(name)
	if !short && !upper {
		return model.ClassificationResult{}, false
	}

	token := strings.Trim(normalizedName(name), ".:")
	switch {
	case taxAbbreviations[token]:
		return heuristic(model.CategoryTax, 0.85, "tax abbreviation"), true
	case tipAbbreviations[token]:
		return heuristic(model.CategoryTip, 0.85, "tip abbreviation"), true
	case upper && !isSummaryName(name):
		return heuristic(model.CategoryFood, 0.60, "upper case item name"), true
	}
	return model.UnknownResult(model.MethodHeuristic, 0.3, "short name without a known abbreviation"), true
}

// isUpperCase reports whether name has letters and none of them are lower case.
func isUpperCase(name string) bool {
	hasLetter := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func priceMagnitude(item model.ReceiptItem, rctx model.ReceiptContext) (model.ClassificationResult, bool) {
	expected, ok := rctx.ExpectedTotal()
	if !ok || !item.Price.IsPositive() {
		return model.ClassificationResult{}, false
	}

	ratio := item.Price.Div(expected).InexactFloat64()

	switch {
	case ratio < 0.05 && expected.GreaterThanOrEqual(fifty):
		return heuristic(model.CategoryTax, 0.50, "small amount on a large receipt"), true
	case ratio >= 0.98 && ratio <= 1.02:
		return heuristic(model.CategoryTotal, 0.75, "amount matches the expected total"), true
	case ratio >= 0.80 && ratio < 0.98:
		return heuristic(model.CategorySubtotal, 0.55, "amount close to the expected total"), true
	case ratio >= 0.05 && ratio < 0.80:
		return heuristic(model.CategoryFood, 0.55, "mid-range amount"), true
	}
	return model.ClassificationResult{}, false
}
