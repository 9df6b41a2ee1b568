// Package classification assigns categories to receipt lines using
// interchangeable strategies run through a confidence-driven chain.
package classification

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Veraticus/the-bill-must-split/internal/model"
)

// KeywordRule maps a name pattern to a category.
type KeywordRule struct {
	Name       string
	Category   model.ItemCategory
	Regex      string
	Exclude    string  // lines also matching Exclude are skipped
	Priority   int     // higher priority rules are checked first
	Confidence float64 // confidence when the rule matches
}

type compiledRule struct {
	regex   *regexp.Regexp
	exclude *regexp.Regexp
	KeywordRule
}

// KeywordMatcher checks a line name against priority-ordered rules.
type KeywordMatcher struct {
	rules []compiledRule
}

func compileCaseInsensitive(expr string) (*regexp.Regexp, error) {
	if !strings.HasPrefix(expr, "(?i)") {
		expr = "(?i)" + expr
	}
	return regexp.Compile(expr)
}

// NewKeywordMatcher compiles rules case-insensitively.
func NewKeywordMatcher(rules []KeywordRule) (*KeywordMatcher, error) {
	compiled := make([]compiledRule, 0, len(rules))

	for _, r := range rules {
		regex, err := compileCaseInsensitive(r.Regex)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule %s: %w", r.Name, err)
		}

		var exclude *regexp.Regexp
		if r.Exclude != "" {
			exclude, err = compileCaseInsensitive(r.Exclude)
			if err != nil {
				return nil, fmt.Errorf("failed to compile exclusion for rule %s: %w", r.Name, err)
			}
		}

		compiled = append(compiled, compiledRule{KeywordRule: r, regex: regex, exclude: exclude})
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority > compiled[j].Priority
	})

	return &KeywordMatcher{rules: compiled}, nil
}

// Match returns the highest priority rule matching name.
func (m *KeywordMatcher) Match(name string) (KeywordRule, bool) {
	for _, r := range m.rules {
		if !r.regex.MatchString(name) {
			continue
		}
		if r.exclude != nil && r.exclude.MatchString(name) {
			continue
		}
		return r.KeywordRule, true
	}
	return KeywordRule{}, false
}

// Keyword expressions shared by the strategies. English, Spanish, French,
// German, Italian and Portuguese. \b is ASCII only, so it is never placed
// next to an accented letter.
const (
	taxExpr         = `\b(tax|taxes|sales\s*tax|vat|gst|hst|pst|qst|iva|i\.v\.a|impuesto|impuestos|tva|taxe|taxes|mwst|ust|steuer|imposta|imposto|impostos)\b`
	tipExpr         = `\b(tip|tips|propina|pourboire|trinkgeld|mancia|gorjeta)\b`
	gratuityExpr    = `\b(gratuity|gratuities|grat\b|auto\s*grat\b|service\s*(charge\s*)?\d+\s*%|servicio\s*incluido|service\s*compris|bedienung|servizio|coperto|taxa\s*de\s*servi)`
	totalExpr       = `\b(total|grand\s*total|amount\s*due|balance\s*due|total\s*due|importe|gesamt|gesamtbetrag|summe|totale|montant|net\s*[aà]\s*payer|valor\s*total)\b`
	subtotalExpr    = `(\bsub\s*-?\s*total|\bsubtot\b|zwischensumme|\bsous\s*-?\s*total|\bsubtotale\b|\bbase\s*imponible\b)`
	discountExpr    = `\b(discount|disc|coupon|promo|promotion|off|savings|voucher|descuento|cup[oó]n|remise|r[ée]duction|rabatt|gutschein|sconto|desconto)\b`
	deliveryExpr    = `\b(delivery|shipping|courier|env[ií]o|domicilio|livraison|lieferung|liefergeb[uü]hr|consegna|entrega)\b`
	serviceExpr     = `\b(service\s*charge|service\s*fee|svc|srv\s*chg|cargo\s*por\s*servicio|frais\s*de\s*service|servicegeb[uü]hr|booking\s*fee|table\s*charge|cover\s*charge)\b`
	serviceWordExpr = `\b(service|servicio|servi[cç]o|servizio|bedienung|coperto|gratuity|grat\b|party)`
	autoWordsExpr   = `\b(auto|automatic|included|incluido|compris|mandatory|party)\b`
	autoChargeExpr  = `\b(auto|automatic|included|incluido|compris|mandatory|party|grat|gratuity|service)\b`
	autoTipExpr     = tipExpr + `.*` + autoWordsExpr + `|` + autoWordsExpr + `.*` + tipExpr
)

var (
	taxRe         = regexp.MustCompile("(?i)" + taxExpr)
	tipRe         = regexp.MustCompile("(?i)" + tipExpr)
	gratuityRe    = regexp.MustCompile("(?i)" + gratuityExpr)
	totalRe       = regexp.MustCompile("(?i)" + totalExpr)
	subtotalRe    = regexp.MustCompile("(?i)" + subtotalExpr)
	discountRe    = regexp.MustCompile("(?i)" + discountExpr)
	serviceRe     = regexp.MustCompile("(?i)" + serviceExpr)
	autoChargeRe  = regexp.MustCompile("(?i)" + autoChargeExpr)
	serviceWordRe = regexp.MustCompile("(?i)" + serviceWordExpr)
)

func hasTaxKeyword(name string) bool      { return taxRe.MatchString(name) }
func hasTipKeyword(name string) bool      { return tipRe.MatchString(name) }
func hasGratuityKeyword(name string) bool { return gratuityRe.MatchString(name) }
func hasDiscountKeyword(name string) bool { return discountRe.MatchString(name) }
func hasServiceKeyword(name string) bool  { return serviceRe.MatchString(name) }
func isSubtotalName(name string) bool     { return subtotalRe.MatchString(name) }
func mentionsService(name string) bool    { return serviceWordRe.MatchString(name) }

// isTotalName matches "total" lines that are not subtotals.
func isTotalName(name string) bool {
	return totalRe.MatchString(name) && !isSubtotalName(name)
}

func isSummaryName(name string) bool {
	return isTotalName(name) || isSubtotalName(name)
}

// suggestsAutoCharge reports whether a tip-like line was added by the merchant.
func suggestsAutoCharge(name string) bool {
	return hasGratuityKeyword(name) || autoChargeRe.MatchString(name)
}

func normalizedName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// DefaultKeywordRules returns the keyword table used by the pattern strategy,
// in priority order tax, tip, gratuity, total, subtotal, discount, delivery,
// service charge.
func DefaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		{
			Name:       "Tax",
			Category:   model.CategoryTax,
			Regex:      taxExpr,
			Priority:   100,
			Confidence: 0.92,
		},
		{
			Name:       "Tip",
			Category:   model.CategoryTip,
			Regex:      tipExpr,
			Exclude:    autoChargeExpr,
			Priority:   95,
			Confidence: 0.90,
		},
		{
			Name:       "Gratuity",
			Category:   model.CategoryGratuity,
			Regex:      gratuityExpr + `|` + autoTipExpr,
			Priority:   90,
			Confidence: 0.92,
		},
		{
			Name:       "Total",
			Category:   model.CategoryTotal,
			Regex:      totalExpr,
			Exclude:    subtotalExpr,
			Priority:   85,
			Confidence: 0.93,
		},
		{
			Name:       "Subtotal",
			Category:   model.CategorySubtotal,
			Regex:      subtotalExpr,
			Priority:   80,
			Confidence: 0.93,
		},
		{
			Name:       "Discount",
			Category:   model.CategoryDiscount,
			Regex:      discountExpr,
			Priority:   75,
			Confidence: 0.88,
		},
		{
			Name:       "Delivery",
			Category:   model.CategoryDeliveryFee,
			Regex:      deliveryExpr,
			Priority:   70,
			Confidence: 0.88,
		},
		{
			Name:       "Service Charge",
			Category:   model.CategoryServiceCharge,
			Regex:      serviceExpr,
			Priority:   65,
			Confidence: 0.85,
		},
	}
}
