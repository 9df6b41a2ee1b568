// Package validation cross-checks a classified receipt against its totals
// and the rates expected for its receipt type.
package validation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-bill-must-split/internal/model"
)

// Default tolerances for the sum check, as a fraction of the total.
const (
	DefaultTolerance       = 0.02
	DefaultSevereTolerance = 0.10
)

// Validator annotates receipts with issues. It never moves or recategorizes
// items.
type Validator struct {
	tolerance       float64
	severeTolerance float64
}

// New creates a validator. A non-positive tolerance selects the default.
func New(tolerance float64) *Validator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	severe := DefaultSevereTolerance
	if severe < tolerance {
		severe = tolerance
	}
	return &Validator{tolerance: tolerance, severeTolerance: severe}
}

// Validate returns a copy of r carrying any issues found, with its status
// raised accordingly.
func (v *Validator) Validate(r *model.ClassifiedReceipt, rctx model.ReceiptContext) *model.ClassifiedReceipt {
	issues := v.Issues(r, rctx)
	if len(issues) == 0 {
		return r
	}
	return r.WithIssues(issues...)
}

// Issues runs every check and returns what it found.
func (v *Validator) Issues(r *model.ClassifiedReceipt, rctx model.ReceiptContext) []model.ValidationIssue {
	var issues []model.ValidationIssue

	issues = append(issues, v.checkSum(r, rctx)...)
	issues = append(issues, checkTaxRate(r, rctx)...)
	issues = append(issues, checkTipRate(r, rctx)...)
	issues = append(issues, checkDuplicates(r)...)
	issues = append(issues, checkLowConfidence(r)...)

	return issues
}

func (v *Validator) severity(ratio float64) model.IssueSeverity {
	if ratio > v.severeTolerance {
		return model.SeverityError
	}
	return model.SeverityWarning
}

func (v *Validator) checkSum(r *model.ClassifiedReceipt, rctx model.ReceiptContext) []model.ValidationIssue {
	if r.Total == nil {
		issues := []model.ValidationIssue{{
			Type:     model.IssueMissingTotal,
			Message:  "no total line was found",
			Severity: model.SeverityWarning,
		}}

		if rctx.TotalAmount != nil && rctx.TotalAmount.IsPositive() {
			expected := r.ExpectedTotal()
			ratio := rctx.TotalAmount.Sub(expected).Abs().Div(*rctx.TotalAmount).InexactFloat64()
			if ratio > v.tolerance {
				issues = append(issues, model.ValidationIssue{
					Type: model.IssueSumMismatch,
					Message: fmt.Sprintf("items add up to %s but the confirmed total is %s (%.1f%% off)",
						expected.StringFixed(2), rctx.TotalAmount.StringFixed(2), ratio*100),
					Severity: v.severity(ratio),
				})
			}
		}
		return issues
	}

	ratio, ok := r.TotalDifferenceRatio()
	if !ok {
		return []model.ValidationIssue{{
			Type:            model.IssueSumMismatch,
			Message:         "total line is zero",
			Severity:        model.SeverityWarning,
			AffectedItemIDs: []string{r.Total.ID},
		}}
	}
	if ratio <= v.tolerance {
		return nil
	}

	return []model.ValidationIssue{{
		Type: model.IssueSumMismatch,
		Message: fmt.Sprintf("items add up to %s but the total line is %s (%.1f%% off)",
			r.ExpectedTotal().StringFixed(2), r.Total.Price.StringFixed(2), ratio*100),
		Severity:        v.severity(ratio),
		AffectedItemIDs: []string{r.Total.ID},
	}}
}

// rateBase is the subtotal line, else the confirmed subtotal, else the sum
// of food items.
func rateBase(r *model.ClassifiedReceipt, rctx model.ReceiptContext) (decimal.Decimal, bool) {
	if r.Subtotal != nil && r.Subtotal.Price.IsPositive() {
		return r.Subtotal.Price, true
	}
	if rctx.SubtotalAmount != nil && rctx.SubtotalAmount.IsPositive() {
		return *rctx.SubtotalAmount, true
	}
	if food := r.FoodItemsSum(); food.IsPositive() {
		return food, true
	}
	return decimal.Zero, false
}

func checkTaxRate(r *model.ClassifiedReceipt, rctx model.ReceiptContext) []model.ValidationIssue {
	if r.Tax == nil {
		return nil
	}
	base, ok := rateBase(r, rctx)
	if !ok {
		return nil
	}

	rate := r.Tax.Price.Div(base).InexactFloat64()
	expected := rctx.ReceiptType.TaxRateRange()
	if expected.Contains(rate) {
		return nil
	}

	return []model.ValidationIssue{{
		Type: model.IssueTaxRateRange,
		Message: fmt.Sprintf("tax is %.1f%% of the subtotal, expected %.0f%%-%.0f%% for %s receipts",
			rate*100, expected.Min*100, expected.Max*100, rctx.ReceiptType),
		Severity:        model.SeverityWarning,
		AffectedItemIDs: []string{r.Tax.ID},
	}}
}

func checkTipRate(r *model.ClassifiedReceipt, rctx model.ReceiptContext) []model.ValidationIssue {
	base, ok := rateBase(r, rctx)
	if !ok {
		return nil
	}

	expected := rctx.ReceiptType.TipRateRange()
	var issues []model.ValidationIssue

	for _, line := range []*model.ClassifiedReceiptItem{r.Tip, r.Gratuity} {
		if line == nil {
			continue
		}
		rate := line.Price.Div(base).InexactFloat64()
		if expected.Contains(rate) {
			continue
		}

		message := fmt.Sprintf("%s is %.1f%% of the subtotal, expected %.0f%%-%.0f%%",
			line.Category.Label(), rate*100, expected.Min*100, expected.Max*100)
		if expected.Max == 0 {
			message = fmt.Sprintf("%s receipts do not usually carry a %s",
				rctx.ReceiptType, line.Category.Label())
		}

		issues = append(issues, model.ValidationIssue{
			Type:            model.IssueTipRateRange,
			Message:         message,
			Severity:        model.SeverityWarning,
			AffectedItemIDs: []string{line.ID},
		})
	}
	return issues
}

func checkDuplicates(r *model.ClassifiedReceipt) []model.ValidationIssue {
	if len(r.Extras) == 0 {
		return nil
	}

	slots := map[model.ItemCategory]*model.ClassifiedReceiptItem{
		model.CategoryTax:      r.Tax,
		model.CategoryTip:      r.Tip,
		model.CategoryGratuity: r.Gratuity,
		model.CategorySubtotal: r.Subtotal,
		model.CategoryTotal:    r.Total,
	}

	var order []model.ItemCategory
	affected := make(map[model.ItemCategory][]string)
	for _, extra := range r.Extras {
		if _, seen := affected[extra.Category]; !seen {
			order = append(order, extra.Category)
			if slot := slots[extra.Category]; slot != nil {
				affected[extra.Category] = append(affected[extra.Category], slot.ID)
			}
		}
		affected[extra.Category] = append(affected[extra.Category], extra.ID)
	}

	issues := make([]model.ValidationIssue, 0, len(order))
	for _, category := range order {
		ids := affected[category]
		issues = append(issues, model.ValidationIssue{
			Type:            model.IssueDuplicate,
			Message:         fmt.Sprintf("%d lines classified as %s", len(ids), category.Label()),
			Severity:        model.SeverityWarning,
			AffectedItemIDs: ids,
		})
	}
	return issues
}

func checkLowConfidence(r *model.ClassifiedReceipt) []model.ValidationIssue {
	review := r.ItemsNeedingReview()
	if len(review) == 0 {
		return nil
	}

	ids := make([]string, len(review))
	for i, item := range review {
		ids[i] = item.ID
	}
	return []model.ValidationIssue{{
		Type:            model.IssueLowConfidence,
		Message:         fmt.Sprintf("%d of %d lines need review", len(review), r.ItemCount()),
		Severity:        model.SeverityInfo,
		AffectedItemIDs: ids,
	}}
}
