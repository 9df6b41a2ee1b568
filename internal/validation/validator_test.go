package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-bill-must-split/internal/model"
)

type line struct {
	name       string
	price      string
	category   model.ItemCategory
	confidence float64
}

func build(lines ...line) (*model.ClassifiedReceipt, []model.ReceiptItem) {
	items := make([]model.ClassifiedReceiptItem, len(lines))
	raw := make([]model.ReceiptItem, len(lines))
	for i, l := range lines {
		raw[i] = model.NewReceiptItem(l.name, decimal.RequireFromString(l.price))
		result := model.NewClassificationResult(l.category, l.confidence, model.MethodHeuristic, "")
		items[i] = model.NewClassifiedReceiptItem(raw[i], i, result)
	}
	return model.NewClassifiedReceipt(items), raw
}

func restaurant(raw []model.ReceiptItem) model.ReceiptContext {
	return model.NewReceiptContext(raw, model.ContextOptions{ReceiptType: model.ReceiptTypeRestaurant})
}

func issueTypes(issues []model.ValidationIssue) []model.IssueType {
	out := make([]model.IssueType, len(issues))
	for i, issue := range issues {
		out[i] = issue.Type
	}
	return out
}

func findIssue(t *testing.T, r *model.ClassifiedReceipt, kind model.IssueType) model.ValidationIssue {
	t.Helper()
	for _, issue := range r.Issues {
		if issue.Type == kind {
			return issue
		}
	}
	require.Failf(t, "issue not found", "no %s issue in %v", kind, issueTypes(r.Issues))
	return model.ValidationIssue{}
}

func TestValidate_BalancedReceipt(t *testing.T) {
	r, raw := build(
		line{"Burger", "20.00", model.CategoryFood, 0.9},
		line{"Steak", "30.00", model.CategoryFood, 0.9},
		line{"Tax", "4.00", model.CategoryTax, 0.95},
		line{"Tip", "10.00", model.CategoryTip, 0.95},
		line{"Total", "64.00", model.CategoryTotal, 0.95},
	)

	out := New(0.02).Validate(r, restaurant(raw))

	assert.Empty(t, out.Issues)
	assert.Equal(t, model.StatusValid, out.ValidationStatus)
}

func TestValidate_SumMismatch(t *testing.T) {
	tests := []struct {
		name     string
		total    string
		severity model.IssueSeverity
		status   model.ValidationStatus
	}{
		{name: "small gap", total: "65.50", severity: model.SeverityWarning, status: model.StatusWarning},
		{name: "large gap", total: "80.00", severity: model.SeverityError, status: model.StatusInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, raw := build(
				line{"Burger", "20.00", model.CategoryFood, 0.95},
				line{"Steak", "30.00", model.CategoryFood, 0.95},
				line{"Tax", "4.00", model.CategoryTax, 0.95},
				line{"Tip", "10.00", model.CategoryTip, 0.95},
				line{"Total", tt.total, model.CategoryTotal, 0.95},
			)

			out := New(0.02).Validate(r, restaurant(raw))

			issue := findIssue(t, out, model.IssueSumMismatch)
			assert.Equal(t, tt.severity, issue.Severity)
			assert.Equal(t, []string{out.Total.ID}, issue.AffectedItemIDs)
			assert.Equal(t, tt.status, out.ValidationStatus)
		})
	}
}

func TestValidate_MissingTotal(t *testing.T) {
	r, raw := build(
		line{"Burger", "20.00", model.CategoryFood, 0.95},
		line{"Tax", "1.60", model.CategoryTax, 0.95},
	)

	out := New(0.02).Validate(r, restaurant(raw))

	issue := findIssue(t, out, model.IssueMissingTotal)
	assert.Equal(t, model.SeverityWarning, issue.Severity)
	assert.NotContains(t, issueTypes(out.Issues), model.IssueSumMismatch)
}

func TestValidate_MissingTotalComparesConfirmedTotal(t *testing.T) {
	r, raw := build(
		line{"Burger", "20.00", model.CategoryFood, 0.95},
		line{"Tax", "1.60", model.CategoryTax, 0.95},
	)
	total := decimal.RequireFromString("30.00")
	rctx := model.NewReceiptContext(raw, model.ContextOptions{
		ReceiptType: model.ReceiptTypeRestaurant,
		Total:       &total,
	})

	out := New(0.02).Validate(r, rctx)

	assert.Contains(t, issueTypes(out.Issues), model.IssueMissingTotal)
	issue := findIssue(t, out, model.IssueSumMismatch)
	assert.Equal(t, model.SeverityError, issue.Severity)
}

func TestValidate_TaxRateOutOfRange(t *testing.T) {
	r, raw := build(
		line{"Burger", "50.00", model.CategoryFood, 0.95},
		line{"Tax", "10.00", model.CategoryTax, 0.95},
		line{"Total", "60.00", model.CategoryTotal, 0.95},
	)

	out := New(0.02).Validate(r, restaurant(raw))

	issue := findIssue(t, out, model.IssueTaxRateRange)
	assert.Equal(t, []string{out.Tax.ID}, issue.AffectedItemIDs)
	assert.Contains(t, issue.Message, "20.0%")
}

func TestValidate_TaxRateUsesSubtotalLine(t *testing.T) {
	r, raw := build(
		line{"Burger", "50.00", model.CategoryFood, 0.95},
		line{"Subtotal", "100.00", model.CategorySubtotal, 0.95},
		line{"Tax", "8.00", model.CategoryTax, 0.95},
	)

	out := New(0.02).Validate(r, restaurant(raw))

	assert.NotContains(t, issueTypes(out.Issues), model.IssueTaxRateRange)
}

func TestValidate_TipOnGroceryReceipt(t *testing.T) {
	r, raw := build(
		line{"Milk", "5.00", model.CategoryFood, 0.95},
		line{"Tip", "1.00", model.CategoryTip, 0.95},
		line{"Total", "6.00", model.CategoryTotal, 0.95},
	)
	rctx := model.NewReceiptContext(raw, model.ContextOptions{ReceiptType: model.ReceiptTypeGrocery})

	out := New(0.02).Validate(r, rctx)

	issue := findIssue(t, out, model.IssueTipRateRange)
	assert.Contains(t, issue.Message, "do not usually carry")
}

func TestValidate_TipOutOfRange(t *testing.T) {
	r, raw := build(
		line{"Burger", "50.00", model.CategoryFood, 0.95},
		line{"Tip", "25.00", model.CategoryTip, 0.95},
		line{"Total", "75.00", model.CategoryTotal, 0.95},
	)

	out := New(0.02).Validate(r, restaurant(raw))

	issue := findIssue(t, out, model.IssueTipRateRange)
	assert.Equal(t, []string{out.Tip.ID}, issue.AffectedItemIDs)
}

func TestValidate_Duplicates(t *testing.T) {
	r, raw := build(
		line{"Burger", "50.00", model.CategoryFood, 0.95},
		line{"State Tax", "3.00", model.CategoryTax, 0.95},
		line{"City Tax", "1.00", model.CategoryTax, 0.95},
		line{"Total", "54.00", model.CategoryTotal, 0.95},
	)

	out := New(0.02).Validate(r, restaurant(raw))

	issue := findIssue(t, out, model.IssueDuplicate)
	require.Len(t, issue.AffectedItemIDs, 2)
	assert.Equal(t, out.Tax.ID, issue.AffectedItemIDs[0])
	assert.Equal(t, out.Extras[0].ID, issue.AffectedItemIDs[1])
	assert.Equal(t, model.SeverityWarning, issue.Severity)
}

func TestValidate_LowConfidence(t *testing.T) {
	r, raw := build(
		line{"Burger", "20.00", model.CategoryFood, 0.95},
		line{"XQZ", "1.60", model.CategoryUnknown, 0.1},
		line{"Total", "21.60", model.CategoryTotal, 0.95},
	)

	out := New(0.02).Validate(r, restaurant(raw))

	issue := findIssue(t, out, model.IssueLowConfidence)
	assert.Equal(t, model.SeverityInfo, issue.Severity)
	assert.Len(t, issue.AffectedItemIDs, 1)
}

func TestValidate_NeverRecategorizes(t *testing.T) {
	r, raw := build(
		line{"Burger", "50.00", model.CategoryFood, 0.6},
		line{"Tax", "30.00", model.CategoryTax, 0.6},
		line{"Tax again", "1.00", model.CategoryTax, 0.6},
		line{"Total", "200.00", model.CategoryTotal, 0.6},
	)

	before := r.AllItems()
	out := New(0.02).Validate(r, restaurant(raw))
	after := out.AllItems()

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Category, after[i].Category)
	}
	assert.NotEmpty(t, out.Issues)
	assert.Empty(t, r.Issues, "input receipt is left untouched")
}

func TestNew_DefaultTolerance(t *testing.T) {
	assert.InDelta(t, DefaultTolerance, New(0).tolerance, 1e-9)
	assert.InDelta(t, 0.05, New(0.05).tolerance, 1e-9)
}
