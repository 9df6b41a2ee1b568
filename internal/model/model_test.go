package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-bill-must-split/internal/common"
)

func TestNewReceiptItem_Trims(t *testing.T) {
	item := NewReceiptItem("  Fries \n", decimal.NewFromInt(3))
	assert.Equal(t, "Fries", item.Name)
}

func TestParseItemCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    ItemCategory
		wantErr bool
	}{
		{in: "food", want: CategoryFood},
		{in: "TAX", want: CategoryTax},
		{in: "serviceCharge", want: CategoryServiceCharge},
		{in: "service charge", want: CategoryServiceCharge},
		{in: "delivery-fee", want: CategoryDeliveryFee},
		{in: "deliveryFee", want: CategoryDeliveryFee},
		{in: " gratuity ", want: CategoryGratuity},
		{in: "sub_total", want: CategorySubtotal},
		{in: "beverage", want: CategoryUnknown, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseItemCategory(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, common.ErrInvalidCategory)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestItemCategory_Predicates(t *testing.T) {
	charges := map[ItemCategory]bool{
		CategoryTax: true, CategoryTip: true, CategoryGratuity: true,
		CategoryServiceCharge: true, CategoryDeliveryFee: true,
	}
	for _, c := range AllCategories() {
		assert.Equal(t, charges[c], c.IsAdditionalCharge(), c)
		assert.Equal(t, c == CategorySubtotal || c == CategoryTotal, c.IsSummaryLine(), c)
		assert.NotEmpty(t, c.Label())
		assert.NotEmpty(t, c.Icon())
	}
}

func TestClassificationResult_Thresholds(t *testing.T) {
	r := NewClassificationResult(CategoryTax, 0.8, MethodHeuristic, "")
	assert.True(t, r.IsHighConfidence())
	assert.False(t, r.NeedsReview())

	r = NewClassificationResult(CategoryTax, 0.69, MethodHeuristic, "")
	assert.False(t, r.IsHighConfidence())
	assert.True(t, r.NeedsReview())

	assert.Equal(t, 1.0, NewClassificationResult(CategoryTax, 1.7, MethodLLM, "").Confidence)
	assert.Equal(t, 0.0, NewClassificationResult(CategoryTax, -1, MethodLLM, "").Confidence)
}

func TestClassifiedReceiptItem_Corrected(t *testing.T) {
	item := NewClassifiedReceiptItem(
		NewReceiptItem("Mystery", decimal.NewFromInt(5)),
		3,
		UnknownResult(MethodHeuristic, 0.1, "no match"),
	)
	require.True(t, item.NeedsReview())

	at := time.Now()
	corrected := item.Corrected(CategoryFood, "bob", at)
	assert.Equal(t, item.ID, corrected.ID)
	assert.Equal(t, 1.0, corrected.ClassificationConfidence)
	assert.Equal(t, MethodManual, corrected.ClassificationMethod)
	assert.False(t, corrected.NeedsReview())
	assert.Equal(t, 3, corrected.Position)
	assert.True(t, item.NeedsReview(), "original is unchanged")
}

func TestReceiptContext(t *testing.T) {
	subtotal := decimal.NewFromInt(20)
	total := decimal.RequireFromString("25.60")
	items := []ReceiptItem{
		NewReceiptItem("Burger", decimal.NewFromInt(20)),
		NewReceiptItem("Total", total),
	}

	ctx := NewReceiptContext(items, ContextOptions{
		Subtotal: &subtotal,
		Total:    &total,
		Merchant: "Joe's Grill",
	})

	assert.Equal(t, ReceiptTypeRestaurant, ctx.ReceiptType)
	assert.Equal(t, 2, ctx.ItemCount)
	assert.True(t, ctx.HasTotals())

	base, ok := ctx.RatioBase()
	require.True(t, ok)
	assert.True(t, base.Equal(subtotal))

	expected, ok := ctx.ExpectedTotal()
	require.True(t, ok)
	assert.True(t, expected.Equal(total))

	subtotal = decimal.NewFromInt(99)
	assert.True(t, ctx.SubtotalAmount.Equal(decimal.NewFromInt(20)), "context owns its copy")
}

func TestReceiptType_Profiles(t *testing.T) {
	assert.True(t, ReceiptTypeRestaurant.TaxRateRange().Contains(0.08))
	assert.InDelta(t, 0.08, ReceiptTypeRestaurant.TaxRateRange().Center(), 1e-9)
	assert.True(t, ReceiptTypeRestaurant.ExpectsTip())
	assert.False(t, ReceiptTypeGrocery.ExpectsTip())
	assert.Equal(t, ReceiptTypeUnknown, ParseReceiptType("spaceship"))
	assert.Equal(t, ReceiptTypeDelivery, ParseReceiptType("Delivery"))
	assert.Equal(t, ReceiptTypeDelivery, DetectReceiptType("DoorDash - Thai Palace"))
}
