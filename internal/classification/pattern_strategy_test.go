package classification

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/the-bill-must-split/internal/model"
)

func item(name, price string) model.ReceiptItem {
	return model.NewReceiptItem(name, decimal.RequireFromString(price))
}

func restaurantContext(subtotal, total string, count int) model.ReceiptContext {
	opts := model.ContextOptions{ReceiptType: model.ReceiptTypeRestaurant, ItemCount: count}
	if subtotal != "" {
		s := decimal.RequireFromString(subtotal)
		opts.Subtotal = &s
	}
	if total != "" {
		t := decimal.RequireFromString(total)
		opts.Total = &t
	}
	return model.NewReceiptContext(nil, opts)
}

func TestPatternStrategy_Classify(t *testing.T) {
	s := NewPatternStrategy()
	rctx := restaurantContext("100.00", "120.00", 8)

	tests := []struct {
		name           string
		item           model.ReceiptItem
		wantCategory   model.ItemCategory
		wantConfidence float64
	}{
		{name: "party gratuity", item: item("Large Party 20%", "20.00"), wantCategory: model.CategoryGratuity, wantConfidence: 0.95},
		{name: "service percentage", item: item("Service 18%", "18.00"), wantCategory: model.CategoryGratuity, wantConfidence: 0.95},
		{name: "tax percentage", item: item("Sales Tax 8.875%", "8.88"), wantCategory: model.CategoryTax, wantConfidence: 0.90},
		{name: "discount percentage", item: item("Promo 10%", "10.00"), wantCategory: model.CategoryDiscount, wantConfidence: 0.88},
		{name: "bare gratuity rate", item: item("Added 20%", "20.00"), wantCategory: model.CategoryGratuity, wantConfidence: 0.80},
		{name: "bare tax rate", item: item("Rate 7,5 %", "7.50"), wantCategory: model.CategoryTax, wantConfidence: 0.70},
		{name: "quantity prefix", item: item("2 Burgers", "20.00"), wantCategory: model.CategoryFood, wantConfidence: 0.90},
		{name: "quantity with x", item: item("3x Fries", "9.00"), wantCategory: model.CategoryFood, wantConfidence: 0.90},
		{name: "negative with keyword", item: item("Coupon", "-5.00"), wantCategory: model.CategoryDiscount, wantConfidence: 0.95},
		{name: "negative without keyword", item: item("Adjustment", "-5.00"), wantCategory: model.CategoryDiscount, wantConfidence: 0.85},
		{name: "tax keyword", item: item("Sales Tax", "8.00"), wantCategory: model.CategoryTax, wantConfidence: 0.92},
		{name: "spanish tax", item: item("IVA", "8.00"), wantCategory: model.CategoryTax, wantConfidence: 0.92},
		{name: "german tip", item: item("Trinkgeld", "10.00"), wantCategory: model.CategoryTip, wantConfidence: 0.90},
		{name: "auto gratuity", item: item("Auto Gratuity", "18.00"), wantCategory: model.CategoryGratuity, wantConfidence: 0.92},
		{name: "total", item: item("Total", "120.00"), wantCategory: model.CategoryTotal, wantConfidence: 0.93},
		{name: "subtotal is not total", item: item("Sub-Total", "100.00"), wantCategory: model.CategorySubtotal, wantConfidence: 0.93},
		{name: "german subtotal", item: item("Zwischensumme", "100.00"), wantCategory: model.CategorySubtotal, wantConfidence: 0.93},
		{name: "delivery", item: item("Delivery", "3.99"), wantCategory: model.CategoryDeliveryFee, wantConfidence: 0.88},
		{name: "service charge", item: item("Service Charge", "5.00"), wantCategory: model.CategoryServiceCharge, wantConfidence: 0.85},
		{name: "tax abbreviation", item: item("TX", "8.00"), wantCategory: model.CategoryTax, wantConfidence: 0.85},
		{name: "tip abbreviation", item: item("tp", "15.00"), wantCategory: model.CategoryTip, wantConfidence: 0.85},
		{name: "upper case dish", item: item("CHKN PARM", "18.00"), wantCategory: model.CategoryFood, wantConfidence: 0.60},
		{name: "short unknown", item: item("zz", "1.00"), wantCategory: model.CategoryUnknown, wantConfidence: 0.3},
		{name: "mid-range price", item: item("Margherita pizza", "14.00"), wantCategory: model.CategoryFood, wantConfidence: 0.55},
		{name: "price equals total", item: item("Amount paid", "120.00"), wantCategory: model.CategoryTotal, wantConfidence: 0.75},
		{name: "price near total", item: item("Amount", "100.00"), wantCategory: model.CategorySubtotal, wantConfidence: 0.55},
		{name: "tiny price on large receipt", item: item("Bread basket", "2.00"), wantCategory: model.CategoryTax, wantConfidence: 0.50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Classify(context.Background(), tt.item, 0, rctx)
			assert.Equal(t, tt.wantCategory, got.Category, got.Reasoning)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 1e-9)
			assert.Equal(t, model.MethodHeuristic, got.Method)
		})
	}
}

func TestPatternStrategy_NoContext(t *testing.T) {
	s := NewPatternStrategy()
	got := s.Classify(context.Background(), item("Margherita pizza", "14.00"), 0, model.ReceiptContext{})
	assert.Equal(t, model.CategoryUnknown, got.Category)
	assert.InDelta(t, 0.1, got.Confidence, 1e-9)
	assert.True(t, s.CanClassify(item("x", "1"), 0, model.ReceiptContext{}))
}

func TestPatternStrategy_NegativePriceIsAlwaysDiscount(t *testing.T) {
	s := NewPatternStrategy()
	rctx := restaurantContext("50.00", "55.00", 5)

	names := []string{"Tax", "2 Burgers", "Service 18%", "Total", "TIP", "x", "Happy hour 10%", "Refund", ""}
	for _, name := range names {
		got := s.Classify(context.Background(), item(name, "-3.25"), 2, rctx)
		assert.Equal(t, model.CategoryDiscount, got.Category, name)
		assert.GreaterOrEqual(t, got.Confidence, 0.85, name)
	}
}

func TestKeywordMatcher(t *testing.T) {
	m, err := NewKeywordMatcher(DefaultKeywordRules())
	assert.NoError(t, err)
	assert.Len(t, m.rules, len(DefaultKeywordRules()))

	rule, ok := m.Match("Total Tax")
	assert.True(t, ok)
	assert.Equal(t, model.CategoryTax, rule.Category, "tax outranks total")

	_, ok = m.Match("Gratin Dauphinois")
	assert.False(t, ok)

	_, ok = m.Match("Taxi voucher reimbursement")
	assert.True(t, ok)

	_, err = NewKeywordMatcher([]KeywordRule{{Name: "bad", Regex: "("}})
	assert.Error(t, err)
}

func TestKeywordPredicates(t *testing.T) {
	assert.True(t, isTotalName("Grand Total"))
	assert.False(t, isTotalName("Subtotal"))
	assert.False(t, isTotalName("Sub Total"))
	assert.True(t, isSubtotalName("Sous-total"))
	assert.True(t, suggestsAutoCharge("Tip (included)"))
	assert.False(t, suggestsAutoCharge("Tip"))
	assert.True(t, hasTaxKeyword("MwSt 19%"))
	assert.False(t, hasTaxKeyword("Taxi"))
}
