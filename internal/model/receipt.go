// Package model defines the core domain models used throughout the application.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptItem is a raw line extracted from a receipt by OCR. It carries no category.
type ReceiptItem struct {
	Name  string
	Price decimal.Decimal
}

// NewReceiptItem creates a receipt item with a trimmed name.
func NewReceiptItem(name string, price decimal.Decimal) ReceiptItem {
	return ReceiptItem{
		Name:  strings.TrimSpace(name),
		Price: price,
	}
}

// ReceiptType describes the kind of merchant that issued a receipt.
type ReceiptType string

// Receipt type constants.
const (
	ReceiptTypeRestaurant ReceiptType = "restaurant"
	ReceiptTypeGrocery    ReceiptType = "grocery"
	ReceiptTypeRetail     ReceiptType = "retail"
	ReceiptTypeDelivery   ReceiptType = "delivery"
	ReceiptTypeUnknown    ReceiptType = "unknown"
)

// RateRange is an inclusive range of ratios relative to a subtotal.
type RateRange struct {
	Min float64
	Max float64
}

// Contains reports whether rate lies within the range.
func (r RateRange) Contains(rate float64) bool {
	return rate >= r.Min && rate <= r.Max
}

// Center returns the midpoint of the range.
func (r RateRange) Center() float64 {
	return (r.Min + r.Max) / 2
}

// HalfWidth returns half the width of the range.
func (r RateRange) HalfWidth() float64 {
	return (r.Max - r.Min) / 2
}

type receiptTypeProfile struct {
	tax                  RateRange
	tip                  RateRange
	expectsTip           bool
	expectsServiceCharge bool
}

var receiptTypeProfiles = map[ReceiptType]receiptTypeProfile{
	ReceiptTypeRestaurant: {
		tax:                  RateRange{Min: 0.04, Max: 0.12},
		tip:                  RateRange{Min: 0.10, Max: 0.30},
		expectsTip:           true,
		expectsServiceCharge: true,
	},
	ReceiptTypeGrocery: {
		tax: RateRange{Min: 0.00, Max: 0.10},
		tip: RateRange{Min: 0.00, Max: 0.00},
	},
	ReceiptTypeRetail: {
		tax: RateRange{Min: 0.04, Max: 0.11},
		tip: RateRange{Min: 0.00, Max: 0.00},
	},
	ReceiptTypeDelivery: {
		tax:                  RateRange{Min: 0.04, Max: 0.12},
		tip:                  RateRange{Min: 0.05, Max: 0.25},
		expectsTip:           true,
		expectsServiceCharge: true,
	},
	ReceiptTypeUnknown: {
		tax: RateRange{Min: 0.00, Max: 0.15},
		tip: RateRange{Min: 0.10, Max: 0.30},
	},
}

func (t ReceiptType) profile() receiptTypeProfile {
	if p, ok := receiptTypeProfiles[t]; ok {
		return p
	}
	return receiptTypeProfiles[ReceiptTypeUnknown]
}

// TaxRateRange returns the typical tax rate range for the receipt type.
func (t ReceiptType) TaxRateRange() RateRange { return t.profile().tax }

// TipRateRange returns the typical tip rate range for the receipt type.
func (t ReceiptType) TipRateRange() RateRange { return t.profile().tip }

// ExpectsTip reports whether a tip line is customary.
func (t ReceiptType) ExpectsTip() bool { return t.profile().expectsTip }

// ExpectsServiceCharge reports whether service charges are customary.
func (t ReceiptType) ExpectsServiceCharge() bool { return t.profile().expectsServiceCharge }

// ParseReceiptType converts a string into a ReceiptType, defaulting to unknown.
func ParseReceiptType(s string) ReceiptType {
	rt := ReceiptType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := receiptTypeProfiles[rt]; ok {
		return rt
	}
	return ReceiptTypeUnknown
}

var merchantTypeHints = []struct {
	receiptType ReceiptType
	keywords    []string
}{
	{ReceiptTypeDelivery, []string{"doordash", "uber eats", "ubereats", "grubhub", "deliveroo", "postmates", "just eat", "rappi"}},
	{ReceiptTypeGrocery, []string{"grocery", "market", "supermarket", "foods", "whole foods", "trader joe", "safeway", "kroger", "aldi", "lidl"}},
	{ReceiptTypeRestaurant, []string{"restaurant", "grill", "cafe", "café", "bistro", "kitchen", "diner", "bar", "pizzeria", "taqueria", "trattoria", "brasserie", "steakhouse", "sushi"}},
	{ReceiptTypeRetail, []string{"store", "shop", "outlet", "target", "walmart", "best buy", "pharmacy"}},
}

// DetectReceiptType guesses a receipt type from the merchant name.
func DetectReceiptType(merchant string) ReceiptType {
	name := strings.ToLower(merchant)
	if name == "" {
		return ReceiptTypeUnknown
	}
	for _, hint := range merchantTypeHints {
		for _, kw := range hint.keywords {
			if strings.Contains(name, kw) {
				return hint.receiptType
			}
		}
	}
	return ReceiptTypeUnknown
}

// ReceiptContext is a read-only snapshot describing a receipt as a whole.
// It is built once before classification and never mutated while classifying.
type ReceiptContext struct {
	TotalAmount      *decimal.Decimal
	SubtotalAmount   *decimal.Decimal
	Date             *time.Time
	ReceiptType      ReceiptType
	DetectedLanguage string
	MerchantName     string
	ItemCount        int
}

// ContextOptions carries user-confirmed and OCR-derived facts about a receipt.
type ContextOptions struct {
	Total       *decimal.Decimal
	Subtotal    *decimal.Decimal
	Date        *time.Time
	ReceiptType ReceiptType
	Language    string
	Merchant    string
	ItemCount   int
}

// NewReceiptContext builds the context for a list of items.
func NewReceiptContext(items []ReceiptItem, opts ContextOptions) ReceiptContext {
	receiptType := opts.ReceiptType
	if receiptType == "" || receiptType == ReceiptTypeUnknown {
		receiptType = DetectReceiptType(opts.Merchant)
	}

	itemCount := opts.ItemCount
	if itemCount <= 0 {
		itemCount = len(items)
	}

	return ReceiptContext{
		TotalAmount:      copyDecimal(opts.Total),
		SubtotalAmount:   copyDecimal(opts.Subtotal),
		Date:             opts.Date,
		ReceiptType:      receiptType,
		DetectedLanguage: opts.Language,
		MerchantName:     strings.TrimSpace(opts.Merchant),
		ItemCount:        itemCount,
	}
}

// HasTotals reports whether a subtotal or a total is known.
func (c ReceiptContext) HasTotals() bool {
	return c.TotalAmount != nil || c.SubtotalAmount != nil
}

// RatioBase returns the amount that price ratios are computed against:
// the subtotal when known, otherwise the total.
func (c ReceiptContext) RatioBase() (decimal.Decimal, bool) {
	if c.SubtotalAmount != nil && c.SubtotalAmount.IsPositive() {
		return *c.SubtotalAmount, true
	}
	if c.TotalAmount != nil && c.TotalAmount.IsPositive() {
		return *c.TotalAmount, true
	}
	return decimal.Zero, false
}

// ExpectedTotal returns the total when known, otherwise the subtotal.
func (c ReceiptContext) ExpectedTotal() (decimal.Decimal, bool) {
	if c.TotalAmount != nil && c.TotalAmount.IsPositive() {
		return *c.TotalAmount, true
	}
	if c.SubtotalAmount != nil && c.SubtotalAmount.IsPositive() {
		return *c.SubtotalAmount, true
	}
	return decimal.Zero, false
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
