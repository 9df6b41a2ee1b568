package model

import (
	"fmt"
	"strings"

	"github.com/Veraticus/the-bill-must-split/internal/common"
)

// ItemCategory is the semantic role of a receipt line.
type ItemCategory string

// Item category constants.
const (
	CategoryFood          ItemCategory = "food"
	CategoryTax           ItemCategory = "tax"
	CategoryTip           ItemCategory = "tip"
	CategoryGratuity      ItemCategory = "gratuity"
	CategorySubtotal      ItemCategory = "subtotal"
	CategoryTotal         ItemCategory = "total"
	CategoryDiscount      ItemCategory = "discount"
	CategoryServiceCharge ItemCategory = "service_charge"
	CategoryDeliveryFee   ItemCategory = "delivery_fee"
	CategoryUnknown       ItemCategory = "unknown"
)

// AllCategories returns every category in display order.
func AllCategories() []ItemCategory {
	return []ItemCategory{
		CategoryFood,
		CategoryTax,
		CategoryTip,
		CategoryGratuity,
		CategorySubtotal,
		CategoryTotal,
		CategoryDiscount,
		CategoryServiceCharge,
		CategoryDeliveryFee,
		CategoryUnknown,
	}
}

var categoryLabels = map[ItemCategory]string{
	CategoryFood:          "Food",
	CategoryTax:           "Tax",
	CategoryTip:           "Tip",
	CategoryGratuity:      "Gratuity",
	CategorySubtotal:      "Subtotal",
	CategoryTotal:         "Total",
	CategoryDiscount:      "Discount",
	CategoryServiceCharge: "Service Charge",
	CategoryDeliveryFee:   "Delivery Fee",
	CategoryUnknown:       "Unknown",
}

var categoryIcons = map[ItemCategory]string{
	CategoryFood:          "🍽",
	CategoryTax:           "🏛",
	CategoryTip:           "💵",
	CategoryGratuity:      "🤝",
	CategorySubtotal:      "∑",
	CategoryTotal:         "🧾",
	CategoryDiscount:      "🏷",
	CategoryServiceCharge: "🛎",
	CategoryDeliveryFee:   "🚚",
	CategoryUnknown:       "❓",
}

// Label returns a human readable name.
func (c ItemCategory) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Icon returns the display icon token.
func (c ItemCategory) Icon() string {
	if i, ok := categoryIcons[c]; ok {
		return i
	}
	return categoryIcons[CategoryUnknown]
}

// IsAdditionalCharge reports whether the category is distributed proportionally
// across diners rather than split as an item.
func (c ItemCategory) IsAdditionalCharge() bool {
	switch c {
	case CategoryTax, CategoryTip, CategoryGratuity, CategoryServiceCharge, CategoryDeliveryFee:
		return true
	default:
		return false
	}
}

// IsSummaryLine reports whether the category is a subtotal or total line.
func (c ItemCategory) IsSummaryLine() bool {
	return c == CategorySubtotal || c == CategoryTotal
}

// IsValid reports whether c is a member of the closed enumeration.
func (c ItemCategory) IsValid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// ParseItemCategory converts free-form text such as "serviceCharge",
// "Service Charge" or "delivery-fee" into an ItemCategory.
func ParseItemCategory(s string) (ItemCategory, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(normalized)

	switch normalized {
	case "food", "item":
		return CategoryFood, nil
	case "tax":
		return CategoryTax, nil
	case "tip":
		return CategoryTip, nil
	case "gratuity", "autogratuity":
		return CategoryGratuity, nil
	case "subtotal":
		return CategorySubtotal, nil
	case "total":
		return CategoryTotal, nil
	case "discount":
		return CategoryDiscount, nil
	case "servicecharge":
		return CategoryServiceCharge, nil
	case "deliveryfee":
		return CategoryDeliveryFee, nil
	case "unknown":
		return CategoryUnknown, nil
	}

	return CategoryUnknown, fmt.Errorf("%w: %q", common.ErrInvalidCategory, s)
}
