package llm

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-bill-must-split/internal/model"
)

var categoryDescriptions = map[model.ItemCategory]string{
	model.CategoryFood:          "a purchased item, dish or drink, to be split between people",
	model.CategoryTax:           "sales tax, VAT, GST or IVA",
	model.CategoryTip:           "an optional tip added by the customer",
	model.CategoryGratuity:      "a mandatory gratuity or service percentage added by the merchant",
	model.CategorySubtotal:      "the sum of items before tax and tip",
	model.CategoryTotal:         "the final amount due",
	model.CategoryDiscount:      "a coupon, promotion or other reduction, usually negative",
	model.CategoryServiceCharge: "a flat service, booking or table charge",
	model.CategoryDeliveryFee:   "delivery, shipping or courier fee",
	model.CategoryUnknown:       "anything that cannot be determined",
}

func writeCategoryList(b *strings.Builder) {
	for _, c := range model.AllCategories() {
		fmt.Fprintf(b, "- %s: %s\n", c, categoryDescriptions[c])
	}
}

func writeContext(b *strings.Builder, rctx model.ReceiptContext) {
	fmt.Fprintf(b, "Receipt type: %s\n", rctx.ReceiptType)
	if rctx.MerchantName != "" {
		fmt.Fprintf(b, "Merchant: %s\n", rctx.MerchantName)
	}
	if rctx.DetectedLanguage != "" {
		fmt.Fprintf(b, "Language: %s\n", rctx.DetectedLanguage)
	}
	if rctx.SubtotalAmount != nil {
		fmt.Fprintf(b, "Subtotal: %s\n", rctx.SubtotalAmount.StringFixed(2))
	}
	if rctx.TotalAmount != nil {
		fmt.Fprintf(b, "Total: %s\n", rctx.TotalAmount.StringFixed(2))
	}
	fmt.Fprintf(b, "Number of lines: %d\n", rctx.ItemCount)
	tax := rctx.ReceiptType.TaxRateRange()
	fmt.Fprintf(b, "Typical tax rate: %.0f%%-%.0f%%\n", tax.Min*100, tax.Max*100)
	if rctx.ReceiptType.ExpectsTip() {
		tip := rctx.ReceiptType.TipRateRange()
		fmt.Fprintf(b, "Typical tip rate: %.0f%%-%.0f%%\n", tip.Min*100, tip.Max*100)
	}
}

const disambiguationRules = `Rules:
- A line with a percentage in its name (e.g. "Large Party 20%") is a gratuity or tax, not food.
- "Service", "Servicio" or "Coperto" charged automatically is gratuity when expressed as a percentage, service_charge otherwise.
- Negative amounts are discounts.
- Lines starting with a quantity ("2 Burgers", "3x Fries") are food.
- The last lines of a receipt are usually subtotal, tax, tip and total, in that order.
- A line whose price equals the sum of the items before it is subtotal or total, never food.
`

// ItemPrompt asks for the category of one line. position is 0-based.
func ItemPrompt(item model.ReceiptItem, position int, rctx model.ReceiptContext) string {
	var b strings.Builder

	b.WriteString("Classify this single line from a receipt.\n\n")
	b.WriteString("Categories:\n")
	writeCategoryList(&b)
	b.WriteString("\n")
	b.WriteString(disambiguationRules)
	b.WriteString("\nReceipt:\n")
	writeContext(&b, rctx)
	b.WriteString("\nLine:\n")
	fmt.Fprintf(&b, "Text: %q\n", item.Name)
	fmt.Fprintf(&b, "Price: %s\n", item.Price.StringFixed(2))
	fmt.Fprintf(&b, "Position: %d of %d\n", position+1, rctx.ItemCount)
	if base, ok := rctx.RatioBase(); ok {
		ratio := item.Price.Div(base).Mul(decimal.NewFromInt(100))
		fmt.Fprintf(&b, "Share of subtotal: %s%%\n", ratio.StringFixed(1))
	}

	b.WriteString(`
Respond with ONLY a JSON object, no markdown:
{"category": "<one of the categories>", "confidence": <0.0-1.0>, "reasoning": "<one short sentence>"}`)

	return b.String()
}

// BatchPrompt asks for the category of every line in one request. Item
// numbers are 1-based.
func BatchPrompt(items []model.ReceiptItem, rctx model.ReceiptContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Classify each of the %d lines of this receipt.\n\n", len(items))
	b.WriteString("Categories:\n")
	writeCategoryList(&b)
	b.WriteString("\n")
	b.WriteString(disambiguationRules)
	b.WriteString("\nReceipt:\n")
	writeContext(&b, rctx)
	b.WriteString("\nLines:\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %q %s\n", i+1, item.Name, item.Price.StringFixed(2))
	}

	fmt.Fprintf(&b, `
Return exactly %d classifications, one per line number.
Respond with ONLY a JSON object, no markdown:
{"classifications": [{"itemNumber": 1, "category": "<category>", "confidence": <0.0-1.0>, "reasoning": "<short>"}]}`, len(items))

	return b.String()
}
