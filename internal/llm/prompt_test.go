package llm

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/the-bill-must-split/internal/model"
)

func TestItemPrompt(t *testing.T) {
	subtotal := decimal.NewFromInt(20)
	items := []model.ReceiptItem{
		model.NewReceiptItem("2 Burgers", decimal.NewFromInt(20)),
		model.NewReceiptItem("Tax", decimal.RequireFromString("1.60")),
	}
	rctx := model.NewReceiptContext(items, model.ContextOptions{
		Subtotal:    &subtotal,
		ReceiptType: model.ReceiptTypeRestaurant,
		Merchant:    "Joe's",
	})

	prompt := ItemPrompt(items[1], 1, rctx)

	assert.Contains(t, prompt, `Text: "Tax"`)
	assert.Contains(t, prompt, "Price: 1.60")
	assert.Contains(t, prompt, "Position: 2 of 2")
	assert.Contains(t, prompt, "Merchant: Joe's")
	assert.Contains(t, prompt, "Share of subtotal: 8.0%")
	assert.Contains(t, prompt, "service_charge")
	assert.Contains(t, prompt, `"confidence"`)
}

func TestBatchPrompt(t *testing.T) {
	items := []model.ReceiptItem{
		model.NewReceiptItem("Fries", decimal.NewFromInt(4)),
		model.NewReceiptItem("Large Party 20%", decimal.RequireFromString("0.80")),
	}
	rctx := model.NewReceiptContext(items, model.ContextOptions{})

	prompt := BatchPrompt(items, rctx)

	assert.Contains(t, prompt, `1. "Fries" 4.00`)
	assert.Contains(t, prompt, `2. "Large Party 20%" 0.80`)
	assert.Contains(t, prompt, "Return exactly 2 classifications")
	assert.Contains(t, prompt, "classifications")
}
