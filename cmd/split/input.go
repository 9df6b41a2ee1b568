package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-bill-must-split/internal/model"
)

// receiptFile is the JSON document accepted by classify. Prices may be
// numbers or strings.
type receiptFile struct {
	Subtotal *decimal.Decimal `json:"subtotal"`
	Total    *decimal.Decimal `json:"total"`
	Merchant string           `json:"merchant"`
	Type     string           `json:"type"`
	Language string           `json:"language"`
	Date     string           `json:"date"`
	Items    []struct {
		Price *decimal.Decimal `json:"price"`
		Name  string           `json:"name"`
	} `json:"items"`
}

var errNoItems = errors.New("receipt has no items")

// loadReceiptFile reads a receipt document and builds its items and context.
func loadReceiptFile(path string) ([]model.ReceiptItem, model.ReceiptContext, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, model.ReceiptContext{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return parseReceipt(data)
}

func parseReceipt(data []byte) ([]model.ReceiptItem, model.ReceiptContext, error) {
	var doc receiptFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, model.ReceiptContext{}, fmt.Errorf("invalid receipt JSON: %w", err)
	}
	if len(doc.Items) == 0 {
		return nil, model.ReceiptContext{}, errNoItems
	}

	items := make([]model.ReceiptItem, 0, len(doc.Items))
	for i, raw := range doc.Items {
		name := strings.TrimSpace(raw.Name)
		if name == "" {
			return nil, model.ReceiptContext{}, fmt.Errorf("item %d has no name", i+1)
		}
		if raw.Price == nil {
			return nil, model.ReceiptContext{}, fmt.Errorf("item %d (%s) has no price", i+1, name)
		}
		items = append(items, model.NewReceiptItem(name, *raw.Price))
	}

	opts := model.ContextOptions{
		Total:    doc.Total,
		Subtotal: doc.Subtotal,
		Language: doc.Language,
		Merchant: doc.Merchant,
		// unknown falls back to detection from the merchant name
		ReceiptType: model.ParseReceiptType(doc.Type),
	}
	if doc.Date != "" {
		date, err := time.Parse("2006-01-02", doc.Date)
		if err != nil {
			return nil, model.ReceiptContext{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", doc.Date, err)
		}
		opts.Date = &date
	}

	return items, model.NewReceiptContext(items, opts), nil
}
