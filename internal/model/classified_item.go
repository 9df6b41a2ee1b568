package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClassifiedReceiptItem is a receipt item with its assigned category.
type ClassifiedReceiptItem struct {
	CreatedAt                time.Time
	UpdatedAt                time.Time
	CorrectedAt              *time.Time
	Price                    decimal.Decimal
	ID                       string
	Name                     string
	OriginalText             string
	Category                 ItemCategory
	ClassificationMethod     ClassificationMethod
	Reasoning                string
	CorrectedBy              string
	Position                 int
	ClassificationConfidence float64
}

// NewClassifiedReceiptItem combines an item, its position and a result.
func NewClassifiedReceiptItem(item ReceiptItem, position int, result ClassificationResult) ClassifiedReceiptItem {
	now := time.Now()
	return ClassifiedReceiptItem{
		ID:                       uuid.NewString(),
		Name:                     item.Name,
		Price:                    item.Price,
		OriginalText:             item.Name,
		Category:                 result.Category,
		ClassificationConfidence: ClampConfidence(result.Confidence),
		ClassificationMethod:     result.Method,
		Reasoning:                result.Reasoning,
		Position:                 position,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
}

// Item returns the underlying raw receipt item.
func (i ClassifiedReceiptItem) Item() ReceiptItem {
	return ReceiptItem{Name: i.Name, Price: i.Price}
}

// NeedsReview reports whether the classification is below the review line.
// Manual corrections always carry confidence 1.0 and never need review.
func (i ClassifiedReceiptItem) NeedsReview() bool {
	return i.ClassificationConfidence < ReviewConfidenceThreshold
}

// IsCorrected reports whether a human overrode the classification.
func (i ClassifiedReceiptItem) IsCorrected() bool {
	return i.CorrectedAt != nil
}

// Corrected returns a copy of the item manually assigned to category.
// The id is preserved.
func (i ClassifiedReceiptItem) Corrected(category ItemCategory, by string, at time.Time) ClassifiedReceiptItem {
	corrected := i
	corrected.Category = category
	corrected.ClassificationConfidence = 1.0
	corrected.ClassificationMethod = MethodManual
	corrected.Reasoning = "manually corrected"
	corrected.CorrectedBy = by
	corrected.CorrectedAt = &at
	corrected.UpdatedAt = at
	return corrected
}
