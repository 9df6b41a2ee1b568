package model

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-bill-must-split/internal/common"
)

// ClassifiedReceipt partitions every classified item of a receipt by category.
// Each item appears in exactly one partition. Items whose singleton slot
// (tax, tip, gratuity, subtotal, total) is already taken land in Extras with
// their category intact.
type ClassifiedReceipt struct {
	CreatedAt        time.Time
	Tax              *ClassifiedReceiptItem
	Tip              *ClassifiedReceiptItem
	Gratuity         *ClassifiedReceiptItem
	Subtotal         *ClassifiedReceiptItem
	Total            *ClassifiedReceiptItem
	ID               string
	Engine           string
	ValidationStatus ValidationStatus
	FoodItems        []ClassifiedReceiptItem
	Discounts        []ClassifiedReceiptItem
	OtherCharges     []ClassifiedReceiptItem
	UnknownItems     []ClassifiedReceiptItem
	Extras           []ClassifiedReceiptItem
	Issues           []ValidationIssue
	TotalConfidence  float64
}

// NewClassifiedReceipt buckets items by category in position order and
// computes the mean confidence and the initial status.
func NewClassifiedReceipt(items []ClassifiedReceiptItem) *ClassifiedReceipt {
	r := &ClassifiedReceipt{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
	r.partition(items)
	r.ValidationStatus = InitialStatus(r)
	return r
}

func (r *ClassifiedReceipt) partition(items []ClassifiedReceiptItem) {
	sorted := make([]ClassifiedReceiptItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	r.Tax, r.Tip, r.Gratuity, r.Subtotal, r.Total = nil, nil, nil, nil, nil
	r.FoodItems, r.Discounts, r.OtherCharges, r.UnknownItems, r.Extras = nil, nil, nil, nil, nil

	var confidenceSum float64
	for _, item := range sorted {
		confidenceSum += item.ClassificationConfidence
		switch item.Category {
		case CategoryFood:
			r.FoodItems = append(r.FoodItems, item)
		case CategoryTax:
			r.fillSlot(&r.Tax, item)
		case CategoryTip:
			r.fillSlot(&r.Tip, item)
		case CategoryGratuity:
			r.fillSlot(&r.Gratuity, item)
		case CategorySubtotal:
			r.fillSlot(&r.Subtotal, item)
		case CategoryTotal:
			r.fillSlot(&r.Total, item)
		case CategoryDiscount:
			r.Discounts = append(r.Discounts, item)
		case CategoryServiceCharge, CategoryDeliveryFee:
			r.OtherCharges = append(r.OtherCharges, item)
		default:
			r.UnknownItems = append(r.UnknownItems, item)
		}
	}

	r.TotalConfidence = 0
	if len(sorted) > 0 {
		r.TotalConfidence = confidenceSum / float64(len(sorted))
	}
}

func (r *ClassifiedReceipt) fillSlot(slot **ClassifiedReceiptItem, item ClassifiedReceiptItem) {
	if *slot == nil {
		v := item
		*slot = &v
		return
	}
	r.Extras = append(r.Extras, item)
}

// InitialStatus derives the pre-validation status: valid when the mean
// confidence is at least 0.90 and both tax and total were found, warning
// when the mean is at least 0.70, otherwise needs review.
func InitialStatus(r *ClassifiedReceipt) ValidationStatus {
	switch {
	case r.TotalConfidence >= 0.90 && r.Tax != nil && r.Total != nil:
		return StatusValid
	case r.TotalConfidence >= 0.70:
		return StatusWarning
	default:
		return StatusNeedsReview
	}
}

// AllItems returns every item ordered by position.
func (r *ClassifiedReceipt) AllItems() []ClassifiedReceiptItem {
	items := make([]ClassifiedReceiptItem, 0, r.ItemCount())
	items = append(items, r.FoodItems...)
	for _, slot := range []*ClassifiedReceiptItem{r.Tax, r.Tip, r.Gratuity, r.Subtotal, r.Total} {
		if slot != nil {
			items = append(items, *slot)
		}
	}
	items = append(items, r.Discounts...)
	items = append(items, r.OtherCharges...)
	items = append(items, r.UnknownItems...)
	items = append(items, r.Extras...)

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Position < items[j].Position
	})
	return items
}

// ItemCount returns the number of items across all partitions.
func (r *ClassifiedReceipt) ItemCount() int {
	n := len(r.FoodItems) + len(r.Discounts) + len(r.OtherCharges) + len(r.UnknownItems) + len(r.Extras)
	for _, slot := range []*ClassifiedReceiptItem{r.Tax, r.Tip, r.Gratuity, r.Subtotal, r.Total} {
		if slot != nil {
			n++
		}
	}
	return n
}

// Item finds an item by id.
func (r *ClassifiedReceipt) Item(id string) (ClassifiedReceiptItem, bool) {
	for _, item := range r.AllItems() {
		if item.ID == id {
			return item, true
		}
	}
	return ClassifiedReceiptItem{}, false
}

// ItemsNeedingReview returns items below the review confidence line.
func (r *ClassifiedReceipt) ItemsNeedingReview() []ClassifiedReceiptItem {
	var out []ClassifiedReceiptItem
	for _, item := range r.AllItems() {
		if item.NeedsReview() || item.Category == CategoryUnknown {
			out = append(out, item)
		}
	}
	return out
}

// FoodItemsSum sums the prices of food items.
func (r *ClassifiedReceipt) FoodItemsSum() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range r.FoodItems {
		sum = sum.Add(item.Price)
	}
	return sum
}

// TotalCharges sums every additional charge, including duplicates held in Extras.
func (r *ClassifiedReceipt) TotalCharges() decimal.Decimal {
	sum := decimal.Zero
	for _, slot := range []*ClassifiedReceiptItem{r.Tax, r.Tip, r.Gratuity} {
		if slot != nil {
			sum = sum.Add(slot.Price)
		}
	}
	for _, item := range r.OtherCharges {
		sum = sum.Add(item.Price)
	}
	for _, item := range r.Extras {
		if item.Category.IsAdditionalCharge() {
			sum = sum.Add(item.Price)
		}
	}
	return sum
}

// TotalDiscounts sums discount magnitudes.
func (r *ClassifiedReceipt) TotalDiscounts() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range r.Discounts {
		sum = sum.Add(item.Price.Abs())
	}
	return sum
}

// ExpectedTotal is food + charges - discounts.
func (r *ClassifiedReceipt) ExpectedTotal() decimal.Decimal {
	return r.FoodItemsSum().Add(r.TotalCharges()).Sub(r.TotalDiscounts())
}

// TotalDifferenceRatio returns |total - expected| / total. ok is false when
// there is no usable total line.
func (r *ClassifiedReceipt) TotalDifferenceRatio() (ratio float64, ok bool) {
	if r.Total == nil || r.Total.Price.IsZero() {
		return 0, false
	}
	diff := r.Total.Price.Sub(r.ExpectedTotal()).Abs()
	return diff.Div(r.Total.Price.Abs()).InexactFloat64(), true
}

// SumMatchesTotal reports whether the expected total is within tolerance of
// the total line. It is false when no total was found.
func (r *ClassifiedReceipt) SumMatchesTotal(tolerance float64) bool {
	ratio, ok := r.TotalDifferenceRatio()
	if !ok {
		return false
	}
	return ratio <= tolerance
}

// WithIssues returns a copy carrying the additional issues, with the status
// raised according to their severities. The receipt itself is not modified.
func (r *ClassifiedReceipt) WithIssues(issues ...ValidationIssue) *ClassifiedReceipt {
	out := *r
	out.Issues = make([]ValidationIssue, 0, len(r.Issues)+len(issues))
	out.Issues = append(out.Issues, r.Issues...)
	out.Issues = append(out.Issues, issues...)
	for _, issue := range issues {
		out.ValidationStatus = out.ValidationStatus.Raise(issue.Severity.Status())
	}
	return &out
}

// WithStatus returns a copy with the given status.
func (r *ClassifiedReceipt) WithStatus(status ValidationStatus) *ClassifiedReceipt {
	out := *r
	out.ValidationStatus = status
	return &out
}

// Correct applies a manual correction to one item and returns a re-partitioned
// receipt with the same id. Previous issues are dropped; run validation again.
func (r *ClassifiedReceipt) Correct(itemID string, category ItemCategory, by string, at time.Time) (*ClassifiedReceipt, error) {
	if !category.IsValid() {
		return nil, fmt.Errorf("%w: %q", common.ErrInvalidCategory, category)
	}

	items := r.AllItems()
	found := false
	for i := range items {
		if items[i].ID == itemID {
			items[i] = items[i].Corrected(category, by, at)
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("item %s: %w", itemID, common.ErrNotFound)
	}

	return Rebuild(r.ID, r.Engine, r.CreatedAt, items, nil, ""), nil
}

// Rebuild reconstructs a receipt from stored parts. An empty status is
// replaced by the initial status.
func Rebuild(id, engine string, createdAt time.Time, items []ClassifiedReceiptItem, issues []ValidationIssue, status ValidationStatus) *ClassifiedReceipt {
	r := &ClassifiedReceipt{
		ID:        id,
		Engine:    engine,
		CreatedAt: createdAt,
		Issues:    issues,
	}
	r.partition(items)
	if status == "" {
		status = InitialStatus(r)
	}
	r.ValidationStatus = status
	return r
}
