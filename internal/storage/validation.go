package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-bill-must-split/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidReceipt = errors.New("invalid receipt")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateReceipt checks the fields the schema requires.
func validateReceipt(r *model.ClassifiedReceipt) error {
	if r == nil {
		return fmt.Errorf("%w: receipt", ErrNilParameter)
	}
	if r.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidReceipt)
	}
	if r.Engine == "" {
		return fmt.Errorf("%w: missing engine", ErrInvalidReceipt)
	}

	seen := make(map[string]bool, r.ItemCount())
	for _, item := range r.AllItems() {
		if item.ID == "" {
			return fmt.Errorf("%w: item at position %d has no ID", ErrInvalidReceipt, item.Position)
		}
		if seen[item.ID] {
			return fmt.Errorf("%w: duplicate item ID %s", ErrInvalidReceipt, item.ID)
		}
		seen[item.ID] = true
		if !item.Category.IsValid() {
			return fmt.Errorf("%w: item %s has category %q", ErrInvalidReceipt, item.ID, item.Category)
		}
	}
	return nil
}
