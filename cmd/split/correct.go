package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/the-bill-must-split/internal/cli"
	"github.com/Veraticus/the-bill-must-split/internal/common"
	"github.com/Veraticus/the-bill-must-split/internal/model"
	"github.com/Veraticus/the-bill-must-split/internal/storage"
	"github.com/Veraticus/the-bill-must-split/internal/validation"
)

func correctCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct <receipt-id> <line> <category>",
		Short: "Manually recategorize one line of a stored receipt",
		Long: `Manually recategorize one line of a stored receipt.

The line is either its number as shown by 'split receipts show' or its id.
The receipt is validated again and the correction is kept in its history.

Examples:
  split correct 3f2a9c1e 4 service_charge
  split correct 3f2a9c1e 7 "delivery fee"`,
		Args: cobra.ExactArgs(3),
		RunE: runCorrect,
	}

	cmd.Flags().String("by", defaultReviewer(), "name recorded with the correction")

	return cmd
}

func defaultReviewer() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "cli"
}

func runCorrect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	category, err := model.ParseItemCategory(args[2])
	if err != nil {
		return err
	}
	by, _ := cmd.Flags().GetString("by")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeStorage(store)

	record, err := store.GetReceipt(ctx, args[0])
	if err != nil {
		return err
	}

	item, err := findLine(record.Receipt, args[1])
	if err != nil {
		return err
	}

	corrected, err := applyCorrection(ctx, store, record, item.ID, category, by, newValidator())
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s: %s → %s", item.Name, item.Category.Label(), category.Label()))) //nolint:forbidigo // User-facing output
	fmt.Println(cli.RenderReceipt(corrected, record.Merchant))                                                     //nolint:forbidigo // User-facing output
	return nil
}

func newValidator() *validation.Validator {
	return validation.New(viper.GetFloat64("validation.tolerance"))
}

// findLine resolves a line by its 1-based number or its id.
func findLine(r *model.ClassifiedReceipt, ref string) (model.ClassifiedReceiptItem, error) {
	if item, ok := r.Item(ref); ok {
		return item, nil
	}

	n, err := strconv.Atoi(ref)
	items := r.AllItems()
	if err != nil || n < 1 || n > len(items) {
		return model.ClassifiedReceiptItem{}, fmt.Errorf("line %s: %w", ref, common.ErrNotFound)
	}
	return items[n-1], nil
}

type correctionStore interface {
	ApplyCorrection(ctx context.Context, r *model.ClassifiedReceipt, rctx model.ReceiptContext, c storage.Correction) error
}

// applyCorrection recategorizes one item, validates the receipt again and
// stores both the receipt and the correction. record is updated in place.
func applyCorrection(ctx context.Context, store correctionStore, record *storage.ReceiptRecord, itemID string, to model.ItemCategory, by string, validator *validation.Validator) (*model.ClassifiedReceipt, error) {
	item, ok := record.Receipt.Item(itemID)
	if !ok {
		return nil, fmt.Errorf("item %s: %w", itemID, common.ErrNotFound)
	}

	at := time.Now()
	corrected, err := record.Receipt.Correct(itemID, to, by, at)
	if err != nil {
		return nil, err
	}

	rctx := record.Context()
	corrected = validator.Validate(corrected, rctx)

	if err := store.ApplyCorrection(ctx, corrected, rctx, storage.Correction{
		CorrectedAt: at,
		ReceiptID:   corrected.ID,
		ItemID:      itemID,
		From:        item.Category,
		To:          to,
		CorrectedBy: by,
	}); err != nil {
		return nil, fmt.Errorf("failed to save correction: %w", err)
	}

	record.Receipt = corrected
	return corrected, nil
}
