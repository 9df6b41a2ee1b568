package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-bill-must-split/internal/cli"
	"github.com/Veraticus/the-bill-must-split/internal/tui"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review <receipt-id>",
		Short: "Interactively review lines that need attention",
		Long: `Walk through every low confidence or unknown line of a stored receipt
and confirm or change its category. Confirmed lines are saved as manual
corrections and the receipt is validated again.`,
		Args: cobra.ExactArgs(1),
		RunE: runReview,
	}

	cmd.Flags().String("by", defaultReviewer(), "name recorded with the corrections")

	return cmd
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
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

	decisions, err := tui.RunReview(ctx, record.Receipt, tui.ReviewConfig{
		Merchant:  record.Merchant,
		AltScreen: true,
	})
	if err != nil {
		if errors.Is(err, tui.ErrReviewAborted) {
			fmt.Println(cli.FormatWarning("Review aborted, nothing saved")) //nolint:forbidigo // User-facing output
			return nil
		}
		return err
	}
	if len(decisions) == 0 {
		fmt.Println(cli.FormatInfo("Nothing changed")) //nolint:forbidigo // User-facing output
		return nil
	}

	validator := newValidator()
	changed := 0
	for _, d := range decisions {
		if _, err := applyCorrection(ctx, store, record, d.ItemID, d.To, by, validator); err != nil {
			return err
		}
		if d.Changed() {
			changed++
		}
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Saved %d lines, %d recategorized", len(decisions), changed))) //nolint:forbidigo // User-facing output
	fmt.Println(cli.RenderReceipt(record.Receipt, record.Merchant))                                          //nolint:forbidigo // User-facing output
	return nil
}
