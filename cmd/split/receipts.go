package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-bill-must-split/internal/cli"
)

func receiptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "receipts",
		Aliases: []string{"receipt"},
		Short:   "List, show and delete stored receipts",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored receipts, newest first",
		Args:  cobra.NoArgs,
		RunE:  runReceiptsList,
	}
	listCmd.Flags().IntP("limit", "n", 20, "maximum receipts to list (0 for all)")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored receipt and its correction history",
		Args:  cobra.ExactArgs(1),
		RunE:  runReceiptsShow,
	})

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored receipt",
		Args:  cobra.ExactArgs(1),
		RunE:  runReceiptsDelete,
	}
	deleteCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	cmd.AddCommand(deleteCmd)

	return cmd
}

func runReceiptsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeStorage(store)

	summaries, err := store.ListReceipts(ctx, limit)
	if err != nil {
		return err
	}

	fmt.Println(cli.RenderReceiptList(summaries)) //nolint:forbidigo // User-facing output
	return nil
}

func runReceiptsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeStorage(store)

	record, err := store.GetReceipt(ctx, args[0])
	if err != nil {
		return err
	}
	corrections, err := store.ListCorrections(ctx, record.Receipt.ID)
	if err != nil {
		return err
	}

	fmt.Println(cli.RenderReceipt(record.Receipt, record.Merchant)) //nolint:forbidigo // User-facing output

	if len(corrections) > 0 {
		fmt.Println(cli.FormatTitle("Corrections")) //nolint:forbidigo // User-facing output
		for _, c := range corrections {
			name := c.ItemID
			if item, ok := record.Receipt.Item(c.ItemID); ok {
				name = item.Name
			}
			fmt.Printf("  %s  %s: %s → %s by %s\n", //nolint:forbidigo // User-facing output
				c.CorrectedAt.Local().Format("2006-01-02 15:04"), name, c.From.Label(), c.To.Label(), c.CorrectedBy)
		}
	}
	return nil
}

func runReceiptsDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeStorage(store)

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		reader := cli.NewLineReader(os.Stdin, os.Stdout)
		ok, err := reader.Confirm(ctx, fmt.Sprintf("Delete receipt %s?", args[0]))
		if err != nil || !ok {
			return err
		}
	}

	if err := store.DeleteReceipt(ctx, args[0]); err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess("Receipt deleted")) //nolint:forbidigo // User-facing output
	return nil
}
