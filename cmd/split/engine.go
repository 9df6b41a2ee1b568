package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-bill-must-split/internal/cli"
	"github.com/Veraticus/the-bill-must-split/internal/engine"
)

func engineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Show or change the classification engine",
		Long: `Show or change the engine used by classify.

The selection is stored in the database and used until changed again.
The --engine flag of classify overrides it for a single run.`,
		RunE: runEngineShow,
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "set <kind>",
		Short:     "Select the engine used by classify",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(engine.KindChain), string(engine.KindBatch)},
		RunE:      runEngineSet,
	})

	return cmd
}

func runEngineShow(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeStorage(store)

	current, err := resolveEngineKind(ctx, store, "")
	if err != nil {
		return err
	}
	selected, err := parseEngineKind(current)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatTitle("Classification engines")) //nolint:forbidigo // User-facing output
	for _, kind := range engine.AllKinds() {
		marker := "  "
		name := string(kind)
		if kind == selected {
			marker = cli.SuccessStyle.Render(cli.SuccessIcon + " ")
			name = cli.BoldStyle.Render(name)
		}
		fmt.Printf("%s%-8s %s\n", marker, name, cli.SubtleStyle.Render(kind.Description())) //nolint:forbidigo // User-facing output
	}
	return nil
}

func runEngineSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	kind, err := parseEngineKind(args[0])
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeStorage(store)

	if err := store.SetEngineKind(ctx, string(kind)); err != nil {
		return fmt.Errorf("failed to save engine selection: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Engine set to %s", kind))) //nolint:forbidigo // User-facing output
	return nil
}
