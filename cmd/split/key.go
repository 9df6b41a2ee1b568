package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-bill-must-split/internal/cli"
	"github.com/Veraticus/the-bill-must-split/internal/common"
	"github.com/Veraticus/the-bill-must-split/internal/secrets"
)

func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the Gemini API key",
		Long: `Manage the Gemini API key used for LLM classification.

The key is read from the key file first and then from the environment
variable named by secrets.env (GEMINI_API_KEY by default).`,
		RunE: runKeyStatus,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Store an API key in the key file",
		Args:  cobra.NoArgs,
		RunE:  runKeySet,
	})

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE:  runKeyDelete,
	}
	deleteCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	cmd.AddCommand(deleteCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show where the API key is read from",
		Args:  cobra.NoArgs,
		RunE:  runKeyStatus,
	})

	return cmd
}

func runKeyStatus(_ *cobra.Command, _ []string) error {
	_, keys := keyProvider()

	if !keys.HasKey() {
		fmt.Println(cli.FormatWarning("No API key configured; LLM classification is disabled")) //nolint:forbidigo // User-facing output
		fmt.Println(cli.FormatInfo("Run 'split key set' to store one"))                         //nolint:forbidigo // User-facing output
		return nil
	}

	fmt.Println(cli.FormatSuccess("API key found in " + secrets.Source(keys))) //nolint:forbidigo // User-facing output
	return nil
}

func runKeySet(cmd *cobra.Command, _ []string) error {
	file, _ := keyProvider()
	reader := cli.NewLineReader(os.Stdin, os.Stdout)

	key, err := reader.Prompt(cmd.Context(), "Gemini API key: ")
	if err != nil {
		if errors.Is(err, cli.ErrInputCancelled) {
			return nil
		}
		return err
	}
	if key == "" {
		return common.NewUserError("no key entered", common.ErrMissingKey)
	}

	if err := file.SetKey(key); err != nil {
		return fmt.Errorf("failed to store key: %w", err)
	}

	fmt.Println(cli.FormatSuccess("API key saved to " + file.Path())) //nolint:forbidigo // User-facing output
	return nil
}

func runKeyDelete(cmd *cobra.Command, _ []string) error {
	file, _ := keyProvider()

	if !file.HasKey() {
		fmt.Println(cli.FormatInfo("No stored API key")) //nolint:forbidigo // User-facing output
		return nil
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		reader := cli.NewLineReader(os.Stdin, os.Stdout)
		ok, err := reader.Confirm(cmd.Context(), "Delete the API key stored in "+file.Path()+"?")
		if err != nil || !ok {
			return err
		}
	}

	if err := file.DeleteKey(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	fmt.Println(cli.FormatSuccess("API key deleted")) //nolint:forbidigo // User-facing output
	return nil
}
