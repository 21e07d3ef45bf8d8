package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// resetCmd represents the reset command.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the canonical chain saved by a stopped node",
	Long:  "Clear the canonical chain saved by a stopped node. Mining receipts are kept so earlier blocks can still be claimed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		storage, err := openStorage()
		if err != nil {
			return err
		}
		defer storage.Close()

		if err := storage.Reset(); err != nil {
			return fmt.Errorf("resetting %s storage: %w", engine, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "cleared %s storage at %s\n", engine, dbPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
