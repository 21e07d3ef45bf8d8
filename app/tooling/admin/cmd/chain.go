package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// chainCmd represents the chain command.
var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "List the canonical chain saved by a stopped node",
	RunE: func(cmd *cobra.Command, args []string) error {
		storage, err := openStorage()
		if err != nil {
			return err
		}
		defer storage.Close()

		out := cmd.OutOrStdout()

		var index int
		iter := storage.ForEach()
		defer iter.Release()

		for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
			if err != nil {
				return err
			}

			hash := block.Hash()
			claimed := time.UnixMilli(int64(block.ClaimedTime())).UTC().Format(time.RFC3339)

			line := fmt.Sprintf("%6d  %s  %s", index, hash, claimed)
			if rand, err := storage.GetReceipt(hash); err == nil {
				line += fmt.Sprintf("  mined:%016x", rand)
			}
			fmt.Fprintln(out, line)
			index++
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(chainCmd)
}
