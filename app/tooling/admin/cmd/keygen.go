package cmd

import (
	"fmt"

	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

// keygenCmd represents the keygen command.
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a miner secret key",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := database.NewSecretKey()
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), key.Hex())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
