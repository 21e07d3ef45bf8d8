package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/ardanlabs/ubilog/foundation/blockchain/network"
	"github.com/spf13/cobra"
)

var askTimeout time.Duration

// askBlockCmd represents the ask-block command.
var askBlockCmd = &cobra.Command{
	Use:   "ask-block <hash>",
	Short: "Ask a node for a block and print its reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := database.ParseHash(args[0])
		if err != nil {
			return err
		}

		to, err := node()
		if err != nil {
			return err
		}

		data, err := network.Encode(network.AskBlock{Hash: hash})
		if err != nil {
			return err
		}

		udp, err := ephemeral(to)
		if err != nil {
			return err
		}
		defer udp.Close()

		replies := make(chan database.Block, 1)
		go udp.Serve(func(from netip.AddrPort, data []byte) {
			msg, err := network.Decode(data)
			if err != nil {
				return
			}

			pb, ok := msg.(network.PutBlock)
			if !ok || pb.Block.Hash() != hash {
				return
			}

			select {
			case replies <- pb.Block:
			default:
			}
		})

		if err := udp.Send(to, data); err != nil {
			return err
		}

		select {
		case block := <-replies:
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "hash : %s\n", block.Hash())
			fmt.Fprintf(out, "prev : %s\n", block.Prev)
			fmt.Fprintf(out, "time : %d\n", block.ClaimedTime())
			fmt.Fprintf(out, "nonce: %s\n", block.Time.Hex())
			fmt.Fprintf(out, "body : %s\n", hex.EncodeToString(block.Body[:]))
			return nil

		case <-time.After(askTimeout):
			return errors.New("node did not reply, it may not know the block")
		}
	},
}

func init() {
	askBlockCmd.Flags().DurationVarP(&askTimeout, "timeout", "t", 3*time.Second, "How long to wait for the reply.")
	rootCmd.AddCommand(askBlockCmd)
}
