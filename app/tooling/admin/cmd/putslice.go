package cmd

import (
	"fmt"
	"net/netip"

	"github.com/ardanlabs/ubilog/foundation/blockchain/codec"
	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/ardanlabs/ubilog/foundation/blockchain/network"
	"github.com/spf13/cobra"
)

var sliceWork uint64

// putSliceCmd represents the put-slice command.
var putSliceCmd = &cobra.Command{
	Use:   "put-slice <bits>",
	Short: "Send a slice of 0/1 bits to a node's pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := codec.ParseBits(args[0])
		if err != nil {
			return err
		}

		slice := database.Slice{Work: sliceWork, Data: data}
		hash, err := slice.Hash()
		if err != nil {
			return err
		}

		if err := send(network.PutSlice{Slice: slice}); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "sent slice %s to %s\n", hash, nodeAddr)
		return nil
	},
}

func init() {
	putSliceCmd.Flags().Uint64VarP(&sliceWork, "work", "w", 0, "Work value carried by the slice.")
	rootCmd.AddCommand(putSliceCmd)
}

// send delivers a single message to the node from an ephemeral port.
func send(msg network.Message) error {
	to, err := node()
	if err != nil {
		return err
	}

	data, err := network.Encode(msg)
	if err != nil {
		return err
	}

	udp, err := ephemeral(to)
	if err != nil {
		return err
	}
	defer udp.Close()

	return udp.Send(to, data)
}

// ephemeral binds a socket on a random port of the same family as the node.
func ephemeral(to netip.AddrPort) (*network.UDP, error) {
	local := netip.IPv4Unspecified()
	if !to.Addr().Is4() {
		local = netip.IPv6Unspecified()
	}

	return network.Listen(netip.AddrPortFrom(local, 0), 0)
}
