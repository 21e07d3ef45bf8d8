package state

import (
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"
)

// displayBlocks is the number of canonical blocks listed by RenderStatus.
const displayBlocks = 10

// RenderStatus writes a human readable summary of the node.
func (s *State) RenderStatus(w io.Writer) error {
	st := s.QueryStatus()

	// Hashes per second the network needs to keep the block time.
	rate := new(big.Int).Mul(st.Difficulty, big.NewInt(1000))
	rate.Quo(rate, new(big.Int).SetUint64(s.genesis.TimePerBlock))

	peers := s.RetrieveKnownPeers()
	addrs := make([]string, len(peers))
	for i, p := range peers {
		addrs[i] = p.String()
	}

	canonical := s.chain.LongestChain()

	var b strings.Builder
	b.WriteString("Ubilog\n")
	b.WriteString("======\n\n")
	fmt.Fprintf(&b, "- current_time  : %s\n", time.UnixMilli(int64(s.now())).UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- host          : %s\n", st.Host)
	fmt.Fprintf(&b, "- online_peers  : %d peers\n", st.Peers)
	fmt.Fprintf(&b, "- chain_height  : %d blocks\n", len(canonical))
	fmt.Fprintf(&b, "- database      : %d blocks\n", st.Blocks-1)
	fmt.Fprintf(&b, "- pending       : %d blocks (%d missing)\n", st.Pending, len(s.chain.MissingParents()))
	fmt.Fprintf(&b, "- slice_pool    : %d slices\n", st.Pool)
	fmt.Fprintf(&b, "- total_mined   : %d blocks\n", st.Mined)
	fmt.Fprintf(&b, "- net_hash_rate : %s hashes / second\n", rate)
	fmt.Fprintf(&b, "- difficulty    : %s hashes / block\n", st.Difficulty)
	fmt.Fprintf(&b, "- peers         : %s\n", strings.Join(addrs, ", "))
	b.WriteString("\nBlocks\n")
	b.WriteString("------\n\n")

	start := max(len(canonical)-displayBlocks, 0)
	for i := len(canonical) - 1; i >= start; i-- {
		block := canonical[i]
		fmt.Fprintf(&b, "%6d  %s  %d\n", i, block.Hash(), block.ClaimedTime())
	}

	_, err := io.WriteString(w, b.String())
	return err
}
