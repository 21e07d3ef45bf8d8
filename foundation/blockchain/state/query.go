package state

import (
	"math/big"
	"net/netip"

	"github.com/ardanlabs/ubilog/foundation/blockchain/chain"
	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/ardanlabs/ubilog/foundation/blockchain/mempool"
	"github.com/ardanlabs/ubilog/foundation/blockchain/metrics"
	"github.com/ardanlabs/ubilog/foundation/blockchain/peer"
)

// Status is a point in time summary of the node.
type Status struct {
	Host       netip.AddrPort
	Peers      int
	TipHash    database.Hash
	TipHeight  uint64
	TipWork    *big.Int
	Difficulty *big.Int
	Blocks     int
	Pending    int
	Seen       int
	Pool       int
	Mined      uint64
}

// QueryStatus returns the current node summary.
func (s *State) QueryStatus() Status {
	tip := s.chain.Tip()
	stats := s.chain.Stats()

	height, _ := s.chain.Height(tip.Hash)

	difficulty := new(big.Int)
	if target, err := s.chain.Target(tip.Hash); err == nil {
		difficulty = database.Difficulty(target)
	}

	return Status{
		Host:       s.host,
		Peers:      s.knownPeers.Count(),
		TipHash:    tip.Hash,
		TipHeight:  height,
		TipWork:    tip.Work,
		Difficulty: difficulty,
		Blocks:     stats.Blocks,
		Pending:    stats.Pending,
		Seen:       stats.Seen,
		Pool:       s.mempool.Count(),
		Mined:      s.mined.Load(),
	}
}

// QueryLongestChain returns the canonical chain, oldest block first.
func (s *State) QueryLongestChain() []database.Block {
	return s.chain.LongestChain()
}

// QueryBlock returns the linked block for the hash.
func (s *State) QueryBlock(h database.Hash) (database.Block, error) {
	block, exists := s.chain.Block(h)
	if !exists {
		return database.Block{}, chain.ErrUnknownBlock
	}

	return block, nil
}

// QueryBlockHeight returns the height of the linked block.
func (s *State) QueryBlockHeight(h database.Hash) (uint64, error) {
	return s.chain.Height(h)
}

// QueryReceipt returns the random value a locally mined block was found with.
func (s *State) QueryReceipt(h database.Hash) (uint64, error) {
	return s.storage.GetReceipt(h)
}

// QueryMempool returns the pooled slices, best first.
func (s *State) QueryMempool() []mempool.Entry {
	return s.mempool.Copy()
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// TruncateMempool drops every pooled slice and returns how many were
// dropped.
func (s *State) TruncateMempool() int {
	n := s.mempool.Count()
	s.mempool.Truncate()

	s.evHandler("state: TruncateMempool: removed[%d]", n)

	return n
}

// RetrieveKnownPeers returns a copy of the known peers, leaving out this node.
func (s *State) RetrieveKnownPeers() []peer.Peer {
	return s.knownPeers.Copy(s.host)
}

// AddKnownPeer adds a peer to the table.
func (s *State) AddKnownPeer(p peer.Peer) bool {
	if p.Match(s.host) {
		return false
	}
	return s.knownPeers.Add(p)
}

// RetrieveHost returns the address this node is bound to.
func (s *State) RetrieveHost() netip.AddrPort {
	return s.host
}

// SubmitSlice pools a slice and shares it with the known peers.
func (s *State) SubmitSlice(slice database.Slice) (int, error) {
	n, err := s.mempool.Upsert(slice)
	if err != nil {
		return n, err
	}

	s.NetSendSliceToPeers(slice)

	return n, nil
}

// UpdateMetrics pushes the current sizes to the metrics collectors.
func (s *State) UpdateMetrics() {
	st := s.QueryStatus()

	metrics.ObserveChain(metrics.ChainStats{
		Blocks:  st.Blocks,
		Pending: st.Pending,
		Seen:    st.Seen,
		Height:  st.TipHeight,
	})
	metrics.ObservePool(st.Pool)
	metrics.ObservePeers(st.Peers)
}
