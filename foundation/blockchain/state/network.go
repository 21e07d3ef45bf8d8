package state

import (
	"fmt"
	"net/netip"

	"github.com/ardanlabs/ubilog/foundation/blockchain/chain"
	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/ardanlabs/ubilog/foundation/blockchain/metrics"
	"github.com/ardanlabs/ubilog/foundation/blockchain/network"
	"github.com/ardanlabs/ubilog/foundation/blockchain/peer"
)

// HandleDatagram decodes a datagram and processes the message it carries.
// Datagrams that fail to decode are dropped.
func (s *State) HandleDatagram(from netip.AddrPort, data []byte) {
	msg, err := network.Decode(data)
	if err != nil {
		metrics.ObserveDecodeError()
		s.evHandler("state: HandleDatagram: from[%s]: dropped: %s", from, err)
		return
	}

	metrics.ObserveReceived(network.Kind(msg))

	if err := s.HandleMessage(from, msg); err != nil {
		s.evHandler("state: HandleDatagram: from[%s]: %s: WARNING: %s", from, network.Kind(msg), err)
	}
}

// HandleMessage processes a message received from the specified node.
func (s *State) HandleMessage(from netip.AddrPort, msg network.Message) error {
	switch m := msg.(type) {
	case network.PutPeers:
		for _, addr := range m.Peers {
			if addr == s.host {
				continue
			}
			if s.knownPeers.Add(peer.New(addr)) {
				s.evHandler("state: HandleMessage: PutPeers: adding peer-node %s", addr)
			}
		}
		return nil

	case network.PutBlock:
		return s.chain.HandleBlock(m.Block, s.now())

	case network.AskBlock:
		block, exists := s.chain.Block(m.Hash)
		if !exists {
			return nil
		}
		return s.send(from, network.PutBlock{Block: block})

	case network.PutSlice:
		if _, err := s.mempool.Upsert(m.Slice); err != nil {
			return err
		}
		return nil
	}

	return fmt.Errorf("%w: %T", network.ErrUnknownTag, msg)
}

// =============================================================================

// NetSendTipToPeers sends the canonical tip block to every known peer.
func (s *State) NetSendTipToPeers() {
	tip := s.chain.Tip()
	if tip.Hash == database.ZeroHash {
		return
	}

	block, exists := s.chain.Block(tip.Hash)
	if !exists {
		s.evHandler("state: NetSendTipToPeers: ERROR: %s", chain.ErrUnknownBlock)
		return
	}

	s.NetSendBlockToPeers(block)
}

// NetSendBlockToPeers sends the block to every known peer.
func (s *State) NetSendBlockToPeers(block database.Block) {
	s.broadcast(network.PutBlock{Block: block})
}

// NetRequestMissingBlocks asks every known peer for the parents pending
// blocks are waiting on.
func (s *State) NetRequestMissingBlocks() {
	for _, h := range s.chain.MissingParents() {
		s.broadcast(network.AskBlock{Hash: h})
	}
}

// NetSendPeersToPeers shares the peer table with every known peer. The
// receiving peer is left out of the list it is sent.
func (s *State) NetSendPeersToPeers() {
	peers := s.knownPeers.Copy(s.host)

	for _, to := range peers {
		addrs := make([]netip.AddrPort, 0, len(peers))
		for _, p := range peers {
			if !p.Match(to.Addr) {
				addrs = append(addrs, p.Addr)
			}
		}

		if err := s.send(to.Addr, network.PutPeers{Peers: addrs}); err != nil {
			s.evHandler("state: NetSendPeersToPeers: %s: WARNING: %s", to, err)
		}
	}
}

// NetSendSliceToPeers shares a slice with every known peer.
func (s *State) NetSendSliceToPeers(slice database.Slice) {
	s.broadcast(network.PutSlice{Slice: slice})
}

// broadcast sends the message to every known peer. Send failures are
// logged and skipped.
func (s *State) broadcast(msg network.Message) {
	data, err := network.Encode(msg)
	if err != nil {
		s.evHandler("state: broadcast: %s: ERROR: %s", network.Kind(msg), err)
		return
	}

	for _, p := range s.knownPeers.Copy(s.host) {
		if err := s.transport.Send(p.Addr, data); err != nil {
			s.evHandler("state: broadcast: %s: %s: WARNING: %s", network.Kind(msg), p, err)
			continue
		}
		metrics.ObserveSent(network.Kind(msg))
	}
}

// send delivers a single message.
func (s *State) send(to netip.AddrPort, msg network.Message) error {
	data, err := network.Encode(msg)
	if err != nil {
		return err
	}

	if err := s.transport.Send(to, data); err != nil {
		return err
	}
	metrics.ObserveSent(network.Kind(msg))

	return nil
}
