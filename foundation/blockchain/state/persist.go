package state

import (
	"time"

	"github.com/ardanlabs/ubilog/foundation/blockchain/metrics"
)

// LoadChain replays the stored canonical chain, in index order, through the
// same path blocks from the network take. A record that cannot be read is
// skipped, and the blocks after it wait in the chain for their parent.
func (s *State) LoadChain() error {
	s.evHandler("state: LoadChain: started")

	var loaded int
	iter := s.storage.ForEach()
	defer iter.Release()

	for block, err := iter.Next(); !iter.Done(); block, err = iter.Next() {
		if err != nil {
			metrics.ObserveLoadError()
			s.evHandler("state: LoadChain: WARNING: %s", err)
			continue
		}

		if err := s.chain.HandleBlock(block, s.now()); err != nil {
			s.evHandler("state: LoadChain: block[%s]: WARNING: %s", block.Hash(), err)
			continue
		}
		loaded++
	}

	s.evHandler("state: LoadChain: completed: blocks[%d] tip[%s]", loaded, s.chain.Tip().Hash)

	return nil
}

// SaveChain writes the canonical chain to storage. Indexes already holding
// the same block are skipped.
func (s *State) SaveChain() (err error) {
	started := time.Now()
	defer func() {
		metrics.ObserveSave(err, started)
	}()

	blocks := s.chain.LongestChain()

	s.mu.Lock()
	defer s.mu.Unlock()

	var written int
	for i, block := range blocks {
		index := uint64(i)
		hash := block.Hash()

		if s.saved[index] == hash {
			continue
		}

		if err := s.storage.Write(index, block); err != nil {
			return err
		}
		s.saved[index] = hash
		written++
	}

	s.evHandler("state: SaveChain: blocks[%d] written[%d]", len(blocks), written)

	return nil
}
