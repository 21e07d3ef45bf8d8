package state

import (
	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
)

// MineNewBlock runs one bounded round of proof of work on top of the
// canonical tip. Not finding a block is the common outcome and is reported
// through the boolean, not an error. A mined block is linked into the chain
// and its receipt is written to storage.
func (s *State) MineNewBlock() (database.Block, bool, error) {
	tip := s.chain.Tip()

	target, err := s.chain.Target(tip.Hash)
	if err != nil {
		return database.Block{}, false, err
	}

	// The body is filled from the pool once and reused until a block
	// carrying it is mined.
	s.mu.Lock()
	if !s.bodyReady {
		s.body = s.mempool.FillBody()
		s.bodyReady = true
	}
	body := s.body
	s.mu.Unlock()

	block, rand, found := database.POW(database.POWArgs{
		Block:     database.Block{Prev: tip.Hash, Body: body},
		Target:    target,
		Attempts:  MineAttempts,
		NodeTime:  s.now(),
		SecretKey: s.secretKey,
	})
	if !found {
		return database.Block{}, false, nil
	}

	s.mu.Lock()
	s.bodyReady = false
	s.mu.Unlock()

	s.mined.Add(1)
	hash := block.Hash()
	s.evHandler("state: MineNewBlock: MINING: found block[%s] prev[%s]", hash, tip.Hash)

	if err := s.chain.HandleBlock(block, s.now()); err != nil {
		return block, true, err
	}

	if err := s.storage.WriteReceipt(hash, rand); err != nil {
		s.evHandler("state: MineNewBlock: receipt: ERROR: %s", err)
	}

	return block, true, nil
}
