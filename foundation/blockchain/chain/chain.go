// Package chain implements the block tree, orphan buffering, cumulative work
// accounting and difficulty retargeting used to pick the canonical chain.
package chain

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/ardanlabs/ubilog/foundation/blockchain/genesis"
)

// Set of error variables for chain processing.
var (
	ErrUnknownBlock = errors.New("block is not linked into the chain")
	ErrFutureBlock  = errors.New("block claims a time too far in the future")
)

// Tip identifies the head of the canonical chain.
type Tip struct {
	Work *big.Int
	Hash database.Hash
}

// Chain maintains every block ever linked along with the per block
// accounting. All methods are safe for concurrent use.
type Chain struct {
	mu      sync.RWMutex
	genesis genesis.Genesis

	block    map[database.Hash]database.Block
	children map[database.Hash][]database.Hash
	pending  map[database.Hash][]database.Block
	seen     map[database.Hash]bool
	work     map[database.Hash]*big.Int
	height   map[database.Hash]uint64
	target   map[database.Hash]*big.Int
	tip      Tip
}

// New constructs a chain holding only the genesis block.
func New(gen genesis.Genesis) *Chain {
	c := Chain{
		genesis:  gen,
		block:    make(map[database.Hash]database.Block),
		children: make(map[database.Hash][]database.Hash),
		pending:  make(map[database.Hash][]database.Block),
		seen:     make(map[database.Hash]bool),
		work:     make(map[database.Hash]*big.Int),
		height:   make(map[database.Hash]uint64),
		target:   make(map[database.Hash]*big.Int),
	}

	zero := database.ZeroHash
	c.block[zero] = database.BlockZero
	c.work[zero] = new(big.Int)
	c.height[zero] = 0
	c.target[zero] = gen.InitialTarget()
	c.tip = Tip{Work: new(big.Int), Hash: zero}

	return &c
}

// =============================================================================

// HandleBlock processes a block along with every pending block it unlocks.
// Blocks claiming a time later than now plus the delay tolerance are dropped
// without being marked seen.
func (c *Chain) HandleBlock(block database.Block, now uint64) error {
	if block.ClaimedTime() > now+c.genesis.DelayTolerance {
		return ErrFutureBlock
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	work := []database.Block{block}
	for len(work) > 0 {
		next := work[len(work)-1]
		work = work[:len(work)-1]

		work = append(work, c.addBlock(next)...)
	}

	return nil
}

// AddBlock processes a single block and returns the pending blocks that
// were waiting on it. The caller is responsible for processing them.
func (c *Chain) AddBlock(block database.Block) []database.Block {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.addBlock(block)
}

// addBlock implements the state transition for one block. The caller must
// hold the write lock.
func (c *Chain) addBlock(block database.Block) []database.Block {
	h := block.Hash()

	if _, exists := c.block[h]; exists {
		return nil
	}

	p := block.Prev
	parent, exists := c.block[p]
	if !exists {
		if !c.seen[h] {
			c.pending[p] = append(c.pending[p], block)
		}
		c.seen[h] = true
		return nil
	}

	c.block[h] = block
	c.work[h] = new(big.Int)
	c.height[h] = 0
	c.target[h] = new(big.Int)

	hasWork := database.HasWork(h, c.target[p])
	advancesTime := block.ClaimedTime() > parent.ClaimedTime()

	// A block failing either check stays linked with zero work, height and
	// target. Its children are still evaluated, against that zero target.
	if hasWork && advancesTime {
		c.work[h] = new(big.Int).Add(c.work[p], database.HashWork(h))

		var height uint64
		if p != database.ZeroHash {
			height = c.height[p] + 1
		}
		c.height[h] = height

		c.target[h] = c.target[p]
		if height > 0 && height%c.genesis.BlocksPerPeriod == 0 {
			c.target[h] = c.retarget(block, p)
		}

		if c.work[h].Cmp(c.tip.Work) > 0 {
			c.tip = Tip{Work: c.work[h], Hash: h}
		}
	}

	c.children[p] = append(c.children[p], h)

	released := c.pending[h]
	delete(c.pending, h)
	c.seen[h] = true

	return released
}

// retarget computes the target for a block closing a difficulty period.
func (c *Chain) retarget(block database.Block, p database.Hash) *big.Int {
	checkpoint := p
	for i := uint64(0); i < c.genesis.BlocksPerPeriod-1; i++ {
		checkpoint = c.block[checkpoint].Prev
	}

	var elapsed uint64
	start := c.block[checkpoint].ClaimedTime()
	if end := block.ClaimedTime(); end > start {
		elapsed = end - start
	}

	scale := database.PeriodScale(c.genesis.TimePerPeriod(), elapsed)
	return database.NextTarget(c.target[p], scale)
}

// =============================================================================

// Tip returns the head of the canonical chain.
func (c *Chain) Tip() Tip {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Tip{Work: new(big.Int).Set(c.tip.Work), Hash: c.tip.Hash}
}

// LongestChain walks back from the tip and returns the canonical chain,
// oldest block first. The genesis block is not included.
func (c *Chain) LongestChain() []database.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var blocks []database.Block
	for h := c.tip.Hash; h != database.ZeroHash; {
		b := c.block[h]
		blocks = append(blocks, b)
		h = b.Prev
	}

	for i, j := 0, len(blocks)-1; i < j; i, j = i+1, j-1 {
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}

	return blocks
}

// Block returns the linked block for the hash.
func (c *Chain) Block(h database.Hash) (database.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	b, exists := c.block[h]
	return b, exists
}

// Work returns the cumulative work of the linked block.
func (c *Chain) Work(h database.Hash) (*big.Int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	w, exists := c.work[h]
	if !exists {
		return nil, ErrUnknownBlock
	}

	return new(big.Int).Set(w), nil
}

// Height returns the height of the linked block.
func (c *Chain) Height(h database.Hash) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	height, exists := c.height[h]
	if !exists {
		return 0, ErrUnknownBlock
	}

	return height, nil
}

// Target returns the target children of the linked block must exceed.
func (c *Chain) Target(h database.Hash) (*big.Int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, exists := c.target[h]
	if !exists {
		return nil, ErrUnknownBlock
	}

	return new(big.Int).Set(t), nil
}

// Children returns the hashes of the blocks linked under the hash.
func (c *Chain) Children(h database.Hash) []database.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]database.Hash(nil), c.children[h]...)
}

// Seen reports whether the hash has ever been processed.
func (c *Chain) Seen(h database.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.seen[h]
}

// MissingParents returns the parents pending blocks are waiting on that
// have never been processed themselves.
func (c *Chain) MissingParents() []database.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var missing []database.Hash
	for h := range c.pending {
		if !c.seen[h] {
			missing = append(missing, h)
		}
	}

	return missing
}

// Stats provides a point in time view of the chain size.
type Stats struct {
	Blocks  int
	Pending int
	Seen    int
}

// Stats returns the current sizes of the chain maps.
func (c *Chain) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var pending int
	for _, blocks := range c.pending {
		pending += len(blocks)
	}

	return Stats{
		Blocks:  len(c.block),
		Pending: pending,
		Seen:    len(c.seen),
	}
}
