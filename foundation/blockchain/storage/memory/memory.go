// Package memory implements the ability to read and write blocks to memory
// using a slice.
package memory

import (
	"errors"
	"sync"

	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
)

// Set of error variables for the memory storage.
var (
	ErrOutOfOrder = errors.New("block is out of order")
	ErrNotFound   = errors.New("not found")
)

// Memory represents the serialization implementation for reading and storing
// blocks in memory using a slice. This implements the database.Storage
// interface.
type Memory struct {
	mu       sync.RWMutex
	blocks   []database.Block
	receipts map[database.Hash]uint64
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{
		receipts: make(map[database.Hash]uint64),
	}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Write stores the block at the specified index. An index can be replaced
// or the next one appended, anything past that is out of order.
func (m *Memory) Write(index uint64, block database.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := uint64(len(m.blocks))
	switch {
	case index < l:
		m.blocks[index] = block
	case index == l:
		m.blocks = append(m.blocks, block)
	default:
		return ErrOutOfOrder
	}

	return nil
}

// GetBlock returns the block stored at the specified index.
func (m *Memory) GetBlock(index uint64) (database.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if index >= uint64(len(m.blocks)) {
		return database.Block{}, ErrNotFound
	}

	return m.blocks[index], nil
}

// WriteReceipt records the random half of the nonce used to mine a block.
func (m *Memory) WriteReceipt(hash database.Hash, rand uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.receipts[hash] = rand
	return nil
}

// GetReceipt returns the random half of the nonce used to mine a block.
func (m *Memory) GetReceipt(hash database.Hash) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rand, exists := m.receipts[hash]
	if !exists {
		return 0, ErrNotFound
	}

	return rand, nil
}

// ForEach returns an iterator to walk through all the blocks starting
// with index 0.
func (m *Memory) ForEach() database.Iterator {
	return &memoryIterator{storage: m}
}

// Reset will clear out the blocks held in memory.
func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = nil
	return nil
}

// =============================================================================

// memoryIterator represents the iteration implementation for walking
// through the blocks in memory. This implements the database.Iterator
// interface.
type memoryIterator struct {
	storage *Memory // Access to the storage API.
	current uint64  // Current block index being iterated over.
	eoc     bool    // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from memory.
func (mi *memoryIterator) Next() (database.Block, error) {
	if mi.eoc {
		return database.Block{}, errors.New("end of chain")
	}

	block, err := mi.storage.GetBlock(mi.current)
	if err != nil {
		mi.eoc = true
	}

	mi.current++

	return block, err
}

// Done returns the end of chain value.
func (mi *memoryIterator) Done() bool {
	return mi.eoc
}

// Release has nothing to free for blocks held in memory.
func (mi *memoryIterator) Release() {}
