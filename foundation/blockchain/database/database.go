// Package database provides the core blockchain types, the proof of work
// math and the contracts for storing the canonical chain.
package database

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Storage interface {
	Write(index uint64, block Block) error
	ForEach() Iterator
	WriteReceipt(hash Hash, rand uint64) error
	GetReceipt(hash Hash) (uint64, error)
	Close() error
	Reset() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks in index order.
// Release must be called once the caller is finished, even when the
// iteration stopped early.
type Iterator interface {
	Next() (Block, error)
	Done() bool
	Release()
}
