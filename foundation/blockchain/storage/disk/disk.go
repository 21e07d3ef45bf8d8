// Package disk implements the ability to read and write blocks to disk
// with one file per block.
package disk

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
)

// Set of directories under the database path.
const (
	blocksDir = "blocks"
	minedDir  = "mined"
)

// Disk represents the serialization implementation for reading and storing
// blocks in their own separate files on disk. This implements the
// database.Storage interface.
type Disk struct {
	dbPath string
}

// New constructs a Disk value for use.
func New(dbPath string) (*Disk, error) {
	for _, dir := range []string{blocksDir, minedDir} {
		if err := os.MkdirAll(filepath.Join(dbPath, dir), 0755); err != nil {
			return nil, err
		}
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since a new file is
// written to disk for each block and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Write stores the block in a file named by its index on the canonical
// chain, replacing whatever was stored at that index before.
func (d *Disk) Write(index uint64, block database.Block) error {
	data, err := block.MarshalBinary()
	if err != nil {
		return err
	}

	return writeFile(d.blockPath(index), data)
}

// GetBlock reads the block stored at the specified index.
func (d *Disk) GetBlock(index uint64) (database.Block, error) {
	data, err := os.ReadFile(d.blockPath(index))
	if err != nil {
		return database.Block{}, err
	}

	var block database.Block
	if err := block.UnmarshalBinary(data); err != nil {
		return database.Block{}, fmt.Errorf("block %d: %w", index, err)
	}

	return block, nil
}

// WriteReceipt records the random half of the nonce used to mine a block.
func (d *Disk) WriteReceipt(hash database.Hash, rand uint64) error {
	return writeFile(d.receiptPath(hash), []byte(fmt.Sprintf("%016x", rand)))
}

// GetReceipt returns the random half of the nonce used to mine a block.
func (d *Disk) GetReceipt(hash database.Hash) (uint64, error) {
	data, err := os.ReadFile(d.receiptPath(hash))
	if err != nil {
		return 0, err
	}

	return strconv.ParseUint(strings.TrimSpace(string(data)), 16, 64)
}

// ForEach returns an iterator to walk through all the blocks starting
// with index 0.
func (d *Disk) ForEach() database.Iterator {
	return &Iterator{disk: d}
}

// Reset will clear out the blocks on disk. Receipts are kept.
func (d *Disk) Reset() error {
	dir := filepath.Join(d.dbPath, blocksDir)
	if err := os.RemoveAll(dir); err != nil {
		return err
	}

	return os.MkdirAll(dir, 0755)
}

// blockPath forms the path to the specified block.
func (d *Disk) blockPath(index uint64) string {
	return filepath.Join(d.dbPath, blocksDir, fmt.Sprintf("%016x", index))
}

// receiptPath forms the path to the receipt of the specified block.
func (d *Disk) receiptPath(hash database.Hash) string {
	return filepath.Join(d.dbPath, minedDir, hash.String())
}

// writeFile writes to a temporary file and renames it into place.
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

// =============================================================================

// Iterator represents the iteration implementation for walking through
// and reading blocks on disk. This implements the database.Iterator
// interface.
type Iterator struct {
	disk    *Disk  // Access to the disk storage API.
	current uint64 // Current block index being iterated over.
	eoc     bool   // Represents the iterator is at the end of the chain.
}

// Next retrieves the next block from disk.
func (it *Iterator) Next() (database.Block, error) {
	if it.eoc {
		return database.Block{}, errors.New("end of chain")
	}

	block, err := it.disk.GetBlock(it.current)
	if errors.Is(err, fs.ErrNotExist) {
		it.eoc = true
	}

	it.current++

	return block, err
}

// Done returns the end of chain value.
func (it *Iterator) Done() bool {
	return it.eoc
}

// Release in this implementation has nothing to do since each block file
// is closed as soon as it is read.
func (it *Iterator) Release() {}
