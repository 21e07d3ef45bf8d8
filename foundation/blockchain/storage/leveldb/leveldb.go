// Package leveldb implements the ability to read and write blocks using
// an embedded goleveldb database.
package leveldb

import (
	"encoding/binary"

	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/cockroachdb/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key prefixes for the stored records.
var (
	blockPrefix   = []byte("b/")
	receiptPrefix = []byte("m/")
)

// LevelDB represents the serialization implementation for reading and
// storing blocks in a leveldb database. Blocks are keyed by their big
// endian index so iteration follows the canonical chain. This implements
// the database.Storage interface.
type LevelDB struct {
	db *leveldb.DB
}

// New opens or creates the database at the specified path.
func New(dbPath string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb %s", dbPath)
	}

	return &LevelDB{db: db}, nil
}

// Close releases the database.
func (l *LevelDB) Close() error {
	return errors.WithStack(l.db.Close())
}

// Write stores the block at the specified index.
func (l *LevelDB) Write(index uint64, block database.Block) error {
	data, err := block.MarshalBinary()
	if err != nil {
		return errors.WithStack(err)
	}

	if err := l.db.Put(blockKey(index), data, nil); err != nil {
		return errors.Wrapf(err, "writing block %d", index)
	}

	return nil
}

// GetBlock reads the block stored at the specified index.
func (l *LevelDB) GetBlock(index uint64) (database.Block, error) {
	data, err := l.db.Get(blockKey(index), nil)
	if err != nil {
		return database.Block{}, errors.Wrapf(err, "reading block %d", index)
	}

	var block database.Block
	if err := block.UnmarshalBinary(data); err != nil {
		return database.Block{}, errors.Wrapf(err, "decoding block %d", index)
	}

	return block, nil
}

// WriteReceipt records the random half of the nonce used to mine a block.
func (l *LevelDB) WriteReceipt(hash database.Hash, rand uint64) error {
	var value [8]byte
	binary.BigEndian.PutUint64(value[:], rand)

	if err := l.db.Put(receiptKey(hash), value[:], nil); err != nil {
		return errors.Wrapf(err, "writing receipt %s", hash)
	}

	return nil
}

// GetReceipt returns the random half of the nonce used to mine a block.
func (l *LevelDB) GetReceipt(hash database.Hash) (uint64, error) {
	value, err := l.db.Get(receiptKey(hash), nil)
	if err != nil {
		return 0, errors.Wrapf(err, "reading receipt %s", hash)
	}

	if len(value) != 8 {
		return 0, errors.Newf("receipt %s has %d bytes", hash, len(value))
	}

	return binary.BigEndian.Uint64(value), nil
}

// ForEach returns an iterator to walk through all the blocks in index
// order, stopping at the first gap.
func (l *LevelDB) ForEach() database.Iterator {
	return &Iterator{
		iter: l.db.NewIterator(util.BytesPrefix(blockPrefix), nil),
	}
}

// Reset deletes every stored block. Receipts are kept.
func (l *LevelDB) Reset() error {
	iter := l.db.NewIterator(util.BytesPrefix(blockPrefix), nil)
	defer iter.Release()

	var batch leveldb.Batch
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}

	if err := iter.Error(); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(l.db.Write(&batch, nil))
}

func blockKey(index uint64) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], index)
	return key
}

func receiptKey(hash database.Hash) []byte {
	key := make([]byte, 0, len(receiptPrefix)+len(hash))
	key = append(key, receiptPrefix...)
	return append(key, hash[:]...)
}

// =============================================================================

// Iterator walks the stored blocks. This implements the database.Iterator
// interface.
type Iterator struct {
	iter     iterator.Iterator
	current  uint64
	eoc      bool
	released bool
}

// Next retrieves the next block from the database.
func (it *Iterator) Next() (database.Block, error) {
	if it.eoc {
		return database.Block{}, errors.New("end of chain")
	}

	if !it.iter.Next() {
		it.eoc = true
		err := it.iter.Error()
		it.Release()
		if err != nil {
			return database.Block{}, errors.WithStack(err)
		}
		return database.Block{}, errors.New("end of chain")
	}

	index := binary.BigEndian.Uint64(it.iter.Key()[len(blockPrefix):])
	if index != it.current {
		it.eoc = true
		it.Release()
		return database.Block{}, errors.Newf("missing block %d", it.current)
	}
	it.current++

	var block database.Block
	if err := block.UnmarshalBinary(it.iter.Value()); err != nil {
		return database.Block{}, errors.Wrapf(err, "decoding block %d", index)
	}

	return block, nil
}

// Done returns the end of chain value.
func (it *Iterator) Done() bool {
	return it.eoc
}

// Release frees the snapshot held by the underlying leveldb iterator. It
// ends the iteration and is safe to call more than once.
func (it *Iterator) Release() {
	if it.released {
		return
	}

	it.eoc = true
	it.released = true
	it.iter.Release()
}
