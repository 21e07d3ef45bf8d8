package database

import (
	"errors"

	"github.com/ardanlabs/ubilog/foundation/blockchain/codec"
	"github.com/holiman/uint256"
)

// BodySize is the fixed number of bytes in every block body.
const BodySize = 1280

// ErrBodySize is returned when data can't fit into a block body.
var ErrBodySize = errors.New("body exceeds block size")

// Body is the opaque payload carried by a block.
type Body [BodySize]byte

// NewBody copies the data into a body, zero padding the remainder.
func NewBody(data []byte) (Body, error) {
	var body Body
	if len(data) > BodySize {
		return body, ErrBodySize
	}

	copy(body[:], data)
	return body, nil
}

// =============================================================================

// Block represents a single block. The top 64 bits of Time hold the claimed
// time in milliseconds and the low 192 bits hold the mining entropy.
type Block struct {
	Prev Hash
	Time uint256.Int
	Body Body
}

// BlockZero is the genesis block.
var BlockZero Block

// ClaimedTime returns the time the block claims to have been mined at.
func (b Block) ClaimedTime() uint64 {
	return new(uint256.Int).Rsh(&b.Time, 192).Uint64()
}

// Hash returns the unique hash for the block. The genesis block is special
// cased to the zero hash, every other block is the keccak of its packed bits.
func (b Block) Hash() Hash {
	if b == BlockZero {
		return ZeroHash
	}

	return Keccak(b.Bits().Bytes())
}

// Encode writes the block: the previous hash, the 256 bit time and the body
// as 8 bit integers.
func (b Block) Encode(w *codec.Writer) {
	b.Prev.Encode(w)
	w.Uint256(256, &b.Time)
	w.Bytes(b.Body[:])
}

// Bits returns the encoded form of the block.
func (b Block) Bits() codec.Bits {
	w := codec.NewWriter()
	b.Encode(w)
	return w.Result()
}

// MarshalBinary implements the encoding.BinaryMarshaler interface. The
// bytes are the same ones hashed for the block identity.
func (b Block) MarshalBinary() ([]byte, error) {
	return b.Bits().Bytes(), nil
}

// UnmarshalBinary implements the encoding.BinaryUnmarshaler interface.
func (b *Block) UnmarshalBinary(data []byte) error {
	blk, err := DecodeBlock(codec.NewReader(codec.FromBytes(data)))
	if err != nil {
		return err
	}

	*b = blk
	return nil
}

// DecodeBlock reads a block written by Encode.
func DecodeBlock(r *codec.Reader) (Block, error) {
	prev, err := DecodeHash(r)
	if err != nil {
		return Block{}, err
	}

	tm, err := r.Uint256(256)
	if err != nil {
		return Block{}, err
	}

	data, err := r.Bytes(BodySize)
	if err != nil {
		return Block{}, err
	}

	b := Block{
		Prev: prev,
		Time: *tm,
	}
	copy(b.Body[:], data)

	return b, nil
}
