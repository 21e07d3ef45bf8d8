package database

import (
	"errors"
	"math/big"

	"github.com/ardanlabs/ubilog/foundation/blockchain/codec"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ErrInvalidHash is returned when text does not have the shape of a hash.
var ErrInvalidHash = errors.New("invalid hash")

// Hash represents a 256 bit keccak hash. Its numeric value is the bytes
// read big endian.
type Hash [32]byte

// ZeroHash is the hash of the genesis block and the predecessor of every
// chain.
var ZeroHash Hash

// Keccak computes the keccak256 hash of the data.
func Keccak(data ...[]byte) Hash {
	var h Hash
	copy(h[:], crypto.Keccak256(data...))
	return h
}

// ParseHash converts the canonical 0x prefixed hex form into a hash.
func ParseHash(s string) (Hash, error) {
	if len(s) != 66 || s[:2] != "0x" {
		return Hash{}, ErrInvalidHash
	}

	raw, err := hexutil.Decode(s)
	if err != nil {
		return Hash{}, ErrInvalidHash
	}

	var h Hash
	copy(h[:], raw)
	return h, nil
}

// String renders the hash in the canonical lowercase hex form.
func (h Hash) String() string {
	return hexutil.Encode(h[:])
}

// IsZero reports whether this is the zero hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// Uint256 returns the numeric value of the hash.
func (h Hash) Uint256() *uint256.Int {
	return new(uint256.Int).SetBytes32(h[:])
}

// Big returns the numeric value of the hash as a big integer.
func (h Hash) Big() *big.Int {
	return new(big.Int).SetBytes(h[:])
}

// MarshalText implements the encoding.TextMarshaler interface.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (h *Hash) UnmarshalText(data []byte) error {
	v, err := ParseHash(string(data))
	if err != nil {
		return err
	}

	*h = v
	return nil
}

// Encode writes the hash as a 256 bit integer.
func (h Hash) Encode(w *codec.Writer) {
	w.Uint256(256, h.Uint256())
}

// DecodeHash reads a hash written by Encode.
func DecodeHash(r *codec.Reader) (Hash, error) {
	v, err := r.Uint256(256)
	if err != nil {
		return Hash{}, err
	}

	return Hash(v.Bytes32()), nil
}
