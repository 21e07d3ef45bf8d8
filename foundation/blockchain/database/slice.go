package database

import (
	"math/big"

	"github.com/ardanlabs/ubilog/foundation/blockchain/codec"
)

// Slice is a fragment of data competing for space in a block body.
type Slice struct {
	Work uint64
	Data codec.Bits
}

// Encode writes the slice as a 64 bit work value and a data blob.
func (s Slice) Encode(w *codec.Writer) error {
	w.Uint(64, s.Work)
	return w.Blob(s.Data)
}

// DecodeSlice reads a slice written by Encode.
func DecodeSlice(r *codec.Reader) (Slice, error) {
	work, err := r.Uint(64)
	if err != nil {
		return Slice{}, err
	}

	data, err := r.Blob()
	if err != nil {
		return Slice{}, err
	}

	return Slice{Work: work, Data: data}, nil
}

// Hash returns the keccak hash of the slice in its packed form.
func (s Slice) Hash() (Hash, error) {
	w := codec.NewWriter()
	if err := s.Encode(w); err != nil {
		return Hash{}, err
	}

	data, err := codec.Pack(w.Result())
	if err != nil {
		return Hash{}, err
	}

	return Keccak(data), nil
}

// Score returns the work of the slice hash, used to rank slices.
func (s Slice) Score() (*big.Int, error) {
	h, err := s.Hash()
	if err != nil {
		return nil, err
	}

	return HashWork(h), nil
}
