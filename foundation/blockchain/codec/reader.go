package codec

import (
	"net/netip"

	"github.com/holiman/uint256"
)

// Reader consumes a bit string from the front.
type Reader struct {
	bits Bits
	pos  int
}

// NewReader constructs a reader over the bits.
func NewReader(b Bits) *Reader {
	return &Reader{bits: b}
}

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int {
	return r.bits.n - r.pos
}

// Bit reads a single bit.
func (r *Reader) Bit() (uint, error) {
	if r.pos >= r.bits.n {
		return 0, ErrShortRead
	}

	v := r.bits.At(r.pos)
	r.pos++

	return v, nil
}

// Uint reads a size bit integer. Bits past the 64th are consumed and
// dropped.
func (r *Reader) Uint(size int) (uint64, error) {
	if r.Remaining() < size {
		return 0, ErrShortRead
	}

	var v uint64
	for i := 0; i < size; i++ {
		bit, _ := r.Bit()
		if i < 64 {
			v |= uint64(bit) << i
		}
	}

	return v, nil
}

// Uint256 reads a size bit integer into a 256 bit value.
func (r *Reader) Uint256(size int) (*uint256.Int, error) {
	if r.Remaining() < size {
		return nil, ErrShortRead
	}

	var v uint256.Int
	for i := 0; i < size; i++ {
		bit, _ := r.Bit()
		if i < 256 {
			v[i/64] |= uint64(bit) << (i % 64)
		}
	}

	return &v, nil
}

// Bytes reads n 8 bit integers.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if r.Remaining() < n*8 {
		return nil, ErrShortRead
	}

	out := make([]byte, n)
	for i := range out {
		v, _ := r.Uint(8)
		out[i] = byte(v)
	}

	return out, nil
}

// Blob reads a 16 bit length and then that many bits.
func (r *Reader) Blob() (Bits, error) {
	n, err := r.Uint(16)
	if err != nil {
		return Bits{}, err
	}

	if n == 0 {
		return Bits{}, ErrBlobSize
	}

	if r.Remaining() < int(n) {
		return Bits{}, ErrShortRead
	}

	var b Bits
	for i := 0; i < int(n); i++ {
		bit, _ := r.Bit()
		b.push(bit)
	}

	return b, nil
}

// Next reads a list presence flag. It returns false once the list
// terminator is reached.
func (r *Reader) Next() (bool, error) {
	bit, err := r.Bit()
	if err != nil {
		return false, err
	}

	return bit == 1, nil
}

// AddrPort reads an address written by Writer.AddrPort.
func (r *Reader) AddrPort() (netip.AddrPort, error) {
	v6, err := r.Bit()
	if err != nil {
		return netip.AddrPort{}, err
	}

	var addr netip.Addr
	switch v6 {
	case 0:
		var raw [4]byte
		for i := range raw {
			v, err := r.Uint(8)
			if err != nil {
				return netip.AddrPort{}, err
			}
			raw[i] = byte(v)
		}
		addr = netip.AddrFrom4(raw)

	default:
		var raw [16]byte
		for i := 0; i < 16; i += 2 {
			v, err := r.Uint(16)
			if err != nil {
				return netip.AddrPort{}, err
			}
			raw[i] = byte(v >> 8)
			raw[i+1] = byte(v)
		}
		addr = netip.AddrFrom16(raw)
	}

	port, err := r.Uint(16)
	if err != nil {
		return netip.AddrPort{}, err
	}

	return netip.AddrPortFrom(addr, uint16(port)), nil
}
