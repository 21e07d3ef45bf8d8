package codec

import (
	"net/netip"

	"github.com/holiman/uint256"
)

// Writer accumulates an encoded bit string.
type Writer struct {
	bits Bits
}

// NewWriter constructs an empty writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Result returns a copy of the bits written so far.
func (w *Writer) Result() Bits {
	return Bits{buf: w.bits.Bytes(), n: w.bits.n}
}

// Bit writes a single bit.
func (w *Writer) Bit(v uint) {
	w.bits.push(v)
}

// Uint writes the low size bits of v, least significant first. Bits of v
// above size are dropped, this is masking and not an error.
func (w *Writer) Uint(size int, v uint64) {
	for i := 0; i < size; i++ {
		if i >= 64 {
			w.bits.push(0)
			continue
		}
		w.bits.push(uint(v >> i))
	}
}

// Uint256 writes the low size bits of v, least significant first.
func (w *Writer) Uint256(size int, v *uint256.Int) {
	for i := 0; i < size; i++ {
		if i >= 256 {
			w.bits.push(0)
			continue
		}
		w.bits.push(uint(v[i/64] >> (i % 64)))
	}
}

// Bytes writes each byte as an 8 bit integer.
func (w *Writer) Bytes(data []byte) {
	for _, b := range data {
		w.Uint(8, uint64(b))
	}
}

// Raw appends the bits without any framing.
func (w *Writer) Raw(b Bits) {
	for i := 0; i < b.n; i++ {
		w.bits.push(b.At(i))
	}
}

// Blob writes a 16 bit length followed by the bits. Empty blobs and blobs
// longer than MaxBlobBits are rejected before anything is written.
func (w *Writer) Blob(b Bits) error {
	if b.n == 0 || b.n > MaxBlobBits {
		return ErrBlobSize
	}

	w.Uint(16, uint64(b.n))
	w.Raw(b)

	return nil
}

// Item marks the start of another list element.
func (w *Writer) Item() {
	w.bits.push(1)
}

// End terminates a list.
func (w *Writer) End() {
	w.bits.push(0)
}

// AddrPort writes an address. IPv4 is a 0 bit, four octets and the port.
// IPv6 is a 1 bit, eight 16 bit segments and the port.
func (w *Writer) AddrPort(ap netip.AddrPort) error {
	if !ap.IsValid() {
		return ErrInvalidAddress
	}

	addr := ap.Addr().Unmap()

	switch {
	case addr.Is4():
		w.Bit(0)
		for _, octet := range addr.As4() {
			w.Uint(8, uint64(octet))
		}

	default:
		w.Bit(1)
		raw := addr.As16()
		for i := 0; i < 16; i += 2 {
			w.Uint(16, uint64(raw[i])<<8|uint64(raw[i+1]))
		}
	}

	w.Uint(16, uint64(ap.Port()))

	return nil
}
