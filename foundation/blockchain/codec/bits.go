// Package codec implements the bit level encoding used on the wire and as
// the preimage for block identity. Every fixed-length integer is written least
// significant bit first, and bit strings are packed into bytes the same way.
package codec

import (
	"errors"
	"strings"
)

// Set of error variables for decoding bit strings.
var (
	ErrMalformedBits  = errors.New("malformed bit string")
	ErrShortRead      = errors.New("not enough bits")
	ErrBlobSize       = errors.New("bit blob size out of range")
	ErrInvalidAddress = errors.New("invalid address")
)

// MaxBlobBits is the largest number of bits a length prefix can describe.
const MaxBlobBits = 1<<16 - 1

// Bits is an ordered string of bits. The zero value is an empty string.
type Bits struct {
	buf []byte
	n   int
}

// ParseBits converts a textual bit string like "0110" into Bits.
func ParseBits(s string) (Bits, error) {
	var b Bits
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
			b.push(0)
		case '1':
			b.push(1)
		default:
			return Bits{}, ErrMalformedBits
		}
	}

	return b, nil
}

// FromBytes interprets the bytes as a bit string, lowest bit of each byte
// first. The result is always len(data)*8 bits long.
func FromBytes(data []byte) Bits {
	buf := make([]byte, len(data))
	copy(buf, data)

	return Bits{buf: buf, n: len(data) * 8}
}

// Len returns the number of bits.
func (b Bits) Len() int {
	return b.n
}

// At returns the bit at the specified position.
func (b Bits) At(i int) uint {
	return uint(b.buf[i/8]>>(i%8)) & 1
}

// Bytes packs the bits into bytes. Unused high bits of the final byte
// are zero.
func (b Bits) Bytes() []byte {
	out := make([]byte, (b.n+7)/8)
	copy(out, b.buf)

	return out
}

// Equal reports whether both bit strings hold the same bits.
func (b Bits) Equal(o Bits) bool {
	if b.n != o.n {
		return false
	}

	for i := 0; i < b.n; i++ {
		if b.At(i) != o.At(i) {
			return false
		}
	}

	return true
}

// String renders the bits as a string of 0 and 1 characters.
func (b Bits) String() string {
	var sb strings.Builder
	sb.Grow(b.n)

	for i := 0; i < b.n; i++ {
		if b.At(i) == 1 {
			sb.WriteByte('1')
			continue
		}
		sb.WriteByte('0')
	}

	return sb.String()
}

// MarshalText implements the encoding.TextMarshaler interface.
func (b Bits) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (b *Bits) UnmarshalText(data []byte) error {
	bits, err := ParseBits(string(data))
	if err != nil {
		return err
	}

	*b = bits
	return nil
}

func (b *Bits) push(v uint) {
	if b.n%8 == 0 {
		b.buf = append(b.buf[:b.n/8], 0)
	}

	if v&1 == 1 {
		b.buf[b.n/8] |= 1 << (b.n % 8)
	}

	b.n++
}

// =============================================================================

// Pack frames the bits as a length-prefixed blob and packs the result into
// bytes. This is the form sent as a single datagram.
func Pack(b Bits) ([]byte, error) {
	w := NewWriter()
	if err := w.Blob(b); err != nil {
		return nil, err
	}

	return w.Result().Bytes(), nil
}

// Unpack reverses Pack. Padding after the framed bits is ignored.
func Unpack(data []byte) (Bits, error) {
	return NewReader(FromBytes(data)).Blob()
}
