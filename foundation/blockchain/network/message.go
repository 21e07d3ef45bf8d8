// Package network defines the messages nodes exchange and the UDP transport
// used to carry them.
package network

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/ardanlabs/ubilog/foundation/blockchain/codec"
	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
)

// tagSize is the number of bits identifying a message kind.
const tagSize = 4

// Set of message tags.
const (
	TagPutPeers uint64 = iota
	TagPutBlock
	TagAskBlock
	TagPutSlice
)

// ErrUnknownTag is returned when a message carries a tag that is not known.
var ErrUnknownTag = errors.New("unknown message tag")

// Message is one of PutPeers, PutBlock, AskBlock or PutSlice.
type Message interface {
	Tag() uint64
	encode(w *codec.Writer) error
}

// PutPeers shares a list of peer addresses.
type PutPeers struct {
	Peers []netip.AddrPort
}

// PutBlock shares a block.
type PutBlock struct {
	Block database.Block
}

// AskBlock requests the block with the given hash.
type AskBlock struct {
	Hash database.Hash
}

// PutSlice shares a slice for inclusion in a future block.
type PutSlice struct {
	Slice database.Slice
}

// Tag implements the Message interface.
func (PutPeers) Tag() uint64 { return TagPutPeers }

// Tag implements the Message interface.
func (PutBlock) Tag() uint64 { return TagPutBlock }

// Tag implements the Message interface.
func (AskBlock) Tag() uint64 { return TagAskBlock }

// Tag implements the Message interface.
func (PutSlice) Tag() uint64 { return TagPutSlice }

func (m PutPeers) encode(w *codec.Writer) error {
	for _, addr := range m.Peers {
		w.Item()
		if err := w.AddrPort(addr); err != nil {
			return err
		}
	}
	w.End()

	return nil
}

func (m PutBlock) encode(w *codec.Writer) error {
	m.Block.Encode(w)
	return nil
}

func (m AskBlock) encode(w *codec.Writer) error {
	m.Hash.Encode(w)
	return nil
}

func (m PutSlice) encode(w *codec.Writer) error {
	return m.Slice.Encode(w)
}

// =============================================================================

// Bits returns the tag followed by the message fields.
func Bits(m Message) (codec.Bits, error) {
	w := codec.NewWriter()
	w.Uint(tagSize, m.Tag())

	if err := m.encode(w); err != nil {
		return codec.Bits{}, err
	}

	return w.Result(), nil
}

// Encode returns the datagram bytes for the message.
func Encode(m Message) ([]byte, error) {
	bits, err := Bits(m)
	if err != nil {
		return nil, err
	}

	return codec.Pack(bits)
}

// Decode parses a datagram produced by Encode.
func Decode(data []byte) (Message, error) {
	bits, err := codec.Unpack(data)
	if err != nil {
		return nil, err
	}

	return DecodeBits(codec.NewReader(bits))
}

// DecodeBits reads a message from the reader.
func DecodeBits(r *codec.Reader) (Message, error) {
	tag, err := r.Uint(tagSize)
	if err != nil {
		return nil, err
	}

	switch tag {
	case TagPutPeers:
		var peers []netip.AddrPort
		for {
			more, err := r.Next()
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}

			addr, err := r.AddrPort()
			if err != nil {
				return nil, err
			}
			peers = append(peers, addr)
		}
		return PutPeers{Peers: peers}, nil

	case TagPutBlock:
		block, err := database.DecodeBlock(r)
		if err != nil {
			return nil, err
		}
		return PutBlock{Block: block}, nil

	case TagAskBlock:
		hash, err := database.DecodeHash(r)
		if err != nil {
			return nil, err
		}
		return AskBlock{Hash: hash}, nil

	case TagPutSlice:
		slice, err := database.DecodeSlice(r)
		if err != nil {
			return nil, err
		}
		return PutSlice{Slice: slice}, nil
	}

	return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tag)
}

// Kind returns a printable name for the message kind.
func Kind(m Message) string {
	switch m.(type) {
	case PutPeers:
		return "PutPeers"
	case PutBlock:
		return "PutBlock"
	case AskBlock:
		return "AskBlock"
	case PutSlice:
		return "PutSlice"
	}
	return "Unknown"
}
