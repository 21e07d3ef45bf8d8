package database

import (
	"crypto/rand"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// SecretKeyBits is the largest secret key a miner can hold. The key sits
// above the 64 random bits of a nonce.
const SecretKeyBits = 192

// ErrSecretKey is returned for a secret key that is not hex or too large.
var ErrSecretKey = errors.New("secret key must be hex of at most 192 bits")

// ParseSecretKey reads a hex secret key with or without the 0x prefix.
func ParseSecretKey(s string) (*uint256.Int, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, ErrSecretKey
	}

	if len(s)%2 == 1 {
		s = "0" + s
	}

	raw, err := hexutil.Decode("0x" + s)
	if err != nil || len(raw) > 32 {
		return nil, ErrSecretKey
	}

	key := new(uint256.Int).SetBytes(raw)
	if key.BitLen() > SecretKeyBits {
		return nil, ErrSecretKey
	}

	return key, nil
}

// NewSecretKey draws a random secret key from the system random source.
func NewSecretKey() (*uint256.Int, error) {
	var buf [SecretKeyBits / 8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, err
	}

	return new(uint256.Int).SetBytes(buf[:]), nil
}
