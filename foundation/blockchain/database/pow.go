package database

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	two32  = new(big.Int).Lsh(big.NewInt(1), 32)
	two256 = new(big.Int).Lsh(big.NewInt(1), 256)
	one    = big.NewInt(1)

	mask192 = new(uint256.Int).Rsh(new(uint256.Int).SetAllOne(), 64)
)

// HashWork returns the amount of work a hash represents. The zero hash
// has no work.
func HashWork(h Hash) *big.Int {
	if h.IsZero() {
		return new(big.Int)
	}

	den := new(big.Int).Sub(two256, h.Big())
	return new(big.Int).Quo(two256, den)
}

// Difficulty converts a target into a difficulty.
func Difficulty(target *big.Int) *big.Int {
	den := new(big.Int).Sub(two256, target)
	return new(big.Int).Quo(two256, den)
}

// Target converts a difficulty into the value a hash must exceed. A
// difficulty below 1 is treated as 1.
func Target(difficulty *big.Int) *big.Int {
	if difficulty.Cmp(one) < 0 {
		difficulty = one
	}

	return new(big.Int).Sub(two256, new(big.Int).Quo(two256, difficulty))
}

// NextTarget adjusts the last target by scale, where 2^32 means no change.
// The result always has a difficulty of at least 1.
func NextTarget(lastTarget *big.Int, scale *big.Int) *big.Int {
	num := new(big.Int).Mul(Difficulty(lastTarget), scale)
	num.Sub(num, one)

	// Quo truncates toward zero so a zero scale lands on difficulty 1.
	next := new(big.Int).Quo(num, two32)
	next.Add(next, one)

	return Target(next)
}

// PeriodScale returns the 2^32 fixed point ratio of the expected period
// length over the elapsed one. An elapsed time of zero is treated as 1.
func PeriodScale(expected uint64, elapsed uint64) *big.Int {
	if elapsed == 0 {
		elapsed = 1
	}

	num := new(big.Int).Mul(two32, new(big.Int).SetUint64(expected))
	return num.Quo(num, new(big.Int).SetUint64(elapsed))
}

// HasWork reports whether the hash value exceeds the target.
func HasWork(h Hash, target *big.Int) bool {
	return h.Big().Cmp(target) > 0
}

// =============================================================================

// POWArgs provides the inputs to a bounded mining search.
type POWArgs struct {
	Block     Block
	Target    *big.Int
	Attempts  int
	NodeTime  uint64
	SecretKey *uint256.Int
}

// POW searches for a block whose hash exceeds the target. It returns the
// block and the random value used to build its entropy. When no attempt
// succeeds the final return value is false.
func POW(args POWArgs) (Block, uint64, bool) {
	secret := new(uint256.Int)
	if args.SecretKey != nil {
		secret.Lsh(args.SecretKey, 64)
	}

	claimed := new(uint256.Int).Lsh(uint256.NewInt(args.NodeTime), 192)

	block := args.Block
	for i := 0; i < args.Attempts; i++ {
		r, ok := random()
		if !ok {
			return Block{}, 0, false
		}

		block.Time = Entropy(secret, r)
		block.Time.Or(&block.Time, claimed)

		if HasWork(block.Hash(), args.Target) {
			return block, r, true
		}
	}

	return Block{}, 0, false
}

// Entropy computes the low 192 bits of the time field from the shifted
// secret key and a random value.
func Entropy(shiftedSecret *uint256.Int, r uint64) uint256.Int {
	nonce := new(uint256.Int).Or(shiftedSecret, uint256.NewInt(r))
	b32 := nonce.Bytes32()

	var v uint256.Int
	v.And(Keccak(b32[:]).Uint256(), mask192)
	return v
}

// random draws a value from the system random source.
func random() (uint64, bool) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, false
	}

	return binary.BigEndian.Uint64(buf[:]), true
}
