// Package selector provides different algorithms for filling a block body
// from the pooled slices.
package selector

import (
	"fmt"

	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyWork = "work"
	StrategyPack = "pack"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyWork: workSelect,
	StrategyPack: packSelect,
}

// Func defines a function that takes slices ordered best first, writes some
// of them into the body and returns the indexes of the slices it consumed.
type Func func(slices []database.Slice, body *database.Body) []int

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// bodyWriter writes bits into a body, most significant bit of each byte
// first.
type bodyWriter struct {
	body *database.Body
	pos  int
}

// free returns the number of bits left in the body.
func (bw *bodyWriter) free() int {
	return database.BodySize*8 - bw.pos
}

// write copies as many bits of the slice as fit and reports how many
// were written.
func (bw *bodyWriter) write(s database.Slice) int {
	n := min(s.Data.Len(), bw.free())

	for i := 0; i < n; i++ {
		if s.Data.At(i) == 1 {
			bw.body[bw.pos/8] |= 1 << (7 - bw.pos%8)
		}
		bw.pos++
	}

	return n
}
