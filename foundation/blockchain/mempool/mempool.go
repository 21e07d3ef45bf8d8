// Package mempool maintains the pool of slices waiting to be mined.
package mempool

import (
	"container/heap"
	"errors"
	"math/big"
	"sync"

	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/ardanlabs/ubilog/foundation/blockchain/mempool/selector"
)

// DefaultMaxSize bounds the number of slices held by the pool.
const DefaultMaxSize = 10_000

// ErrPoolFull is returned when a slice arrives and the pool is at capacity.
var ErrPoolFull = errors.New("mempool is full")

// Entry is a pooled slice along with its identity and score.
type Entry struct {
	Hash  database.Hash
	Score *big.Int
	Slice database.Slice
}

// Mempool represents a cache of slices ordered by score, highest first.
type Mempool struct {
	mu       sync.Mutex
	pool     entryHeap
	keys     map[database.Hash]struct{}
	maxSize  int
	selectFn selector.Func
}

// New constructs a new mempool using the default select strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyWork)
}

// NewWithStrategy constructs a new mempool with specified select strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		keys:     make(map[database.Hash]struct{}),
		maxSize:  DefaultMaxSize,
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of slices in the pool.
func (mp *Mempool) Count() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return len(mp.pool)
}

// Upsert adds a slice to the pool. A slice already pooled is ignored.
func (mp *Mempool) Upsert(slice database.Slice) (int, error) {
	h, err := slice.Hash()
	if err != nil {
		return 0, err
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.keys[h]; exists {
		return len(mp.pool), nil
	}

	if len(mp.pool) >= mp.maxSize {
		return len(mp.pool), ErrPoolFull
	}

	heap.Push(&mp.pool, Entry{
		Hash:  h,
		Score: database.HashWork(h),
		Slice: slice,
	})
	mp.keys[h] = struct{}{}

	return len(mp.pool), nil
}

// Copy returns the pooled entries, highest score first.
func (mp *Mempool) Copy() []Entry {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	entries := make([]Entry, len(mp.pool))
	copy(entries, mp.pool)
	sortEntries(entries)

	return entries
}

// Truncate clears all the slices from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = nil
	mp.keys = make(map[database.Hash]struct{})
}

// FillBody uses the configured select strategy to build the body of the
// next block. Slices written into the body leave the pool.
func (mp *Mempool) FillBody() database.Body {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	entries := make([]Entry, 0, len(mp.pool))
	for len(mp.pool) > 0 {
		entries = append(entries, heap.Pop(&mp.pool).(Entry))
	}

	slices := make([]database.Slice, len(entries))
	for i, e := range entries {
		slices[i] = e.Slice
	}

	var body database.Body
	used := make(map[int]bool)
	for _, i := range mp.selectFn(slices, &body) {
		used[i] = true
	}

	for i, e := range entries {
		if used[i] {
			delete(mp.keys, e.Hash)
			continue
		}
		heap.Push(&mp.pool, e)
	}

	return body
}

// =============================================================================

// entryHeap implements heap.Interface as a max heap on score.
type entryHeap []Entry

func (eh entryHeap) Len() int { return len(eh) }

func (eh entryHeap) Less(i, j int) bool {
	return eh[i].Score.Cmp(eh[j].Score) > 0
}

func (eh entryHeap) Swap(i, j int) { eh[i], eh[j] = eh[j], eh[i] }

func (eh *entryHeap) Push(x any) {
	*eh = append(*eh, x.(Entry))
}

func (eh *entryHeap) Pop() any {
	old := *eh
	n := len(old)
	e := old[n-1]
	*eh = old[:n-1]
	return e
}

// sortEntries orders entries by descending score.
func sortEntries(entries []Entry) {
	h := entryHeap(entries)
	heap.Init(&h)

	sorted := make([]Entry, 0, len(entries))
	for h.Len() > 0 {
		sorted = append(sorted, heap.Pop(&h).(Entry))
	}
	copy(entries, sorted)
}
