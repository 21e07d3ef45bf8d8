package chain_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ardanlabs/ubilog/foundation/blockchain/chain"
	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/ardanlabs/ubilog/foundation/blockchain/genesis"
	"github.com/holiman/uint256"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// now is the node time used for every test, far past any claimed time.
const now = 1 << 40

// mine finds a block on top of prev claiming the specified time.
func mine(t *testing.T, prev database.Hash, claimed uint64, target *big.Int) database.Block {
	t.Helper()

	block, _, ok := database.POW(database.POWArgs{
		Block:    database.Block{Prev: prev},
		Target:   target,
		Attempts: 100_000,
		NodeTime: claimed,
	})
	if !ok {
		t.Fatalf("\t%s\tShould be able to mine a block at time %d.", failed, claimed)
	}

	return block
}

// mineChain mines n blocks in sequence from genesis, spaced step ms apart.
func mineChain(t *testing.T, gen genesis.Genesis, n int, start uint64, step uint64) []database.Block {
	t.Helper()

	blocks := make([]database.Block, n)
	prev := database.ZeroHash
	for i := range blocks {
		blocks[i] = mine(t, prev, start+uint64(i)*step, gen.InitialTarget())
		prev = blocks[i].Hash()
	}

	return blocks
}

// weak finds a block on top of prev whose hash does not exceed the target.
func weak(prev database.Hash, claimed uint64, target *big.Int) database.Block {
	for i := uint64(0); ; i++ {
		b := database.Block{Prev: prev}
		b.Time.Lsh(uint256.NewInt(claimed), 192)
		b.Time.Or(&b.Time, uint256.NewInt(i))

		if !database.HasWork(b.Hash(), target) {
			return b
		}
	}
}

type snapshot struct {
	tip    chain.Tip
	work   map[database.Hash]string
	height map[database.Hash]uint64
}

func snap(t *testing.T, c *chain.Chain, blocks []database.Block) snapshot {
	t.Helper()

	s := snapshot{
		tip:    c.Tip(),
		work:   make(map[database.Hash]string),
		height: make(map[database.Hash]uint64),
	}

	for _, b := range blocks {
		h := b.Hash()

		w, err := c.Work(h)
		if err != nil {
			t.Fatalf("\t%s\tShould find work for %s: %v", failed, h, err)
		}
		s.work[h] = w.String()

		height, err := c.Height(h)
		if err != nil {
			t.Fatalf("\t%s\tShould find height for %s: %v", failed, h, err)
		}
		s.height[h] = height
	}

	return s
}

func equal(a, b snapshot) bool {
	if a.tip.Hash != b.tip.Hash || a.tip.Work.Cmp(b.tip.Work) != 0 {
		return false
	}

	for h, w := range a.work {
		if b.work[h] != w || b.height[h] != a.height[h] {
			return false
		}
	}

	return len(a.work) == len(b.work)
}

// =============================================================================

func Test_EndToEnd(t *testing.T) {
	gen := genesis.Default()
	blocks := mineChain(t, gen, 3, 1000, 1000)

	t.Log("Given the need to build the canonical chain from mined blocks.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen blocks arrive in order.", testID)

		forward := chain.New(gen)
		{
			for _, b := range blocks {
				if err := forward.HandleBlock(b, now); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to handle the block: %v", failed, testID, err)
				}
			}

			longest := forward.LongestChain()
			if len(longest) != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould have 3 blocks in the chain, got %d.", failed, testID, len(longest))
			}
			for i := range blocks {
				if longest[i] != blocks[i] {
					t.Fatalf("\t%s\tTest %d:\tShould have block %d in position.", failed, testID, i)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould return the three blocks in order.", success, testID)

			if forward.Tip().Hash != blocks[2].Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould have the last block as the tip.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have the last block as the tip.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen blocks arrive in reverse order.", testID)
		{
			reverse := chain.New(gen)

			reverse.HandleBlock(blocks[2], now)
			reverse.HandleBlock(blocks[1], now)

			if stats := reverse.Stats(); stats.Pending != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould hold two pending blocks, got %d.", failed, testID, stats.Pending)
			}
			t.Logf("\t%s\tTest %d:\tShould hold two pending blocks.", success, testID)

			missing := reverse.MissingParents()
			if len(missing) != 1 || missing[0] != blocks[0].Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould only be missing the first block: %v", failed, testID, missing)
			}
			t.Logf("\t%s\tTest %d:\tShould only be missing the first block.", success, testID)

			reverse.HandleBlock(blocks[0], now)

			if stats := reverse.Stats(); stats.Pending != 0 || stats.Blocks != 4 {
				t.Fatalf("\t%s\tTest %d:\tShould resolve every pending block: %+v", failed, testID, stats)
			}
			t.Logf("\t%s\tTest %d:\tShould resolve every pending block.", success, testID)

			if !equal(snap(t, forward, blocks), snap(t, reverse, blocks)) {
				t.Fatalf("\t%s\tTest %d:\tShould reach the same state as in order.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reach the same state as in order.", success, testID)
		}
	}
}

func Test_Permutations(t *testing.T) {
	gen := genesis.Default()
	blocks := mineChain(t, gen, 5, 1000, 1000)

	ref := chain.New(gen)
	for _, b := range blocks {
		ref.HandleBlock(b, now)
	}
	want := snap(t, ref, blocks)

	t.Log("Given the need to resolve orphans in any arrival order.")
	{
		var count int
		permute(len(blocks), func(order []int) {
			count++

			c := chain.New(gen)
			last := c.Tip()

			for _, i := range order {
				c.HandleBlock(blocks[i], now)

				tip := c.Tip()
				if tip.Work.Cmp(last.Work) < 0 {
					t.Fatalf("\t%s\tShould never lower the tip work for order %v.", failed, order)
				}
				if _, exists := c.Block(tip.Hash); !exists {
					t.Fatalf("\t%s\tShould always name a linked block as the tip for order %v.", failed, order)
				}
				last = tip
			}

			if !equal(want, snap(t, c, blocks)) {
				t.Fatalf("\t%s\tShould reach the same state for order %v.", failed, order)
			}
		})
		t.Logf("\t%s\tShould reach the same state for all %d orders.", success, count)
	}
}

// permute calls fn with every ordering of 0..n-1.
func permute(n int, fn func([]int)) {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	var rec func(k int)
	rec = func(k int) {
		if k == n {
			fn(order)
			return
		}
		for i := k; i < n; i++ {
			order[k], order[i] = order[i], order[k]
			rec(k + 1)
			order[k], order[i] = order[i], order[k]
		}
	}
	rec(0)
}

func Test_TimeGate(t *testing.T) {
	gen := genesis.Default()

	t.Log("Given the need to reject blocks from the far future.")
	{
		c := chain.New(gen)

		late := mine(t, database.ZeroHash, now+gen.DelayTolerance+1, gen.InitialTarget())
		if err := c.HandleBlock(late, now); !errors.Is(err, chain.ErrFutureBlock) {
			t.Fatalf("\t%s\tShould reject the block, got %v.", failed, err)
		}

		if _, exists := c.Block(late.Hash()); exists || c.Seen(late.Hash()) {
			t.Fatalf("\t%s\tShould neither link nor mark the block seen.", failed)
		}
		t.Logf("\t%s\tShould drop a block one ms past the tolerance.", success)

		edge := mine(t, database.ZeroHash, now+gen.DelayTolerance, gen.InitialTarget())
		if err := c.HandleBlock(edge, now); err != nil {
			t.Fatalf("\t%s\tShould accept a block at the tolerance: %v", failed, err)
		}

		if c.Tip().Hash != edge.Hash() {
			t.Fatalf("\t%s\tShould make the block at the tolerance the tip.", failed)
		}
		t.Logf("\t%s\tShould accept a block at the tolerance.", success)
	}
}

func Test_Orphans(t *testing.T) {
	gen := genesis.Default()
	blocks := mineChain(t, gen, 2, 1000, 1000)

	t.Log("Given the need to buffer orphans once.")
	{
		c := chain.New(gen)

		c.HandleBlock(blocks[1], now)
		c.HandleBlock(blocks[1], now)

		if stats := c.Stats(); stats.Pending != 1 {
			t.Fatalf("\t%s\tShould buffer the orphan once, got %d.", failed, stats.Pending)
		}
		t.Logf("\t%s\tShould buffer the orphan once.", success)

		if released := c.AddBlock(blocks[0]); len(released) != 1 || released[0] != blocks[1] {
			t.Fatalf("\t%s\tShould release the orphan when its parent links.", failed)
		}
		t.Logf("\t%s\tShould release the orphan when its parent links.", success)

		if _, err := c.Work(blocks[1].Hash()); !errors.Is(err, chain.ErrUnknownBlock) {
			t.Fatalf("\t%s\tShould leave the released block to the caller, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould leave the released block to the caller.", success)

		c.AddBlock(blocks[0])
		if children := c.Children(database.ZeroHash); len(children) != 1 {
			t.Fatalf("\t%s\tShould link a duplicate only once, got %d children.", failed, len(children))
		}
		t.Logf("\t%s\tShould link a duplicate only once.", success)
	}
}

func Test_InvalidExtension(t *testing.T) {
	gen := genesis.Default()
	target := gen.InitialTarget()

	t.Log("Given the need to link invalid blocks without counting them.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a block does not advance time.", testID)
		{
			c := chain.New(gen)

			b0 := mine(t, database.ZeroHash, 5000, target)
			b1 := mine(t, b0.Hash(), 6000, target)
			c.HandleBlock(b0, now)
			c.HandleBlock(b1, now)

			stale := mine(t, b1.Hash(), 6000, target)
			c.HandleBlock(stale, now)

			staleWork, err := c.Work(stale.Hash())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould link the block: %v", failed, testID, err)
			}
			staleHeight, _ := c.Height(stale.Hash())
			staleTarget, _ := c.Target(stale.Hash())

			if staleWork.Sign() != 0 || staleHeight != 0 || staleTarget.Sign() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould leave work, height and target at zero, got %s, %d, %s.", failed, testID, staleWork, staleHeight, staleTarget)
			}
			t.Logf("\t%s\tTest %d:\tShould leave work, height and target at zero.", success, testID)

			if c.Tip().Hash != b1.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould keep the parent as the tip.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the parent as the tip.", success, testID)

			child := mine(t, stale.Hash(), 7000, target)
			c.HandleBlock(child, now)

			childWork, _ := c.Work(child.Hash())
			if childWork.Cmp(database.HashWork(child.Hash())) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould count only the child's own work.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould count only the child's own work.", success, testID)

			childHeight, _ := c.Height(child.Hash())
			if childHeight != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould restart the height at 1, got %d.", failed, testID, childHeight)
			}
			t.Logf("\t%s\tTest %d:\tShould restart the height at 1.", success, testID)

			childTarget, _ := c.Target(child.Hash())
			if childTarget.Sign() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould inherit the zero target, got %s.", failed, testID, childTarget)
			}
			t.Logf("\t%s\tTest %d:\tShould inherit the zero target.", success, testID)

			if c.Tip().Hash != b1.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould not move the tip to the lighter branch.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not move the tip to the lighter branch.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a block does not meet the target.", testID)
		{
			c := chain.New(gen)

			b0 := mine(t, database.ZeroHash, 5000, target)
			c.HandleBlock(b0, now)

			poor := weak(b0.Hash(), 6000, target)
			c.HandleBlock(poor, now)

			if _, exists := c.Block(poor.Hash()); !exists {
				t.Fatalf("\t%s\tTest %d:\tShould still link the block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould still link the block.", success, testID)

			if c.Tip().Hash != b0.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould not move the tip.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not move the tip.", success, testID)

			poorWork, _ := c.Work(poor.Hash())
			poorHeight, _ := c.Height(poor.Hash())
			poorTarget, _ := c.Target(poor.Hash())
			if poorWork.Sign() != 0 || poorHeight != 0 || poorTarget.Sign() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould leave work, height and target at zero, got %s, %d, %s.", failed, testID, poorWork, poorHeight, poorTarget)
			}
			t.Logf("\t%s\tTest %d:\tShould leave work, height and target at zero.", success, testID)
		}
	}
}

func Test_Forks(t *testing.T) {
	gen := genesis.Default()
	target := gen.InitialTarget()

	t.Log("Given the need to follow the heaviest chain.")
	{
		c := chain.New(gen)

		a0 := mine(t, database.ZeroHash, 1000, target)
		a1 := mine(t, a0.Hash(), 2000, target)
		b0 := mine(t, database.ZeroHash, 1500, target)

		c.HandleBlock(a0, now)
		c.HandleBlock(b0, now)

		aw, _ := c.Work(a0.Hash())
		bw, _ := c.Work(b0.Hash())

		exp := a0.Hash()
		if bw.Cmp(aw) > 0 {
			exp = b0.Hash()
		}

		if c.Tip().Hash != exp {
			t.Fatalf("\t%s\tShould pick the heavier single block, keeping the first on a tie.", failed)
		}
		t.Logf("\t%s\tShould pick the heavier single block, keeping the first on a tie.", success)

		c.HandleBlock(a1, now)

		tip := c.Tip()
		a1w, _ := c.Work(a1.Hash())
		if a1w.Cmp(bw) > 0 && tip.Hash != a1.Hash() {
			t.Fatalf("\t%s\tShould move to the longer chain once it is heavier.", failed)
		}
		t.Logf("\t%s\tShould move to the longer chain once it is heavier.", success)
	}
}

func Test_Retarget(t *testing.T) {
	gen := genesis.Default()
	gen.InitialDifficulty = 4

	type table struct {
		name    string
		step    uint64
		harder  bool
		expDiff int64
	}

	tt := []table{
		{name: "fast", step: 500, harder: true, expDiff: 8},
		{name: "slow", step: 2000, harder: false, expDiff: 2},
	}

	t.Log("Given the need to retarget at the end of each period.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				c := chain.New(gen)

				n := int(gen.BlocksPerPeriod) + 1
				blocks := mineChain(t, gen, n, 10_000, tst.step)
				for _, b := range blocks {
					c.HandleBlock(b, now)
				}

				last := blocks[n-1].Hash()
				height, _ := c.Height(last)
				if height != gen.BlocksPerPeriod {
					t.Fatalf("\t%s\tTest %d:\tShould close the period at height %d, got %d.", failed, testID, gen.BlocksPerPeriod, height)
				}
				t.Logf("\t%s\tTest %d:\tShould close the period at height %d.", success, testID, height)

				prevTarget, _ := c.Target(blocks[n-2].Hash())
				if prevTarget.Cmp(gen.InitialTarget()) != 0 {
					t.Fatalf("\t%s\tTest %d:\tShould inherit the target inside the period.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould inherit the target inside the period.", success, testID)

				elapsed := tst.step * gen.BlocksPerPeriod
				scale := new(big.Int).Lsh(big.NewInt(1), 32)
				scale.Mul(scale, new(big.Int).SetUint64(gen.TimePerPeriod()))
				scale.Quo(scale, new(big.Int).SetUint64(elapsed))

				next := new(big.Int).Mul(database.Difficulty(prevTarget), scale)
				next.Sub(next, big.NewInt(1))
				next.Quo(next, new(big.Int).Lsh(big.NewInt(1), 32))
				next.Add(next, big.NewInt(1))
				exp := database.Target(next)

				got, _ := c.Target(last)
				if got.Cmp(exp) != 0 {
					t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, database.Difficulty(got))
					t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, next)
					t.Fatalf("\t%s\tTest %d:\tShould compute the next target.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould compute the next target.", success, testID)

				diff := database.Difficulty(got)
				if diff.Int64() != tst.expDiff || (diff.Cmp(big.NewInt(4)) > 0) != tst.harder {
					t.Fatalf("\t%s\tTest %d:\tShould move the difficulty to %d, got %s.", failed, testID, tst.expDiff, diff)
				}
				t.Logf("\t%s\tTest %d:\tShould move the difficulty to %d.", success, testID, tst.expDiff)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_RetargetAfterInvalid(t *testing.T) {
	gen := genesis.Default()
	gen.InitialDifficulty = 1
	gen.BlocksPerPeriod = 2

	t.Log("Given the need to restart periods below an invalid block.")
	{
		c := chain.New(gen)

		// b2 claims a time before b1, so b3 and b4 build on a zero block.
		b0 := mine(t, database.ZeroHash, 1000, gen.InitialTarget())
		b1 := mine(t, b0.Hash(), 2000, gen.InitialTarget())
		b2 := mine(t, b1.Hash(), 1500, gen.InitialTarget())
		b3 := mine(t, b2.Hash(), 1600, gen.InitialTarget())
		b4 := mine(t, b3.Hash(), 2600, gen.InitialTarget())

		for _, b := range []database.Block{b0, b1, b2, b3, b4} {
			c.HandleBlock(b, now)
		}

		height, _ := c.Height(b3.Hash())
		if height != 1 {
			t.Fatalf("\t%s\tShould count b3 from the invalid block, got height %d.", failed, height)
		}
		t.Logf("\t%s\tShould count b3 from the invalid block.", success)

		target, _ := c.Target(b3.Hash())
		if target.Sign() != 0 {
			t.Fatalf("\t%s\tShould not retarget before the period closes, got %s.", failed, target)
		}
		t.Logf("\t%s\tShould not retarget before the period closes.", success)

		height, _ = c.Height(b4.Hash())
		if height != gen.BlocksPerPeriod {
			t.Fatalf("\t%s\tShould close the period at height %d, got %d.", failed, gen.BlocksPerPeriod, height)
		}
		t.Logf("\t%s\tShould close the period.", success)

		// The checkpoint is the invalid block claiming 1500.
		exp := database.NextTarget(new(big.Int), database.PeriodScale(gen.TimePerPeriod(), 2600-1500))
		target, err := c.Target(b4.Hash())
		if err != nil {
			t.Fatalf("\t%s\tShould link the block: %v", failed, err)
		}
		if target.Cmp(exp) != 0 {
			t.Fatalf("\t%s\tShould measure the period from the invalid block, got difficulty %s.", failed, database.Difficulty(target))
		}
		t.Logf("\t%s\tShould measure the period from the invalid block.", success)
	}
}
