package worker_test

import (
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/ardanlabs/ubilog/foundation/blockchain/genesis"
	"github.com/ardanlabs/ubilog/foundation/blockchain/mempool/selector"
	"github.com/ardanlabs/ubilog/foundation/blockchain/network"
	"github.com/ardanlabs/ubilog/foundation/blockchain/state"
	"github.com/ardanlabs/ubilog/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/ubilog/foundation/blockchain/worker"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// loopback delivers datagrams pushed into it to Serve.
type loopback struct {
	in   chan []byte
	once sync.Once
	done chan struct{}
}

func newLoopback() *loopback {
	return &loopback{
		in:   make(chan []byte, 16),
		done: make(chan struct{}),
	}
}

func (l *loopback) Serve(fn func(from netip.AddrPort, data []byte)) error {
	from := netip.MustParseAddrPort("10.0.0.9:16936")
	for {
		select {
		case data := <-l.in:
			fn(from, data)
		case <-l.done:
			return nil
		}
	}
}

func (l *loopback) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *loopback) Send(to netip.AddrPort, data []byte) error {
	return nil
}

func Test_Run(t *testing.T) {
	t.Log("Given the need to run the node loops.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen mining and receiving at the same time.", testID)
		{
			gen := genesis.Default()
			gen.InitialDifficulty = 1

			lb := newLoopback()
			store := memory.New()

			st, err := state.New(state.Config{
				Host:           netip.MustParseAddrPort("10.0.0.1:16936"),
				Genesis:        gen,
				Storage:        store,
				Transport:      lb,
				SelectStrategy: selector.StrategyWork,
				Mine:           true,
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the state: %v", failed, testID, err)
			}

			worker.Run(st, worker.Config{Receiver: lb})
			t.Logf("\t%s\tTest %d:\tShould be able to start the worker.", success, testID)

			slice := database.Slice{Work: 1, Data: database.Block{}.Bits()}
			data, err := network.Encode(network.PutSlice{Slice: slice})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to encode a slice: %v", failed, testID, err)
			}
			lb.in <- data

			deadline := time.Now().Add(10 * time.Second)
			for st.QueryStatus().TipHash == database.ZeroHash {
				if time.Now().After(deadline) {
					t.Fatalf("\t%s\tTest %d:\tShould mine a block.", failed, testID)
				}
				time.Sleep(10 * time.Millisecond)
			}
			t.Logf("\t%s\tTest %d:\tShould mine a block.", success, testID)

			if err := st.Shutdown(); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to shut down: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to shut down.", success, testID)

			if _, err := store.GetBlock(0); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould save the chain on shutdown: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould save the chain on shutdown.", success, testID)
		}
	}
}
