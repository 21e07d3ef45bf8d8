// Package worker implements the background loops of the node: receiving
// datagrams, gossip, orphan requests, peer sharing, persistence, mining and
// the status display.
package worker

import (
	"io"
	"net/netip"
	"sync"
	"time"

	"github.com/ardanlabs/ubilog/foundation/blockchain/state"
)

// Set of intervals the loops run on.
const (
	gossipInterval    = time.Second
	requestInterval   = 31 * time.Millisecond
	saveInterval      = 30 * time.Second
	peerShareInterval = time.Minute
	statsInterval     = time.Second
)

// Receiver represents the behavior required to read datagrams from the
// network. Close must unblock Serve.
type Receiver interface {
	Serve(fn func(from netip.AddrPort, data []byte)) error
	Close() error
}

// Config represents what the worker needs beyond the state.
type Config struct {
	Receiver  Receiver
	Display   io.Writer
	EvHandler state.EventHandler
}

// =============================================================================

// Worker manages the background workflows for the node.
type Worker struct {
	state     *state.State
	receiver  Receiver
	display   io.Writer
	wg        sync.WaitGroup
	shut      chan struct{}
	evHandler state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, cfg Config) {
	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	w := Worker{
		state:     st,
		receiver:  cfg.Receiver,
		display:   cfg.Display,
		shut:      make(chan struct{}),
		evHandler: ev,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.gossipOperations,
		w.requestOperations,
		w.peerShareOperations,
		w.saveOperations,
		w.statsOperations,
	}

	if w.receiver != nil {
		operations = append(operations, w.receiveOperations)
	}

	if st.IsMiningAllowed() {
		operations = append(operations, w.miningOperations)
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)

	if w.receiver != nil {
		w.evHandler("worker: shutdown: close receiver")
		w.receiver.Close()
	}

	w.wg.Wait()
}

// =============================================================================

// every runs the function on each tick until shutdown is signaled.
func (w *Worker) every(name string, interval time.Duration, fn func()) {
	w.evHandler("worker: %s: G started", name)
	defer w.evHandler("worker: %s: G completed", name)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !w.isShutdown() {
				fn()
			}
		case <-w.shut:
			w.evHandler("worker: %s: received shut signal", name)
			return
		}
	}
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
