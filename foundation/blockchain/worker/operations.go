package worker

import (
	"io"
	"runtime"
	"time"

	"github.com/ardanlabs/ubilog/foundation/blockchain/metrics"
)

// clearScreen moves the cursor home and clears the terminal.
const clearScreen = "\033[H\033[2J"

// receiveOperations hands every datagram that arrives to the state.
func (w *Worker) receiveOperations() {
	w.evHandler("worker: receiveOperations: G started")
	defer w.evHandler("worker: receiveOperations: G completed")

	if err := w.receiver.Serve(w.state.HandleDatagram); err != nil {
		w.evHandler("worker: receiveOperations: ERROR: %s", err)
	}
}

// gossipOperations sends the canonical tip to every peer.
func (w *Worker) gossipOperations() {
	w.every("gossipOperations", gossipInterval, w.state.NetSendTipToPeers)
}

// requestOperations asks peers for the parents of pending blocks.
func (w *Worker) requestOperations() {
	w.every("requestOperations", requestInterval, w.state.NetRequestMissingBlocks)
}

// peerShareOperations shares the peer table with every peer.
func (w *Worker) peerShareOperations() {
	w.every("peerShareOperations", peerShareInterval, w.state.NetSendPeersToPeers)
}

// saveOperations writes the canonical chain to storage.
func (w *Worker) saveOperations() {
	w.every("saveOperations", saveInterval, func() {
		if err := w.state.SaveChain(); err != nil {
			w.evHandler("worker: saveOperations: ERROR: %s", err)
		}
	})
}

// statsOperations refreshes the metrics and, when enabled, redraws the
// status display.
func (w *Worker) statsOperations() {
	w.every("statsOperations", statsInterval, func() {
		w.state.UpdateMetrics()

		if w.display == nil {
			return
		}

		io.WriteString(w.display, clearScreen)
		if err := w.state.RenderStatus(w.display); err != nil {
			w.evHandler("worker: statsOperations: ERROR: %s", err)
		}
	})
}

// miningOperations runs bounded mining rounds back to back, yielding to the
// scheduler between rounds.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		default:
		}

		w.runMiningOperation()
		runtime.Gosched()
	}
}

// runMiningOperation performs one round and shares any block it finds.
func (w *Worker) runMiningOperation() {
	started := time.Now()

	block, found, err := w.state.MineNewBlock()
	metrics.ObserveMineRound(found, started)

	switch {
	case err != nil:
		w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)

	case found:
		w.evHandler("worker: runMiningOperation: MINING: block[%s]: sharing", block.Hash())
		w.state.NetSendBlockToPeers(block)
	}
}
