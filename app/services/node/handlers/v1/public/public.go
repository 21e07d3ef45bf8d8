// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/ubilog/business/web/errs"
	"github.com/ardanlabs/ubilog/foundation/blockchain/chain"
	"github.com/ardanlabs/ubilog/foundation/blockchain/codec"
	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/ardanlabs/ubilog/foundation/blockchain/mempool"
	"github.com/ardanlabs/ubilog/foundation/blockchain/peer"
	"github.com/ardanlabs/ubilog/foundation/blockchain/state"
	"github.com/ardanlabs/ubilog/foundation/events"
	"github.com/ardanlabs/ubilog/foundation/validate"
	"github.com/ardanlabs/ubilog/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Status returns a summary of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, toStatus(h.State.QueryStatus()), http.StatusOK)
}

// LongestChain returns the canonical chain, newest block first. The limit
// query parameter caps the number of blocks returned.
func (h Handlers) LongestChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	canonical := h.State.QueryLongestChain()

	limit := len(canonical)
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return errs.NewTrusted(fmt.Errorf("invalid limit %q", s), http.StatusBadRequest)
		}
		limit = min(n, limit)
	}

	blocks := make([]block, 0, limit)
	for i := len(canonical) - 1; i >= len(canonical)-limit; i-- {
		blocks = append(blocks, toBlock(canonical[i], uint64(i)))
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// Block returns a single linked block with its body. Blocks this node mined
// carry the receipt they were found with.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash, err := database.ParseHash(web.Param(r, "hash"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	blk, err := h.State.QueryBlock(hash)
	if err != nil {
		if errors.Is(err, chain.ErrUnknownBlock) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	height, err := h.State.QueryBlockHeight(hash)
	if err != nil {
		return err
	}

	resp := toBlockDetail(blk, height)
	if rand, err := h.State.QueryReceipt(hash); err == nil {
		resp.Receipt = &rand
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Peers returns the peers this node knows about.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, toPeers(h.State.RetrieveKnownPeers()), http.StatusOK)
}

// AddPeer adds a peer to the table.
func (h Handlers) AddPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var ap AddPeer
	if err := web.Decode(r, &ap); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(ap); err != nil {
		return err
	}

	addr, err := peer.Parse(ap.Address)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("add peer", "traceid", web.GetTraceID(ctx), "address", addr)

	if !h.State.AddKnownPeer(peer.New(addr)) {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, toPeers([]peer.Peer{peer.New(addr)})[0], http.StatusCreated)
}

// Mempool returns the pooled slices, best first.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, toEntries(h.State.QueryMempool()), http.StatusOK)
}

// TruncateMempool drops every pooled slice.
func (h Handlers) TruncateMempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n := h.State.TruncateMempool()

	h.Log.Infow("truncate pool", "traceid", web.GetTraceID(ctx), "removed", n)

	resp := struct {
		Removed int `json:"removed"`
	}{
		Removed: n,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SubmitSlice pools a new slice and shares it with the peers.
func (h Handlers) SubmitSlice(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var ss SubmitSlice
	if err := web.Decode(r, &ss); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(ss); err != nil {
		return err
	}

	data, err := codec.ParseBits(ss.Data)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	slice := database.Slice{Work: ss.Work, Data: data}

	hash, err := slice.Hash()
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit slice", "traceid", web.GetTraceID(ctx), "hash", hash, "work", ss.Work, "bits", data.Len())

	n, err := h.State.SubmitSlice(slice)
	if err != nil {
		if errors.Is(err, mempool.ErrPoolFull) {
			return errs.NewTrusted(err, http.StatusServiceUnavailable)
		}
		return err
	}

	resp := struct {
		Hash string `json:"hash"`
		Pool int    `json:"pool"`
	}{
		Hash: hash.String(),
		Pool: n,
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}
