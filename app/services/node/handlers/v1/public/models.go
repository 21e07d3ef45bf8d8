package public

import (
	"encoding/hex"
	"time"

	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/ardanlabs/ubilog/foundation/blockchain/mempool"
	"github.com/ardanlabs/ubilog/foundation/blockchain/peer"
	"github.com/ardanlabs/ubilog/foundation/blockchain/state"
)

type status struct {
	Host       string `json:"host"`
	Peers      int    `json:"peers"`
	TipHash    string `json:"tip_hash"`
	TipHeight  uint64 `json:"tip_height"`
	TipWork    string `json:"tip_work"`
	Difficulty string `json:"difficulty"`
	Blocks     int    `json:"blocks"`
	Pending    int    `json:"pending"`
	Seen       int    `json:"seen"`
	Pool       int    `json:"pool"`
	Mined      uint64 `json:"mined"`
}

func toStatus(st state.Status) status {
	return status{
		Host:       st.Host.String(),
		Peers:      st.Peers,
		TipHash:    st.TipHash.String(),
		TipHeight:  st.TipHeight,
		TipWork:    st.TipWork.String(),
		Difficulty: st.Difficulty.String(),
		Blocks:     st.Blocks,
		Pending:    st.Pending,
		Seen:       st.Seen,
		Pool:       st.Pool,
		Mined:      st.Mined,
	}
}

type block struct {
	Hash    string  `json:"hash"`
	Prev    string  `json:"prev"`
	Height  uint64  `json:"height"`
	Time    uint64  `json:"time"`
	Nonce   string  `json:"nonce,omitempty"`
	Body    string  `json:"body,omitempty"`
	Receipt *uint64 `json:"receipt,omitempty"`
}

func toBlock(b database.Block, height uint64) block {
	return block{
		Hash:   b.Hash().String(),
		Prev:   b.Prev.String(),
		Height: height,
		Time:   b.ClaimedTime(),
	}
}

func toBlockDetail(b database.Block, height uint64) block {
	blk := toBlock(b, height)
	blk.Nonce = b.Time.Hex()
	blk.Body = hex.EncodeToString(b.Body[:])
	return blk
}

type entry struct {
	Hash  string `json:"hash"`
	Score string `json:"score"`
	Work  uint64 `json:"work"`
	Bits  int    `json:"bits"`
}

func toEntries(entries []mempool.Entry) []entry {
	out := make([]entry, len(entries))
	for i, e := range entries {
		out[i] = entry{
			Hash:  e.Hash.String(),
			Score: e.Score.String(),
			Work:  e.Slice.Work,
			Bits:  e.Slice.Data.Len(),
		}
	}
	return out
}

type peerInfo struct {
	Address string    `json:"address"`
	SeenAt  time.Time `json:"seen_at"`
}

func toPeers(peers []peer.Peer) []peerInfo {
	out := make([]peerInfo, len(peers))
	for i, p := range peers {
		out[i] = peerInfo{
			Address: p.Addr.String(),
			SeenAt:  p.SeenAt,
		}
	}
	return out
}

// SubmitSlice is the payload for pooling a new slice.
type SubmitSlice struct {
	Work uint64 `json:"work"`
	Data string `json:"data" validate:"required,bits,max=65535"`
}

// AddPeer is the payload for adding a peer to the table.
type AddPeer struct {
	Address string `json:"address" validate:"required"`
}
