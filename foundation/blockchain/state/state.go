// Package state is the core API for the node and wires the chain, the
// slice pool, the peer table, storage and the transport together.
package state

import (
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/ubilog/foundation/blockchain/chain"
	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
	"github.com/ardanlabs/ubilog/foundation/blockchain/genesis"
	"github.com/ardanlabs/ubilog/foundation/blockchain/mempool"
	"github.com/ardanlabs/ubilog/foundation/blockchain/peer"
	"github.com/holiman/uint256"
)

// MineAttempts is the number of hashes tried per mining round.
const MineAttempts = 16

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of the node.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for the node's background loops.
type Worker interface {
	Shutdown()
}

// Transport interface represents the behavior required to deliver a
// datagram to another node.
type Transport interface {
	Send(to netip.AddrPort, data []byte) error
}

// =============================================================================

// Config represents the configuration required to start the node.
type Config struct {
	Host           netip.AddrPort
	Genesis        genesis.Genesis
	Storage        database.Storage
	Transport      Transport
	KnownPeers     *peer.PeerSet
	SelectStrategy string
	SecretKey      *uint256.Int
	Mine           bool
	Now            func() uint64
	EvHandler      EventHandler
}

// State manages the node.
type State struct {
	host      netip.AddrPort
	genesis   genesis.Genesis
	secretKey *uint256.Int
	mine      bool
	now       func() uint64
	evHandler EventHandler

	chain      *chain.Chain
	mempool    *mempool.Mempool
	storage    database.Storage
	transport  Transport
	knownPeers *peer.PeerSet

	mu        sync.Mutex
	saved     map[uint64]database.Hash
	body      database.Body
	bodyReady bool
	mined     atomic.Uint64

	Worker Worker
}

// New constructs the node state and replays the stored chain.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	now := cfg.Now
	if now == nil {
		now = func() uint64 {
			return uint64(time.Now().UnixMilli())
		}
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	if cfg.Storage == nil || cfg.Transport == nil {
		return nil, errors.New("storage and transport are required")
	}

	// Construct a mempool with the specified select strategy.
	mempool, err := mempool.NewWithStrategy(cfg.SelectStrategy)
	if err != nil {
		return nil, err
	}

	state := State{
		host:      cfg.Host,
		genesis:   cfg.Genesis,
		secretKey: cfg.SecretKey,
		mine:      cfg.Mine,
		now:       now,
		evHandler: ev,

		chain:      chain.New(cfg.Genesis),
		mempool:    mempool,
		storage:    cfg.Storage,
		transport:  cfg.Transport,
		knownPeers: knownPeers,

		saved: make(map[uint64]database.Hash),
	}

	if err := state.LoadChain(); err != nil {
		return nil, err
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down, saving the canonical chain.
func (s *State) Shutdown() error {
	s.evHandler("state: Shutdown: started")
	defer s.evHandler("state: Shutdown: completed")

	// Make sure the storage is properly closed.
	defer func() {
		s.storage.Close()
	}()

	// Stop all background activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return s.SaveChain()
}

// IsMiningAllowed reports whether this node mines blocks.
func (s *State) IsMiningAllowed() bool {
	return s.mine
}

// Now returns the node time in milliseconds.
func (s *State) Now() uint64 {
	return s.now()
}
