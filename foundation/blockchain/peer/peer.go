// Package peer maintains the peer related information such as the set
// of known peers and when they were last heard about.
package peer

import (
	"fmt"
	"net"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	ma "github.com/multiformats/go-multiaddr"
)

// Peer represents information about a Node in the network.
type Peer struct {
	Addr   netip.AddrPort
	SeenAt time.Time
}

// New contructs a new peer value seen right now.
func New(addr netip.AddrPort) Peer {
	return Peer{
		Addr:   addr,
		SeenAt: time.Now(),
	}
}

// Match validates if the specified address matches this node.
func (p Peer) Match(addr netip.AddrPort) bool {
	return p.Addr == addr
}

// String implements the fmt.Stringer interface.
func (p Peer) String() string {
	return p.Addr.String()
}

// =============================================================================

// Parse resolves a peer address. Both host:port and multiaddr forms such
// as /ip4/127.0.0.1/udp/16936 are accepted.
func Parse(s string) (netip.AddrPort, error) {
	if !strings.HasPrefix(s, "/") {
		return resolve(s)
	}

	m, err := ma.NewMultiaddr(s)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("parsing multiaddr %q: %w", s, err)
	}

	port, err := m.ValueForProtocol(ma.P_UDP)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("multiaddr %q has no udp port: %w", s, err)
	}

	for _, code := range []int{ma.P_IP4, ma.P_IP6, ma.P_DNS4, ma.P_DNS6, ma.P_DNS} {
		host, err := m.ValueForProtocol(code)
		if err == nil {
			return resolve(net.JoinHostPort(host, port))
		}
	}

	return netip.AddrPort{}, fmt.Errorf("multiaddr %q has no host", s)
}

// resolve turns a host:port string into an address, looking up names.
func resolve(hostPort string) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(hostPort); err == nil {
		return unmap(ap), nil
	}

	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return netip.AddrPort{}, err
	}

	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid port %q: %w", port, err)
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		return netip.AddrPort{}, err
	}

	for _, a := range addrs {
		if addr, err := netip.ParseAddr(a); err == nil {
			return unmap(netip.AddrPortFrom(addr, uint16(p))), nil
		}
	}

	return netip.AddrPort{}, fmt.Errorf("no address for host %q", host)
}

func unmap(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// =============================================================================

// PeerSet represents the data representation to maintain a set of known peers.
type PeerSet struct {
	mu  sync.RWMutex
	set map[netip.AddrPort]time.Time
}

// NewPeerSet constructs a new info set to manage node peer information.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[netip.AddrPort]time.Time),
	}
}

// Add adds a new node to the set or refreshes when it was last seen. It
// returns true when the node was not known before.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	addr := unmap(peer.Addr)

	_, exists := ps.set[addr]
	if !exists || peer.SeenAt.After(ps.set[addr]) {
		ps.set[addr] = peer.SeenAt
	}

	return !exists
}

// Remove removes a node from the set.
func (ps *PeerSet) Remove(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, unmap(peer.Addr))
}

// Count returns the number of known peers.
func (ps *PeerSet) Count() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.set)
}

// Copy returns a list of the known peers ordered by address, leaving
// out the specified node.
func (ps *PeerSet) Copy(self netip.AddrPort) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	peers := make([]Peer, 0, len(ps.set))
	for addr, seenAt := range ps.set {
		if addr == self {
			continue
		}
		peers = append(peers, Peer{Addr: addr, SeenAt: seenAt})
	}

	sort.Slice(peers, func(i, j int) bool {
		return peers[i].Addr.Compare(peers[j].Addr) < 0
	})

	return peers
}
