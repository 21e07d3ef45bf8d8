package network

import (
	"errors"
	"net"
	"net/netip"
	"time"

	"go.uber.org/ratelimit"
)

// MaxDatagram is the largest datagram the transport will read.
const MaxDatagram = 65535

// Bounds on the pause after a failed read.
const (
	minReadDelay = 5 * time.Millisecond
	maxReadDelay = time.Second
)

// packetConn is the part of *net.UDPConn the transport uses.
type packetConn interface {
	ReadFromUDPAddrPort(b []byte) (int, netip.AddrPort, error)
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)
	LocalAddr() net.Addr
	Close() error
}

// UDP is the datagram transport between nodes. Sends are paced by a rate
// limiter.
type UDP struct {
	conn    packetConn
	rl      ratelimit.Limiter
	onError func(err error)
}

// Listen binds a UDP socket on the specified address. A rate of zero or
// less disables pacing.
func Listen(addr netip.AddrPort, rate int) (*UDP, error) {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, err
	}

	rl := ratelimit.NewUnlimited()
	if rate > 0 {
		rl = ratelimit.New(rate)
	}

	return &UDP{conn: conn, rl: rl}, nil
}

// LocalAddr returns the bound address.
func (u *UDP) LocalAddr() netip.AddrPort {
	ap := u.conn.LocalAddr().(*net.UDPAddr).AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// Send writes a single datagram to the specified address.
func (u *UDP) Send(to netip.AddrPort, data []byte) error {
	u.rl.Take()

	_, err := u.conn.WriteToUDPAddrPort(data, to)
	return err
}

// OnReadError registers a function told about every failed read. It must
// be called before Serve.
func (u *UDP) OnReadError(fn func(err error)) {
	u.onError = fn
}

// Serve reads datagrams until the socket is closed, handing each one to
// the function along with the sender. A failed read is reported and the
// loop pauses before reading again, backing off while reads keep failing.
// It returns nil once Close is called.
func (u *UDP) Serve(fn func(from netip.AddrPort, data []byte)) error {
	buf := make([]byte, MaxDatagram)

	var delay time.Duration
	for {
		n, from, err := u.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			if u.onError != nil {
				u.onError(err)
			}

			delay = min(max(2*delay, minReadDelay), maxReadDelay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		data := make([]byte, n)
		copy(data, buf[:n])

		fn(netip.AddrPortFrom(from.Addr().Unmap(), from.Port()), data)
	}
}

// Close closes the socket, which stops Serve.
func (u *UDP) Close() error {
	return u.conn.Close()
}
