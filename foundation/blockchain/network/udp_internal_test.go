package network

import (
	"errors"
	"net"
	"net/netip"
	"sync"
	"syscall"
	"testing"
	"time"

	"go.uber.org/ratelimit"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// read is one scripted result of a read on the fake socket.
type read struct {
	data []byte
	from netip.AddrPort
	err  error
}

// scriptedConn replays reads and then reports the socket closed.
type scriptedConn struct {
	mu    sync.Mutex
	reads []read
}

func (c *scriptedConn) ReadFromUDPAddrPort(b []byte) (int, netip.AddrPort, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.reads) == 0 {
		return 0, netip.AddrPort{}, net.ErrClosed
	}

	r := c.reads[0]
	c.reads = c.reads[1:]
	if r.err != nil {
		return 0, netip.AddrPort{}, r.err
	}

	return copy(b, r.data), r.from, nil
}

func (c *scriptedConn) WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error) {
	return len(b), nil
}

func (c *scriptedConn) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 16936}
}

func (c *scriptedConn) Close() error {
	return nil
}

func Test_ServeReadErrors(t *testing.T) {
	t.Log("Given the need to keep receiving after a failed read.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen reads fail between datagrams.", testID)
		{
			from := netip.MustParseAddrPort("10.0.0.2:16936")
			refused := &net.OpError{Op: "read", Net: "udp", Err: syscall.ECONNREFUSED}

			conn := scriptedConn{reads: []read{
				{data: []byte{0x01}, from: from},
				{err: refused},
				{err: errors.New("message too long")},
				{data: []byte{0x02}, from: from},
			}}
			u := UDP{conn: &conn, rl: ratelimit.NewUnlimited()}

			var failures []error
			u.OnReadError(func(err error) {
				failures = append(failures, err)
			})

			var got [][]byte
			done := make(chan error, 1)
			go func() {
				done <- u.Serve(func(from netip.AddrPort, data []byte) {
					got = append(got, data)
				})
			}()

			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould stop cleanly once closed: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould stop cleanly once closed.", success, testID)

			case <-time.After(5 * time.Second):
				t.Fatalf("\t%s\tTest %d:\tShould stop once closed.", failed, testID)
			}

			if len(got) != 2 || got[0][0] != 0x01 || got[1][0] != 0x02 {
				t.Fatalf("\t%s\tTest %d:\tShould deliver the datagrams around the failures, got %v.", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould deliver the datagrams around the failures.", success, testID)

			if len(failures) != 2 || !errors.Is(failures[0], syscall.ECONNREFUSED) {
				t.Fatalf("\t%s\tTest %d:\tShould report each failed read, got %v.", failed, testID, failures)
			}
			t.Logf("\t%s\tTest %d:\tShould report each failed read.", success, testID)
		}
	}
}
