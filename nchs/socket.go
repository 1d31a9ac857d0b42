package nchs

import (
	"fmt"
	"net"
	"time"
)

// Socket is the thin UDP transport NCHS state machines read and write
// through. It is deliberately minimal: bind, send, and a non-blocking poll,
// in the plain net.Listener/net.Conn style rather than pulling in a
// framework.
type Socket struct {
	conn *net.UDPConn
}

// Datagram is one received record, paired with the address it arrived from.
type Datagram struct {
	From net.Addr
	Msg  Message
}

// Bind opens a UDP socket on the given local address ("" port means any
// free ephemeral port).
func Bind(localAddr string) (*Socket, error) {
	addr, err := net.ResolveUDPAddr("udp", localAddr)
	if err != nil {
		return nil, fmt.Errorf("nchs: resolving local address %q: %w", localAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("nchs: binding udp socket: %w", err)
	}
	return &Socket{conn: conn}, nil
}

// LocalAddr returns the bound address, including the OS-assigned ephemeral
// port when one was requested.
func (s *Socket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Close releases the socket. Callers that reach the Ready state take the
// *net.UDPConn directly via Raw() instead of closing it here.
func (s *Socket) Close() error { return s.conn.Close() }

// Raw exposes the underlying connection for handoff to the rollback
// transport once the NCHS state machine reaches Ready and the socket is
// released for that use.
func (s *Socket) Raw() *net.UDPConn { return s.conn }

// SendTo encodes and sends msg to addr. Messages that would exceed
// MaxDatagramSize are rejected before any syscall.
func (s *Socket) SendTo(addr net.Addr, msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		resolved, err := net.ResolveUDPAddr("udp", addr.String())
		if err != nil {
			return fmt.Errorf("nchs: resolving send target %q: %w", addr, err)
		}
		udpAddr = resolved
	}
	if _, err := s.conn.WriteToUDP(data, udpAddr); err != nil {
		return fmt.Errorf("nchs: send to %s: %w", addr, err)
	}
	return nil
}

// PollOnce reads and decodes at most one pending datagram, returning
// ok=false if none is available within the deadline. Oversized or
// unrecognized datagrams are silently dropped rather than surfaced as
// errors, since a single malformed packet must not wedge the state machine.
func (s *Socket) PollOnce(deadline time.Time) (Datagram, bool) {
	s.conn.SetReadDeadline(deadline)
	buf := make([]byte, MaxDatagramSize+1)
	n, from, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		return Datagram{}, false
	}
	msg, err := Decode(buf[:n])
	if err != nil {
		return Datagram{}, false
	}
	return Datagram{From: from, Msg: msg}, true
}

// Drain reads every datagram currently queued, non-blocking, and returns
// them in arrival order. Used by state machines on each Poll call.
func (s *Socket) Drain() []Datagram {
	var out []Datagram
	for {
		dg, ok := s.PollOnce(time.Now())
		if !ok {
			break
		}
		out = append(out, dg)
	}
	return out
}
