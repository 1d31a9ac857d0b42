package nchs

import "net"

// Transport is the narrow surface Host and Guest need from a socket: send a
// message, and drain whatever has arrived since the last call. *Socket
// implements it directly; tests substitute an in-memory fake so state
// machine logic can be exercised without real UDP or wall-clock waits.
type Transport interface {
	SendTo(addr net.Addr, msg Message) error
	Drain() []Datagram
}
