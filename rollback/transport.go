package rollback

import "github.com/nethercore-systems/nethercore/guest"

// Transport is the peer-network collaborator a P2P Session drives against.
// This module contains no network implementation of it; the package tests
// use an in-memory loopback.
type Transport interface {
	// PollConfirmedInputs returns remote inputs that have newly become
	// confirmed since the last call.
	PollConfirmedInputs() []ConfirmedInput

	// PollChecksums returns remote checksums received since the last call,
	// for the desync comparison.
	PollChecksums() []RemoteChecksum

	// PollEvents returns connectivity events observed since the last call.
	PollEvents() []TransportEvent

	// SendInput transmits the local player's input for frame to every peer.
	SendInput(frame int64, player int, input guest.InputFrame)

	// SendChecksum transmits this host's checksum for frame to every peer.
	SendChecksum(frame int64, sum Checksum)
}

// ConfirmedInput is one remote player's now-authoritative input for frame.
type ConfirmedInput struct {
	Frame  int64
	Player int
	Input  guest.InputFrame
}

// RemoteChecksum is a peer-reported checksum for a frame this host has also
// computed (or will compute) locally.
type RemoteChecksum struct {
	Frame  int64
	Player int
	Sum    Checksum
}

// TransportEventKind enumerates the connectivity notices a Transport may
// surface.
type TransportEventKind int

const (
	TransportSynchronized TransportEventKind = iota
	TransportDisconnected
	TransportInterrupted
	TransportResumed
)

// TransportEvent is one connectivity notice for a given player.
type TransportEvent struct {
	Kind                TransportEventKind
	Player              int
	DisconnectTimeoutMS int
	PingMillis          int
}
