// Package netplay moves frame-stamped inputs between peers and performs the
// handshake that assigns seats.
package netplay

import (
	"context"
	"errors"
	"fmt"
	"frogquest/internal/input"
)

var (
	ErrPeerDisconnected = errors.New("peer disconnected")
	ErrClosed           = errors.New("adapter closed")
	ErrBadHello         = errors.New("bad hello")
)

// Adapter exchanges input messages with every remote seat. Background
// goroutines pump the network into a queue that Drain empties without
// blocking. Delivery may be out of order but never fabricates or repeats a
// (peer, frame).
type Adapter interface {
	SendInput(peer int, frame uint32, in input.Set) error
	// Drain returns everything received since the last call. The error
	// wraps ErrPeerDisconnected once a peer is gone.
	Drain() ([]Datagram, error)
	Close(ctx context.Context) error
}

type Datagram struct {
	Peer int
	Message
}

func (d Datagram) String() string {
	return fmt.Sprintf("peer %d %v", d.Peer, d.Message)
}

type PlayerType uint8

const (
	Local PlayerType = iota
	Remote
)

func (t PlayerType) String() string {
	switch t {
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return fmt.Sprintf("PlayerType(%d)", uint8(t))
	}
}

// Player is one seat. Its index in Socket.Players is the seat number.
type Player struct {
	Type PlayerType
	Addr string
}
