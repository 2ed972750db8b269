package netplay

import (
	"context"
	"fmt"
	"frogquest/internal/input"
	"slices"
	"sync"
)

// Loopback is an in-memory adapter connected to exactly one other Loopback.
// Hold and Release simulate latency and reordering.
type Loopback struct {
	seat int
	peer *Loopback

	mu      sync.Mutex
	inbox   []Datagram
	held    []Datagram
	holding bool
	closed  bool
	filter  *frameFilter
}

// NewLoopbackPair returns the adapters of seat 0 and seat 1.
func NewLoopbackPair() (*Loopback, *Loopback) {
	a := &Loopback{seat: 0, filter: newFrameFilter()}
	b := &Loopback{seat: 1, filter: newFrameFilter()}
	a.peer, b.peer = b, a
	return a, b
}

func (l *Loopback) Seat() int { return l.seat }

func (l *Loopback) SendInput(peer int, frame uint32, in input.Set) error {
	if peer != l.peer.seat {
		return fmt.Errorf("seat %d: no such peer", peer)
	}

	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}

	l.peer.deliver(Datagram{
		Peer:    l.seat,
		Message: Message{Frame: frame, Input: in},
	})
	return nil
}

func (l *Loopback) deliver(d Datagram) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if l.holding {
		l.held = append(l.held, d)
		return
	}
	if l.filter.Pass(d.Frame) {
		l.inbox = append(l.inbox, d)
	}
}

// Hold queues incoming datagrams until Release.
func (l *Loopback) Hold() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holding = true
}

// Release delivers held datagrams, newest first when reversed.
func (l *Loopback) Release(reversed bool) {
	l.mu.Lock()
	held := l.held
	l.held = nil
	l.holding = false
	l.mu.Unlock()

	if reversed {
		slices.Reverse(held)
	}
	for _, d := range held {
		l.deliver(d)
	}
}

func (l *Loopback) Drain() ([]Datagram, error) {
	l.peer.mu.Lock()
	peerClosed := l.peer.closed
	l.peer.mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	ds := l.inbox
	l.inbox = nil
	if peerClosed {
		return ds, fmt.Errorf("seat %d: %w", l.peer.seat, ErrPeerDisconnected)
	}
	return ds, nil
}

func (l *Loopback) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.inbox = nil
	l.held = nil
	return nil
}
