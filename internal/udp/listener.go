// Package udp is a datagram listener with a hi/bye handshake and label based
// routing of message bodies.
package udp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

type Envelope struct {
	Sender net.Addr
	Message
}

type Listener struct {
	conn net.PacketConn
	c    chan Envelope

	mu      sync.RWMutex
	clients map[string]net.Addr // addrs that said hi to us
	servers map[string]net.Addr // addrs we said hi to

	closeOnce sync.Once
	done      chan struct{}
}

const inboxSize = 256

func Listen(addr string) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding to udp %q: %w", addr, err)
	}

	ln := &Listener{
		conn:    conn,
		c:       make(chan Envelope, inboxSize),
		clients: map[string]net.Addr{},
		servers: map[string]net.Addr{},
		done:    make(chan struct{}),
	}
	go ln.readLoop()

	return ln, nil
}

// Inbox yields every message received, hi and bye included. It is closed
// once the listener is.
func (ln *Listener) Inbox() <-chan Envelope { return ln.c }

// Close says bye to every server and stops the read loop.
func (ln *Listener) Close() error {
	var errs []error
	ln.closeOnce.Do(func() {
		ln.mu.RLock()
		servers := make([]net.Addr, 0, len(ln.servers))
		for _, addr := range ln.servers {
			servers = append(servers, addr)
		}
		ln.mu.RUnlock()

		for _, addr := range servers {
			if err := ln.Farewell(addr); err != nil {
				errs = append(errs, fmt.Errorf("farewelling %q: %w", addr, err))
			}
		}

		if err := ln.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing udp %q: %w", ln.LocalAddr(), err))
		}
		<-ln.done
	})
	return errors.Join(errs...)
}

func (ln *Listener) LocalAddr() net.Addr { return ln.conn.LocalAddr() }

var ErrServerNotFound = errors.New("server not found")

// Greet says hi to dest with body attached. Greeting again resends the hi,
// which is how callers retry over a lossy link.
func (ln *Listener) Greet(dest net.Addr, body []byte) error {
	err := ln.Send(dest, hiMessage(body))
	if err != nil {
		return err
	}

	ln.mu.Lock()
	ln.servers[dest.String()] = dest
	ln.mu.Unlock()
	return nil
}

func (ln *Listener) Farewell(dest net.Addr) error {
	ln.mu.RLock()
	_, exists := ln.servers[dest.String()]
	ln.mu.RUnlock()
	if !exists {
		return ErrServerNotFound
	}

	err := ln.Send(dest, byeMessage())
	if err != nil {
		return err
	}

	ln.mu.Lock()
	delete(ln.servers, dest.String())
	ln.mu.Unlock()
	return nil
}

// Clients returns the addresses currently greeted by.
func (ln *Listener) Clients() []net.Addr {
	ln.mu.RLock()
	defer ln.mu.RUnlock()

	addrs := make([]net.Addr, 0, len(ln.clients))
	for _, addr := range ln.clients {
		addrs = append(addrs, addr)
	}
	return addrs
}

func (ln *Listener) Send(dest net.Addr, msg Message) error {
	data, err := msg.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	_, err = ln.conn.WriteTo(data, dest)
	if err != nil {
		return fmt.Errorf("writing message to udp %q: %w", dest, err)
	}

	return nil
}

const bufSize = 1500

func (ln *Listener) readLoop() {
	defer close(ln.done)
	defer close(ln.c)

	buf := make([]byte, bufSize)
	for {
		n, addr, err := ln.conn.ReadFrom(buf)
		if errors.Is(err, net.ErrClosed) {
			slog.Debug("udp listener closed", "address", ln.LocalAddr())
			return
		}
		if err != nil {
			slog.Warn("failed to read from udp", "error", err)
			continue
		}

		var msg Message
		err = msg.UnmarshalBinary(buf[:n])
		if err != nil {
			slog.Debug("failed to unmarshal message", "sender", addr, "error", err)
			continue
		}

		switch {
		case msg.Hi():
			ln.mu.Lock()
			_, exists := ln.clients[addr.String()]
			ln.clients[addr.String()] = addr
			ln.mu.Unlock()
			if !exists {
				slog.Debug("somebody just connected", "address", addr)
			}
		case msg.Bye():
			ln.mu.Lock()
			delete(ln.clients, addr.String())
			ln.mu.Unlock()
			slog.Debug("somebody just disconnected", "address", addr)
		}

		select {
		case ln.c <- Envelope{Sender: addr, Message: msg}:
		default:
			slog.Warn("udp inbox full, dropping message", "sender", addr)
		}
	}
}
