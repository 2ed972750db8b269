package netplay

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"frogquest/internal/input"
	"frogquest/internal/jitter"
	"frogquest/internal/matchbox"
	"frogquest/internal/udp"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	labelInputs byte = 1 + iota
	labelAck
)

const (
	greetInterval  = 200 * time.Millisecond
	resendInterval = 100 * time.Millisecond
	queueSize      = 64
)

// udpTransport is the unreliable adapter. Every send carries all inputs the
// peer has not acknowledged yet; the peer acks the first frame it is missing.
type udpTransport struct {
	ln      *udp.Listener
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	g      *errgroup.Group

	mu        sync.Mutex
	seat      int
	expected  map[int]net.Addr // from the room
	peers     map[int]net.Addr // said hi
	seats     map[string]int
	lastSeen  map[int]time.Time
	pending   map[int]*jitter.Buffer
	connected chan<- int

	inbox chan Datagram
	errc  chan error

	// main thread only
	lastResend time.Time
	failed     error

	closeOnce sync.Once
	closeErr  error
}

func listenUDP(addr string, timeout time.Duration) (*udpTransport, error) {
	ln, err := udp.Listen(addr)
	if err != nil {
		return nil, err
	}

	mux := udp.NewMux(ln)
	control := mux.Subscribe(udp.LabelControl, queueSize)
	inputs := mux.Subscribe(labelInputs, queueSize)
	acks := mux.Subscribe(labelAck, queueSize)

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	t := &udpTransport{
		ln:       ln,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
		g:        g,
		seat:     -1,
		peers:    map[int]net.Addr{},
		seats:    map[string]int{},
		lastSeen: map[int]time.Time{},
		pending:  map[int]*jitter.Buffer{},
		inbox:    make(chan Datagram, inboxSize),
		errc:     make(chan error, 1),
	}

	g.Go(func() error {
		mux.Run(ctx)
		return nil
	})
	g.Go(func() error {
		for envel := range control {
			t.handleControl(envel)
		}
		return nil
	})
	g.Go(func() error {
		filters := map[int]*frameFilter{}
		for envel := range inputs {
			t.handleInputs(envel, filters)
		}
		return nil
	})
	g.Go(func() error {
		for envel := range acks {
			t.handleAck(envel)
		}
		return nil
	})

	return t, nil
}

func (t *udpTransport) LocalAddr() net.Addr { return t.ln.LocalAddr() }

// establish greets every other seat until each has greeted back.
func (t *udpTransport) establish(ctx context.Context, room matchbox.Room, connected chan<- int) error {
	expected := map[int]net.Addr{}
	for seat, peer := range room.Peers {
		if seat == room.Seat {
			continue
		}
		addr, err := net.ResolveUDPAddr("udp", peer)
		if err != nil {
			return fmt.Errorf("resolving seat %d at %q: %w", seat, peer, err)
		}
		expected[seat] = addr
	}

	t.mu.Lock()
	t.seat = room.Seat
	t.expected = expected
	t.connected = connected
	t.mu.Unlock()

	ticker := time.NewTicker(greetInterval)
	defer ticker.Stop()
	for {
		missing := t.missing()
		if len(missing) == 0 {
			return nil
		}
		for seat, addr := range missing {
			if err := t.ln.Greet(addr, t.helloBody(false)); err != nil {
				slog.Warn("failed to greet peer", "seat", seat, "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *udpTransport) missing() map[int]net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	missing := map[int]net.Addr{}
	for seat, addr := range t.expected {
		if _, ok := t.peers[seat]; !ok {
			missing[seat] = addr
		}
	}
	return missing
}

// helloBody is the seat hello plus whether it answers a hello.
func (t *udpTransport) helloBody(reply bool) []byte {
	t.mu.Lock()
	seat := t.seat
	t.mu.Unlock()

	body, _ := hello{Seat: uint8(seat)}.MarshalBinary()
	if reply {
		return append(body, 1)
	}
	return append(body, 0)
}

func (t *udpTransport) handleControl(envel udp.Envelope) {
	if envel.Bye() {
		if seat, ok := t.seatOf(envel.Sender); ok {
			t.fail(fmt.Errorf("seat %d said bye: %w", seat, ErrPeerDisconnected))
		}
		return
	}

	var h hello
	if err := h.UnmarshalBinary(envel.Body); err != nil {
		slog.Warn("failed to read hello", "sender", envel.Sender, "error", err)
		return
	}
	reply := len(envel.Body) > helloSize && envel.Body[helloSize] == 1
	seat := int(h.Seat)

	t.mu.Lock()
	if _, ok := t.expected[seat]; !ok {
		t.mu.Unlock()
		slog.Debug("ignoring hello from unexpected seat", "sender", envel.Sender, "seat", seat)
		return
	}
	_, known := t.peers[seat]
	if !known {
		t.peers[seat] = envel.Sender
		t.seats[envel.Sender.String()] = seat
		t.pending[seat] = &jitter.Buffer{}
	}
	t.lastSeen[seat] = time.Now()
	connected := t.connected
	t.mu.Unlock()

	if !known {
		slog.Debug("peer connected", "seat", seat, "remote", envel.Sender)
		connected <- seat
	}
	if !reply {
		if err := t.ln.Greet(envel.Sender, t.helloBody(true)); err != nil {
			slog.Warn("failed to answer hello", "seat", seat, "error", err)
		}
	}
}

func (t *udpTransport) seatOf(addr net.Addr) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	seat, ok := t.seats[addr.String()]
	if ok {
		t.lastSeen[seat] = time.Now()
	}
	return seat, ok
}

func (t *udpTransport) handleInputs(envel udp.Envelope, filters map[int]*frameFilter) {
	seat, ok := t.seatOf(envel.Sender)
	if !ok {
		slog.Warn("dropping inputs from unknown sender", "sender", envel.Sender)
		return
	}

	var buf jitter.Buffer
	if err := buf.UnmarshalBinary(envel.Body); err != nil {
		slog.Warn("failed to unmarshal inputs", "seat", seat, "error", err)
		return
	}

	filter, ok := filters[seat]
	if !ok {
		filter = newFrameFilter()
		filters[seat] = filter
	}
	for frame, in := range buf.All() {
		if !filter.Pass(frame) {
			continue
		}
		select {
		case t.inbox <- Datagram{Peer: seat, Message: Message{Frame: frame, Input: in}}:
		case <-t.ctx.Done():
			return
		}
	}

	ack := binary.LittleEndian.AppendUint32(nil, filter.Contiguous())
	if err := t.ln.Send(envel.Sender, udp.NewMessage(labelAck, ack)); err != nil {
		slog.Warn("failed to send ack", "seat", seat, "error", err)
	}
}

func (t *udpTransport) handleAck(envel udp.Envelope) {
	seat, ok := t.seatOf(envel.Sender)
	if !ok {
		return
	}
	if len(envel.Body) < 4 {
		slog.Warn("dropping short ack", "seat", seat)
		return
	}
	next := binary.LittleEndian.Uint32(envel.Body)
	if next == 0 {
		return
	}

	t.mu.Lock()
	t.pending[seat].DiscardUntil(next - 1)
	t.mu.Unlock()
}

func (t *udpTransport) fail(err error) {
	select {
	case t.errc <- err:
	default:
	}
}

// flush sends every pending input of peer in one datagram.
func (t *udpTransport) flush(peer int) error {
	t.mu.Lock()
	addr, ok := t.peers[peer]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("seat %d: not connected", peer)
	}
	body, err := t.pending[peer].MarshalBinary()
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshaling inputs: %w", err)
	}
	return t.ln.Send(addr, udp.NewMessage(labelInputs, body))
}

func (t *udpTransport) SendInput(peer int, frame uint32, in input.Set) error {
	if t.ctx.Err() != nil {
		return ErrClosed
	}

	t.mu.Lock()
	buf, ok := t.pending[peer]
	var err error
	if ok {
		err = buf.Put(frame, in)
	}
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("seat %d: not connected", peer)
	}
	if err != nil {
		return fmt.Errorf("queueing input for seat %d: %w", peer, err)
	}
	return t.flush(peer)
}

func (t *udpTransport) Drain() ([]Datagram, error) {
	if t.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if t.failed != nil {
		return nil, t.failed
	}

	var ds []Datagram
	for {
		select {
		case d := <-t.inbox:
			ds = append(ds, d)
			continue
		case err := <-t.errc:
			t.failed = err
			return ds, err
		default:
		}
		break
	}

	t.mu.Lock()
	var silent []int
	var peers []int
	for seat := range t.peers {
		peers = append(peers, seat)
		if time.Since(t.lastSeen[seat]) > t.timeout {
			silent = append(silent, seat)
		}
	}
	t.mu.Unlock()
	if len(silent) > 0 {
		t.failed = fmt.Errorf("seats %v silent for %v: %w", silent, t.timeout, ErrPeerDisconnected)
		return ds, t.failed
	}

	// Resend unacknowledged inputs even while the session is stalled; an
	// empty resend doubles as keepalive.
	if time.Since(t.lastResend) >= resendInterval {
		t.lastResend = time.Now()
		for _, seat := range peers {
			if err := t.flush(seat); err != nil {
				slog.Warn("failed to resend inputs", "seat", seat, "error", err)
			}
		}
	}
	return ds, nil
}

func (t *udpTransport) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		t.cancel()

		var errs []error
		if err := t.ln.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing udp listener: %w", err))
		}

		done := make(chan error, 1)
		go func() { done <- t.g.Wait() }()
		select {
		case err := <-done:
			errs = append(errs, err)
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
		t.closeErr = errors.Join(errs...)
	})
	return t.closeErr
}
