package netplay

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"frogquest/internal/input"
	"frogquest/internal/matchbox"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/xtaci/kcp-go/v5"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/sync/errgroup"
)

const (
	kcpSalt         = "frog quest battle"
	kcpDataShards   = 10
	kcpParityShards = 3

	acceptPoll  = 500 * time.Millisecond
	inboxSize   = 1024
	keepaliveBy = 4 // keepalives per peer timeout
)

func kcpBlock(passphrase string) (kcp.BlockCrypt, error) {
	key := pbkdf2.Key([]byte(passphrase), []byte(kcpSalt), 1024, 32, sha1.New)
	block, err := kcp.NewAESBlockCrypt(key)
	if err != nil {
		return nil, fmt.Errorf("creating block crypt: %w", err)
	}
	return block, nil
}

func tune(sess *kcp.UDPSession) {
	sess.SetStreamMode(true)
	sess.SetWriteDelay(false)
	sess.SetNoDelay(1, 10, 2, 1)
	sess.SetWindowSize(128, 128)
	sess.SetACKNoDelay(true)
}

// kcpTransport is the reliable adapter: one encrypted KCP stream per peer.
type kcpTransport struct {
	ln      *kcp.Listener
	block   kcp.BlockCrypt
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	g      *errgroup.Group

	mu       sync.Mutex
	sessions map[int]*kcp.UDPSession

	inbox chan Datagram
	errc  chan error

	// main thread only
	last     map[int]Message
	lastSend map[int]time.Time
	failed   error

	closeOnce sync.Once
	closeErr  error
}

func listenKCP(addr, passphrase string, timeout time.Duration) (*kcpTransport, error) {
	block, err := kcpBlock(passphrase)
	if err != nil {
		return nil, err
	}
	ln, err := kcp.ListenWithOptions(addr, block, kcpDataShards, kcpParityShards)
	if err != nil {
		return nil, fmt.Errorf("binding to kcp %q: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	return &kcpTransport{
		ln:       ln,
		block:    block,
		timeout:  timeout,
		ctx:      ctx,
		cancel:   cancel,
		g:        g,
		sessions: map[int]*kcp.UDPSession{},
		inbox:    make(chan Datagram, inboxSize),
		errc:     make(chan error, 1),
		last:     map[int]Message{},
		lastSend: map[int]time.Time{},
	}, nil
}

func (t *kcpTransport) LocalAddr() net.Addr { return t.ln.Addr() }

// establish dials every lower seat and accepts every higher one.
func (t *kcpTransport) establish(ctx context.Context, room matchbox.Room, connected chan<- int) error {
	for seat := range room.Seat {
		sess, err := kcp.DialWithOptions(room.Peers[seat], t.block, kcpDataShards, kcpParityShards)
		if err != nil {
			return fmt.Errorf("dialing seat %d at %q: %w", seat, room.Peers[seat], err)
		}
		tune(sess)
		data, _ := hello{Seat: uint8(room.Seat)}.MarshalBinary()
		if _, err := sess.Write(data); err != nil {
			sess.Close()
			return fmt.Errorf("greeting seat %d: %w", seat, err)
		}
		t.add(seat, sess)
		connected <- seat
	}

	for want := len(room.Peers) - room.Seat - 1; want > 0; {
		if err := ctx.Err(); err != nil {
			return err
		}

		_ = t.ln.SetReadDeadline(time.Now().Add(acceptPoll))
		sess, err := t.ln.AcceptKCP()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accepting kcp: %w", err)
		}
		tune(sess)

		h, err := readHello(sess, t.timeout)
		if err != nil {
			slog.Warn("failed to read hello", "remote", sess.RemoteAddr(), "error", err)
			sess.Close()
			continue
		}
		seat := int(h.Seat)
		if seat <= room.Seat || seat >= len(room.Peers) || t.has(seat) {
			slog.Warn("dropping connection with unexpected seat", "remote", sess.RemoteAddr(), "seat", seat)
			sess.Close()
			continue
		}
		t.add(seat, sess)
		connected <- seat
		want--
	}
	return nil
}

func (t *kcpTransport) has(seat int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sessions[seat]
	return ok
}

func (t *kcpTransport) add(seat int, sess *kcp.UDPSession) {
	t.mu.Lock()
	t.sessions[seat] = sess
	t.mu.Unlock()

	slog.Debug("peer connected", "seat", seat, "remote", sess.RemoteAddr())
	t.g.Go(func() error {
		t.pump(seat, sess)
		return nil
	})
}

func (t *kcpTransport) pump(seat int, sess *kcp.UDPSession) {
	filter := newFrameFilter()
	buf := make([]byte, MessageSize)
	for {
		_ = sess.SetReadDeadline(time.Now().Add(t.timeout))
		if _, err := io.ReadFull(sess, buf); err != nil {
			if t.ctx.Err() == nil {
				t.fail(fmt.Errorf("seat %d: %w: %w", seat, ErrPeerDisconnected, err))
			}
			return
		}

		var msg Message
		_ = msg.UnmarshalBinary(buf)
		if !filter.Pass(msg.Frame) {
			continue
		}

		select {
		case t.inbox <- Datagram{Peer: seat, Message: msg}:
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *kcpTransport) fail(err error) {
	select {
	case t.errc <- err:
	default:
	}
}

func (t *kcpTransport) session(peer int) (*kcp.UDPSession, error) {
	if t.ctx.Err() != nil {
		return nil, ErrClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.sessions[peer]
	if !ok {
		return nil, fmt.Errorf("seat %d: not connected", peer)
	}
	return sess, nil
}

func (t *kcpTransport) write(peer int, msg Message) error {
	sess, err := t.session(peer)
	if err != nil {
		return err
	}
	data, err := msg.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	if _, err := sess.Write(data); err != nil {
		return fmt.Errorf("writing to seat %d: %w: %w", peer, ErrPeerDisconnected, err)
	}
	t.last[peer] = msg
	t.lastSend[peer] = time.Now()
	return nil
}

func (t *kcpTransport) SendInput(peer int, frame uint32, in input.Set) error {
	return t.write(peer, Message{Frame: frame, Input: in})
}

func (t *kcpTransport) Drain() ([]Datagram, error) {
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

	// A stalled session sends nothing, so repeat the last input to keep
	// the peer's read deadline from firing. The peer filters the repeat.
	for peer, msg := range t.last {
		if time.Since(t.lastSend[peer]) < t.timeout/keepaliveBy {
			continue
		}
		if err := t.write(peer, msg); err != nil {
			t.failed = err
			return ds, err
		}
	}
	return ds, nil
}

func (t *kcpTransport) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		t.cancel()

		var errs []error
		t.mu.Lock()
		for seat, sess := range t.sessions {
			if err := sess.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing seat %d: %w", seat, err))
			}
		}
		t.mu.Unlock()
		if err := t.ln.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing kcp listener: %w", err))
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
