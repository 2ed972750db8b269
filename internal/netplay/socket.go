package netplay

import (
	"context"
	"errors"
	"fmt"
	"frogquest/internal/matchbox"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

type Transport string

const (
	TransportKCP Transport = "kcp"
	TransportUDP Transport = "udp"
)

func ParseTransport(s string) (Transport, error) {
	switch t := Transport(strings.ToLower(s)); t {
	case TransportKCP, TransportUDP:
		return t, nil
	default:
		return "", fmt.Errorf("transport %q: want %q or %q", s, TransportKCP, TransportUDP)
	}
}

type Config struct {
	// SignalURL is the signaling base; /next_{Players} is appended.
	SignalURL string
	Players   int
	// ListenAddr is where the peer transport binds; AdvertiseAddr is what
	// other peers are told to reach. An empty host is filled in by the
	// signaling server.
	ListenAddr    string
	AdvertiseAddr string
	Transport     Transport
	Passphrase    string
	PeerTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		SignalURL:   "ws://127.0.0.1:3536",
		Players:     2,
		ListenAddr:  ":0",
		Transport:   TransportKCP,
		Passphrase:  "frog quest battle",
		PeerTimeout: 10 * time.Second,
	}
}

type transport interface {
	Adapter
	LocalAddr() net.Addr
	establish(ctx context.Context, room matchbox.Room, connected chan<- int) error
}

// Socket finds the other players through the signaling server and connects
// to each of them. It never blocks the caller: AcceptNewConnections only
// collects what the background handshake has finished.
type Socket struct {
	cfg       Config
	addr      string
	transport transport

	cancel context.CancelFunc
	g      *errgroup.Group

	roomc     chan matchbox.Room
	connected chan int
	errc      chan error

	room        *matchbox.Room
	established []bool
	err         error

	closeOnce sync.Once
	closeErr  error
}

// Open binds the peer transport and starts the handshake in the background.
func Open(ctx context.Context, cfg Config) (*Socket, error) {
	if cfg.Players < matchbox.MinPlayers || cfg.Players > matchbox.MaxPlayers {
		return nil, fmt.Errorf("%d players: want %d to %d", cfg.Players, matchbox.MinPlayers, matchbox.MaxPlayers)
	}
	if cfg.PeerTimeout <= 0 {
		return nil, fmt.Errorf("peer timeout %v: must be positive", cfg.PeerTimeout)
	}

	var tr transport
	var err error
	switch cfg.Transport {
	case TransportKCP, "":
		tr, err = listenKCP(cfg.ListenAddr, cfg.Passphrase, cfg.PeerTimeout)
	case TransportUDP:
		tr, err = listenUDP(cfg.ListenAddr, cfg.PeerTimeout)
	default:
		return nil, fmt.Errorf("transport %q: unknown", cfg.Transport)
	}
	if err != nil {
		return nil, err
	}

	addr := cfg.AdvertiseAddr
	if addr == "" {
		addr = tr.LocalAddr().String()
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	s := &Socket{
		cfg:       cfg,
		addr:      addr,
		transport: tr,
		cancel:    cancel,
		g:         g,
		roomc:     make(chan matchbox.Room, 1),
		connected: make(chan int, cfg.Players),
		errc:      make(chan error, 1),
	}
	g.Go(func() error {
		if err := s.handshake(ctx); err != nil && ctx.Err() == nil {
			s.errc <- err
		}
		return nil
	})

	slog.Info("socket open", "transport", cfg.Transport, "addr", addr)
	return s, nil
}

func (s *Socket) handshake(ctx context.Context) error {
	room, err := s.signal(ctx)
	if err != nil {
		return err
	}
	s.roomc <- room
	slog.Info("room assigned", "seat", room.Seat, "peers", room.Peers)

	// Every peer must connect within one peer timeout of the room opening.
	ectx, cancel := context.WithTimeout(ctx, s.cfg.PeerTimeout)
	defer cancel()
	err = s.transport.establish(ectx, room, s.connected)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("connecting peers within %v: %w", s.cfg.PeerTimeout, ErrPeerDisconnected)
	}
	if err != nil {
		return fmt.Errorf("connecting peers: %w", err)
	}
	return nil
}

func (s *Socket) signal(ctx context.Context) (matchbox.Room, error) {
	url := strings.TrimSuffix(s.cfg.SignalURL, "/") + matchbox.RoomPath(s.cfg.Players)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return matchbox.Room{}, fmt.Errorf("dialing signaling server %q: %w", url, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	err = conn.WriteJSON(matchbox.Hello{Type: matchbox.TypeHello, Addr: s.addr})
	if err != nil {
		return matchbox.Room{}, fmt.Errorf("sending hello: %w", err)
	}

	var room matchbox.Room
	if err := conn.ReadJSON(&room); err != nil {
		return matchbox.Room{}, fmt.Errorf("waiting for room: %w", err)
	}
	if room.Type != matchbox.TypeRoom || len(room.Peers) != s.cfg.Players ||
		room.Seat < 0 || room.Seat >= len(room.Peers) {
		return matchbox.Room{}, fmt.Errorf("room %+v: unexpected", room)
	}
	return room, nil
}

// AcceptNewConnections moves finished handshake steps into the player list.
// The room is always taken before any connected seat, since the handshake
// sends it first.
func (s *Socket) AcceptNewConnections() error {
	if s.err != nil {
		return s.err
	}
	if s.room == nil {
		select {
		case room := <-s.roomc:
			s.room = &room
			s.established = make([]bool, len(room.Peers))
			s.established[room.Seat] = true
		default:
		}
	}
	if s.room != nil {
	drain:
		for {
			select {
			case seat := <-s.connected:
				s.established[seat] = true
			default:
				break drain
			}
		}
	}

	select {
	case err := <-s.errc:
		s.err = err
		return err
	default:
		return nil
	}
}

// Matched reports whether the signaling server has assigned a room.
func (s *Socket) Matched() bool { return s.room != nil }

// LocalSeat is -1 until matched.
func (s *Socket) LocalSeat() int {
	if s.room == nil {
		return -1
	}
	return s.room.Seat
}

// Players returns the seats known so far in seat order: the prefix of seats
// that are local or connected.
func (s *Socket) Players() []Player {
	if s.room == nil {
		return nil
	}
	var players []Player
	for seat, ok := range s.established {
		if !ok {
			break
		}
		typ := Remote
		if seat == s.room.Seat {
			typ = Local
		}
		players = append(players, Player{Type: typ, Addr: s.room.Peers[seat]})
	}
	return players
}

func (s *Socket) Adapter() Adapter { return s.transport }

func (s *Socket) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.cancel()
		var errs []error
		if err := s.transport.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("closing transport: %w", err))
		}
		if err := s.g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
