// Package matchbox is the signaling service: peers knock on /next_{N} and,
// once N of them wait, each learns its seat and every peer's address.
package matchbox

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	TypeHello = "hello"
	TypeRoom  = "room"
)

const (
	MinPlayers = 2
	MaxPlayers = 8
)

// Hello is the first and only message a peer sends.
type Hello struct {
	Type string `json:"type"`
	Addr string `json:"addr"`
}

// Room is the only message the server sends. Peers is in seat order.
type Room struct {
	Type  string   `json:"type"`
	Seat  int      `json:"seat"`
	Peers []string `json:"peers"`
}

var ErrBadHello = errors.New("bad hello")

const roomPrefix = "/next_"

func RoomPath(n int) string { return roomPrefix + strconv.Itoa(n) }

// ParseRoomPath returns N for a /next_{N} path.
func ParseRoomPath(path string) (int, bool) {
	s, ok := strings.CutPrefix(path, roomPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < MinPlayers || n > MaxPlayers {
		return 0, false
	}
	return n, true
}

const (
	helloTimeout = 10 * time.Second
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingPeriod   = 25 * time.Second
)

type waiter struct {
	conn *websocket.Conn
	addr string

	writeMu sync.Mutex
}

func (w *waiter) write(kind int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.WriteMessage(kind, data)
}

func (w *waiter) writeRoom(room Room) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.WriteJSON(room)
}

type Server struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	waiting map[int][]*waiter
}

func NewServer() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			// Game clients are not browsers; any origin may knock.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		waiting: map[int][]*waiter{},
	}
}

// Waiting returns how many peers wait for a room of n.
func (s *Server) Waiting(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting[n])
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n, ok := ParseRoomPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("failed to upgrade connection", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	addr, err := readHello(conn, r.RemoteAddr)
	if err != nil {
		slog.Warn("failed to read hello", "remote", r.RemoteAddr, "error", err)
		return
	}

	wt := &waiter{conn: conn, addr: addr}
	if room := s.join(n, wt); room != nil {
		s.open(room)
		return
	}
	slog.Info("peer waiting", "players", n, "addr", addr)

	s.wait(n, wt)
}

func readHello(conn *websocket.Conn, remote string) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(helloTimeout))
	var hello Hello
	if err := conn.ReadJSON(&hello); err != nil {
		return "", fmt.Errorf("reading hello: %w", err)
	}
	if hello.Type != TypeHello {
		return "", fmt.Errorf("message type %q: %w", hello.Type, ErrBadHello)
	}

	host, port, err := net.SplitHostPort(hello.Addr)
	if err != nil {
		return "", fmt.Errorf("addr %q: %w", hello.Addr, ErrBadHello)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		remoteHost, _, err := net.SplitHostPort(remote)
		if err != nil {
			return "", fmt.Errorf("remote addr %q: %w", remote, err)
		}
		host = remoteHost
	}
	return net.JoinHostPort(host, port), nil
}

// join queues wt and returns the full room once n peers wait.
func (s *Server) join(n int, wt *waiter) []*waiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.waiting[n] = append(s.waiting[n], wt)
	if len(s.waiting[n]) < n {
		return nil
	}
	room := s.waiting[n][:n]
	s.waiting[n] = append([]*waiter(nil), s.waiting[n][n:]...)
	return room
}

func (s *Server) leave(n int, wt *waiter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, other := range s.waiting[n] {
		if other == wt {
			s.waiting[n] = append(s.waiting[n][:i:i], s.waiting[n][i+1:]...)
			return true
		}
	}
	return false
}

func (s *Server) open(room []*waiter) {
	peers := make([]string, len(room))
	for i, wt := range room {
		peers[i] = wt.addr
	}
	slog.Info("room opened", "peers", peers)

	for seat, wt := range room {
		err := wt.writeRoom(Room{Type: TypeRoom, Seat: seat, Peers: peers})
		if err != nil {
			slog.Warn("failed to send room", "seat", seat, "addr", wt.addr, "error", err)
		}
		_ = wt.write(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room opened"))
		_ = wt.conn.Close()
	}
}

// wait blocks until the peer leaves or its room opens, pinging meanwhile.
func (s *Server) wait(n int, wt *waiter) {
	conn := wt.conn
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := wt.write(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if s.leave(n, wt) {
				slog.Info("peer left before room opened", "addr", wt.addr, "error", err)
			}
			return
		}
	}
}
