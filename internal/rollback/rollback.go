// Package rollback advances the world in lockstep with remote peers, predicting
// their missing inputs and re-simulating once the real ones arrive.
package rollback

import (
	"context"
	"errors"
	"fmt"
	"frogquest/internal/input"
	"frogquest/internal/netplay"
	"frogquest/internal/state"
	"log/slog"
)

// InputRingSize is the number of frames of input the session keeps ahead of
// the last confirmed frame.
const InputRingSize = 128

const checksumEvery = 60

type Config struct {
	NumPlayers    int
	MaxPrediction int
	FrameDelay    int
}

func DefaultConfig() Config {
	return Config{
		NumPlayers:    2,
		MaxPrediction: 12,
		FrameDelay:    2,
	}
}

func (c Config) Validate() error {
	if c.NumPlayers < 1 {
		return fmt.Errorf("num players %d: must be positive", c.NumPlayers)
	}
	if c.MaxPrediction < 0 || c.FrameDelay < 0 {
		return fmt.Errorf("max prediction %d, frame delay %d: must not be negative", c.MaxPrediction, c.FrameDelay)
	}
	if c.MaxPrediction+c.FrameDelay+2 >= InputRingSize {
		return fmt.Errorf("max prediction %d plus frame delay %d: exceeds input ring of %d",
			c.MaxPrediction, c.FrameDelay, InputRingSize)
	}
	return nil
}

type Status uint8

const (
	Idle Status = iota
	Syncing
	Running
	Disconnected
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Syncing:
		return "syncing"
	case Running:
		return "running"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Result tells the caller what one Advance did.
type Result uint8

const (
	NotStarted Result = iota
	Waiting
	Advanced
	Stalled
	Lost
)

func (r Result) String() string {
	switch r {
	case NotStarted:
		return "not started"
	case Waiting:
		return "waiting"
	case Advanced:
		return "advanced"
	case Stalled:
		return "stalled"
	case Lost:
		return "lost"
	default:
		return fmt.Sprintf("Result(%d)", uint8(r))
	}
}

// Socket is the handshake side of the transport.
type Socket interface {
	AcceptNewConnections() error
	Players() []netplay.Player
	Adapter() netplay.Adapter
}

var errNoLocalSeat = errors.New("no local seat")

type Session struct {
	cfg    Config
	status Status

	socket    Socket
	adapter   netplay.Adapter
	localSeat int

	state   state.State
	current int64

	inputs    *inputRing
	snapshots *snapshotRing

	rollbackTo int64
	rollbacks  int
	stalled    bool
	logged     int64
}

func New(cfg Config, initial state.State) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Session{
		cfg:        cfg,
		localSeat:  -1,
		state:      initial.Clone(),
		inputs:     newInputRing(InputRingSize, cfg.NumPlayers),
		snapshots:  newSnapshotRing(cfg.MaxPrediction + 2),
		rollbackTo: noRollback,
	}, nil
}

// Sync starts the handshake. Subsequent calls to Advance accept connections
// until every seat is taken.
func (s *Session) Sync(socket Socket) {
	if s.status != Idle {
		slog.Warn("sync called twice, ignoring", "status", s.status)
		return
	}
	s.socket = socket
	s.status = Syncing
}

func (s *Session) Status() Status { return s.status }

// State returns a copy of the world at CurrentFrame.
func (s *Session) State() state.State { return s.state.Clone() }

// CurrentFrame is the next frame to simulate.
func (s *Session) CurrentFrame() int64 { return s.current }

// LastConfirmedFrame is the highest frame whose input is known for every seat,
// or -1.
func (s *Session) LastConfirmedFrame() int64 { return s.inputs.confirmed() - 1 }

// LocalSeat is -1 until the handshake completes.
func (s *Session) LocalSeat() int { return s.localSeat }

func (s *Session) Rollbacks() int { return s.rollbacks }

func (s *Session) Config() Config { return s.cfg }

// Advance runs one tick with the local input sampled this tick.
func (s *Session) Advance(local input.Set) Result {
	switch s.status {
	case Idle:
		return NotStarted
	case Disconnected:
		return Lost
	case Syncing:
		if !s.sync() {
			if s.status == Disconnected {
				return Lost
			}
			return Waiting
		}
	}

	if err := s.poll(); err != nil {
		s.disconnect(err)
		return Lost
	}
	s.rollback()
	s.logChecksum()

	if gap := s.current - s.inputs.confirmed(); gap > int64(s.cfg.MaxPrediction) {
		if !s.stalled {
			slog.Debug("stalling", "frame", s.current, "confirmed", s.LastConfirmedFrame())
			s.stalled = true
		}
		return Stalled
	}
	s.stalled = false

	if err := s.recordLocal(s.current+int64(s.cfg.FrameDelay), local); err != nil {
		s.disconnect(err)
		return Lost
	}
	s.step()
	return Advanced
}

func (s *Session) sync() bool {
	if err := s.socket.AcceptNewConnections(); err != nil {
		s.disconnect(fmt.Errorf("accepting connections: %w", err))
		return false
	}
	players := s.socket.Players()
	if len(players) < s.cfg.NumPlayers {
		return false
	}

	s.localSeat = -1
	for seat, p := range players[:s.cfg.NumPlayers] {
		if p.Type == netplay.Local {
			s.localSeat = seat
			break
		}
	}
	if s.localSeat < 0 {
		s.disconnect(errNoLocalSeat)
		return false
	}

	s.adapter = s.socket.Adapter()
	s.status = Running
	slog.Info("session running", "seat", s.localSeat, "players", s.cfg.NumPlayers)

	for f := range s.cfg.FrameDelay {
		if err := s.recordLocal(int64(f), 0); err != nil {
			s.disconnect(err)
			return false
		}
	}
	return true
}

func (s *Session) disconnect(err error) {
	slog.Warn("session disconnected", "frame", s.current, "error", err)
	s.status = Disconnected
}

func (s *Session) poll() error {
	datagrams, err := s.adapter.Drain()
	for _, d := range datagrams {
		s.recordRemote(d)
	}
	if err != nil {
		return fmt.Errorf("draining transport: %w", err)
	}
	return nil
}

func (s *Session) recordRemote(d netplay.Datagram) {
	frame := int64(d.Frame)
	if d.Peer < 0 || d.Peer >= s.cfg.NumPlayers || d.Peer == s.localSeat {
		slog.Warn("dropping input from unknown seat", "datagram", d)
		return
	}
	if frame < s.inputs.contiguous(d.Peer) {
		slog.Warn("dropping input below confirmed frame", "datagram", d)
		return
	}
	if frame >= s.inputs.confirmed()+InputRingSize {
		slog.Warn("dropping input beyond input window", "datagram", d)
		return
	}

	slot := s.inputs.slot(frame)
	if slot.known[d.Peer] {
		slog.Warn("dropping duplicate input", "datagram", d)
		return
	}
	s.inputs.confirm(frame, d.Peer, d.Input)

	if frame < s.current && slot.used[d.Peer] != d.Input {
		s.rollbackTo = min(s.rollbackTo, frame)
	}
}

func (s *Session) recordLocal(frame int64, in input.Set) error {
	s.inputs.confirm(frame, s.localSeat, in)
	for seat := range s.cfg.NumPlayers {
		if seat == s.localSeat {
			continue
		}
		if err := s.adapter.SendInput(seat, uint32(frame), in); err != nil {
			return fmt.Errorf("sending input to seat %d: %w", seat, err)
		}
	}
	return nil
}

// frameInputs picks the confirmed input of every seat at frame, or the
// prediction for seats without one, and remembers what was used.
func (s *Session) frameInputs(frame int64) []input.Set {
	slot := s.inputs.slot(frame)
	inputs := make([]input.Set, s.cfg.NumPlayers)
	for seat := range inputs {
		if slot.known[seat] {
			inputs[seat] = slot.value[seat]
		} else {
			inputs[seat] = s.inputs.predict(seat)
		}
		slot.used[seat] = inputs[seat]
	}
	return inputs
}

func (s *Session) step() {
	s.snapshots.save(s.current, s.state)
	s.state = state.Step(s.state, s.frameInputs(s.current))
	s.current++
}

func (s *Session) rollback() {
	if s.rollbackTo == noRollback {
		return
	}
	to := s.rollbackTo
	s.rollbackTo = noRollback

	snapshot, ok := s.snapshots.load(to)
	if !ok {
		// Arrivals are bounded by the confirmed frame, which the stall gate
		// keeps inside the snapshot ring.
		panic(fmt.Sprintf("rollback: no snapshot for frame %d at frame %d", to, s.current))
	}

	slog.Debug("rolling back", "from", s.current, "to", to)
	s.rollbacks++
	end := s.current
	s.state = snapshot
	s.current = to
	for s.current < end {
		s.step()
	}
}

func (s *Session) logChecksum() {
	c := s.inputs.confirmed()
	c -= c % checksumEvery
	if c <= s.logged {
		return
	}
	s.logged = c

	var st state.State
	if c == s.current {
		st = s.state
	} else if snapshot, ok := s.snapshots.load(c); ok {
		st = snapshot
	} else {
		return
	}
	slog.Debug("confirmed checksum", "frame", c, "checksum", fmt.Sprintf("%016x", st.Checksum()))
}

// Close releases the transport. The session is unusable afterwards.
func (s *Session) Close(ctx context.Context) error {
	s.status = Disconnected
	if s.adapter == nil {
		return nil
	}
	if err := s.adapter.Close(ctx); err != nil {
		return fmt.Errorf("closing adapter: %w", err)
	}
	return nil
}
