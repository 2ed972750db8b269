package rollback_test

import (
	"context"
	"frogquest/internal/input"
	"frogquest/internal/netplay"
	"frogquest/internal/rollback"
	"frogquest/internal/state"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSocket struct {
	seat      int
	adapter   netplay.Adapter
	accepts   int
	readyFrom int
}

func (s *fakeSocket) AcceptNewConnections() error {
	s.accepts++
	return nil
}

func (s *fakeSocket) Players() []netplay.Player {
	if s.accepts < s.readyFrom {
		return nil
	}
	players := []netplay.Player{{Type: netplay.Remote}, {Type: netplay.Remote}}
	players[s.seat].Type = netplay.Local
	return players
}

func (s *fakeSocket) Adapter() netplay.Adapter { return s.adapter }

// scriptAdapter hands out whatever the test queued.
type scriptAdapter struct {
	queue []netplay.Datagram
	sent  []netplay.Message
	err   error
}

func (a *scriptAdapter) push(peer int, frame uint32, in input.Set) {
	a.queue = append(a.queue, netplay.Datagram{Peer: peer, Message: netplay.Message{Frame: frame, Input: in}})
}

func (a *scriptAdapter) SendInput(peer int, frame uint32, in input.Set) error {
	a.sent = append(a.sent, netplay.Message{Frame: frame, Input: in})
	return nil
}

func (a *scriptAdapter) Drain() ([]netplay.Datagram, error) {
	q := a.queue
	a.queue = nil
	return q, a.err
}

func (a *scriptAdapter) Close(context.Context) error { return nil }

func newSession(t *testing.T, cfg rollback.Config, seat int, adapter netplay.Adapter) *rollback.Session {
	t.Helper()
	s, err := rollback.New(cfg, state.New(cfg.NumPlayers))
	require.NoError(t, err)
	s.Sync(&fakeSocket{seat: seat, adapter: adapter})
	return s
}

func authoritative(frames int64, inputs [2]map[int64]input.Set) state.State {
	s := state.New(2)
	for f := range frames {
		s = state.Step(s, []input.Set{inputs[0][f], inputs[1][f]})
	}
	return s
}

var (
	l = input.SetOf(input.Left)
	r = input.SetOf(input.Right)
)

func TestSession_rollbackOnLateInput(t *testing.T) {
	cfg := rollback.DefaultConfig()
	cfg.FrameDelay = 0
	remote := &scriptAdapter{}
	s := newSession(t, cfg, 0, remote)

	require.Equal(t, rollback.Advanced, s.Advance(l))
	remote.push(1, 2, r)
	require.Equal(t, rollback.Advanced, s.Advance(l))
	require.Equal(t, rollback.Advanced, s.Advance(r))
	assert.Equal(t, int64(-1), s.LastConfirmedFrame())
	assert.Zero(t, s.Rollbacks())

	inputs := [2]map[int64]input.Set{
		{0: l, 1: l, 2: r},
		{0: l, 1: l, 2: r},
	}
	assert.NotEqual(t, authoritative(3, inputs), s.State(), "frames 0 and 1 were mispredicted")

	remote.push(1, 0, l)
	remote.push(1, 1, l)
	require.Equal(t, rollback.Advanced, s.Advance(0))

	assert.Equal(t, 1, s.Rollbacks())
	assert.Equal(t, int64(2), s.LastConfirmedFrame())
	assert.Equal(t, int64(4), s.CurrentFrame())

	// Frame 3 predicts the remote repeats its last input.
	inputs[0][3] = 0
	inputs[1][3] = r
	assert.Equal(t, authoritative(4, inputs), s.State())
}

func TestSession_stallsAfterMaxPrediction(t *testing.T) {
	cfg := rollback.DefaultConfig()
	remote := &scriptAdapter{}
	s := newSession(t, cfg, 0, remote)

	var advanced int
	for range 30 {
		switch res := s.Advance(l); res {
		case rollback.Advanced:
			advanced++
		case rollback.Stalled:
		default:
			t.Fatalf("unexpected result %v", res)
		}
	}
	assert.Equal(t, cfg.MaxPrediction+1, advanced)
	assert.Equal(t, int64(13), s.CurrentFrame())
	assert.Equal(t, uint64(13), s.State().Frame)

	// Stalled ticks send nothing: delay frames plus one per advanced frame.
	assert.Len(t, remote.sent, cfg.FrameDelay+advanced)

	remote.push(1, 0, 0)
	assert.Equal(t, rollback.Advanced, s.Advance(l))
	assert.Equal(t, int64(14), s.CurrentFrame())
	assert.Equal(t, rollback.Stalled, s.Advance(l))

	for f := uint32(1); f < 14; f++ {
		remote.push(1, f, 0)
	}
	assert.Equal(t, rollback.Advanced, s.Advance(l))
	assert.Equal(t, int64(15), s.CurrentFrame())
	assert.Equal(t, uint64(15), s.State().Frame)
	assert.Zero(t, s.Rollbacks(), "neutral predictions were right")
}

func TestSession_dropsDuplicates(t *testing.T) {
	cfg := rollback.DefaultConfig()
	remote := &scriptAdapter{}
	s := newSession(t, cfg, 0, remote)

	remote.push(1, 0, l)
	remote.push(1, 0, r)
	remote.push(1, 1, r)
	remote.push(5, 1, r)
	require.Equal(t, rollback.Advanced, s.Advance(0))
	assert.Equal(t, int64(1), s.LastConfirmedFrame())

	remote.push(1, 0, r)
	require.Equal(t, rollback.Advanced, s.Advance(0))
	assert.Equal(t, int64(1), s.LastConfirmedFrame())

	inputs := [2]map[int64]input.Set{{}, {0: l, 1: r}}
	assert.Equal(t, authoritative(2, inputs), s.State())
}

func TestSession_disconnect(t *testing.T) {
	remote := &scriptAdapter{}
	s := newSession(t, rollback.DefaultConfig(), 1, remote)

	require.Equal(t, rollback.Advanced, s.Advance(0))
	assert.Equal(t, 1, s.LocalSeat())

	remote.err = netplay.ErrPeerDisconnected
	assert.Equal(t, rollback.Lost, s.Advance(0))
	assert.Equal(t, rollback.Disconnected, s.Status())
	assert.Equal(t, rollback.Lost, s.Advance(0))
	assert.Equal(t, int64(1), s.CurrentFrame(), "no simulation once disconnected")
}

func TestSession_syncing(t *testing.T) {
	s, err := rollback.New(rollback.DefaultConfig(), state.New(2))
	require.NoError(t, err)
	assert.Equal(t, rollback.NotStarted, s.Advance(0))
	assert.Equal(t, rollback.Idle, s.Status())

	socket := &fakeSocket{seat: 0, adapter: &scriptAdapter{}, readyFrom: 3}
	s.Sync(socket)
	assert.Equal(t, rollback.Waiting, s.Advance(0))
	assert.Equal(t, rollback.Waiting, s.Advance(0))
	assert.Equal(t, rollback.Syncing, s.Status())
	assert.Equal(t, -1, s.LocalSeat())

	assert.Equal(t, rollback.Advanced, s.Advance(0))
	assert.Equal(t, rollback.Running, s.Status())
	assert.Equal(t, 3, socket.accepts)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, rollback.DefaultConfig().Validate())

	cfg := rollback.DefaultConfig()
	cfg.MaxPrediction = 200
	assert.Error(t, cfg.Validate())

	_, err := rollback.New(rollback.Config{}, state.New(0))
	assert.Error(t, err)
}

// TestSession_converges plays two sessions against each other over a lossy
// looking link and checks every fully confirmed state against a plain replay.
func TestSession_converges(t *testing.T) {
	cfg := rollback.DefaultConfig()
	rng := rand.New(rand.NewPCG(7, 11))

	a, b := netplay.NewLoopbackPair()
	links := [2]*netplay.Loopback{a, b}
	sessions := [2]*rollback.Session{
		newSession(t, cfg, 0, a),
		newSession(t, cfg, 1, b),
	}
	var inputs [2]map[int64]input.Set
	lastConfirmed := [2]int64{-1, -1}
	for seat := range inputs {
		inputs[seat] = map[int64]input.Set{}
		for f := range int64(cfg.FrameDelay) {
			inputs[seat][f] = 0
		}
	}

	var checked int
	for tick := range 600 {
		for _, link := range links {
			switch {
			case tick >= 500:
				link.Release(false)
			case rng.IntN(10) == 0:
				link.Hold()
			case rng.IntN(4) == 0:
				link.Release(rng.IntN(2) == 0)
			}
		}

		for seat, s := range sessions {
			in := input.SetFromByte(byte(rng.Uint32()))
			if tick >= 500 {
				in = 0
			}

			res := s.Advance(in)
			require.NotEqual(t, rollback.Lost, res)

			if res == rollback.Advanced {
				frame := s.CurrentFrame() - 1 + int64(cfg.FrameDelay)
				inputs[seat][frame] = in
				// The gap before the step was within the window.
				require.LessOrEqual(t, s.CurrentFrame()-1-(s.LastConfirmedFrame()+1), int64(cfg.MaxPrediction))
			}

			require.GreaterOrEqual(t, s.LastConfirmedFrame(), lastConfirmed[seat])
			lastConfirmed[seat] = s.LastConfirmedFrame()

			if s.LastConfirmedFrame()+1 >= s.CurrentFrame() {
				require.Equal(t, authoritative(s.CurrentFrame(), inputs), s.State(), "seat %d tick %d", seat, tick)
				checked++
			}
		}
	}

	assert.Positive(t, checked)
	assert.Positive(t, sessions[0].Rollbacks()+sessions[1].Rollbacks())
	assert.Greater(t, sessions[0].CurrentFrame(), int64(300))
	for _, s := range sessions {
		require.NoError(t, s.Close(context.Background()))
	}
}
