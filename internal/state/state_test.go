package state_test

import (
	"frogquest/internal/geom"
	"frogquest/internal/input"
	"frogquest/internal/render"
	"frogquest/internal/state"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func single(p state.Player, frame uint64) state.State {
	return state.State{Frame: frame, Players: []state.Player{p}}
}

func stepN(s state.State, n int, in input.Set) state.State {
	for range n {
		s = state.Step(s, []input.Set{in})
	}
	return s
}

func TestStep_gravity(t *testing.T) {
	s := state.New(1)
	require.Equal(t, geom.R(10, 10, 10, 10), s.Players[0].Bounds)

	s = stepN(s, 20, 0)
	assert.Equal(t, uint64(20), s.Frame)
	assert.Equal(t, int32(1), s.Players[0].Velocity.Y)

	s = stepN(s, 20, 0)
	assert.Equal(t, int32(2), s.Players[0].Velocity.Y)
}

func TestStep_flap(t *testing.T) {
	s := single(state.Player{Bounds: geom.R(10, 100, 10, 10)}, 10)
	flap := input.SetOf(input.Primary)

	s = state.Step(s, []input.Set{flap})
	assert.Equal(t, int32(-2), s.Players[0].Velocity.Y)
	assert.Equal(t, uint64(10), s.Players[0].LastFlapFrame)

	s.Frame = 12
	s = state.Step(s, []input.Set{flap})
	assert.Equal(t, int32(-2), s.Players[0].Velocity.Y, "cooldown")
	assert.Equal(t, uint64(10), s.Players[0].LastFlapFrame)

	s.Frame = 16
	s = state.Step(s, []input.Set{flap})
	assert.Equal(t, int32(-4), s.Players[0].Velocity.Y)
	assert.Equal(t, uint64(16), s.Players[0].LastFlapFrame)
}

func TestStep_ceiling(t *testing.T) {
	s := single(state.Player{
		Bounds:   geom.R(10, 1, 10, 10),
		Velocity: geom.Vec(0, -4),
	}, 1)

	s = state.Step(s, nil)
	assert.Equal(t, geom.Pt(10, 0), s.Players[0].Bounds.Origin)
	assert.Equal(t, int32(2), s.Players[0].Velocity.Y)
}

func TestStep_ceilingTruncates(t *testing.T) {
	s := single(state.Player{
		Bounds:   geom.R(10, 2, 10, 10),
		Velocity: geom.Vec(0, -5),
	}, 1)

	s = state.Step(s, nil)
	assert.Equal(t, int32(2), s.Players[0].Velocity.Y)
}

func TestStep_wrap(t *testing.T) {
	s := single(state.Player{Bounds: geom.R(316, 50, 10, 10)}, 1)

	s = state.Step(s, nil)
	assert.Equal(t, int32(-9), s.Players[0].Bounds.Origin.X)

	s = state.Step(s, nil)
	assert.Equal(t, int32(-9), s.Players[0].Bounds.Origin.X, "back in range")

	s = single(state.Player{Bounds: geom.R(-11, 50, 10, 10)}, 1)
	s = state.Step(s, nil)
	assert.Equal(t, int32(-11+315+10), s.Players[0].Bounds.Origin.X)
}

func TestStep_groundAndFriction(t *testing.T) {
	s := single(state.Player{
		Bounds:   geom.R(10, 130, 10, 10),
		Velocity: geom.Vec(2, 5),
	}, 19)

	s = state.Step(s, nil)
	p := s.Players[0]
	assert.Equal(t, int32(133), p.Bounds.Origin.Y)
	assert.Zero(t, p.Velocity.Y)
	assert.True(t, p.OnGround())
	assert.Equal(t, int32(2), p.Velocity.X)

	// Frame 20 is a physics frame: friction, no gravity.
	s = state.Step(s, nil)
	p = s.Players[0]
	assert.Equal(t, int32(1), p.Velocity.X)
	assert.Zero(t, p.Velocity.Y)
}

func TestStep_clamp(t *testing.T) {
	s := state.New(1)
	s = stepN(s, 5, input.SetOf(input.Right))
	assert.Equal(t, int32(2), s.Players[0].Velocity.X)

	s = stepN(s, 7, input.SetOf(input.Left))
	assert.Equal(t, int32(-2), s.Players[0].Velocity.X)
}

func TestStep_pure(t *testing.T) {
	s := state.New(2)
	inputs := []input.Set{input.SetOf(input.Right), input.SetOf(input.Left)}
	before := s.Clone()

	a := state.Step(s, inputs)
	b := state.Step(s, inputs)
	assert.Equal(t, a, b)
	assert.Equal(t, before, s, "step does not modify its argument")
}

func randomInputs(r *rand.Rand, frames, players int) [][]input.Set {
	inputs := make([][]input.Set, frames)
	for f := range inputs {
		inputs[f] = make([]input.Set, players)
		for p := range inputs[f] {
			inputs[f][p] = input.SetFromByte(byte(r.Uint32()))
		}
	}
	return inputs
}

func TestStep_properties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 20 {
		inputs := randomInputs(r, 500, 2)

		a, b := state.New(2), state.New(2)
		for _, in := range inputs {
			a = state.Step(a, in)
			b = state.Step(b, in)

			for _, p := range a.Players {
				require.GreaterOrEqual(t, p.Velocity.X, int32(-2))
				require.LessOrEqual(t, p.Velocity.X, int32(2))
				require.GreaterOrEqual(t, p.Bounds.Origin.Y, int32(0))
				require.LessOrEqual(t, p.Bounds.Origin.Y, state.ScreenHeight-p.Bounds.Size.Height)
			}
		}
		require.Equal(t, a, b)
		require.Equal(t, a.Checksum(), b.Checksum())
	}
}

func TestStep_wrapProperty(t *testing.T) {
	for x := int32(-40); x <= 360; x++ {
		s := single(state.Player{Bounds: geom.R(x, 50, 10, 10)}, 1)
		if x >= -10 && x <= state.ScreenWidth {
			continue
		}
		s = state.Step(s, nil)
		got := s.Players[0].Bounds.Origin.X
		assert.True(t, got >= -10 && got <= state.ScreenWidth, "x=%d wrapped to %d", x, got)
	}
}

func TestChecksum(t *testing.T) {
	a := state.New(2)
	b := state.New(2)
	assert.Equal(t, a.Checksum(), b.Checksum())

	b.Players[1].Velocity.X = 1
	assert.NotEqual(t, a.Checksum(), b.Checksum())
}

func TestRender(t *testing.T) {
	pallet := render.DefaultPallet
	fb := render.NewFramebuffer()
	s := state.New(2)
	s.Players[1].Bounds = geom.R(310, 140, 10, 10)

	assert.NotPanics(t, func() { state.Render(fb, s, pallet) })

	assert.Equal(t, pallet.Background(), fb.At(geom.Pt(0, 0)))
	assert.Equal(t, state.PlayerColor(0, pallet), fb.At(geom.Pt(10, 10)))
	assert.Equal(t, state.PlayerColor(0, pallet), fb.At(geom.Pt(19, 19)))
	assert.Equal(t, pallet.Background(), fb.At(geom.Pt(20, 20)))
	assert.Equal(t, state.PlayerColor(1, pallet), fb.At(geom.Pt(314, 142)))
}

func TestPlayerColor(t *testing.T) {
	for h := range uint32(16) {
		c := state.PlayerColor(h, render.DefaultPallet)
		assert.NotEqual(t, render.DefaultPallet.Background(), c)
		assert.Equal(t, c, state.PlayerColor(h, render.DefaultPallet))
	}
}

func TestState_UnmarshalBinary_short(t *testing.T) {
	data, err := state.New(2).MarshalBinary()
	require.NoError(t, err)

	var s state.State
	assert.ErrorIs(t, s.UnmarshalBinary(data[:5]), state.ErrShortData)
	assert.ErrorIs(t, s.UnmarshalBinary(data[:len(data)-1]), state.ErrShortData)
}

func FuzzState(f *testing.F) {
	f.Add(uint64(0), uint32(0), uint64(0), int32(0), int32(0), int32(0), int32(0))
	f.Fuzz(func(t *testing.T, frame uint64, handle uint32, lastFlap uint64, x, y, vx, vy int32) {
		expected := state.State{
			Frame: frame,
			Players: []state.Player{{
				Handle:        handle,
				LastFlapFrame: lastFlap,
				Bounds:        geom.R(x, y, state.PlayerWidth, state.PlayerHeight),
				Velocity:      geom.Vec(vx, vy),
			}},
		}
		data, err := expected.MarshalBinary()
		if err != nil {
			t.Fatal(err)
		}
		var actual state.State
		err = actual.UnmarshalBinary(data)
		if err != nil {
			t.Fatal(err)
		}

		if !assert.ObjectsAreEqual(expected, actual) {
			t.Errorf("expected state %#v; actual %#v", expected, actual)
		}
		if expected.Checksum() != actual.Checksum() {
			t.Errorf("checksum mismatch")
		}
	})
}
