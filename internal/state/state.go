// Package state is the deterministic world: players, their integer physics and
// the pure step function both peers run.
package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"frogquest/internal/geom"
	"frogquest/internal/input"
	"frogquest/internal/render"
	"slices"

	"github.com/cespare/xxhash/v2"
)

var ErrShortData = errors.New("short data")

var (
	ScreenWidth  = render.RenderRect.Size.Width
	ScreenHeight = render.RenderRect.Size.Height
)

const (
	PlayerWidth  = 10
	PlayerHeight = 10

	MaxSpeedX = 2

	flapCooldown = 5
	flapImpulse  = 2
	physicsEvery = 20
)

type Player struct {
	Handle        uint32
	LastFlapFrame uint64
	Bounds        geom.Rect
	Velocity      geom.Vector
}

// State is pure data. Equal states step to equal states on every peer.
type State struct {
	Frame   uint64
	Players []Player
}

// New spawns n players in seat order along the top of the screen.
func New(n int) State {
	s := State{Players: make([]Player, n)}
	for h := range n {
		s.Players[h] = Player{
			Handle: uint32(h),
			Bounds: geom.R(10+20*int32(h), 10, PlayerWidth, PlayerHeight),
		}
	}
	return s
}

func (s State) Clone() State {
	s.Players = slices.Clone(s.Players)
	return s
}

// Step advances s by one frame. inputs is indexed by player handle; a missing
// entry is the neutral input. s is not modified.
func Step(s State, inputs []input.Set) State {
	next := s.Clone()
	for i := range next.Players {
		p := &next.Players[i]
		var in input.Set
		if int(p.Handle) < len(inputs) {
			in = inputs[p.Handle]
		}
		p.step(s.Frame, in)
	}
	next.Frame++
	return next
}

func (p *Player) step(frame uint64, in input.Set) {
	if in.Has(input.Primary) && frame-p.LastFlapFrame > flapCooldown {
		p.Velocity.Y -= flapImpulse
		p.LastFlapFrame = frame
	}
	if in.Has(input.Left) {
		p.Velocity.X--
	}
	if in.Has(input.Right) {
		p.Velocity.X++
	}
	p.Velocity.X = min(max(p.Velocity.X, -MaxSpeedX), MaxSpeedX)

	p.Bounds = p.Bounds.Translate(p.Velocity)

	if p.Bounds.MinY() <= 0 {
		p.Velocity.Y = -p.Velocity.Y / 2
		p.Bounds.Origin.Y = 0
	}
	if p.Bounds.MaxY() > ScreenHeight {
		p.Bounds.Origin.Y = ScreenHeight - p.Bounds.Size.Height
		p.Velocity.Y = 0
	}

	if frame%physicsEvery == 0 {
		if p.OnGround() {
			// friction
			switch {
			case p.Velocity.X > 0:
				p.Velocity.X--
			case p.Velocity.X < 0:
				p.Velocity.X++
			}
		} else {
			// gravity
			p.Velocity.Y++
		}
	}

	w := p.Bounds.Size.Width
	if p.Bounds.MinX() > ScreenWidth {
		p.Bounds.Origin.X -= ScreenWidth + w
	} else if p.Bounds.MinX() < -w {
		p.Bounds.Origin.X += ScreenWidth + w
	}
}

func (p Player) OnGround() bool {
	return p.Bounds.MaxY() == ScreenHeight
}

// PlayerColor picks a non-background pallet entry from the handle. The hash is
// fixed so every peer agrees on the color.
func PlayerColor(handle uint32, pallet render.Pallet) render.Color {
	sum := xxhash.Sum64(binary.LittleEndian.AppendUint32(nil, handle))
	return pallet[sum%uint64(len(pallet)-1)+1]
}

// Render paints the background and every player's bounds.
func Render(fb *render.Framebuffer, s State, pallet render.Pallet) {
	fb.Fill(pallet.Background())
	for _, p := range s.Players {
		fb.FillRect(p.Bounds, PlayerColor(p.Handle, pallet))
	}
}

// Checksum hashes the canonical encoding of s.
func (s State) Checksum() uint64 {
	return xxhash.Sum64(s.appendBinary(nil))
}

const PlayerSize = 4 + 8 + 4*4 + 2*4

func (s State) appendBinary(b []byte) []byte {
	b = binary.LittleEndian.AppendUint64(b, s.Frame)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(s.Players)))
	for _, p := range s.Players {
		b = binary.LittleEndian.AppendUint32(b, p.Handle)
		b = binary.LittleEndian.AppendUint64(b, p.LastFlapFrame)
		for _, v := range [...]int32{
			p.Bounds.Origin.X, p.Bounds.Origin.Y,
			p.Bounds.Size.Width, p.Bounds.Size.Height,
			p.Velocity.X, p.Velocity.Y,
		} {
			b = binary.LittleEndian.AppendUint32(b, uint32(v))
		}
	}
	return b
}

func (s State) MarshalBinary() ([]byte, error) {
	if len(s.Players) > 0xffff {
		return nil, fmt.Errorf("%d players: too many", len(s.Players))
	}
	return s.appendBinary(make([]byte, 0, 10+len(s.Players)*PlayerSize)), nil
}

func (s *State) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	var frame uint64
	if err := binary.Read(r, binary.LittleEndian, &frame); err != nil {
		return fmt.Errorf("reading frame: %w", ErrShortData)
	}
	var playersLen uint16
	if err := binary.Read(r, binary.LittleEndian, &playersLen); err != nil {
		return fmt.Errorf("reading players length: %w", ErrShortData)
	}
	if l, want := r.Len(), int(playersLen)*PlayerSize; l < want {
		return fmt.Errorf("players data length %d less than %d: %w", l, want, ErrShortData)
	}

	players := make([]Player, playersLen)
	for i := range players {
		var raw struct {
			Handle        uint32
			LastFlapFrame uint64
			X, Y, W, H    int32
			VX, VY        int32
		}
		if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
			return fmt.Errorf("reading player #%d: %w", i, ErrShortData)
		}
		players[i] = Player{
			Handle:        raw.Handle,
			LastFlapFrame: raw.LastFlapFrame,
			Bounds:        geom.R(raw.X, raw.Y, raw.W, raw.H),
			Velocity:      geom.Vec(raw.VX, raw.VY),
		}
	}

	s.Frame = frame
	s.Players = players
	return nil
}
