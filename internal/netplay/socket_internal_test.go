package netplay

import (
	"errors"
	"frogquest/internal/matchbox"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBareSocket(players int) *Socket {
	return &Socket{
		roomc:     make(chan matchbox.Room, 1),
		connected: make(chan int, players),
		errc:      make(chan error, 1),
	}
}

func TestSocket_AcceptNewConnections_roomBeforeSeats(t *testing.T) {
	for i := range 200 {
		s := newBareSocket(3)
		s.roomc <- matchbox.Room{Type: matchbox.TypeRoom, Seat: 1, Peers: []string{"a", "b", "c"}}
		s.connected <- 0
		s.connected <- 2

		require.NotPanics(t, func() {
			require.NoError(t, s.AcceptNewConnections())
		}, "attempt %d", i)
		require.True(t, s.Matched())
		require.Len(t, s.Players(), 3, "attempt %d", i)
	}
}

func TestSocket_AcceptNewConnections_partial(t *testing.T) {
	s := newBareSocket(3)
	require.NoError(t, s.AcceptNewConnections())
	assert.False(t, s.Matched())
	assert.Nil(t, s.Players())
	assert.Equal(t, -1, s.LocalSeat())

	s.roomc <- matchbox.Room{Type: matchbox.TypeRoom, Seat: 0, Peers: []string{"a", "b", "c"}}
	s.connected <- 2
	require.NoError(t, s.AcceptNewConnections())
	assert.Equal(t, 0, s.LocalSeat())
	players := s.Players()
	require.Len(t, players, 1, "seat 1 is still missing")
	assert.Equal(t, Local, players[0].Type)

	s.connected <- 1
	require.NoError(t, s.AcceptNewConnections())
	players = s.Players()
	require.Len(t, players, 3)
	assert.Equal(t, []PlayerType{Local, Remote, Remote}, []PlayerType{players[0].Type, players[1].Type, players[2].Type})
	assert.Equal(t, "c", players[2].Addr)
}

func TestSocket_AcceptNewConnections_error(t *testing.T) {
	s := newBareSocket(2)
	s.roomc <- matchbox.Room{Type: matchbox.TypeRoom, Seat: 0, Peers: []string{"a", "b"}}
	s.errc <- ErrPeerDisconnected

	err := s.AcceptNewConnections()
	assert.ErrorIs(t, err, ErrPeerDisconnected)
	assert.True(t, s.Matched(), "the room is taken before the error")
	assert.True(t, errors.Is(s.AcceptNewConnections(), ErrPeerDisconnected), "the error sticks")
}
