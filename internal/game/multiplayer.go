package game

import (
	"context"
	"errors"
	"fmt"
	"frogquest/internal/geom"
	"frogquest/internal/input"
	"frogquest/internal/netplay"
	"frogquest/internal/rollback"
	"frogquest/internal/state"
	"log/slog"
	"time"
)

const closeTimeout = 2 * time.Second

var errNoOpener = errors.New("no socket opener configured")

// Socket is what the multiplayer game needs from the peer connection.
type Socket interface {
	rollback.Socket
	Matched() bool
	Close(ctx context.Context) error
}

// Opener starts looking for other players. It must not block.
type Opener func(ctx context.Context) (Socket, error)

// NetOpener opens a netplay socket with cfg.
func NetOpener(cfg netplay.Config) Opener {
	return func(ctx context.Context) (Socket, error) {
		s, err := netplay.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

type multiplayer struct {
	socket  Socket
	session *rollback.Session
	status  *TextBox
}

func (a *App) startMultiplayer() *multiplayer {
	m := &multiplayer{
		status: a.spawn(TextBox{
			Text:   "connecting",
			Origin: geom.Pt(10, 40),
			Ink:    inkHighlight,
		}),
	}

	cfg := a.opts.Rollback
	session, err := rollback.New(cfg, state.New(cfg.NumPlayers))
	if err != nil {
		// NewApp validated the config.
		panic(fmt.Sprintf("creating rollback session: %v", err))
	}
	m.session = session

	open := a.opts.Open
	if open == nil {
		open = func(context.Context) (Socket, error) { return nil, errNoOpener }
	}
	if socket, err := open(a.ctx); err != nil {
		slog.Warn("failed to open socket", "error", err)
		_ = m.session.Close(a.ctx)
	} else {
		m.socket = socket
		m.session.Sync(socket)
	}

	m.updateStatus()
	return m
}

func (m *multiplayer) updateStatus() {
	switch m.session.Status() {
	case rollback.Idle, rollback.Syncing:
		if m.socket != nil && m.socket.Matched() {
			m.status.Text = "waiting for players"
		} else {
			m.status.Text = "connecting"
		}
	case rollback.Running:
		m.status.Text = "game started"
	case rollback.Disconnected:
		m.status.Text = "disconnected"
	}
}

// tick advances the session and reports whether the player asked to leave.
func (m *multiplayer) tick(in input.Set) bool {
	if m.session.Status() == rollback.Disconnected {
		m.updateStatus()
		return in.Has(input.Primary)
	}

	m.session.Advance(in)
	m.updateStatus()
	return false
}

// leave closes the transport in the background so the main loop never waits
// on the network.
func (m *multiplayer) leave(ctx context.Context) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := m.close(ctx); err != nil {
			slog.Warn("failed to close multiplayer game", "error", err)
		}
	}()
}

func (m *multiplayer) close(ctx context.Context) error {
	if m.socket == nil {
		return nil
	}
	if err := m.socket.Close(ctx); err != nil {
		return fmt.Errorf("closing socket: %w", err)
	}
	return nil
}
