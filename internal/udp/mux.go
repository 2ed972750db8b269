package udp

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// LabelControl is the label of every hi and bye message.
const LabelControl byte = 0

// Mux routes the listener's inbox to one channel per label.
type Mux struct {
	ln       *Listener
	channels map[byte]chan Envelope // maps a label to its channel
	running  atomic.Bool
}

func NewMux(ln *Listener) *Mux {
	return &Mux{
		ln:       ln,
		channels: map[byte]chan Envelope{},
	}
}

func (mux *Mux) Subscribe(label byte, queueSize int) <-chan Envelope {
	if mux.running.Load() {
		panic("mux error: cannot subscribe to labels while running")
	}

	ch := make(chan Envelope, queueSize)
	mux.channels[label] = ch
	return ch
}

// Run routes until the listener closes or ctx is done, then closes every
// subscribed channel. It does not close the listener.
func (mux *Mux) Run(ctx context.Context) {
	mux.running.Store(true)
	defer func() {
		for _, ch := range mux.channels {
			close(ch)
		}
	}()

	for {
		var envel Envelope
		select {
		case <-ctx.Done():
			return
		case e, ok := <-mux.ln.Inbox():
			if !ok {
				return
			}
			envel = e
		}

		ch, exists := mux.channels[envel.Label]
		if !exists {
			slog.Warn(
				"failed to find a subscriber for the label, dropping the message",
				"sender", envel.Sender,
				"message", envel.Message,
				"label", envel.Label,
			)
			continue
		}

		select {
		case ch <- envel:
		case <-ctx.Done():
			return
		}
	}
}
