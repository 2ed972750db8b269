package input

import "log/slog"

const streamCapacity = 256

// Stream is a multi-producer single-consumer queue of device inputs. Device
// callbacks Put, the game loop Drains once per frame.
type Stream struct {
	ch chan Input
}

func NewStream() *Stream {
	return &Stream{ch: make(chan Input, streamCapacity)}
}

// Put never blocks; when the consumer has fallen behind the input is dropped.
func (s *Stream) Put(i Input) {
	select {
	case s.ch <- i:
	default:
		slog.Warn("input stream full, dropping input", "input", i)
	}
}

// Get returns the next queued input, if any.
func (s *Stream) Get() (Input, bool) {
	select {
	case i := <-s.ch:
		return i, true
	default:
		return 0, false
	}
}

// Drain empties the queue into a set.
func (s *Stream) Drain() Set {
	var set Set
	for {
		i, ok := s.Get()
		if !ok {
			return set
		}
		set = set.With(i)
	}
}
