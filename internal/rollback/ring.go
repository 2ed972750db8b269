package rollback

import (
	"frogquest/internal/input"
	"frogquest/internal/state"
	"math"
)

const noRollback = math.MaxInt64

type inputSlot struct {
	frame int64
	value []input.Set
	known []bool
	// used is what the simulation fed in when the frame was last stepped.
	used []input.Set
}

func (slot *inputSlot) reset(frame int64) {
	slot.frame = frame
	clear(slot.value)
	clear(slot.known)
	clear(slot.used)
}

// inputRing holds per seat inputs for the frames from the confirmed frame up
// to InputRingSize ahead of it.
type inputRing struct {
	slots []inputSlot
	// next is per seat the first frame whose input is not known yet, last the
	// input at next-1.
	next []int64
	last []input.Set
}

func newInputRing(size, players int) *inputRing {
	r := &inputRing{
		slots: make([]inputSlot, size),
		next:  make([]int64, players),
		last:  make([]input.Set, players),
	}
	for i := range r.slots {
		r.slots[i] = inputSlot{
			frame: -1,
			value: make([]input.Set, players),
			known: make([]bool, players),
			used:  make([]input.Set, players),
		}
	}
	return r
}

func (r *inputRing) slot(frame int64) *inputSlot {
	slot := &r.slots[frame%int64(len(r.slots))]
	if slot.frame != frame {
		slot.reset(frame)
	}
	return slot
}

func (r *inputRing) peek(frame int64) *inputSlot {
	slot := &r.slots[frame%int64(len(r.slots))]
	if slot.frame != frame {
		return nil
	}
	return slot
}

func (r *inputRing) confirm(frame int64, seat int, in input.Set) {
	slot := r.slot(frame)
	slot.value[seat] = in
	slot.known[seat] = true

	for {
		next := r.peek(r.next[seat])
		if next == nil || !next.known[seat] {
			break
		}
		r.last[seat] = next.value[seat]
		r.next[seat]++
	}
}

func (r *inputRing) contiguous(seat int) int64 { return r.next[seat] }

// confirmed is the first frame whose input is missing for some seat.
func (r *inputRing) confirmed() int64 {
	c := r.next[0]
	for _, n := range r.next[1:] {
		c = min(c, n)
	}
	return c
}

// predict repeats the latest input of the seat's contiguous run.
func (r *inputRing) predict(seat int) input.Set { return r.last[seat] }

type snapshot struct {
	frame int64
	state state.State
}

// snapshotRing holds the world at the start of each recent frame.
type snapshotRing struct {
	snapshots []snapshot
}

func newSnapshotRing(size int) *snapshotRing {
	r := &snapshotRing{snapshots: make([]snapshot, size)}
	for i := range r.snapshots {
		r.snapshots[i].frame = -1
	}
	return r
}

func (r *snapshotRing) save(frame int64, s state.State) {
	r.snapshots[frame%int64(len(r.snapshots))] = snapshot{frame: frame, state: s}
}

func (r *snapshotRing) load(frame int64) (state.State, bool) {
	snap := r.snapshots[frame%int64(len(r.snapshots))]
	if snap.frame != frame {
		return state.State{}, false
	}
	return snap.state, true
}
