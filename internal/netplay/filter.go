package netplay

// frameFilter passes each frame once. Frames below next are known to be
// seen; seen holds the ones that arrived ahead of it.
type frameFilter struct {
	next uint32
	seen map[uint32]struct{}
}

func newFrameFilter() *frameFilter {
	return &frameFilter{seen: map[uint32]struct{}{}}
}

// Pass reports whether frame is new and marks it seen.
func (f *frameFilter) Pass(frame uint32) bool {
	if frame < f.next {
		return false
	}
	if _, ok := f.seen[frame]; ok {
		return false
	}
	f.seen[frame] = struct{}{}
	for {
		if _, ok := f.seen[f.next]; !ok {
			break
		}
		delete(f.seen, f.next)
		f.next++
	}
	return true
}

// Contiguous is the first frame not yet seen.
func (f *frameFilter) Contiguous() uint32 { return f.next }
