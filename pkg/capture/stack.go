package capture

import (
	"reflect"
	"sync"

	"github.com/petermattis/goid"
)

// node is one frame of a per-type, per-goroutine LIFO stack.
type node struct {
	point any
	prev  *node
}

// crosserNode is one frame of a per-goroutine, type-erased stack of
// auto-crossing captures, plus the immutable chain WrapCall restores.
type crosserNode struct {
	typ reflect.Type
	pt  node

	// prevSameThread links to the node that was on top of this goroutine's
	// own crosser stack immediately before this one was pushed. Restored on
	// Close; never touched once set.
	prevSameThread *crosserNode

	// parentEnv is the effective crosser environment on this goroutine at
	// the moment this node was pushed, i.e. what WrapCall would have
	// captured right then. Walking parentEnv chains is how a destination
	// goroutine recovers "LIFO order as it existed on the origin goroutine"
	// even when that order spans a restoration boundary (see crosser.go).
	parentEnv *crosserNode
}

// restorationFrame represents one active WrapCall restoration on a
// goroutine. Frames nest: invoking a wrapped callable from inside another
// restoration pushes a new frame on top.
type restorationFrame struct {
	snap *crosserNode

	// entryCrosserTop is this goroutine's real crosserTop at the instant
	// the frame was entered, used to tell whether the physical crosser
	// stack has grown since (see effectiveCrosserEnv in crosser.go).
	entryCrosserTop *crosserNode

	// entryTops snapshots, lazily and per-type, what state.tops[T] held at
	// frame-entry time. Lazy population is safe: until the first push or
	// Current[T] query for a given T happens inside this frame, tops[T] is
	// untouched since entry, so whichever event fires first still observes
	// the true entry-time value.
	entryTops map[reflect.Type]*node
}

// goroutineState is exclusively owned by the goroutine it is keyed under;
// every field is read and mutated only by code running on that goroutine, so
// none of it needs its own lock. The registry below only needs to protect
// insertion of new entries.
type goroutineState struct {
	tops         map[reflect.Type]*node
	crosserTop   *crosserNode
	restorations []*restorationFrame
}

var registry sync.Map // int64 goroutine id -> *goroutineState

// getState returns (creating if necessary) the calling goroutine's state.
// Must only be called from the goroutine whose state is being fetched.
func getState(gid int64) *goroutineState {
	if v, ok := registry.Load(gid); ok {
		return v.(*goroutineState)
	}
	s := &goroutineState{tops: make(map[reflect.Type]*node)}
	v, _ := registry.LoadOrStore(gid, s)
	return v.(*goroutineState)
}

func currentGoroutineState() *goroutineState {
	return getState(goid.Get())
}

// Forget drops all bookkeeping for the calling goroutine. Go has no hook for
// goroutine exit, so entries in the registry otherwise live for the life of
// the process; long-running pools that park and recycle goroutine-like
// workers (or tests that spin up many short-lived goroutines) should call
// this once a goroutine is done installing captures. It is always safe: it
// only discards state, never cross-goroutine data.
func Forget() {
	registry.Delete(goid.Get())
}

func typeKey[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func topFrame(s *goroutineState) *restorationFrame {
	if n := len(s.restorations); n > 0 {
		return s.restorations[n-1]
	}
	return nil
}

// currentFor reads the effective value of T on goroutine state s,
// applying the overlay rule when a restoration is active.
func currentFor[T any](s *goroutineState) (T, bool) {
	var zero T
	typ := typeKey[T]()
	cur := s.tops[typ]

	frame := topFrame(s)
	if frame == nil {
		if cur == nil {
			return zero, false
		}
		return cur.point.(T), true
	}

	entry, seen := frame.entryTops[typ]
	if !seen {
		frame.entryTops[typ] = cur
		entry = cur
	}
	if cur != entry {
		// Something was pushed for T on this goroutine since the
		// restoration began; that shadows the restored snapshot.
		if cur == nil {
			return zero, false
		}
		return cur.point.(T), true
	}

	for n := frame.snap; n != nil; n = n.parentEnv {
		if n.typ == typ {
			return n.pt.point.(T), true
		}
	}
	return zero, false
}

// recordEntryIfAbsent is the push-time half of the same lazy snapshot:
// called right before a new node becomes state.tops[typ], so that if this is
// the first touch of typ during the active frame, the frame remembers what
// tops[typ] held at frame-entry.
func recordEntryIfAbsent(s *goroutineState, typ reflect.Type) {
	frame := topFrame(s)
	if frame == nil {
		return
	}
	if _, seen := frame.entryTops[typ]; !seen {
		frame.entryTops[typ] = s.tops[typ]
	}
}
