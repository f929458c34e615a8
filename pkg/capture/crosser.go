package capture

import "reflect"

// effectiveCrosserEnv returns the crosser chain that a WrapCall taken right
// now, on goroutine state s, would capture: the real physical top if no
// restoration is active, the topmost node pushed since the active
// restoration began if any were, or the restoration's own snapshot
// otherwise. This is what lets a node pushed inside a restoration chain
// correctly back out through the restoration when later walked from another
// goroutine (see crosserNode.parentEnv).
func effectiveCrosserEnv(s *goroutineState) *crosserNode {
	frame := topFrame(s)
	if frame == nil {
		return s.crosserTop
	}
	if s.crosserTop != frame.entryCrosserTop {
		return s.crosserTop
	}
	return frame.snap
}

// Snapshot is an immutable handle to the topmost auto-crossing capture
// reachable on a goroutine at the instant it was taken. Its lifetime is not
// tied to the goroutine that produced it: every node on the chain is
// read-only, so it may be restored by WrapCall long after the origin
// goroutine function has returned, and restored more than once.
type Snapshot struct {
	top *crosserNode
}

// Snap captures the calling goroutine's current effective crosser
// environment without wrapping a callable. Most callers want WrapCall
// instead; Snap is for cases that need to hold onto a snapshot and decide
// later whether and how to restore it.
func Snap() Snapshot {
	return Snapshot{top: effectiveCrosserEnv(currentGoroutineState())}
}

// enter pushes a restoration frame for snap onto the calling goroutine and
// returns the function that must be deferred to pop it. Safe to nest: a
// WrapCall invoked from inside another WrapCall's restoration just stacks
// another frame, and unwinds correctly on panic because the returned
// function is always deferred.
func (snap Snapshot) enter() func() {
	s := currentGoroutineState()
	frame := &restorationFrame{
		snap:            snap.top,
		entryCrosserTop: s.crosserTop,
		entryTops:       make(map[reflect.Type]*node),
	}
	s.restorations = append(s.restorations, frame)
	return func() {
		s := currentGoroutineState()
		n := len(s.restorations)
		s.restorations = s.restorations[:n-1]
	}
}

// Func is the shape WrapCall operates on; it matches the zero-argument,
// zero-return callables used for goroutine dispatch and deferred work
// throughout this module.
type Func func()

// WrapCall snapshots the calling goroutine's currently active auto-crossing
// captures and returns a callable that re-establishes that snapshot for the
// duration of the call, wherever and whenever it runs — typically on a
// different goroutine than the one that created it. Wrapping an already
// wrapped callable is safe and behaves like wrapping it once: the second
// wrap captures the same effective environment the first established, so
// the two restorations nest without changing what Current observes.
//
// A nil f returns nil.
func WrapCall(f Func) Func {
	if f == nil {
		return nil
	}
	snap := Snap()
	return func() {
		exit := snap.enter()
		defer exit()
		f()
	}
}

// ErrFunc is the func() error shape, for call sites (reporters, task
// workers) whose unit of dispatched work can fail.
type ErrFunc func() error

// WrapCallErr is WrapCall for callables that return an error.
func WrapCallErr(f ErrFunc) ErrFunc {
	if f == nil {
		return nil
	}
	snap := Snap()
	return func() error {
		exit := snap.enter()
		defer exit()
		return f()
	}
}
