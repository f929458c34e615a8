package capture

import (
	"fmt"
	"reflect"

	"github.com/petermattis/goid"
)

// Current returns the topmost capture point of type T visible on the calling
// goroutine, honoring any active restoration (see WrapCall). The zero value
// and false are returned when nothing of type T is in scope.
func Current[T any]() (T, bool) {
	return currentFor[T](currentGoroutineState())
}

// Use calls fn with the current capture point of type T if one is in scope,
// and is a no-op otherwise. It is the idiomatic shape-specific helper the
// design anticipates call sites wrapping, e.g. capture.Use(func(l Logger) {
// l.Info("...") }).
func Use[T any](fn func(T)) {
	if v, ok := Current[T](); ok {
		fn(v)
	}
}

// Scoped is a guard returned by Scope; Close pops the capture it installed.
// Scoped values are not safe to Close from a different goroutine than the
// one that constructed them — capture stacks are goroutine-local by design.
type Scoped[T any] struct {
	gid    int64
	typ    reflect.Type
	node   *node
	closed bool
}

// Scope installs point as the new topmost capture of type T on the calling
// goroutine until the returned guard is closed. Scopes of the same T nest:
// the most recently opened one wins, and closing unwinds in strict LIFO
// order.
func Scope[T any](point T) *Scoped[T] {
	s := currentGoroutineState()
	typ := typeKey[T]()
	recordEntryIfAbsent(s, typ)

	n := &node{point: point, prev: s.tops[typ]}
	s.tops[typ] = n

	return &Scoped[T]{gid: goid.Get(), typ: typ, node: n}
}

// Close pops the capture this guard installed. It panics if called from a
// different goroutine than Scope was called on, or out of LIFO order (some
// other capture of the same type was pushed on top of this one and never
// closed) — both are programming errors the design calls undefined
// behavior, and a loud panic is preferable to silently corrupting another
// scope's stack. Calling Close again after it has succeeded is a no-op.
func (s *Scoped[T]) Close() {
	if s == nil || s.closed {
		return
	}
	if got := goid.Get(); got != s.gid {
		panic(fmt.Sprintf("capture: Scoped[%s] closed on goroutine %d, opened on %d", s.typ, got, s.gid))
	}
	state := currentGoroutineState()
	if state.tops[s.typ] != s.node {
		panic(fmt.Sprintf("capture: Scoped[%s] closed out of LIFO order", s.typ))
	}
	state.tops[s.typ] = s.node.prev
	s.closed = true
}

// AutoScoped is a guard returned by AutoScope; in addition to everything
// Scoped does, it registers the capture on the goroutine's crosser stack so
// WrapCall can carry it across goroutine boundaries.
type AutoScoped[T any] struct {
	gid     int64
	typ     reflect.Type
	node    *node
	crosser *crosserNode
	closed  bool
}

// AutoScope installs point like Scope, but additionally opts it into
// cross-goroutine propagation: a WrapCall taken anywhere downstream of this
// scope, before it closes, will carry point along.
func AutoScope[T any](point T) *AutoScoped[T] {
	s := currentGoroutineState()
	typ := typeKey[T]()
	recordEntryIfAbsent(s, typ)

	n := &node{point: point, prev: s.tops[typ]}
	s.tops[typ] = n

	cn := &crosserNode{
		typ:            typ,
		pt:             node{point: point},
		prevSameThread: s.crosserTop,
		parentEnv:      effectiveCrosserEnv(s),
	}
	s.crosserTop = cn

	return &AutoScoped[T]{gid: goid.Get(), typ: typ, node: n, crosser: cn}
}

// Close pops both the type stack entry and the crosser stack entry this
// guard installed, enforcing the same goroutine-affinity and LIFO rules as
// Scoped.Close.
func (a *AutoScoped[T]) Close() {
	if a == nil || a.closed {
		return
	}
	if got := goid.Get(); got != a.gid {
		panic(fmt.Sprintf("capture: AutoScoped[%s] closed on goroutine %d, opened on %d", a.typ, got, a.gid))
	}
	state := currentGoroutineState()
	if state.tops[a.typ] != a.node {
		panic(fmt.Sprintf("capture: AutoScoped[%s] closed out of LIFO order", a.typ))
	}
	if state.crosserTop != a.crosser {
		panic(fmt.Sprintf("capture: AutoScoped[%s] closed out of crosser LIFO order", a.typ))
	}
	state.tops[a.typ] = a.node.prev
	state.crosserTop = a.crosser.prevSameThread
	a.closed = true
}
