// Package capture implements scoped, goroutine-local context propagation.
//
// Library code publishes ambient capture points — loggers, tracers, metrics
// sinks, auth contexts — without threading them through every call signature.
// A capture point is visible only within the dynamic extent of the scope that
// installed it (LIFO override, goroutine-local), and can optionally be
// propagated across a goroutine hand-off via WrapCall, but only for captures
// that opt in by being installed with Scope's auto-crossing sibling, AutoScope.
//
// The three moving parts:
//
//   - Scope[T] / AutoScope[T]: push a capture point of type T onto the
//     current goroutine's stack on construction, pop on Close. Current[T]
//     reads the top of that stack.
//   - WrapCall: snapshots the set of currently active auto-crossing captures
//     on the calling goroutine and returns a callable that, wherever it runs,
//     re-establishes that snapshot for the duration of the call.
//   - Bridge[T] / Cross[T]: the manual alternative for a single type.
//     NewBridge records the calling goroutine's current T, and Cross
//     installs it as a Scoped[T] on whichever goroutine calls it.
//
// Go has no first-class thread-local storage, so capture points are indexed
// by goroutine id (github.com/petermattis/goid) rather than true TLS; see
// stack.go for the tradeoffs this implies.
package capture
