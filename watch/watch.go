// Package watch defines the cooperative cancellation token used by every
// blocking, poll-based operation in gonet (read loops, the accept loop,
// the TLS accept wait): a "watch" object with a should_stop query, per
// §5 of the networking core spec. There is no forced interruption of a
// thread parked in a blocking syscall; cancellation is only ever observed
// at the next poll tick.
package watch

import "sync/atomic"

// Watch is satisfied by anything a caller wants consulted once per poll
// tick. A context.Context satisfies a similar role for ordinary
// cancellation; Watch exists separately because gonet's poll loops need a
// plain boolean query, not a channel select, and because the same flag
// often also drives an accept loop's own Stop/SignalStop pair.
type Watch interface {
	ShouldStop() bool
}

// Never is a Watch that never requests a stop. Used as the default when a
// caller passes a nil Watch.
var Never = never{}

type never struct{}

func (never) ShouldStop() bool { return false }

// Flag is an atomic, concurrency-safe Watch that a second goroutine can
// trip with Stop. It also backs the accept loop's stop_requested flag.
type Flag struct {
	stopped atomic.Bool
}

// ShouldStop implements Watch.
func (f *Flag) ShouldStop() bool { return f.stopped.Load() }

// Stop requests a stop. Idempotent and safe to call from any goroutine.
func (f *Flag) Stop() { f.stopped.Store(true) }

// Reset clears a previously requested stop, allowing the Flag to be
// reused.
func (f *Flag) Reset() { f.stopped.Store(false) }

// Of returns w if non-nil, or Never otherwise, so callers never need a
// nil check before calling ShouldStop.
func Of(w Watch) Watch {
	if w == nil {
		return Never
	}
	return w
}
