// Package observation implements the observation store: retention of the
// single most recent observation consulted by the invariant evaluator.
package observation

import "github.com/nomercy-sim/nomercy/internal/jsonval"

// Store holds the most recent observation. It is not safe for concurrent
// use — the engine drives one step at a time, so no locking is applied
// here.
type Store struct {
	current      jsonval.Value
	beforeCrash  jsonval.Value
	hasObserved  bool
}

// New returns a Store with no observation yet taken. Eval treats this as
// an empty object to operate over.
func New() *Store {
	return &Store{current: jsonval.Object{}}
}

// Observe atomically replaces the current observation, per a successful
// `observe` command.
func (s *Store) Observe(v jsonval.Value) {
	s.current = v
	s.hasObserved = true
}

// Current returns the most recent observation (or an empty object if
// none has ever been taken).
func (s *Store) Current() jsonval.Value {
	return s.current
}

// HasObserved reports whether any `observe` has ever completed.
func (s *Store) HasObserved() bool {
	return s.hasObserved
}

// SnapshotBeforeCrash records the current observation immediately before
// issuing a `crash` command, so Reset can restore it afterward.
func (s *Store) SnapshotBeforeCrash() {
	s.beforeCrash = s.current
}

// ResetAfterCrash restores the observation captured by
// SnapshotBeforeCrash. A crash resets the observation to the last one
// captured before it; a restore does not reset it.
func (s *Store) ResetAfterCrash() {
	if s.beforeCrash != nil {
		s.current = s.beforeCrash
	}
}
