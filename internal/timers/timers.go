// package timers provides named, cancellable timer handles for the idle loop.
//
// A [Set] holds at most one live timer per [Kind]. Arming a kind stops the
// previous timer of that kind first. Firings are delivered on [Set.Fired]
// tagged with a generation, and [Set.Accept] rejects firings from timers
// that were cancelled or replaced after they had already started to fire.
package timers

import (
	"sync"
	"time"
)

// Kind names a timer slot.
type Kind int

const (
	Cycle  Kind = iota // dwell and cooldown waits
	Revert             // visibility revert
)

func (k Kind) String() string {
	switch k {
	case Cycle:
		return "cycle"
	case Revert:
		return "revert"
	default:
		return "unknown"
	}
}

// Fire is delivered when a timer elapses.
type Fire struct {
	Kind Kind
	Gen  uint64
}

// Stopper stops a pending timer.
type Stopper interface {
	Stop() bool
}

// Clock schedules callbacks. [RealClock] wraps [time.AfterFunc].
type Clock interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

// RealClock is the wall clock.
type RealClock struct{}

func (RealClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

type handle struct {
	gen  uint64
	stop Stopper
}

// Set owns the live timers of one state machine.
type Set struct {
	mu    sync.Mutex
	clock Clock
	live  map[Kind]handle
	gen   uint64
	fired chan Fire
	done  chan struct{}
	once  sync.Once
}

// New creates an empty Set. A nil clock uses [RealClock].
func New(clock Clock) *Set {
	if clock == nil {
		clock = RealClock{}
	}
	return &Set{
		clock: clock,
		live:  make(map[Kind]handle),
		fired: make(chan Fire, 8),
		done:  make(chan struct{}),
	}
}

// Fired delivers timer firings. Each one must be checked with [Set.Accept].
func (s *Set) Fired() <-chan Fire {
	return s.fired
}

// Arm cancels any live timer of kind and starts a new one for d.
func (s *Set) Arm(kind Kind, d time.Duration) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked(kind)
	s.gen++
	gen := s.gen
	stop := s.clock.AfterFunc(d, func() { s.deliver(Fire{Kind: kind, Gen: gen}) })
	s.live[kind] = handle{gen: gen, stop: stop}
	return gen
}

// Accept reports whether f belongs to the current live timer of its kind and retires it.
func (s *Set) Accept(f Fire) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.live[f.Kind]
	if !ok || h.gen != f.Gen {
		return false
	}
	delete(s.live, f.Kind)
	return true
}

// Cancel stops the live timer of kind. It reports whether one was live.
func (s *Set) Cancel(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(kind)
}

// CancelAll stops every live timer.
func (s *Set) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for kind := range s.live {
		s.cancelLocked(kind)
	}
}

// Live reports whether a timer of kind is armed and not yet accepted.
func (s *Set) Live(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live[kind]
	return ok
}

// Close cancels all timers and unblocks any pending deliveries.
func (s *Set) Close() {
	s.CancelAll()
	s.once.Do(func() { close(s.done) })
}

func (s *Set) cancelLocked(kind Kind) bool {
	h, ok := s.live[kind]
	if !ok {
		return false
	}
	h.stop.Stop()
	delete(s.live, kind)
	return true
}

func (s *Set) deliver(f Fire) {
	select {
	case s.fired <- f:
	case <-s.done:
	}
}
