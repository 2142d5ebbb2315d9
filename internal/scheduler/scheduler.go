package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/badgeidle/internal/models"
	"github.com/desertthunder/badgeidle/internal/shared"
	"github.com/desertthunder/badgeidle/internal/timers"
)

const (
	DefaultDwell    = 15 * time.Minute
	DefaultCooldown = 10 * time.Second

	shutdownTimeout = 15 * time.Second
)

// Scanner produces the ordered items with drops remaining.
type Scanner interface {
	Scan(ctx context.Context, selection *models.SelectionSet) ([]models.ProgressItem, error)
}

// Guard toggles profile visibility around activation.
type Guard interface {
	EnterPrivate(ctx context.Context) error
	RevertToPublic(ctx context.Context)
	Private() bool
}

// Activator is the part of the session provider the loop drives.
type Activator interface {
	SetActiveItems(ctx context.Context, ids []int) error
	SetPersonaState(ctx context.Context, state models.PersonaState) error
}

// Session ends the authenticated session.
type Session interface {
	Logoff(ctx context.Context) error
}

// Deps are the collaborators of a [Scheduler]. Timers must be the set the Guard arms.
type Deps struct {
	Scanner   Scanner
	Guard     Guard
	Activator Activator
	Session   Session
	Timers    *timers.Set
	Logger    *log.Logger
}

// Config holds the cycle tuning.
type Config struct {
	MaxActive int // capped at [shared.MaxActiveItems]
	Dwell     time.Duration
	Cooldown  time.Duration
	Selection *models.SelectionSet
	Persona   *models.PersonaState // set once the session is ready
}

type eventKind int

const (
	evSessionReady eventKind = iota
	evShutdown
	evRefetch
	evPersona
)

type event struct {
	kind    eventKind
	persona models.PersonaState
}

// Scheduler is the idle cycle state machine.
type Scheduler struct {
	deps   Deps
	cfg    Config
	logger *log.Logger

	events  chan event
	updates chan StatusUpdate
	done    chan struct{}
	once    sync.Once

	// owned by the Run goroutine
	state State
	cycle int
	found int
	cause error

	mu       sync.RWMutex
	snapshot StatusUpdate
}

// New creates a Scheduler in the Idle state.
func New(deps Deps, cfg Config) *Scheduler {
	if deps.Logger == nil {
		deps.Logger = shared.NewLogger(nil)
	}
	if deps.Timers == nil {
		deps.Timers = timers.New(nil)
	}
	if cfg.MaxActive <= 0 || cfg.MaxActive > shared.MaxActiveItems {
		cfg.MaxActive = shared.MaxActiveItems
	}
	if cfg.Dwell <= 0 {
		cfg.Dwell = DefaultDwell
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}

	return &Scheduler{
		deps:     deps,
		cfg:      cfg,
		logger:   shared.WithLogger(deps.Logger, "component", "scheduler"),
		events:   make(chan event, 16),
		updates:  make(chan StatusUpdate, 64),
		done:     make(chan struct{}),
		snapshot: StatusUpdate{State: Idle, Message: "Waiting for session"},
	}
}

// Updates streams status changes. It is closed when Run returns.
func (s *Scheduler) Updates() <-chan StatusUpdate {
	return s.updates
}

// Done is closed when Run returns.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns the most recent status.
func (s *Scheduler) Snapshot() StatusUpdate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snapshot
	snap.Active = append([]models.ProgressItem(nil), s.snapshot.Active...)
	return snap
}

// SessionReady starts the first cycle.
func (s *Scheduler) SessionReady() error {
	return s.send(event{kind: evSessionReady})
}

// RequestShutdown moves to ShuttingDown from any state.
func (s *Scheduler) RequestShutdown() error {
	return s.send(event{kind: evShutdown})
}

// RequestRefetch cuts a Waiting or CoolingDown state short and scans immediately.
func (s *Scheduler) RequestRefetch() error {
	return s.send(event{kind: evRefetch})
}

// RequestPersonaChange forwards a persona change to the provider.
// The name is matched case-insensitively.
func (s *Scheduler) RequestPersonaChange(name string) error {
	state, ok := models.ParsePersona(name)
	if !ok {
		return fmt.Errorf("%w: %q", shared.ErrUnknownPersona, name)
	}
	return s.send(event{kind: evPersona, persona: state})
}

func (s *Scheduler) send(ev event) error {
	select {
	case <-s.done:
		return shared.ErrSchedulerStopped
	default:
	}
	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return shared.ErrSchedulerStopped
	}
}

// Run processes events until shutdown. It returns the error that caused the shutdown,
// or nil for an orderly stop (no items left, operator request or ctx cancellation).
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.once.Do(func() {
		close(s.done)
		close(s.updates)
	})

	for s.state != ShuttingDown {
		select {
		case <-ctx.Done():
			s.shutdown(ctx, "context canceled", nil)

		case ev := <-s.events:
			s.handle(ctx, ev)

		case f := <-s.deps.Timers.Fired():
			if !s.deps.Timers.Accept(f) {
				s.logger.Debug("ignoring stale timer", "kind", f.Kind, "gen", f.Gen)
				continue
			}
			s.fire(ctx, f.Kind)
		}
	}
	return s.cause
}

func (s *Scheduler) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evSessionReady:
		if s.state != Idle {
			s.logger.Debug("session already running", "state", s.state)
			return
		}
		if s.cfg.Persona != nil {
			s.setPersona(ctx, *s.cfg.Persona)
		}
		s.fetch(ctx)

	case evShutdown:
		s.shutdown(ctx, "operator request", nil)

	case evRefetch:
		if s.state != Waiting && s.state != CoolingDown {
			s.logger.Info("refetch ignored", "state", s.state)
			return
		}
		s.deps.Timers.Cancel(timers.Cycle)
		s.fetch(ctx)

	case evPersona:
		s.setPersona(ctx, ev.persona)
	}
}

func (s *Scheduler) fire(ctx context.Context, kind timers.Kind) {
	switch kind {
	case timers.Revert:
		s.deps.Guard.RevertToPublic(ctx)
		s.publish(noticeUpdate(s.state, s.cycle, "Profile visibility restored"))
	case timers.Cycle:
		switch s.state {
		case Waiting:
			s.deactivate(ctx)
		case CoolingDown:
			s.fetch(ctx)
		}
	}
}

func (s *Scheduler) fetch(ctx context.Context) {
	s.cycle++
	s.found = 0
	s.transition(Fetching, fetchingUpdate(s.cycle))

	items, err := s.deps.Scanner.Scan(ctx, s.cfg.Selection)
	if err != nil {
		s.fail(ctx, "scan", err)
		return
	}
	if len(items) == 0 {
		s.logger.Info("no items with drops remaining")
		s.shutdown(ctx, "no items remaining", nil)
		return
	}

	s.found = len(items)
	s.activate(ctx, items)
}

func (s *Scheduler) activate(ctx context.Context, items []models.ProgressItem) {
	batch := items[:min(s.cfg.MaxActive, len(items))]
	s.transition(Activating, activatingUpdate(s.cycle, batch, len(items)))

	if err := s.deps.Guard.EnterPrivate(ctx); err != nil {
		s.fail(ctx, "visibility", err)
		return
	}
	if err := s.deps.Activator.SetActiveItems(ctx, models.ItemIDs(batch)); err != nil {
		s.fail(ctx, "activate", err)
		return
	}

	s.logger.Info("items active", "cycle", s.cycle, "count", len(batch), "deferred", len(items)-len(batch))

	s.deps.Timers.Arm(timers.Cycle, s.cfg.Dwell)
	s.transition(Waiting, waitingUpdate(s.cycle, batch, len(items), time.Now().Add(s.cfg.Dwell)))
}

func (s *Scheduler) deactivate(ctx context.Context) {
	s.transition(Deactivating, deactivatingUpdate(s.cycle))

	err := s.deps.Activator.SetActiveItems(ctx, nil)
	if err != nil && !shared.IsTransient(err) {
		s.fail(ctx, "deactivate", err)
		return
	}
	if err != nil {
		s.logger.Warn("failed to clear active items", "error", err)
	}
	s.coolDown(err)
}

func (s *Scheduler) coolDown(cause error) {
	s.deps.Timers.Arm(timers.Cycle, s.cfg.Cooldown)
	s.transition(CoolingDown, coolingDownUpdate(s.cycle, time.Now().Add(s.cfg.Cooldown), cause))
}

// fail ends the cycle on transient errors and shuts down on anything else.
func (s *Scheduler) fail(ctx context.Context, step string, err error) {
	if ctx.Err() != nil {
		s.shutdown(ctx, "context canceled", nil)
		return
	}
	if shared.IsTransient(err) {
		s.logger.Warn("cycle step failed, retrying next cycle", "step", step, "error", err)
		s.coolDown(err)
		return
	}
	s.logger.Error("cycle step failed", "step", step, "error", err, "fatal", shared.IsFatal(err))
	s.shutdown(ctx, step+" failed", err)
}

func (s *Scheduler) shutdown(ctx context.Context, reason string, cause error) {
	if s.state == ShuttingDown {
		return
	}
	s.logger.Debug("state", "from", s.state, "to", ShuttingDown, "cycle", s.cycle)
	s.state = ShuttingDown
	s.cause = cause
	s.deps.Timers.CancelAll()

	// cleanup runs even when the run context is gone
	cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	s.deps.Guard.RevertToPublic(cleanup)
	if err := s.deps.Session.Logoff(cleanup); err != nil {
		s.logger.Warn("logoff failed", "error", err)
	}
	s.publish(shutdownUpdate(s.cycle, reason, cause))
	s.logger.Info("shut down", "reason", reason)
}

func (s *Scheduler) setPersona(ctx context.Context, state models.PersonaState) {
	if err := s.deps.Activator.SetPersonaState(ctx, state); err != nil {
		s.logger.Warn("persona change failed", "persona", state, "error", err)
		return
	}
	s.logger.Info("persona changed", "persona", state)
	s.publish(noticeUpdate(s.state, s.cycle, "Persona set to "+state.String()))
}

func (s *Scheduler) transition(next State, u StatusUpdate) {
	s.logger.Debug("state", "from", s.state, "to", next, "cycle", s.cycle)
	s.state = next
	s.publish(u)
}

// publish records u as the snapshot and forwards it without blocking.
func (s *Scheduler) publish(u StatusUpdate) {
	u.State = s.state
	u.Private = s.deps.Guard.Private()
	if u.Found == 0 {
		u.Found = s.found
	}

	s.mu.Lock()
	s.snapshot = u
	s.mu.Unlock()

	select {
	case s.updates <- u:
	default:
	}
}
