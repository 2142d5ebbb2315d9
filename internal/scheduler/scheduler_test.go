package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/badgeidle/internal/models"
	"github.com/desertthunder/badgeidle/internal/shared"
	tu "github.com/desertthunder/badgeidle/internal/testing"
	"github.com/desertthunder/badgeidle/internal/timers"
	"github.com/desertthunder/badgeidle/internal/visibility"
)

const (
	dwell    = 15 * time.Minute
	cooldown = 10 * time.Second
	revert   = 10 * time.Second
)

type scriptedScanner struct {
	mu      sync.Mutex
	results [][]models.ProgressItem
	errs    []error
	calls   int
}

func (s *scriptedScanner) Scan(ctx context.Context, sel *models.SelectionSet) ([]models.ProgressItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return nil, nil
}

func (s *scriptedScanner) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeUpdater struct {
	mu      sync.Mutex
	reject  bool
	updates []models.Visibility
}

func (f *fakeUpdater) SetPrivacy(ctx context.Context, identity, sessionID string, v models.Visibility) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, v)
	return !f.reject, nil
}

func (f *fakeUpdater) Updates() []models.Visibility {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Visibility(nil), f.updates...)
}

type fakeSession struct {
	mu      sync.Mutex
	logoffs int
}

func (s *fakeSession) Identity() (string, error) { return "123", nil }
func (s *fakeSession) SessionID() string         { return "sess" }
func (s *fakeSession) Logoff(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoffs++
	return nil
}

func (s *fakeSession) Logoffs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoffs
}

type harness struct {
	clock    *tu.FakeClock
	set      *timers.Set
	provider *tu.MockProvider
	scanner  *scriptedScanner
	updater  *fakeUpdater
	session  *fakeSession
	sched    *Scheduler
	cancel   context.CancelFunc
	errc     chan error
}

func newHarness(t *testing.T, scanner *scriptedScanner, cfg Config) *harness {
	t.Helper()
	logger := log.New(io.Discard)

	h := &harness{
		clock:    tu.NewFakeClock(),
		provider: &tu.MockProvider{},
		scanner:  scanner,
		updater:  &fakeUpdater{},
		session:  &fakeSession{},
		errc:     make(chan error, 1),
	}
	h.set = timers.New(h.clock)

	if cfg.Dwell == 0 {
		cfg.Dwell = dwell
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = cooldown
	}

	guard := visibility.New(h.updater, h.session, h.set, revert, logger)
	h.sched = New(Deps{
		Scanner:   scanner,
		Guard:     guard,
		Activator: h.provider,
		Session:   h.session,
		Timers:    h.set,
		Logger:    logger,
	}, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(func() {
		cancel()
		h.set.Close()
	})
	go func() { h.errc <- h.sched.Run(ctx) }()
	return h
}

// waitUntil consumes updates until match returns true.
func (h *harness) waitUntil(t *testing.T, desc string, match func(StatusUpdate) bool) StatusUpdate {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-h.sched.Updates():
			if !ok {
				t.Fatalf("updates closed while waiting for %s", desc)
			}
			if match(u) {
				return u
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", desc)
		}
	}
}

func (h *harness) waitState(t *testing.T, state State, cycle int) StatusUpdate {
	t.Helper()
	return h.waitUntil(t, fmt.Sprintf("%s in cycle %d", state, cycle), func(u StatusUpdate) bool {
		return u.State == state && u.Cycle == cycle
	})
}

func (h *harness) result(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
		return nil
	}
}

// drain collects the remaining updates after Run returns.
func (h *harness) drain() []State {
	var states []State
	for u := range h.sched.Updates() {
		states = append(states, u.State)
	}
	return states
}

func items(ids ...int) []models.ProgressItem {
	out := make([]models.ProgressItem, len(ids))
	for i, id := range ids {
		out[i] = models.ProgressItem{ID: id, Title: fmt.Sprintf("Game %d", id), Remaining: 1}
	}
	return out
}

func seq(from, to int) []int {
	var ids []int
	for i := from; i <= to; i++ {
		ids = append(ids, i)
	}
	return ids
}

func TestScheduler(t *testing.T) {
	t.Run("Full Cycle", func(t *testing.T) {
		h := newHarness(t, &scriptedScanner{results: [][]models.ProgressItem{items(1, 2), items(3)}}, Config{})
		h.sched.SessionReady()

		u := h.waitState(t, Waiting, 1)
		if !u.Private {
			t.Error("expected profile to be private while activating")
		}
		if got := h.provider.Active(); len(got) != 1 || !reflect.DeepEqual(got[0], []int{1, 2}) {
			t.Fatalf("unexpected activations %v", got)
		}

		h.clock.Advance(revert)
		h.waitUntil(t, "visibility revert", func(u StatusUpdate) bool { return !u.Private })
		if got := h.updater.Updates(); !reflect.DeepEqual(got, []models.Visibility{models.VisibilityPrivate, models.VisibilityPublic}) {
			t.Errorf("unexpected visibility updates %v", got)
		}

		h.clock.Advance(dwell - revert)
		h.waitState(t, CoolingDown, 1)
		if got := h.provider.Active(); len(got) != 2 || len(got[1]) != 0 {
			t.Errorf("expected active items cleared, got %v", got)
		}

		h.clock.Advance(cooldown)
		h.waitState(t, Waiting, 2)
		if got := h.provider.Active(); !reflect.DeepEqual(got[2], []int{3}) {
			t.Errorf("expected second batch [3], got %v", got[2])
		}

		h.sched.RequestShutdown()
		if err := h.result(t); err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
		if h.session.Logoffs() != 1 {
			t.Errorf("expected one logoff, got %d", h.session.Logoffs())
		}
		if h.set.Live(timers.Cycle) || h.set.Live(timers.Revert) || h.clock.Pending() != 0 {
			t.Error("expected all timers cancelled on shutdown")
		}
		vis := h.updater.Updates()
		if vis[len(vis)-1] != models.VisibilityPublic {
			t.Error("shutdown must leave the profile public")
		}
	})

	t.Run("Empty Scan Shuts Down", func(t *testing.T) {
		h := newHarness(t, &scriptedScanner{}, Config{})
		h.sched.SessionReady()

		if err := h.result(t); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
		if states := h.drain(); !reflect.DeepEqual(states, []State{Fetching, ShuttingDown}) {
			t.Errorf("states = %v, want [fetching shutting_down]", states)
		}
		for _, call := range h.provider.Calls() {
			if call == "activate" {
				t.Error("no items may be activated")
			}
		}
		if h.session.Logoffs() != 1 {
			t.Errorf("expected logoff, got %d", h.session.Logoffs())
		}
	})

	t.Run("Activation Is Capped", func(t *testing.T) {
		all := items(seq(1, 40)...)
		h := newHarness(t, &scriptedScanner{results: [][]models.ProgressItem{all, all[27:]}}, Config{MaxActive: 50})
		h.sched.SessionReady()

		u := h.waitState(t, Waiting, 1)
		if len(u.Active) != shared.MaxActiveItems || u.Found != 40 {
			t.Errorf("expected 27 of 40 active, got %d of %d", len(u.Active), u.Found)
		}
		if got := h.provider.Active()[0]; !reflect.DeepEqual(got, seq(1, 27)) {
			t.Errorf("expected first 27 in discovery order, got %v", got)
		}

		h.clock.Advance(dwell)
		h.waitState(t, CoolingDown, 1)
		h.clock.Advance(cooldown)
		h.waitState(t, Waiting, 2)
		if got := h.provider.Active()[2]; !reflect.DeepEqual(got, seq(28, 40)) {
			t.Errorf("expected deferred 13 next cycle, got %v", got)
		}
	})

	t.Run("Transient Scan Failure Retries Next Cycle", func(t *testing.T) {
		scanner := &scriptedScanner{
			errs:    []error{fmt.Errorf("%w: timeout", shared.ErrNetworkTransient)},
			results: [][]models.ProgressItem{nil, items(5)},
		}
		h := newHarness(t, scanner, Config{})
		h.sched.SessionReady()

		u := h.waitState(t, CoolingDown, 1)
		if u.Err == "" {
			t.Error("expected cooldown update to carry the error")
		}
		h.clock.Advance(cooldown)
		h.waitState(t, Waiting, 2)
		if scanner.Calls() != 2 {
			t.Errorf("expected two scans, got %d", scanner.Calls())
		}
	})

	t.Run("Fatal Scan Failure", func(t *testing.T) {
		h := newHarness(t, &scriptedScanner{errs: []error{shared.ErrLockedOut}}, Config{})
		h.sched.SessionReady()

		if err := h.result(t); !errors.Is(err, shared.ErrLockedOut) {
			t.Errorf("expected ErrLockedOut, got %v", err)
		}
		if h.session.Logoffs() != 1 {
			t.Error("fatal errors must log off")
		}
	})

	t.Run("Visibility Failure Is Fatal", func(t *testing.T) {
		h := newHarness(t, &scriptedScanner{results: [][]models.ProgressItem{items(1)}}, Config{})
		h.updater.reject = true
		h.sched.SessionReady()

		if err := h.result(t); !errors.Is(err, shared.ErrVisibilityUpdateFailed) {
			t.Errorf("expected ErrVisibilityUpdateFailed, got %v", err)
		}
		if len(h.provider.Active()) != 0 {
			t.Error("items must not be activated when entering private fails")
		}
	})

	t.Run("Transient Activation Failure", func(t *testing.T) {
		h := newHarness(t, &scriptedScanner{results: [][]models.ProgressItem{items(1), items(1)}}, Config{})
		h.provider.ActiveErr = fmt.Errorf("%w: gateway down", shared.ErrNetworkTransient)
		h.sched.SessionReady()

		h.waitState(t, CoolingDown, 1)
		if !h.set.Live(timers.Revert) {
			t.Error("revert must stay armed after entering private")
		}
	})

	t.Run("Refetch", func(t *testing.T) {
		t.Run("Cuts Waiting Short", func(t *testing.T) {
			scanner := &scriptedScanner{results: [][]models.ProgressItem{items(1), items(2)}}
			h := newHarness(t, scanner, Config{})
			h.sched.SessionReady()
			h.waitState(t, Waiting, 1)

			h.sched.RequestRefetch()
			h.waitState(t, Waiting, 2)

			if got := h.provider.Calls(); !reflect.DeepEqual(got, []string{"activate", "activate"}) {
				t.Errorf("calls = %v, want two activations without a clear", got)
			}
			// only the current dwell timer and its revert remain
			if h.clock.Pending() != 2 {
				t.Errorf("expected 2 pending timers, got %d", h.clock.Pending())
			}
		})

		t.Run("Ignored While Idle", func(t *testing.T) {
			scanner := &scriptedScanner{results: [][]models.ProgressItem{items(1)}}
			h := newHarness(t, scanner, Config{})
			h.sched.RequestRefetch()
			h.sched.SessionReady()
			h.waitState(t, Waiting, 1)

			if scanner.Calls() != 1 {
				t.Errorf("expected a single scan, got %d", scanner.Calls())
			}
		})
	})

	t.Run("Persona", func(t *testing.T) {
		online := models.PersonaOnline
		h := newHarness(t, &scriptedScanner{results: [][]models.ProgressItem{items(1)}}, Config{Persona: &online})
		h.sched.SessionReady()
		h.waitState(t, Waiting, 1)

		if err := h.sched.RequestPersonaChange("Away"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		h.waitUntil(t, "persona notice", func(u StatusUpdate) bool { return u.Message == "Persona set to away" })

		want := []models.PersonaState{models.PersonaOnline, models.PersonaAway}
		if got := h.provider.Personas(); !reflect.DeepEqual(got, want) {
			t.Errorf("personas = %v, want %v", got, want)
		}
		if err := h.sched.RequestPersonaChange("dancing"); !errors.Is(err, shared.ErrUnknownPersona) {
			t.Errorf("expected ErrUnknownPersona, got %v", err)
		}
	})

	t.Run("Context Cancellation", func(t *testing.T) {
		h := newHarness(t, &scriptedScanner{results: [][]models.ProgressItem{items(1)}}, Config{})
		h.sched.SessionReady()
		h.waitState(t, Waiting, 1)

		h.cancel()
		if err := h.result(t); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
		if h.session.Logoffs() != 1 {
			t.Error("cancellation must still log off")
		}
		if err := h.sched.RequestShutdown(); !errors.Is(err, shared.ErrSchedulerStopped) {
			t.Errorf("expected ErrSchedulerStopped, got %v", err)
		}
	})

	t.Run("Snapshot", func(t *testing.T) {
		h := newHarness(t, &scriptedScanner{results: [][]models.ProgressItem{items(4, 5)}}, Config{})
		if snap := h.sched.Snapshot(); snap.State != Idle {
			t.Errorf("expected idle snapshot, got %s", snap.State)
		}

		h.sched.SessionReady()
		h.waitState(t, Waiting, 1)

		snap := h.sched.Snapshot()
		if snap.State != Waiting || len(snap.Active) != 2 || snap.WakeAt.IsZero() {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})
}

func TestStateNames(t *testing.T) {
	for state := Idle; state <= ShuttingDown; state++ {
		if state.String() == "" {
			t.Errorf("state %d has no name", state)
		}
	}
	text, _ := CoolingDown.MarshalText()
	if string(text) != "cooling_down" {
		t.Errorf("unexpected text %q", text)
	}
}
