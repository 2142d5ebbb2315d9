// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/badgeidle/internal/models"
	"github.com/desertthunder/badgeidle/internal/services"
	"github.com/desertthunder/badgeidle/internal/timers"
)

// DefaultIdentity is the identity reported by [MockProvider] when no logon result is queued.
const DefaultIdentity = "76561198000000001"

// MockProvider is a recording test double for [services.Provider]
type MockProvider struct {
	mu sync.Mutex

	LogOnResults []*services.LogOnResult // consumed in order by LogOn
	CodeResults  []*services.LogOnResult // consumed in order by SubmitCode

	LogOnErr   error
	SubmitErr  error
	ActiveErr  error
	PersonaErr error
	LogOffErr  error

	requests []services.LogOnRequest
	codes    []string
	active   [][]int
	personas []models.PersonaState
	calls    []string
	logoffs  int
}

func (m *MockProvider) LogOn(ctx context.Context, req services.LogOnRequest) (*services.LogOnResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "logon")
	m.requests = append(m.requests, req)
	if m.LogOnErr != nil {
		return nil, m.LogOnErr
	}
	if len(m.LogOnResults) == 0 {
		return &services.LogOnResult{Status: services.StatusOK, Identity: DefaultIdentity, SessionID: "session-token"}, nil
	}
	res := m.LogOnResults[0]
	m.LogOnResults = m.LogOnResults[1:]
	return res, nil
}

func (m *MockProvider) SubmitCode(ctx context.Context, code string) (*services.LogOnResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "code")
	m.codes = append(m.codes, code)
	if m.SubmitErr != nil {
		return nil, m.SubmitErr
	}
	if len(m.CodeResults) == 0 {
		return &services.LogOnResult{Status: services.StatusOK, Identity: DefaultIdentity, SessionID: "session-token"}, nil
	}
	res := m.CodeResults[0]
	m.CodeResults = m.CodeResults[1:]
	return res, nil
}

func (m *MockProvider) SetActiveItems(ctx context.Context, ids []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(ids) == 0 {
		m.calls = append(m.calls, "clear")
	} else {
		m.calls = append(m.calls, "activate")
	}
	m.active = append(m.active, append([]int(nil), ids...))
	return m.ActiveErr
}

func (m *MockProvider) SetPersonaState(ctx context.Context, state models.PersonaState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "persona")
	m.personas = append(m.personas, state)
	return m.PersonaErr
}

func (m *MockProvider) LogOff(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "logoff")
	m.logoffs++
	return m.LogOffErr
}

// Requests returns the logon requests received so far.
func (m *MockProvider) Requests() []services.LogOnRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]services.LogOnRequest(nil), m.requests...)
}

// Codes returns the verification codes submitted so far.
func (m *MockProvider) Codes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.codes...)
}

// Active returns every id list passed to SetActiveItems, clears included.
func (m *MockProvider) Active() [][]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]int, len(m.active))
	copy(out, m.active)
	return out
}

// Personas returns the persona states set so far.
func (m *MockProvider) Personas() []models.PersonaState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PersonaState(nil), m.personas...)
}

// Calls returns the provider operations in the order they were made.
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// LogOffs returns how many times LogOff was called.
func (m *MockProvider) LogOffs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logoffs
}

// MemoryKeyStore is an in-memory login key store
type MemoryKeyStore struct {
	mu      sync.Mutex
	Keys    map[string]string
	SaveErr error
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{Keys: make(map[string]string)}
}

func (s *MemoryKeyStore) Get(ctx context.Context, account string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Keys[account], nil
}

func (s *MemoryKeyStore) Save(ctx context.Context, account, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Keys[account] = key
	return nil
}

func (s *MemoryKeyStore) Delete(ctx context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Keys, account)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if m.response != nil && m.response.Request == nil {
		m.response.Request = req
	}
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// FakeClock is a manually advanced [timers.Clock] for tests.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *FakeClock
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// NewFakeClock returns a clock at time zero.
func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) timers.Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, at: c.now + d, seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and runs every due callback in deadline order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	kept := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case t.at <= c.now:
			t.fired = true
			due = append(due, t)
		default:
			kept = append(kept, t)
		}
	}
	c.timers = kept
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].seq < due[j].seq
		}
		return due[i].at < due[j].at
	})
	for _, t := range due {
		t.f()
	}
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Now returns the elapsed fake time.
func (c *FakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
