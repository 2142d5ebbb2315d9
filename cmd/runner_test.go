package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/badgeidle/internal/scheduler"
	"github.com/desertthunder/badgeidle/internal/shared"
	tu "github.com/desertthunder/badgeidle/internal/testing"
	"github.com/urfave/cli/v3"
)

const listingPage = `<html><body>
<div class="badge_row">
  <div class="badge_title">Portal 2</div>
  <div class="badge_title_playgame"><a href="steam://run/620">Play</a></div>
  <span class="progress_info_bold">3 card drops remaining</span>
</div>
<div class="badge_row">
  <div class="badge_title">Half-Life</div>
  <div class="badge_title_playgame"><a href="steam://run/70">Play</a></div>
  <span class="progress_info_bold">No card drops remaining</span>
</div>
</body></html>`

// fakeRemote serves both the session gateway and the community site.
type fakeRemote struct {
	mu      sync.Mutex
	calls   []string
	listing string
	server  *httptest.Server
}

func newFakeRemote(t *testing.T, listing string) *fakeRemote {
	t.Helper()
	f := &fakeRemote{listing: listing}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeRemote) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.URL.Path)
	f.mu.Unlock()

	switch {
	case r.URL.Path == "/session/logon":
		json.NewEncoder(w).Encode(map[string]any{
			"status":     "ok",
			"identity":   "76561198000000001",
			"session_id": "sess",
			"cookies":    []string{"steamLoginSecure=abc; Path=/"},
		})
	case strings.HasPrefix(r.URL.Path, "/session/"):
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	case strings.HasSuffix(r.URL.Path, "/badges"):
		w.Write([]byte(f.listing))
	case strings.HasSuffix(r.URL.Path, "/ajaxsetprivacy/"):
		w.Write([]byte(`{"success":1}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeRemote) called(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == path {
			n++
		}
	}
	return n
}

func testConfig(url string) *shared.Config {
	config := shared.DefaultConfig()
	config.Gateway.URL = url
	config.Gateway.Retries = 0
	config.Community.BaseURL = url
	config.Community.RequestsPerSecond = 100
	config.Database.Path = ":memory:"
	config.Idle.SelectionFile = ""
	config.Account = shared.AccountConfig{}
	return config
}

func runApp(t *testing.T, runner *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "badgeidle", Commands: runner.register()}
	return app.Run(context.Background(), append([]string{"badgeidle"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			input := strings.NewReader("")

			runner := NewRunner(RunnerOpts{Config: config, Logger: logger, Output: output, Input: input})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.input != input {
				t.Error("expected input to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.input != os.Stdin {
				t.Error("expected input to default to os.Stdin")
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlainln("hello")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		names := []string{}
		for _, c := range runner.register() {
			names = append(names, c.Name)
		}
		if strings.Join(names, ",") != "run,scan,setup" {
			t.Errorf("unexpected commands %v", names)
		}
	})

	t.Run("loadConfig", func(t *testing.T) {
		t.Run("missing file uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})
			config, err := runner.loadConfig(filepath.Join(t.TempDir(), "none.toml"))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if config.Idle.MaxActive != shared.MaxActiveItems {
				t.Errorf("expected default max_active, got %d", config.Idle.MaxActive)
			}
		})

		t.Run("invalid values are rejected", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			os.WriteFile(path, []byte("[idle]\nmax_active = 40\n"), 0600)

			runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard)})
			if _, err := runner.loadConfig(path); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	})
}

func TestResolveCredentials(t *testing.T) {
	account := shared.AccountConfig{Name: "file-user", Password: "file-pass", PIN: "1111"}

	tt := []struct {
		name    string
		args    [3]string
		flags   [3]string
		account shared.AccountConfig
		want    [2]string
		pin     string
		err     bool
	}{
		{name: "config only", account: account, want: [2]string{"file-user", "file-pass"}, pin: "1111"},
		{name: "env beats config", flags: [3]string{"env-user", "", "2222"}, account: account, want: [2]string{"env-user", "file-pass"}, pin: "2222"},
		{name: "args beat env", args: [3]string{"arg-user", "arg-pass", "3333"}, flags: [3]string{"env-user", "env-pass", "2222"}, account: account, want: [2]string{"arg-user", "arg-pass"}, pin: "3333"},
		{name: "nothing supplied", want: [2]string{"", ""}},
		{name: "leading zero kept", args: [3]string{"a", "b", "0123"}, want: [2]string{"a", "b"}, pin: "0123"},
		{name: "leading zero from env", flags: [3]string{"a", "b", "0042"}, want: [2]string{"a", "b"}, pin: "0042"},
		{name: "bad pin", args: [3]string{"a", "b", "12x4"}, err: true},
		{name: "negative pin", args: [3]string{"a", "b", "-12"}, err: true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			creds, err := resolveCredentials(tc.args, tc.flags, tc.account)
			if tc.err {
				if !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if creds.AccountName != tc.want[0] || creds.Password != tc.want[1] || creds.PIN != tc.pin {
				t.Errorf("unexpected credentials %+v", creds)
			}
		})
	}
}

func TestCommands(t *testing.T) {
	t.Run("run without credentials is a no-op", func(t *testing.T) {
		remote := newFakeRemote(t, listingPage)
		runner := NewRunner(RunnerOpts{Config: testConfig(remote.server.URL), Logger: shared.NewLogger(io.Discard)})

		err := runApp(t, runner, "run", "--no-console")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
		if len(remote.calls) != 0 {
			t.Errorf("expected no remote calls, got %v", remote.calls)
		}
	})

	t.Run("scan prints items and logs off", func(t *testing.T) {
		remote := newFakeRemote(t, listingPage)
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{
			Config: testConfig(remote.server.URL),
			Logger: shared.NewLogger(io.Discard),
			Output: output,
			Input:  strings.NewReader(""),
		})

		if err := runApp(t, runner, "scan", "--format", "csv", "alice", "hunter2"); err != nil {
			t.Fatalf("scan failed: %v", err)
		}

		want := "ID,Title,Remaining\n620,Portal 2,3\n"
		if output.String() != want {
			t.Errorf("output = %q, want %q", output.String(), want)
		}
		if remote.called("/session/logoff") != 1 {
			t.Error("expected one logoff")
		}
		if remote.called("/session/games") != 0 {
			t.Error("scan must not activate items")
		}
	})

	t.Run("scan rejects unknown format", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Config: testConfig("http://127.0.0.1:9"), Logger: shared.NewLogger(io.Discard)})
		if err := runApp(t, runner, "scan", "--format", "xml", "a", "b"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("run stops when nothing remains", func(t *testing.T) {
		remote := newFakeRemote(t, "<html><body></body></html>")
		runner := NewRunner(RunnerOpts{
			Config: testConfig(remote.server.URL),
			Logger: shared.NewLogger(io.Discard),
			Output: &bytes.Buffer{},
			Input:  strings.NewReader(""),
		})

		if err := runApp(t, runner, "run", "--no-console", "alice", "hunter2"); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if remote.called("/session/logon") != 1 || remote.called("/session/logoff") != 1 {
			t.Errorf("unexpected calls %v", remote.calls)
		}
		if remote.called("/session/persona") != 1 {
			t.Error("expected the configured persona to be applied")
		}
		if remote.called("/session/games") != 0 {
			t.Error("expected no activation for an empty listing")
		}
	})

	t.Run("setup config writes the example", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), Output: &bytes.Buffer{}})

		if err := runApp(t, runner, "setup", "config", "--config", path); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, path)

		if err := runApp(t, runner, "setup", "config", "--config", path); err == nil {
			t.Error("expected an error when the file already exists")
		}
	})

	t.Run("setup database creates the file", func(t *testing.T) {
		dir := t.TempDir()
		config := testConfig("http://127.0.0.1:9")
		config.Database.Path = filepath.Join(dir, "data", "badgeidle.db")
		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard), Output: &bytes.Buffer{}})

		if err := runApp(t, runner, "setup", "database"); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		tu.AssertFileExists(t, config.Database.Path)
	})
}

type stoppedSink struct{ shutdowns int }

func (s *stoppedSink) RequestShutdown() error {
	s.shutdowns++
	return shared.ErrSchedulerStopped
}
func (s *stoppedSink) RequestRefetch() error                  { return shared.ErrSchedulerStopped }
func (s *stoppedSink) RequestPersonaChange(name string) error { return shared.ErrSchedulerStopped }
func (s *stoppedSink) Snapshot() scheduler.StatusUpdate       { return scheduler.StatusUpdate{} }

func TestRequestShutdown(t *testing.T) {
	var buf bytes.Buffer
	sink := &stoppedSink{}

	requestShutdown(log.New(&buf), sink)

	if sink.shutdowns != 1 {
		t.Errorf("expected one shutdown request, got %d", sink.shutdowns)
	}
	if !strings.Contains(buf.String(), "shutdown request failed") || !strings.Contains(buf.String(), "scheduler stopped") {
		t.Errorf("expected the refusal to be logged, got %q", buf.String())
	}
}
