package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/desertthunder/badgeidle/internal/models"
	"github.com/desertthunder/badgeidle/internal/shared"
)

func newTestGateway(url string) *SessionGateway {
	return NewSessionGateway(url, GatewayOptions{Retries: 0})
}

func TestSessionGateway(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("Defaults", func(t *testing.T) {
			g := NewSessionGateway("", GatewayOptions{Retries: -1})
			if g.baseURL != defaultGatewayURL {
				t.Errorf("expected default url, got %s", g.baseURL)
			}
			if g.client.RetryMax != 0 {
				t.Errorf("expected negative retries clamped to 0, got %d", g.client.RetryMax)
			}
			if g.client.Logger != nil {
				t.Error("expected retry logging to be disabled")
			}
		})

		t.Run("Trailing Slash", func(t *testing.T) {
			g := NewSessionGateway("http://example.com/", GatewayOptions{})
			if g.baseURL != "http://example.com" {
				t.Errorf("expected trailing slash trimmed, got %s", g.baseURL)
			}
		})
	})

	t.Run("LogOn", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/session/logon" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if r.Header.Get("X-Request-Id") == "" {
					t.Error("expected a request id header")
				}

				var req LogOnRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Fatalf("failed to decode request: %v", err)
				}
				if req.AccountName != "alice" || req.Password != "hunter2" || req.LoginKey != "key" {
					t.Errorf("unexpected request body %+v", req)
				}

				json.NewEncoder(w).Encode(map[string]any{
					"status":     "ok",
					"identity":   "76561198000000001",
					"session_id": "sess",
					"cookies":    []string{"steamLoginSecure=abc; Path=/", "steamCountry=US"},
					"login_key":  "next-key",
				})
			}))
			defer server.Close()

			res, err := newTestGateway(server.URL).LogOn(context.Background(), LogOnRequest{
				AccountName: "alice", Password: "hunter2", LoginKey: "key",
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if res.Status != StatusOK {
				t.Errorf("expected ok status, got %s", res.Status)
			}
			if res.Identity != "76561198000000001" || res.SessionID != "sess" || res.LoginKey != "next-key" {
				t.Errorf("unexpected result %+v", res)
			}
			if len(res.Cookies) != 2 || res.Cookies[0].Name != "steamLoginSecure" || res.Cookies[0].Value != "abc" {
				t.Errorf("unexpected cookies %v", res.Cookies)
			}
		})

		t.Run("Code Required", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"status": "code_required", "code_hint": "a***@example.com"})
			}))
			defer server.Close()

			res, err := newTestGateway(server.URL).LogOn(context.Background(), LogOnRequest{AccountName: "alice"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if res.Status != StatusCodeRequired || res.CodeHint != "a***@example.com" {
				t.Errorf("unexpected result %+v", res)
			}
		})

		t.Run("Unknown Status", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"status": "maybe"})
			}))
			defer server.Close()

			_, err := newTestGateway(server.URL).LogOn(context.Background(), LogOnRequest{})
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Invalid JSON", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			}))
			defer server.Close()

			_, err := newTestGateway(server.URL).LogOn(context.Background(), LogOnRequest{})
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})
	})

	t.Run("SubmitCode", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/session/code" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["code"] != "ABCDE" {
				t.Errorf("expected code ABCDE, got %q", body["code"])
			}
			json.NewEncoder(w).Encode(map[string]any{"status": "denied", "message": "bad code"})
		}))
		defer server.Close()

		res, err := newTestGateway(server.URL).SubmitCode(context.Background(), "ABCDE")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Status != StatusDenied || res.Message != "bad code" {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("SetActiveItems", func(t *testing.T) {
		tt := []struct {
			name string
			ids  []int
			want []int
		}{
			{name: "Some Items", ids: []int{10, 20}, want: []int{10, 20}},
			{name: "Nil Clears", ids: nil, want: []int{}},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					var body map[string][]int
					if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
						t.Fatalf("failed to decode: %v", err)
					}
					got, ok := body["app_ids"]
					if !ok || got == nil {
						t.Fatalf("expected app_ids array, got %v", body)
					}
					if !reflect.DeepEqual(got, tc.want) {
						t.Errorf("app_ids = %v, want %v", got, tc.want)
					}
					json.NewEncoder(w).Encode(map[string]any{"success": true})
				}))
				defer server.Close()

				if err := newTestGateway(server.URL).SetActiveItems(context.Background(), tc.ids); err != nil {
					t.Errorf("expected no error, got %v", err)
				}
			})
		}
	})

	t.Run("SetPersonaState", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var body map[string]int
			json.NewDecoder(r.Body).Decode(&body)
			if body["state"] != int(models.PersonaAway) {
				t.Errorf("expected away state, got %d", body["state"])
			}
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		}))
		defer server.Close()

		if err := newTestGateway(server.URL).SetPersonaState(context.Background(), models.PersonaAway); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		t.Run("Rejected Acknowledgement", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "no session"})
			}))
			defer server.Close()

			err := newTestGateway(server.URL).LogOff(context.Background())
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Client Error Status", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte("bad request"))
			}))
			defer server.Close()

			err := newTestGateway(server.URL).LogOff(context.Background())
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
			if shared.IsTransient(err) {
				t.Error("4xx should not be transient")
			}
		})

		t.Run("Server Error Is Transient", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer server.Close()

			err := newTestGateway(server.URL).SetActiveItems(context.Background(), []int{1})
			if !shared.IsTransient(err) {
				t.Errorf("expected transient error, got %v", err)
			}
		})

		t.Run("Unreachable Gateway", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			url := server.URL
			server.Close()

			err := newTestGateway(url).LogOff(context.Background())
			if !shared.IsTransient(err) {
				t.Errorf("expected transient error, got %v", err)
			}
		})
	})
}
