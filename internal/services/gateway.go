// Session provider backed by the local gateway process
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/badgeidle/internal/models"
	"github.com/desertthunder/badgeidle/internal/shared"
	"github.com/hashicorp/go-retryablehttp"
)

const defaultGatewayURL = "http://127.0.0.1:8090"

// GatewayOptions tunes the retrying HTTP client used by [SessionGateway].
type GatewayOptions struct {
	Timeout time.Duration
	Retries int
	Logger  *log.Logger
}

// SessionGateway implements [Provider] over the gateway's JSON endpoints.
type SessionGateway struct {
	baseURL string
	client  *retryablehttp.Client
	logger  *log.Logger
}

// logonResponse is the wire shape returned by /session/logon and /session/code.
type logonResponse struct {
	Status    string   `json:"status"`
	Identity  string   `json:"identity"`
	SessionID string   `json:"session_id"`
	Cookies   []string `json:"cookies"`
	CodeHint  string   `json:"code_hint"`
	LoginKey  string   `json:"login_key"`
	Message   string   `json:"message"`
}

type ackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewSessionGateway creates a gateway client for baseURL.
func NewSessionGateway(baseURL string, opts GatewayOptions) *SessionGateway {
	if baseURL == "" {
		baseURL = defaultGatewayURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.Retries
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = opts.Timeout
	client.Logger = nil

	return &SessionGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  opts.Logger,
	}
}

// LogOn posts the account secrets and decodes the provider's verdict.
func (g *SessionGateway) LogOn(ctx context.Context, req LogOnRequest) (*LogOnResult, error) {
	var resp logonResponse
	if err := g.post(ctx, "/session/logon", req, &resp); err != nil {
		return nil, err
	}
	return resp.result()
}

// SubmitCode sends a verification code for the pending logon.
func (g *SessionGateway) SubmitCode(ctx context.Context, code string) (*LogOnResult, error) {
	var resp logonResponse
	if err := g.post(ctx, "/session/code", map[string]string{"code": code}, &resp); err != nil {
		return nil, err
	}
	return resp.result()
}

// SetActiveItems replaces the active item list. An empty slice clears it.
func (g *SessionGateway) SetActiveItems(ctx context.Context, ids []int) error {
	if ids == nil {
		ids = []int{}
	}
	return g.ack(ctx, "/session/games", map[string][]int{"app_ids": ids})
}

// SetPersonaState forwards a presence change.
func (g *SessionGateway) SetPersonaState(ctx context.Context, state models.PersonaState) error {
	return g.ack(ctx, "/session/persona", map[string]int{"state": int(state)})
}

// LogOff ends the gateway session.
func (g *SessionGateway) LogOff(ctx context.Context) error {
	return g.ack(ctx, "/session/logoff", struct{}{})
}

func (g *SessionGateway) ack(ctx context.Context, path string, body any) error {
	var resp ackResponse
	if err := g.post(ctx, path, body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s: %s", shared.ErrAPIRequest, path, resp.Message)
	}
	return nil
}

func (g *SessionGateway) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, data)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	requestID := shared.GenerateID()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	g.logger.Debug("gateway request", "path", path, "request_id", requestID)

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: gateway %s: %v", shared.ErrNetworkTransient, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read gateway response: %v", shared.ErrNetworkTransient, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: gateway %s returned status %d: %s",
			shared.ErrAPIRequest, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: gateway %s: invalid JSON: %v", shared.ErrAPIRequest, path, err)
	}
	return nil
}

func (r logonResponse) result() (*LogOnResult, error) {
	status := LogOnStatus(r.Status)
	switch status {
	case StatusOK, StatusCodeRequired, StatusDenied:
	default:
		return nil, fmt.Errorf("%w: unknown logon status %q", shared.ErrAPIRequest, r.Status)
	}

	cookies := make([]*http.Cookie, 0, len(r.Cookies))
	for _, raw := range r.Cookies {
		cookie, err := http.ParseSetCookie(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad session cookie: %v", shared.ErrAPIRequest, err)
		}
		cookies = append(cookies, cookie)
	}

	return &LogOnResult{
		Status:    status,
		Identity:  r.Identity,
		SessionID: r.SessionID,
		Cookies:   cookies,
		CodeHint:  r.CodeHint,
		LoginKey:  r.LoginKey,
		Message:   r.Message,
	}, nil
}
