// package session drives the authentication handshake with the session provider
// and owns the resulting web session.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/badgeidle/internal/models"
	"github.com/desertthunder/badgeidle/internal/services"
	"github.com/desertthunder/badgeidle/internal/shared"
)

// Prompter asks the operator for a verification code and blocks until one is supplied.
type Prompter interface {
	Prompt(ctx context.Context, hint string) (string, error)
}

// PrompterFunc adapts a function to [Prompter].
type PrompterFunc func(ctx context.Context, hint string) (string, error)

func (f PrompterFunc) Prompt(ctx context.Context, hint string) (string, error) { return f(ctx, hint) }

// KeyStore persists the login key issued after a successful logon.
//
// Get returns "" without error when no key is stored.
type KeyStore interface {
	Get(ctx context.Context, account string) (string, error)
	Save(ctx context.Context, account, key string) error
	Delete(ctx context.Context, account string) error
}

// CookieStore is the shared cookie jar the web session is merged into.
type CookieStore interface {
	MergeCookies(cookies []*http.Cookie)
	SetSessionID(id string)
}

// Options configures a [Controller]. Keys and Prompter are optional.
type Options struct {
	Prompter Prompter
	Keys     KeyStore
	Logger   *log.Logger
}

// Controller owns the credentials-to-session lifecycle.
type Controller struct {
	provider services.Provider
	cookies  CookieStore
	prompter Prompter
	keys     KeyStore
	logger   *log.Logger

	mu        sync.RWMutex
	identity  string
	sessionID string
	ready     bool
	closed    bool
}

// NewController creates a Controller for provider that merges session cookies into cookies.
func NewController(provider services.Provider, cookies CookieStore, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Controller{
		provider: provider,
		cookies:  cookies,
		prompter: opts.Prompter,
		keys:     opts.Keys,
		logger:   shared.WithLogger(opts.Logger, "component", "session"),
	}
}

// Login performs the handshake. A verification code is requested at most once per attempt.
//
// A stored login key that the provider rejects is discarded and the logon retried once with the
// password alone.
func (c *Controller) Login(ctx context.Context, creds models.Credentials) error {
	if creds.Empty() {
		return shared.ErrMissingCredentials
	}

	c.mu.RLock()
	ready, closed := c.ready, c.closed
	c.mu.RUnlock()
	if ready {
		return nil
	}
	if closed {
		return fmt.Errorf("%w: session was logged off", shared.ErrNotAuthenticated)
	}

	key := c.loadKey(ctx, creds.AccountName)
	err := c.attempt(ctx, creds, key)
	if key != "" && errors.Is(err, shared.ErrAuthFailed) && ctx.Err() == nil {
		c.logger.Warn("stored login key rejected, retrying with password")
		c.dropKey(ctx, creds.AccountName)
		err = c.attempt(ctx, creds, "")
	}
	return err
}

func (c *Controller) attempt(ctx context.Context, creds models.Credentials, key string) error {
	c.logger.Info("logging on", "account", creds.AccountName, "with_key", key != "")

	res, err := c.provider.LogOn(ctx, services.LogOnRequest{
		AccountName: creds.AccountName,
		Password:    creds.Password,
		LoginKey:    key,
	})
	if err != nil {
		return fmt.Errorf("logon request: %w", err)
	}

	prompted := false
	for {
		switch res.Status {
		case services.StatusOK:
			return c.establish(ctx, creds.AccountName, res)
		case services.StatusDenied:
			return fmt.Errorf("%w: %s", shared.ErrAuthFailed, denialReason(res))
		case services.StatusCodeRequired:
			if prompted {
				return fmt.Errorf("%w: verification code rejected", shared.ErrAuthFailed)
			}
			if c.prompter == nil {
				return fmt.Errorf("%w: verification code required but no prompt is available", shared.ErrAuthFailed)
			}
			prompted = true

			c.logger.Info("verification code required", "sent_to", res.CodeHint)
			code, err := c.prompter.Prompt(ctx, res.CodeHint)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("%w: verification prompt: %v", shared.ErrAuthFailed, err)
			}
			if res, err = c.provider.SubmitCode(ctx, code); err != nil {
				return fmt.Errorf("verification request: %w", err)
			}
		default:
			return fmt.Errorf("%w: unexpected logon status %q", shared.ErrAuthFailed, res.Status)
		}
	}
}

func (c *Controller) establish(ctx context.Context, account string, res *services.LogOnResult) error {
	if res.Identity == "" {
		return fmt.Errorf("%w: provider returned no identity", shared.ErrAuthFailed)
	}

	c.cookies.MergeCookies(res.Cookies)
	c.cookies.SetSessionID(res.SessionID)

	c.mu.Lock()
	c.identity = res.Identity
	c.sessionID = res.SessionID
	c.ready = true
	c.mu.Unlock()

	if res.LoginKey != "" && c.keys != nil {
		if err := c.keys.Save(ctx, account, res.LoginKey); err != nil {
			c.logger.Warn("failed to store login key", "error", err)
		}
	}

	c.logger.Info("session ready", "identity", res.Identity, "cookies", len(res.Cookies))
	return nil
}

func (c *Controller) loadKey(ctx context.Context, account string) string {
	if c.keys == nil {
		return ""
	}
	key, err := c.keys.Get(ctx, account)
	if err != nil {
		c.logger.Warn("failed to load login key", "error", err)
		return ""
	}
	return key
}

func (c *Controller) dropKey(ctx context.Context, account string) {
	if c.keys == nil {
		return
	}
	if err := c.keys.Delete(ctx, account); err != nil {
		c.logger.Warn("failed to delete login key", "error", err)
	}
}

// Identity returns the account identity used to build profile URLs.
func (c *Controller) Identity() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.ready {
		return "", shared.ErrNotAuthenticated
	}
	return c.identity, nil
}

// SessionID returns the web session token, or "" before login.
func (c *Controller) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Ready reports whether a session is established.
func (c *Controller) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Logoff invalidates the session. Calling it again, or before login, does nothing.
func (c *Controller) Logoff(ctx context.Context) error {
	c.mu.Lock()
	if !c.ready {
		c.mu.Unlock()
		return nil
	}
	c.ready = false
	c.closed = true
	c.identity = ""
	c.sessionID = ""
	c.mu.Unlock()

	c.logger.Info("logging off")
	if err := c.provider.LogOff(ctx); err != nil {
		return fmt.Errorf("logoff: %w", err)
	}
	return nil
}

func denialReason(res *services.LogOnResult) string {
	if res.Message != "" {
		return res.Message
	}
	return "credentials rejected"
}
