// package lockgate lifts the content lock that blocks the status listing.
package lockgate

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/badgeidle/internal/models"
	"github.com/desertthunder/badgeidle/internal/services"
	"github.com/desertthunder/badgeidle/internal/shared"
)

// Unlocker issues the unlock request and owns the cookie store.
type Unlocker interface {
	Unlock(ctx context.Context, pin, sessionID string) (*services.UnlockResult, error)
	MergeCookies(cookies []*http.Cookie)
}

// Session supplies the web session token.
type Session interface {
	SessionID() string
}

// Gate performs a single unlock exchange. It never retries.
type Gate struct {
	community Unlocker
	session   Session
	logger    *log.Logger
}

// New creates a Gate.
func New(community Unlocker, session Session, logger *log.Logger) *Gate {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Gate{
		community: community,
		session:   session,
		logger:    shared.WithLogger(logger, "component", "lockgate"),
	}
}

// Unlock submits pin. It succeeds only when the site reports success and sets the unlock cookie.
func (g *Gate) Unlock(ctx context.Context, pin string) error {
	if !models.PINConfigured(pin) {
		return shared.ErrPinRequired
	}
	sessionID := g.session.SessionID()
	if sessionID == "" {
		return shared.ErrNotAuthenticated
	}

	g.logger.Info("content lock detected, unlocking")
	res, err := g.community.Unlock(ctx, pin, sessionID)
	if err != nil {
		return fmt.Errorf("unlock request: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("%w: site reported failure", shared.ErrWrongPin)
	}
	if !res.HasCookie(services.UnlockCookieName) {
		return fmt.Errorf("%w: no unlock cookie returned", shared.ErrWrongPin)
	}

	var unlock []*http.Cookie
	for _, c := range res.Cookies {
		if c.Name == services.UnlockCookieName {
			unlock = append(unlock, c)
		}
	}
	g.community.MergeCookies(unlock)
	g.logger.Info("content unlocked")
	return nil
}
