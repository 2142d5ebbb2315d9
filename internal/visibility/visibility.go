// package visibility hides account activity while a new batch of items becomes active.
package visibility

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

// DefaultRevertDelay is how long the profile stays private after entering.
const DefaultRevertDelay = 10 * time.Second

// Updater posts profile privacy settings.
type Updater interface {
	SetPrivacy(ctx context.Context, identity, sessionID string, v models.Visibility) (bool, error)
}

// Session supplies the identity and session token for privacy updates.
type Session interface {
	Identity() (string, error)
	SessionID() string
}

// Guard flips the profile private and arms the [timers.Revert] timer that flips it back.
type Guard struct {
	updater Updater
	session Session
	timers  *timers.Set
	delay   time.Duration
	logger  *log.Logger

	mu      sync.Mutex
	private bool
}

// New creates a Guard that arms revert timers on set.
func New(updater Updater, session Session, set *timers.Set, delay time.Duration, logger *log.Logger) *Guard {
	if delay <= 0 {
		delay = DefaultRevertDelay
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Guard{
		updater: updater,
		session: session,
		timers:  set,
		delay:   delay,
		logger:  shared.WithLogger(logger, "component", "visibility"),
	}
}

// EnterPrivate restricts the profile and arms the revert timer.
//
// Any failure is returned as [shared.ErrVisibilityUpdateFailed].
func (g *Guard) EnterPrivate(ctx context.Context) error {
	identity, err := g.session.Identity()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrVisibilityUpdateFailed, err)
	}

	ok, err := g.updater.SetPrivacy(ctx, identity, g.session.SessionID(), models.VisibilityPrivate)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrVisibilityUpdateFailed, err)
	}
	if !ok {
		return fmt.Errorf("%w: site rejected private settings", shared.ErrVisibilityUpdateFailed)
	}

	g.mu.Lock()
	g.private = true
	g.mu.Unlock()

	g.timers.Arm(timers.Revert, g.delay)
	g.logger.Info("profile private", "revert_in", g.delay)
	return nil
}

// RevertToPublic cancels any pending revert and restores public settings.
// Failures are logged only.
func (g *Guard) RevertToPublic(ctx context.Context) {
	g.timers.Cancel(timers.Revert)

	identity, err := g.session.Identity()
	if err != nil {
		g.logger.Warn("skipping visibility revert", "error", err)
		return
	}

	ok, err := g.updater.SetPrivacy(ctx, identity, g.session.SessionID(), models.VisibilityPublic)
	switch {
	case err != nil:
		g.logger.Warn("visibility revert failed", "error", err)
		return
	case !ok:
		g.logger.Warn("visibility revert rejected")
		return
	}

	g.mu.Lock()
	g.private = false
	g.mu.Unlock()
	g.logger.Info("profile public")
}

// Private reports whether the last successful update left the profile private.
func (g *Guard) Private() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.private
}
