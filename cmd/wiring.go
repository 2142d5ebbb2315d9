package main

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/desertthunder/badgeidle/internal/lockgate"
	"github.com/desertthunder/badgeidle/internal/models"
	"github.com/desertthunder/badgeidle/internal/repositories"
	"github.com/desertthunder/badgeidle/internal/scanner"
	"github.com/desertthunder/badgeidle/internal/services"
	"github.com/desertthunder/badgeidle/internal/session"
	"github.com/desertthunder/badgeidle/internal/shared"
	"github.com/desertthunder/badgeidle/internal/timers"
	"github.com/desertthunder/badgeidle/internal/visibility"
)

// stack is the object graph shared by the run and scan commands.
type stack struct {
	community *services.CommunityClient
	gateway   *services.SessionGateway
	db        *sql.DB
	session   *session.Controller
	gate      *lockgate.Gate
	scanner   *scanner.Scanner
	timers    *timers.Set
	guard     *visibility.Guard
}

// build wires the collaborators for cfg. The PIN comes from creds.
func (r *Runner) build(cfg *shared.Config, creds models.Credentials, prompter session.Prompter) (*stack, error) {
	community, err := services.NewCommunityClient(cfg.Community.BaseURL, services.CommunityOptions{
		Timeout:           cfg.Community.Timeout(),
		RequestsPerSecond: cfg.Community.RequestsPerSecond,
		Logger:            r.logger,
	})
	if err != nil {
		return nil, err
	}

	gateway := services.NewSessionGateway(cfg.Gateway.URL, services.GatewayOptions{
		Timeout: cfg.Gateway.Timeout(),
		Retries: cfg.Gateway.Retries,
		Logger:  r.logger,
	})

	s := &stack{community: community, gateway: gateway, timers: timers.New(nil)}

	opts := session.Options{Prompter: prompter, Logger: r.logger}
	if db, err := openDatabase(cfg.Database.Path); err != nil {
		r.logger.Warn("login keys disabled, database unavailable", "path", cfg.Database.Path, "error", err)
	} else {
		s.db = db
		opts.Keys = repositories.NewLoginKeyRepository(db)
	}

	s.session = session.NewController(gateway, community, opts)
	s.gate = lockgate.New(community, s.session, r.logger)
	s.scanner = scanner.New(community, s.session, s.gate, scanner.Options{PIN: creds.PIN, Logger: r.logger})
	s.guard = visibility.New(community, s.session, s.timers, cfg.Idle.RevertDelay(), r.logger)
	return s, nil
}

// logoff ends the session if one is open, with a bounded timeout detached from ctx.
func (s *stack) logoff(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return s.session.Logoff(ctx)
}

func (s *stack) Close() error {
	s.timers.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func openDatabase(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database.path is empty", shared.ErrInvalidConfig)
	}
	if path != ":memory:" {
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}
	return shared.OpenMigrated(path)
}
