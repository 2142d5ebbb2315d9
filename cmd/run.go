package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/badgeidle/internal/commands"
	"github.com/desertthunder/badgeidle/internal/models"
	"github.com/desertthunder/badgeidle/internal/scheduler"
	"github.com/desertthunder/badgeidle/internal/server"
	"github.com/desertthunder/badgeidle/internal/shared"
	"github.com/muesli/cancelreader"
	"github.com/urfave/cli/v3"
)

// Run logs in and drives the idle loop until it stops.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	creds, err := r.credentials(cmd, cfg)
	if err != nil {
		return err
	}
	if creds.Empty() {
		return fmt.Errorf("%w: pass [account] [password], set BADGEIDLE_ACCOUNT and BADGEIDLE_PASSWORD, or fill [account] in the config", shared.ErrMissingCredentials)
	}

	dashboard := cmd.Bool("tui")
	if err := r.configureLogging(cfg, dashboard); err != nil {
		return err
	}

	input, release := r.promptInput(dashboard)
	console := commands.NewConsole(input, r.output, r.logger)
	defer console.Close()

	st, err := r.build(cfg, creds, console)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.session.Login(ctx, creds); err != nil {
		return err
	}
	release()

	sched := scheduler.New(scheduler.Deps{
		Scanner:   st.scanner,
		Guard:     st.guard,
		Activator: st.gateway,
		Session:   st.session,
		Timers:    st.timers,
		Logger:    r.logger,
	}, scheduler.Config{
		MaxActive: cfg.Idle.MaxActive,
		Dwell:     cfg.Idle.Dwell(),
		Cooldown:  cfg.Idle.Cooldown(),
		Selection: r.selection(cmd.String("selection"), cfg),
		Persona:   r.persona(cfg),
	})

	runErr := make(chan error, 1)
	go func() { runErr <- sched.Run(ctx) }()

	if err := sched.SessionReady(); err != nil {
		return <-runErr
	}

	if cfg.Server.Port > 0 {
		srv := server.New(cfg.Server.Host, cfg.Server.Port, sched, r.logger)
		if err := srv.Start(); err != nil {
			r.logger.Warn("status server disabled", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					r.logger.Warn("error shutting down server", "error", err)
				}
			}()
		}
	}

	switch {
	case dashboard:
		if err := r.Dashboard(sched); err != nil {
			r.logger.Error("dashboard stopped", "error", err)
			requestShutdown(r.logger, sched)
		}
	case cmd.Bool("no-console"):
		go logUpdates(r.logger, sched.Updates())
	default:
		go logUpdates(r.logger, sched.Updates())

		serveCtx, cancel := context.WithCancel(ctx)
		go func() {
			select {
			case <-sched.Done():
				cancel()
			case <-serveCtx.Done():
			}
		}()
		if err := console.Serve(serveCtx, sched); err != nil {
			r.logger.Warn("console stopped", "error", err)
		}
		cancel()
	}

	return <-runErr
}

// promptInput returns the reader used for verification prompts.
//
// The dashboard reads the terminal itself once login is done, so the prompt
// reader must be cancelable to release standard input.
func (r *Runner) promptInput(dashboard bool) (io.Reader, func()) {
	if !dashboard || r.input != os.Stdin {
		return r.input, func() {}
	}

	cr, err := cancelreader.NewReader(os.Stdin)
	if err != nil {
		r.logger.Warn("standard input is not cancelable", "error", err)
		return r.input, func() {}
	}
	return cr, func() {
		cr.Cancel()
		cr.Close()
	}
}

// selection loads the allow-list. A malformed file is logged and ignored.
func (r *Runner) selection(flagPath string, cfg *shared.Config) *models.SelectionSet {
	path := flagPath
	if path == "" {
		path = cfg.Idle.SelectionFile
	}

	sel, err := shared.LoadSelection(path)
	if err != nil {
		r.logger.Warn("ignoring selection file", "path", path, "error", err)
		return nil
	}
	if sel != nil {
		r.logger.Info("selection loaded", "path", path, "items", sel.Len())
	}
	return sel
}

// persona parses idle.persona. Empty or unknown names leave the persona unchanged.
func (r *Runner) persona(cfg *shared.Config) *models.PersonaState {
	if cfg.Idle.Persona == "" {
		return nil
	}
	state, ok := models.ParsePersona(cfg.Idle.Persona)
	if !ok {
		r.logger.Warn("ignoring unknown persona", "persona", cfg.Idle.Persona)
		return nil
	}
	return &state
}

// logUpdates mirrors the status stream into the log when no dashboard consumes it.
func logUpdates(logger *log.Logger, updates <-chan scheduler.StatusUpdate) {
	for u := range updates {
		if u.Err != "" {
			logger.Warn(u.Message, "state", u.State, "cycle", u.Cycle, "error", u.Err)
			continue
		}
		logger.Info(u.Message, "state", u.State, "cycle", u.Cycle)
	}
}

// requestShutdown asks the scheduler to stop and logs a refusal.
func requestShutdown(logger *log.Logger, sink commands.Sink) {
	if err := sink.RequestShutdown(); err != nil {
		logger.Warn("shutdown request failed", "error", err)
	}
}
