package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/badgeidle/internal/commands"
	"github.com/desertthunder/badgeidle/internal/formatter"
	"github.com/desertthunder/badgeidle/internal/shared"
	"github.com/urfave/cli/v3"
)

// Scan logs in, reads the status listing once, prints it and logs off.
func (r *Runner) Scan(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	cfg, err := r.loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	creds, err := r.credentials(cmd, cfg)
	if err != nil {
		return err
	}
	if creds.Empty() {
		return fmt.Errorf("%w: pass [account] [password] or set BADGEIDLE_ACCOUNT and BADGEIDLE_PASSWORD", shared.ErrMissingCredentials)
	}

	if err := r.configureLogging(cfg, false); err != nil {
		return err
	}

	console := commands.NewConsole(r.input, r.output, r.logger)
	defer console.Close()

	st, err := r.build(cfg, creds, console)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.session.Login(ctx, creds); err != nil {
		return err
	}
	defer func() {
		if err := st.logoff(ctx); err != nil {
			r.logger.Warn("logoff failed", "error", err)
		}
	}()

	items, err := st.scanner.Scan(ctx, r.selection(cmd.String("selection"), cfg))
	if err != nil {
		return err
	}

	identity, _ := st.session.Identity()
	report := formatter.Report{Identity: identity, ScannedAt: time.Now().UTC(), Items: items}

	if path := cmd.String("output"); path != "" {
		if err := formatter.WriteFile(path, format, report); err != nil {
			return err
		}
		return r.writePlain("Wrote %d items (%d drops) to %s\n", len(items), report.TotalRemaining(), path)
	}
	return formatter.Write(r.output, format, report)
}
