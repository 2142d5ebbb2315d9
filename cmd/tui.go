package main

import (
	"fmt"

	"github.com/desertthunder/badgeidle/internal/scheduler"
	"github.com/desertthunder/badgeidle/internal/ui"
)

// Dashboard runs the terminal dashboard until the scheduler stops.
//
// Logs must already point at a file so they do not interfere with rendering.
func (r *Runner) Dashboard(sched *scheduler.Scheduler) error {
	if err := ui.Run(sched); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
