// Package ui implements a terminal dashboard for the idle loop using bubbletea's Elm architecture.
//
// The dashboard shows:
//  1. the scheduler state with a spinner while work is in flight
//  2. the active items of the current cycle in a [list.Model]
//  3. a short log of recent status messages
//  4. a command line that accepts the same commands as the console
//
// The [Model] receives [scheduler.StatusUpdate] values from the scheduler's update
// channel through a blocking [tea.Cmd], and quits once that channel closes.
//
// ctrl+c requests an orderly shutdown rather than killing the program, so the
// profile visibility is restored and the session logged off before exit.
package ui
