// Package scheduler runs the idle cycle as a single-goroutine state machine.
//
// # States
//
//	Idle -> Fetching -> Activating -> Waiting -> Deactivating -> CoolingDown -> Fetching ...
//
// Any state may move to ShuttingDown, which is terminal. [Scheduler.Run] owns
// the loop; every network call happens inside it, one at a time.
//
// # Inputs
//
// The loop selects over context cancellation, operator events sent through
// [Scheduler.SessionReady], [Scheduler.RequestShutdown],
// [Scheduler.RequestRefetch] and [Scheduler.RequestPersonaChange], and firings
// from the shared [timers.Set]. A firing is acted on only when
// [timers.Set.Accept] confirms it belongs to the live timer of its kind.
//
// # Errors
//
// Scan or activation failures wrapping [shared.ErrNetworkTransient] end the
// cycle and move to CoolingDown, so the next cycle retries. Fatal errors and
// anything unexpected shut down: timers are cancelled, visibility reverted and
// the session logged off before Run returns the cause.
//
// # Progress Reporting
//
// State changes are published on [Scheduler.Updates] as [StatusUpdate] values
// with non-blocking sends. [Scheduler.Snapshot] returns the latest status for
// polling consumers.
package scheduler
