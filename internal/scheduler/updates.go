package scheduler

import (
	"fmt"
	"time"

	"github.com/desertthunder/badgeidle/internal/models"
)

// State is a step of the idle cycle.
type State int

const (
	Idle State = iota
	Fetching
	Activating
	Waiting
	Deactivating
	CoolingDown
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Activating:
		return "activating"
	case Waiting:
		return "waiting"
	case Deactivating:
		return "deactivating"
	case CoolingDown:
		return "cooling_down"
	case ShuttingDown:
		return "shutting_down"
	default:
		return ""
	}
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StatusUpdate is published on every state change and notable event.
type StatusUpdate struct {
	State   State                 `json:"state"`
	Cycle   int                   `json:"cycle"`
	Active  []models.ProgressItem `json:"active,omitempty"`
	Found   int                   `json:"found"`
	Private bool                  `json:"private"`
	WakeAt  time.Time             `json:"wake_at,omitzero"`
	Message string                `json:"message"`
	Err     string                `json:"error,omitempty"`
}

func fetchingUpdate(cycle int) StatusUpdate {
	return StatusUpdate{State: Fetching, Cycle: cycle, Message: fmt.Sprintf("Cycle %d: scanning status pages...", cycle)}
}

func activatingUpdate(cycle int, batch []models.ProgressItem, found int) StatusUpdate {
	return StatusUpdate{
		State:   Activating,
		Cycle:   cycle,
		Found:   found,
		Active:  batch,
		Message: fmt.Sprintf("Cycle %d: activating %d of %d items", cycle, len(batch), found),
	}
}

func waitingUpdate(cycle int, batch []models.ProgressItem, found int, wake time.Time) StatusUpdate {
	return StatusUpdate{
		State:   Waiting,
		Cycle:   cycle,
		Found:   found,
		Active:  batch,
		WakeAt:  wake,
		Message: fmt.Sprintf("Cycle %d: idling %d items until %s", cycle, len(batch), wake.Format(time.Kitchen)),
	}
}

func deactivatingUpdate(cycle int) StatusUpdate {
	return StatusUpdate{State: Deactivating, Cycle: cycle, Message: fmt.Sprintf("Cycle %d: clearing active items", cycle)}
}

func coolingDownUpdate(cycle int, wake time.Time, err error) StatusUpdate {
	u := StatusUpdate{State: CoolingDown, Cycle: cycle, WakeAt: wake, Message: fmt.Sprintf("Cycle %d: cooling down", cycle)}
	if err != nil {
		u.Err = err.Error()
		u.Message = fmt.Sprintf("Cycle %d: failed, retrying after cooldown", cycle)
	}
	return u
}

func shutdownUpdate(cycle int, reason string, err error) StatusUpdate {
	u := StatusUpdate{State: ShuttingDown, Cycle: cycle, Message: "Shutting down: " + reason}
	if err != nil {
		u.Err = err.Error()
	}
	return u
}

func noticeUpdate(state State, cycle int, msg string) StatusUpdate {
	return StatusUpdate{State: state, Cycle: cycle, Message: msg}
}
