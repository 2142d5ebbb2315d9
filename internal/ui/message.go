package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/badgeidle/internal/scheduler"
)

// MsgKind enumerates all message types in the dashboard.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStatusUpdate MsgKind = iota
	MsgSchedulerDone
	MsgCommandResult
)

type commandResult struct {
	line   string
	output string
	err    error
}

// statusUpdateMsg is the constructor for [MsgStatusUpdate]
func statusUpdateMsg(update scheduler.StatusUpdate) Msg {
	return Msg{kind: MsgStatusUpdate, data: update}
}

// schedulerDoneMsg is the constructor for [MsgSchedulerDone]
func schedulerDoneMsg() Msg {
	return Msg{kind: MsgSchedulerDone}
}

// commandResultMsg is the constructor for [MsgCommandResult]
func commandResultMsg(line, output string, err error) Msg {
	return Msg{kind: MsgCommandResult, data: commandResult{line: line, output: output, err: err}}
}
