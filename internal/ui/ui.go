package ui

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/badgeidle/internal/commands"
	"github.com/desertthunder/badgeidle/internal/scheduler"
)

const maxMessages = 8

// Scheduler is the part of [scheduler.Scheduler] the dashboard drives.
type Scheduler interface {
	commands.Sink
	Updates() <-chan scheduler.StatusUpdate
}

// Model represents the dashboard state.
type Model struct {
	sched    Scheduler
	status   scheduler.StatusUpdate
	active   list.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	messages []string
	width    int
	height   int
	done     bool
	now      func() time.Time
}

// NewModel creates a dashboard bound to sched.
func NewModel(sched Scheduler) *Model {
	input := textinput.New()
	input.Placeholder = "exit | state <name> | refetch | status | help"
	input.Prompt = "> "
	input.CharLimit = 64
	input.Focus()

	return &Model{
		sched:   sched,
		status:  sched.Snapshot(),
		active:  newActiveList(),
		input:   input,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.MarginBottom(0))),
		help:    help.New(),
		keys:    newKeyMap(),
		now:     time.Now,
	}
}

// Run starts the dashboard and blocks until the scheduler stops.
func Run(sched Scheduler) error {
	_, err := tea.NewProgram(NewModel(sched), tea.WithAltScreen()).Run()
	return err
}

// Init starts the spinner, the cursor blink and the update listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, m.waitForUpdate())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.active.SetSize(msg.Width-4, max(msg.Height-maxMessages-12, 4))
		m.input.Width = max(msg.Width-6, 10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		if m.done {
			return m, tea.Quit
		}
		return m, m.run("exit")
	case key.Matches(msg, m.keys.refetch):
		return m, m.run("refetch")
	case key.Matches(msg, m.keys.clear):
		m.input.Reset()
		return m, nil
	case key.Matches(msg, m.keys.submit):
		line := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if line == "" {
			return m, nil
		}
		return m, m.run(line)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStatusUpdate:
		u := msg.data.(scheduler.StatusUpdate)
		m.status = u
		cmd := m.active.SetItems(toListItems(u.Active))
		if u.Err != "" {
			m.note(styles.err.Render(u.Message + ": " + u.Err))
		} else if u.Message != "" {
			m.note(u.Message)
		}
		return m, tea.Batch(cmd, m.waitForUpdate())

	case MsgSchedulerDone:
		m.done = true
		return m, tea.Quit

	case MsgCommandResult:
		res := msg.data.(commandResult)
		if res.err != nil {
			m.note(styles.err.Render(fmt.Sprintf("%s: %v", res.line, res.err)))
		} else {
			for _, line := range strings.Split(res.output, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					m.note(line)
				}
			}
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) note(s string) {
	m.messages = append(m.messages, s)
	if len(m.messages) > maxMessages {
		m.messages = m.messages[len(m.messages)-maxMessages:]
	}
}

// run executes a command line against the scheduler off the update loop.
func (m *Model) run(line string) tea.Cmd {
	sched := m.sched
	return func() tea.Msg {
		var out bytes.Buffer
		err := commands.Execute(line, sched, &out)
		return commandResultMsg(line, strings.TrimSpace(out.String()), err)
	}
}

func (m *Model) waitForUpdate() tea.Cmd {
	updates := m.sched.Updates()
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return schedulerDoneMsg()
		}
		return statusUpdateMsg(u)
	}
}

// busy reports whether the scheduler is in a state that makes network calls.
func (m *Model) busy() bool {
	switch m.status.State {
	case scheduler.Fetching, scheduler.Activating, scheduler.Deactivating, scheduler.ShuttingDown:
		return true
	}
	return false
}

// View renders the dashboard.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("badgeidle"))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")

	if len(m.status.Active) > 0 {
		b.WriteString(m.active.View())
	} else {
		b.WriteString(styles.help.Render("No active items"))
	}
	b.WriteString("\n\n")

	if len(m.messages) > 0 {
		b.WriteString(styles.box.Render(strings.Join(m.messages, "\n")))
		b.WriteString("\n")
	}

	if m.done {
		b.WriteString(styles.warn.Render("Stopped. Press ctrl+c to close."))
	} else {
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderStatus() string {
	u := m.status
	state := styles.stateStyle(u.State).Render(strings.ToUpper(u.State.String()))
	if m.busy() {
		state = m.spinner.View() + " " + state
	}

	parts := []string{state, fmt.Sprintf("cycle %d", u.Cycle), fmt.Sprintf("%d with drops", u.Found)}
	if u.Private {
		parts = append(parts, styles.warn.Render("private"))
	}
	if !u.WakeAt.IsZero() {
		parts = append(parts, "next step in "+u.WakeAt.Sub(m.now()).Round(time.Second).String())
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, strings.Join(parts, " · "))
}
