// package commands implements the operator control surface: a line parser and a
// console that feeds parsed commands to the scheduler.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/desertthunder/badgeidle/internal/models"
	"github.com/desertthunder/badgeidle/internal/scheduler"
	"github.com/desertthunder/badgeidle/internal/shared"
)

// Kind identifies an operator command.
type Kind int

const (
	Shutdown Kind = iota
	Persona
	Refetch
	Status
	Help
)

func (k Kind) String() string {
	switch k {
	case Shutdown:
		return "exit"
	case Persona:
		return "state"
	case Refetch:
		return "refetch"
	case Status:
		return "status"
	case Help:
		return "help"
	default:
		return ""
	}
}

// Command is one parsed control line.
type Command struct {
	Kind Kind
	Arg  string
}

// Sink receives commands. [scheduler.Scheduler] implements it.
type Sink interface {
	RequestShutdown() error
	RequestRefetch() error
	RequestPersonaChange(name string) error
	Snapshot() scheduler.StatusUpdate
}

// Parse reads a control line. Keywords are case-insensitive.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", shared.ErrInvalidInput)
	}

	switch strings.ToLower(fields[0]) {
	case "exit", "quit":
		return Command{Kind: Shutdown}, nil
	case "state":
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("%w: usage: state <%s>", shared.ErrMissingArgument, strings.Join(models.PersonaNames(), "|"))
		}
		return Command{Kind: Persona, Arg: fields[1]}, nil
	case "refetch":
		return Command{Kind: Refetch}, nil
	case "status":
		return Command{Kind: Status}, nil
	case "help", "?":
		return Command{Kind: Help}, nil
	default:
		return Command{}, fmt.Errorf("%w: unknown command %q", shared.ErrInvalidInput, fields[0])
	}
}

// Dispatch applies cmd to sink and writes any human-readable reply to out.
func Dispatch(cmd Command, sink Sink, out io.Writer) error {
	switch cmd.Kind {
	case Shutdown:
		fmt.Fprintln(out, "Shutting down...")
		return sink.RequestShutdown()
	case Persona:
		if err := sink.RequestPersonaChange(cmd.Arg); err != nil {
			return err
		}
		fmt.Fprintf(out, "Persona change to %s requested\n", strings.ToLower(cmd.Arg))
		return nil
	case Refetch:
		fmt.Fprintln(out, "Refetch requested")
		return sink.RequestRefetch()
	case Status:
		_, err := fmt.Fprintln(out, FormatStatus(sink.Snapshot()))
		return err
	case Help:
		_, err := io.WriteString(out, HelpText())
		return err
	default:
		return fmt.Errorf("%w: unsupported command", shared.ErrInvalidInput)
	}
}

// Execute parses and dispatches one line.
func Execute(line string, sink Sink, out io.Writer) error {
	cmd, err := Parse(line)
	if err != nil {
		return err
	}
	return Dispatch(cmd, sink, out)
}

// FormatStatus renders a one-line status summary.
func FormatStatus(u scheduler.StatusUpdate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "state=%s cycle=%d found=%d active=%d", u.State, u.Cycle, u.Found, len(u.Active))
	if u.Private {
		b.WriteString(" visibility=private")
	}
	if !u.WakeAt.IsZero() {
		fmt.Fprintf(&b, " next=%s", time.Until(u.WakeAt).Round(time.Second))
	}
	if u.Err != "" {
		fmt.Fprintf(&b, " error=%q", u.Err)
	}
	return b.String()
}

// HelpText lists the accepted commands.
func HelpText() string {
	return fmt.Sprintf(`Commands:
  exit | quit      stop idling, restore visibility and log off
  state <name>     change persona (%s)
  refetch          rescan now, skipping the current wait
  status           print the current state
  help             show this message
`, strings.Join(models.PersonaNames(), ", "))
}
