package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/badgeidle/internal/commands"
	"github.com/desertthunder/badgeidle/internal/shared"
)

const maxCommandBody = 4 << 10

// StatusHandler serves the scheduler snapshot.
type StatusHandler struct {
	sink commands.Sink
}

func NewStatusHandler(sink commands.Sink) *StatusHandler {
	return &StatusHandler{sink: sink}
}

func (h *StatusHandler) Routes() []string {
	return []string{"GET /status"}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sink.Snapshot())
}

// CommandRequest is the body accepted by POST /command.
type CommandRequest struct {
	Line string `json:"line"`
}

// CommandResponse carries the textual reply of a command.
type CommandResponse struct {
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// CommandHandler runs control lines against the scheduler.
type CommandHandler struct {
	sink commands.Sink
}

func NewCommandHandler(sink commands.Sink) *CommandHandler {
	return &CommandHandler{sink: sink}
}

func (h *CommandHandler) Routes() []string {
	return []string{"POST /command"}
}

func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxCommandBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "body must be JSON like {\"line\": \"status\"}")
		return
	}
	if strings.TrimSpace(req.Line) == "" {
		writeError(w, http.StatusBadRequest, "line is required")
		return
	}

	var out bytes.Buffer
	if err := commands.Execute(req.Line, h.sink, &out); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{Output: strings.TrimSpace(out.String())})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrUnknownPersona):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrSchedulerStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, CommandResponse{Error: msg})
}
