package services

import (
	"context"
	"net/http"

	"github.com/desertthunder/badgeidle/internal/models"
)

// LogOnStatus is the outcome reported by the session provider for a logon step.
type LogOnStatus string

const (
	StatusOK           LogOnStatus = "ok"
	StatusCodeRequired LogOnStatus = "code_required"
	StatusDenied       LogOnStatus = "denied"
)

// LogOnRequest carries the account secrets for one logon attempt.
type LogOnRequest struct {
	AccountName string `json:"account_name"`
	Password    string `json:"password"`
	LoginKey    string `json:"login_key,omitempty"`
}

// LogOnResult is what the provider reports after a logon or code submission.
type LogOnResult struct {
	Status    LogOnStatus
	Identity  string         // stable account identity used in profile URLs
	SessionID string         // web session token
	Cookies   []*http.Cookie // web session cookies
	CodeHint  string         // where the verification code was sent
	LoginKey  string         // key that lets a later logon skip verification
	Message   string
}

// Provider defines the session provider operations used by the idle loop.
type Provider interface {
	// LogOn starts the authentication handshake.
	LogOn(ctx context.Context, req LogOnRequest) (*LogOnResult, error)

	// SubmitCode answers a [StatusCodeRequired] result with a verification code.
	SubmitCode(ctx context.Context, code string) (*LogOnResult, error)

	// SetActiveItems marks the given item ids active; an empty list clears them.
	SetActiveItems(ctx context.Context, ids []int) error

	// SetPersonaState changes the account's presence.
	SetPersonaState(ctx context.Context, state models.PersonaState) error

	// LogOff ends the provider session.
	LogOff(ctx context.Context) error
}
