package models

import (
	"fmt"
	"sort"
	"strings"
)

// ProgressItem is one entry of the status listing with drops still remaining.
type ProgressItem struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Remaining int    `json:"remaining"`
}

func (p ProgressItem) String() string {
	return fmt.Sprintf("%s (%d) [%d left]", p.Title, p.ID, p.Remaining)
}

// ItemIDs returns the ids of items in order.
func ItemIDs(items []ProgressItem) []int {
	ids := make([]int, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

// Credentials holds the account secrets for one process run.
type Credentials struct {
	AccountName string
	Password    string
	PIN         string // unlock PIN digits, leading zeros kept
}

// Empty reports whether neither an account name nor a password was supplied.
func (c Credentials) Empty() bool {
	return c.AccountName == "" && c.Password == ""
}

// HasPIN reports whether an unlock PIN is configured.
func (c Credentials) HasPIN() bool {
	return PINConfigured(c.PIN)
}

// PINConfigured reports whether pin holds a usable unlock PIN. Empty and all-zero values mean absent.
func PINConfigured(pin string) bool {
	return strings.Trim(pin, "0") != ""
}

// SelectionSet is an immutable allow-list of item ids.
//
// A nil *SelectionSet allows every id.
type SelectionSet struct {
	ids map[int]struct{}
}

// NewSelectionSet builds a SelectionSet from ids.
func NewSelectionSet(ids ...int) *SelectionSet {
	set := &SelectionSet{ids: make(map[int]struct{}, len(ids))}
	for _, id := range ids {
		set.ids[id] = struct{}{}
	}
	return set
}

// Allows reports whether id passes the filter.
func (s *SelectionSet) Allows(id int) bool {
	if s == nil {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids; 0 for a nil set.
func (s *SelectionSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// IDs returns the selected ids in ascending order.
func (s *SelectionSet) IDs() []int {
	if s == nil {
		return nil
	}
	ids := make([]int, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// PersonaState is the presence state reported by the session provider.
type PersonaState int

const (
	PersonaOffline PersonaState = iota
	PersonaOnline
	PersonaBusy
	PersonaAway
	PersonaSnooze
	PersonaLookingToTrade
	PersonaLookingToPlay
	PersonaInvisible
)

var personaNames = map[PersonaState]string{
	PersonaOffline:        "offline",
	PersonaOnline:         "online",
	PersonaBusy:           "busy",
	PersonaAway:           "away",
	PersonaSnooze:         "snooze",
	PersonaLookingToTrade: "trade",
	PersonaLookingToPlay:  "play",
	PersonaInvisible:      "invisible",
}

var personaAliases = map[string]PersonaState{
	"lookingtotrade": PersonaLookingToTrade,
	"lookingtoplay":  PersonaLookingToPlay,
}

func (p PersonaState) String() string {
	if name, ok := personaNames[p]; ok {
		return name
	}
	return ""
}

// PersonaNames lists the canonical persona names in state order.
func PersonaNames() []string {
	names := make([]string, 0, len(personaNames))
	for state := PersonaOffline; state <= PersonaInvisible; state++ {
		names = append(names, personaNames[state])
	}
	return names
}

// ParsePersona matches name case-insensitively against the known persona states.
func ParsePersona(name string) (PersonaState, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for state, n := range personaNames {
		if n == name {
			return state, true
		}
	}
	state, ok := personaAliases[name]
	return state, ok
}

// Visibility is the account's public profile visibility.
type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityPrivate
)

// privacy values understood by the profile settings endpoint
const (
	privacyPrivate = 1
	privacyPublic  = 3
)

// CommentPermission is the comment setting sent with every visibility update (friends only).
const CommentPermission = 1

func (v Visibility) String() string {
	if v == VisibilityPrivate {
		return "private"
	}
	return "public"
}

// Settings returns the privacy blob for v.
func (v Visibility) Settings() map[string]int {
	level := privacyPublic
	if v == VisibilityPrivate {
		level = privacyPrivate
	}
	return map[string]int{
		"PrivacyProfile":        level,
		"PrivacyInventory":      level,
		"PrivacyInventoryGifts": level,
		"PrivacyOwnedGames":     level,
		"PrivacyPlaytime":       level,
		"PrivacyFriendsList":    level,
	}
}
