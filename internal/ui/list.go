package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/badgeidle/internal/models"
)

var (
	_ list.Item = activeItem{}
)

// activeItem wraps [models.ProgressItem] to implement [list.Item].
type activeItem struct {
	item models.ProgressItem
}

func (i activeItem) FilterValue() string { return i.item.Title }
func (i activeItem) Title() string       { return i.item.Title }
func (i activeItem) Description() string {
	drops := "drops"
	if i.item.Remaining == 1 {
		drops = "drop"
	}
	return fmt.Sprintf("#%d • %d %s remaining", i.item.ID, i.item.Remaining, drops)
}

func toListItems(items []models.ProgressItem) []list.Item {
	out := make([]list.Item, len(items))
	for i, item := range items {
		out[i] = activeItem{item: item}
	}
	return out
}

func newActiveList() list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 76, 12)
	l.Title = "Active items"
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	return l
}
