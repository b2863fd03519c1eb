// Package store holds the daemon's in-memory activity state: recent cycle
// outcomes, tree event counters and the subscriber fan-out.
package store

import (
	"time"

	"github.com/grovetools/marksync/internal/syncer"
	"github.com/grovetools/marksync/pkg/bookmarks"
)

// HistorySize bounds the number of outcomes kept in State.History.
const HistorySize = 20

// State is the daemon's world view.
type State struct {
	StartedAt   time.Time         `json:"startedAt"`
	Events      uint64            `json:"events"`
	Pruned      uint64            `json:"pruned"`
	LastEventAt *time.Time        `json:"lastEventAt,omitempty"`
	LastOutcome *syncer.Outcome   `json:"lastOutcome,omitempty"`
	History     []*syncer.Outcome `json:"history"` // Newest first
}

// UpdateType defines what kind of activity happened.
type UpdateType string

const (
	UpdateOutcome      UpdateType = "outcome"
	UpdateTreeEvent    UpdateType = "tree_event"
	UpdatePruned       UpdateType = "pruned"
	UpdateRecordChange UpdateType = "record_change"
	UpdateSettings     UpdateType = "settings_reload"
)

// Update is one activity notification, streamed to clients as JSON.
type Update struct {
	Type    UpdateType       `json:"type"`
	Source  string           `json:"source,omitempty"` // "auto_sync", "interactive", "tree", "state"
	Outcome *syncer.Outcome  `json:"outcome,omitempty"`
	Event   *bookmarks.Event `json:"event,omitempty"`
	ID      string           `json:"id,omitempty"`   // Pruned identifier
	File    string           `json:"file,omitempty"` // Reloaded settings file
}
