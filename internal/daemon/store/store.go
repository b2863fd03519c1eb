package store

import (
	"sync"
	"time"

	"github.com/grovetools/marksync/internal/syncer"
	"github.com/grovetools/marksync/pkg/bookmarks"
)

// Store is the in-memory activity store for the daemon.
// It is thread-safe and supports pub/sub for real-time updates.
type Store struct {
	mu          sync.RWMutex
	state       *State
	subscribers map[chan Update]struct{}
}

// New creates a new Store instance.
func New(startedAt time.Time) *Store {
	return &Store{
		state: &State{
			StartedAt: startedAt,
			History:   make([]*syncer.Outcome, 0, HistorySize),
		},
		subscribers: make(map[chan Update]struct{}),
	}
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := *s.state
	st.History = append([]*syncer.Outcome(nil), s.state.History...)
	return st
}

// LastOutcome returns the most recent cycle outcome, or nil.
func (s *Store) LastOutcome() *syncer.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.LastOutcome
}

// RecordOutcome stores a finished cycle and notifies subscribers.
func (s *Store) RecordOutcome(o *syncer.Outcome) {
	if o == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.LastOutcome = o
	s.state.History = append([]*syncer.Outcome{o}, s.state.History...)
	if len(s.state.History) > HistorySize {
		s.state.History = s.state.History[:HistorySize]
	}

	source := o.Source
	if source == "" {
		source = "interactive"
	}
	s.broadcastLocked(Update{Type: UpdateOutcome, Source: source, Outcome: o})
}

// RecordEvent counts a tree event and notifies subscribers.
func (s *Store) RecordEvent(ev bookmarks.Event, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Events++
	s.state.LastEventAt = &at
	s.broadcastLocked(Update{Type: UpdateTreeEvent, Source: "tree", Event: &ev})
}

// RecordPruned counts a selection pruned after a removal.
func (s *Store) RecordPruned(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Pruned++
	s.broadcastLocked(Update{Type: UpdatePruned, Source: "tree", ID: id})
}

// BroadcastRecordChange notifies subscribers that the durable record was
// changed by another process.
func (s *Store) BroadcastRecordChange() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.broadcastLocked(Update{Type: UpdateRecordChange, Source: "state"})
}

// BroadcastSettingsReload notifies subscribers that the settings file was
// reloaded.
func (s *Store) BroadcastSettingsReload(file string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.broadcastLocked(Update{Type: UpdateSettings, Source: "settings", File: file})
}

func (s *Store) broadcastLocked(u Update) {
	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send to prevent slow clients from stalling the daemon
		}
	}
}

// Subscribe creates a new subscription channel for updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 100) // Buffered
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}
