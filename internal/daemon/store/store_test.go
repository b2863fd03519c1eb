package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/grovetools/marksync/internal/syncer"
	"github.com/grovetools/marksync/pkg/bookmarks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestRecordOutcomeKeepsBoundedHistory(t *testing.T) {
	s := New(t0)
	for i := 0; i < HistorySize+5; i++ {
		s.RecordOutcome(&syncer.Outcome{ID: fmt.Sprint(i)})
	}

	st := s.Get()
	require.Len(t, st.History, HistorySize)
	assert.Equal(t, fmt.Sprint(HistorySize+4), st.History[0].ID, "newest first")
	assert.Equal(t, st.History[0], st.LastOutcome)
	assert.Equal(t, t0, st.StartedAt)
}

func TestRecordOutcomeIgnoresNil(t *testing.T) {
	s := New(t0)
	s.RecordOutcome(nil)
	assert.Nil(t, s.LastOutcome())
}

func TestSubscribersReceiveUpdates(t *testing.T) {
	s := New(t0)
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	s.RecordEvent(bookmarks.Event{Kind: bookmarks.EventRemoved, ID: "5"}, t0)
	s.RecordPruned("5")
	s.RecordOutcome(&syncer.Outcome{ID: "x", Source: "auto_sync"})
	s.RecordOutcome(&syncer.Outcome{ID: "y"})
	s.BroadcastRecordChange()

	var got []Update
	for i := 0; i < 5; i++ {
		got = append(got, <-ch)
	}
	assert.Equal(t, UpdateTreeEvent, got[0].Type)
	assert.Equal(t, "5", got[0].Event.ID)
	assert.Equal(t, Update{Type: UpdatePruned, Source: "tree", ID: "5"}, got[1])
	assert.Equal(t, "auto_sync", got[2].Source)
	assert.Equal(t, "interactive", got[3].Source)
	assert.Equal(t, UpdateRecordChange, got[4].Type)

	st := s.Get()
	assert.Equal(t, uint64(1), st.Events)
	assert.Equal(t, uint64(1), st.Pruned)
	require.NotNil(t, st.LastEventAt)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := New(t0)
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	for i := 0; i < 500; i++ {
		s.RecordPruned("x")
	}
	assert.Len(t, ch, 100)
}

func TestUnsubscribeTwice(t *testing.T) {
	s := New(t0)
	ch := s.Subscribe()
	s.Unsubscribe(ch)
	assert.NotPanics(t, func() { s.Unsubscribe(ch) })
	_, open := <-ch
	assert.False(t, open)
}

func TestGetReturnsHistoryCopy(t *testing.T) {
	s := New(t0)
	s.RecordOutcome(&syncer.Outcome{ID: "a"})
	st := s.Get()
	st.History[0] = nil
	assert.NotNil(t, s.Get().History[0])
}
