// Package engine is the daemon's long-lived context: it reacts to tree
// events, prunes removed selections and runs coalesced sync cycles.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/grovetools/marksync/internal/clock"
	"github.com/grovetools/marksync/internal/coalesce"
	"github.com/grovetools/marksync/internal/daemon/store"
	"github.com/grovetools/marksync/internal/selection"
	"github.com/grovetools/marksync/internal/syncer"
	"github.com/grovetools/marksync/internal/transmit"
	"github.com/grovetools/marksync/pkg/bookmarks"
	"github.com/grovetools/marksync/pkg/syncstate"
	"github.com/sirupsen/logrus"
)

// Options configures an Engine.
type Options struct {
	// Window is the coalescing quiet period; zero uses coalesce.DefaultWindow.
	Window time.Duration
	// Clock drives the coalescer and activity timestamps. Nil is the wall clock.
	Clock clock.Clock
	// SourceName labels the tree backend in status output.
	SourceName string
}

// Status is the engine snapshot served by /api/status.
type Status struct {
	State       string          `json:"state"`
	Deadline    *time.Time      `json:"deadline,omitempty"`
	Firing      bool            `json:"firing"`
	Fires       uint64          `json:"fires"`
	Window      string          `json:"window"`
	Source      string          `json:"source"`
	StartedAt   time.Time       `json:"startedAt"`
	Events      uint64          `json:"events"`
	Pruned      uint64          `json:"pruned"`
	LastOutcome *syncer.Outcome `json:"lastOutcome,omitempty"`
}

// Engine wires the tree source, the selection editor, the coalescer and the
// sync cycle together.
type Engine struct {
	records    syncstate.Store
	source     bookmarks.Source
	editor     *selection.Editor
	syncer     *syncer.Syncer
	coalescer  *coalesce.Coalescer
	activity   *store.Store
	clock      clock.Clock
	sourceName string
	logger     *logrus.Entry

	// ctx is handed to fire callbacks; cancelling it aborts in-flight sends
	// on shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	stopOnce sync.Once
}

// New creates a new Engine instance.
func New(records syncstate.Store, source bookmarks.Source, sy *syncer.Syncer, opts Options, logger *logrus.Entry) *Engine {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		records:    records,
		source:     source,
		editor:     selection.NewEditor(records),
		syncer:     sy,
		activity:   store.New(clk.Now()),
		clock:      clk,
		sourceName: opts.SourceName,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
	e.coalescer = coalesce.New(opts.Window, e.fire,
		coalesce.WithClock(clk),
		coalesce.WithContext(ctx),
	)
	return e
}

// Start subscribes to tree events and record changes and blocks until ctx is
// canceled. Any pending window is dropped on return.
func (e *Engine) Start(ctx context.Context) error {
	events, err := e.source.Watch(ctx)
	if err != nil {
		return err
	}

	changes := e.records.Subscribe()
	defer e.records.Unsubscribe(changes)

	var wg sync.WaitGroup
	if w, ok := e.records.(syncstate.Watcher); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Watch(ctx); err != nil && ctx.Err() == nil {
				e.logger.WithError(err).Error("Record watcher stopped")
			}
		}()
	}

	e.logger.WithFields(logrus.Fields{
		"source": e.sourceName,
		"window": e.coalescer.Window().String(),
	}).Info("Engine started")

	defer func() {
		e.Stop()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				e.logger.Warn("Tree event stream closed")
				events = nil
				continue
			}
			e.HandleEvent(ctx, ev)
		case change, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if change.Origin == syncstate.OriginExternal {
				e.logger.WithField("selected", len(change.Record.SelectedIDs)).Debug("Sync record changed externally")
				e.activity.BroadcastRecordChange()
			}
		}
	}
}

// HandleEvent reacts to one tree mutation: removals prune the selection, and
// every event schedules a sync.
func (e *Engine) HandleEvent(ctx context.Context, ev bookmarks.Event) {
	e.activity.RecordEvent(ev, e.clock.Now())
	e.logger.WithFields(logrus.Fields{
		"kind": ev.Kind,
		"id":   ev.ID,
	}).Debug("Tree event")

	if ev.Kind == bookmarks.EventRemoved {
		pruned, err := e.editor.OnNodeRemoved(ctx, ev.ID)
		if err != nil {
			e.logger.WithError(err).WithField("id", ev.ID).Error("Failed to prune removed bookmark")
		} else if pruned {
			e.activity.RecordPruned(ev.ID)
		}
	}

	e.coalescer.Signal()
}

// fire is the coalescer callback. Failures are logged by the syncer and
// recorded; nothing propagates.
func (e *Engine) fire(ctx context.Context) {
	out, _ := e.syncer.Cycle(ctx, transmit.SourceAutoSync)
	e.activity.RecordOutcome(out)
}

// Send runs an interactive cycle immediately, bypassing the coalescer.
func (e *Engine) Send(ctx context.Context) (*syncer.Outcome, error) {
	out, err := e.syncer.SendNow(ctx, nil)
	e.activity.RecordOutcome(out)
	return out, err
}

// Flush fires the pending window now. It returns false when nothing was
// pending.
func (e *Engine) Flush() bool {
	return e.coalescer.Flush()
}

// Stop drops any pending window, cancels in-flight sends and waits for them.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.coalescer.Stop()
		e.cancel()
		e.coalescer.Wait()
		e.logger.Info("Engine stopped")
	})
}

// Status returns the current engine state.
func (e *Engine) Status() Status {
	st := e.activity.Get()
	s := Status{
		State:       e.coalescer.State().String(),
		Firing:      e.coalescer.Firing(),
		Fires:       e.coalescer.Fires(),
		Window:      e.coalescer.Window().String(),
		Source:      e.sourceName,
		StartedAt:   st.StartedAt,
		Events:      st.Events,
		Pruned:      st.Pruned,
		LastOutcome: st.LastOutcome,
	}
	if d, ok := e.coalescer.Deadline(); ok {
		s.Deadline = &d
	}
	return s
}

// Activity returns the engine's activity store.
func (e *Engine) Activity() *store.Store {
	return e.activity
}

// Records returns the durable record store.
func (e *Engine) Records() syncstate.Store {
	return e.records
}
