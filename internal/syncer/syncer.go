// Package syncer runs one snapshot-and-transmit cycle against the current
// durable record.
package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/marksync/errors"
	"github.com/grovetools/marksync/internal/snapshot"
	"github.com/grovetools/marksync/internal/transmit"
	"github.com/grovetools/marksync/logging"
	"github.com/grovetools/marksync/pkg/syncstate"
	"github.com/sirupsen/logrus"
)

// Outcome describes one cycle, whether skipped, failed or delivered.
type Outcome struct {
	ID         string      `json:"id"`
	Source     string      `json:"source,omitempty"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt time.Time   `json:"finishedAt"`
	Skipped    bool        `json:"skipped,omitempty"`
	Requested  int         `json:"requested"`
	Count      int         `json:"count"`
	Unresolved []string    `json:"unresolved,omitempty"`
	Status     int         `json:"status,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Succeeded reports whether the snapshot was delivered.
func (o *Outcome) Succeeded() bool {
	return o != nil && !o.Skipped && o.Error == ""
}

// IsSkipped reports whether err is the incomplete-configuration skip.
func IsSkipped(err error) bool {
	return errors.Is(err, errors.ErrCodeConfigIncomplete)
}

// Syncer ties the durable record, the snapshot builder and the transmitter.
type Syncer struct {
	store       syncstate.Store
	builder     *snapshot.Builder
	transmitter *transmit.Transmitter
	now         func() time.Time
	logger      *logrus.Entry
}

// New creates a Syncer.
func New(store syncstate.Store, builder *snapshot.Builder, transmitter *transmit.Transmitter) *Syncer {
	return &Syncer{
		store:       store,
		builder:     builder,
		transmitter: transmitter,
		now:         time.Now,
		logger:      logging.NewLogger("syncer"),
	}
}

// WithNow replaces the clock used for outcome timestamps.
func (s *Syncer) WithNow(now func() time.Time) *Syncer {
	s.now = now
	return s
}

// Cycle reads the record fresh, resolves the selection and sends it. With no
// endpoint or an empty selection it returns a CONFIG_INCOMPLETE error and
// makes no network call. The returned Outcome is never nil.
func (s *Syncer) Cycle(ctx context.Context, source string) (*Outcome, error) {
	out := &Outcome{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: s.now(),
	}
	logger := s.logger.WithFields(logrus.Fields{
		"cycle":  out.ID,
		"source": sourceLabel(source),
	})
	finish := func(err error) (*Outcome, error) {
		out.FinishedAt = s.now()
		if err != nil {
			out.Error = err.Error()
		}
		return out, err
	}

	rec, err := s.store.Read(ctx)
	if err != nil {
		logger.WithError(err).Error("Cannot read sync record; cycle abandoned")
		return finish(err)
	}
	out.Requested = len(rec.SelectedIDs)

	if rec.EndpointURL == "" || len(rec.SelectedIDs) == 0 {
		out.Skipped = true
		skip := errors.ConfigIncomplete(rec.EndpointURL != "", len(rec.SelectedIDs))
		logger.WithFields(logrus.Fields{
			"hasEndpoint": rec.EndpointURL != "",
			"selected":    len(rec.SelectedIDs),
		}).Info("Sync skipped: configuration incomplete")
		out.FinishedAt = s.now()
		return out, skip
	}

	snap := s.builder.Build(ctx, rec.SelectedIDs)
	out.Count = len(snap.Descriptors)
	for _, f := range snap.Failed {
		out.Unresolved = append(out.Unresolved, f.ID)
	}

	res, err := s.transmitter.Send(ctx, transmit.Target{
		EndpointURL:  rec.EndpointURL,
		SharedSecret: rec.SharedSecret,
	}, snap.Descriptors, source)
	if err != nil {
		logger.WithError(err).WithField("count", out.Count).Error("Sync failed")
		return finish(err)
	}

	out.Status = res.Status
	out.Data = res.Data
	logger.WithFields(logrus.Fields{
		"count":      out.Count,
		"unresolved": len(out.Unresolved),
		"status":     res.Status,
	}).Info("Sync complete")
	return finish(nil)
}

// Lifecycle receives the start and settle boundary of an interactive send.
// Exactly one of Success or Failure follows Begin.
type Lifecycle interface {
	Begin()
	Success(*Outcome)
	Failure(error)
}

// Hooks is a Lifecycle built from optional funcs.
type Hooks struct {
	OnBegin   func()
	OnSuccess func(*Outcome)
	OnFailure func(error)
}

func (h Hooks) Begin() {
	if h.OnBegin != nil {
		h.OnBegin()
	}
}

func (h Hooks) Success(o *Outcome) {
	if h.OnSuccess != nil {
		h.OnSuccess(o)
	}
}

func (h Hooks) Failure(err error) {
	if h.OnFailure != nil {
		h.OnFailure(err)
	}
}

// SendNow is the interactive path: it bypasses coalescing, runs one cycle
// without a source tag and reports through hooks. Unlike the automatic path,
// an incomplete configuration is reported as a failure.
func (s *Syncer) SendNow(ctx context.Context, hooks Lifecycle) (*Outcome, error) {
	if hooks == nil {
		hooks = Hooks{}
	}
	hooks.Begin()
	out, err := s.Cycle(ctx, "")
	if err != nil {
		if out.Error == "" {
			out.Error = err.Error()
		}
		hooks.Failure(err)
		return out, err
	}
	hooks.Success(out)
	return out, nil
}

func sourceLabel(source string) string {
	if source == "" {
		return "interactive"
	}
	return source
}
