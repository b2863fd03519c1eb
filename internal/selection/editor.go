package selection

import (
	"context"

	"github.com/grovetools/marksync/logging"
	"github.com/grovetools/marksync/pkg/bookmarks"
	"github.com/grovetools/marksync/pkg/syncstate"
	"github.com/sirupsen/logrus"
)

// Editor applies selection changes to the durable record. Every operation
// reads the record fresh, mutates the selection and writes the full record
// back; nothing is cached between calls.
type Editor struct {
	store  syncstate.Store
	logger *logrus.Entry
}

// NewEditor creates an Editor over store.
func NewEditor(store syncstate.Store) *Editor {
	return &Editor{
		store:  store,
		logger: logging.NewLogger("selection"),
	}
}

// Current returns the persisted selection.
func (e *Editor) Current(ctx context.Context) (*Set, error) {
	rec, err := e.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	return NewSet(rec.SelectedIDs...), nil
}

// Add selects a single id. The record is persisted even when id was already
// selected.
func (e *Editor) Add(ctx context.Context, id string) error {
	return e.update(ctx, "add", func(s *Set) { s.Add(id) })
}

// Remove deselects a single id.
func (e *Editor) Remove(ctx context.Context, id string) error {
	return e.update(ctx, "remove", func(s *Set) { s.Remove(id) })
}

// SelectSubtree selects folder and, recursively, all of its descendants.
func (e *Editor) SelectSubtree(ctx context.Context, folder *bookmarks.Node) error {
	return e.update(ctx, "select-subtree", func(s *Set) { s.SelectSubtree(folder) })
}

// DeselectSubtree deselects folder and, recursively, all of its descendants.
func (e *Editor) DeselectSubtree(ctx context.Context, folder *bookmarks.Node) error {
	return e.update(ctx, "deselect-subtree", func(s *Set) { s.DeselectSubtree(folder) })
}

// Toggle is the checkbox gesture: folders apply to their whole subtree,
// links to themselves.
func (e *Editor) Toggle(ctx context.Context, node *bookmarks.Node, selected bool) error {
	switch {
	case node.IsFolder() && selected:
		return e.SelectSubtree(ctx, node)
	case node.IsFolder():
		return e.DeselectSubtree(ctx, node)
	case selected:
		return e.Add(ctx, node.ID)
	default:
		return e.Remove(ctx, node.ID)
	}
}

// OnNodeRemoved prunes id after the tree reported its removal. It does not
// recurse: the tree reports each removed descendant separately. It returns
// whether id was selected; non-members cause no write.
func (e *Editor) OnNodeRemoved(ctx context.Context, id string) (bool, error) {
	rec, err := e.store.Read(ctx)
	if err != nil {
		e.logger.WithError(err).WithField("id", id).Warn("Cannot prune removed bookmark")
		return false, err
	}

	set := NewSet(rec.SelectedIDs...)
	if !set.Remove(id) {
		return false, nil
	}

	rec.SelectedIDs = set.IDs()
	if err := e.store.Write(ctx, rec); err != nil {
		e.logger.WithError(err).WithField("id", id).Warn("Failed to persist pruned selection")
		return false, err
	}

	e.logger.WithFields(logrus.Fields{
		"id":        id,
		"remaining": set.Len(),
	}).Info("Pruned removed bookmark from selection")
	return true, nil
}

func (e *Editor) update(ctx context.Context, op string, mutate func(*Set)) error {
	rec, err := e.store.Read(ctx)
	if err != nil {
		e.logger.WithError(err).WithField("op", op).Warn("Selection change abandoned")
		return err
	}

	set := NewSet(rec.SelectedIDs...)
	before := set.Len()
	mutate(set)
	rec.SelectedIDs = set.IDs()

	if err := e.store.Write(ctx, rec); err != nil {
		e.logger.WithError(err).WithField("op", op).Warn("Selection change not persisted")
		return err
	}

	e.logger.WithFields(logrus.Fields{
		"op":     op,
		"before": before,
		"after":  set.Len(),
	}).Debug("Selection updated")
	return nil
}
