// Package snapshot resolves a selection into serializable node descriptors.
package snapshot

import (
	"context"

	"github.com/grovetools/marksync/errors"
	"github.com/grovetools/marksync/logging"
	"github.com/grovetools/marksync/pkg/bookmarks"
	"github.com/sirupsen/logrus"
)

// Descriptor is the export form of a node. Absent values encode as null;
// dates are milliseconds since the Unix epoch.
type Descriptor struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	URL               *string `json:"url"`
	ParentID          *string `json:"parentId"`
	Index             int     `json:"index"`
	DateAdded         *int64  `json:"dateAdded"`
	DateGroupModified *int64  `json:"dateGroupModified"`
	IsFolder          bool    `json:"isFolder"`
}

// Describe converts a node into its descriptor.
func Describe(n *bookmarks.Node) Descriptor {
	d := Descriptor{
		ID:       n.ID,
		Name:     n.Title,
		Index:    n.Index,
		IsFolder: n.IsFolder(),
	}
	if n.URL != "" {
		url := n.URL
		d.URL = &url
	}
	if n.ParentID != "" {
		parent := n.ParentID
		d.ParentID = &parent
	}
	if !n.DateAdded.IsZero() {
		ms := n.DateAdded.UnixMilli()
		d.DateAdded = &ms
	}
	if !n.DateGroupModified.IsZero() {
		ms := n.DateGroupModified.UnixMilli()
		d.DateGroupModified = &ms
	}
	return d
}

// Failure records an identifier that could not be resolved.
type Failure struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
}

// Result is the outcome of one Build call.
type Result struct {
	Descriptors []Descriptor
	Failed      []Failure
}

// Builder resolves identifiers against a live tree.
type Builder struct {
	tree   bookmarks.Tree
	logger *logrus.Entry
}

// NewBuilder creates a Builder over tree.
func NewBuilder(tree bookmarks.Tree) *Builder {
	return &Builder{
		tree:   tree,
		logger: logging.NewLogger("snapshot"),
	}
}

// Build makes one lookup per id, in order. A failed lookup is logged and
// skipped; it never aborts the batch and never changes the selection, so the
// result may be shorter than ids.
func (b *Builder) Build(ctx context.Context, ids []string) Result {
	res := Result{Descriptors: make([]Descriptor, 0, len(ids))}
	for _, id := range ids {
		node, err := b.tree.Get(ctx, id)
		if err == nil && node == nil {
			err = errors.NodeNotFound(id)
		}
		if err != nil {
			b.logger.WithError(err).WithField("id", id).Warn("Skipping unresolvable bookmark")
			res.Failed = append(res.Failed, Failure{ID: id, Err: errors.NodeResolution(id, err)})
			continue
		}
		res.Descriptors = append(res.Descriptors, Describe(node))
	}

	b.logger.WithFields(logrus.Fields{
		"requested": len(ids),
		"resolved":  len(res.Descriptors),
		"failed":    len(res.Failed),
	}).Debug("Snapshot built")
	return res
}
