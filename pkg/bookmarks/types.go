// Package bookmarks models a hierarchical bookmark collection and the change
// notifications it emits.
package bookmarks

import (
	"context"
	stderrors "errors"
	"time"
)

// ErrNotFound is returned by Tree.Get for an identifier absent from the tree.
var ErrNotFound = stderrors.New("bookmark not found")

// Node is an entry in the bookmark tree. A node is a folder iff URL is empty.
type Node struct {
	ID                string    `json:"id"`
	ParentID          string    `json:"parentId,omitempty"`
	Index             int       `json:"index"`
	Title             string    `json:"title"`
	URL               string    `json:"url,omitempty"`
	DateAdded         time.Time `json:"dateAdded,omitempty"`
	DateGroupModified time.Time `json:"dateGroupModified,omitempty"`
	Children          []*Node   `json:"children,omitempty"`
}

// IsFolder reports whether n is a folder.
func (n *Node) IsFolder() bool {
	return n.URL == ""
}

// Walk visits n and every descendant, parents before children.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Find returns the node with the given id in the subtree rooted at n.
func (n *Node) Find(id string) *Node {
	if n == nil {
		return nil
	}
	if n.ID == id {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Shallow returns a copy of n without children.
func (n *Node) Shallow() *Node {
	c := *n
	c.Children = nil
	return &c
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}

// Tree resolves nodes against the live collection.
type Tree interface {
	// Get returns the node without children, or ErrNotFound.
	Get(ctx context.Context, id string) (*Node, error)
	// GetTree returns the whole collection under a synthetic root.
	GetTree(ctx context.Context) (*Node, error)
}

// Source is a Tree that also emits change notifications.
type Source interface {
	Tree
	// Watch streams events until ctx is cancelled, then closes the channel.
	Watch(ctx context.Context) (<-chan Event, error)
}

// EventKind classifies a tree mutation.
type EventKind string

const (
	EventCreated           EventKind = "created"
	EventChanged           EventKind = "changed"
	EventMoved             EventKind = "moved"
	EventChildrenReordered EventKind = "children_reordered"
	EventRemoved           EventKind = "removed"
)

// Event is a single tree mutation notification. ID is the affected node;
// for EventChildrenReordered it is the folder whose children changed order.
type Event struct {
	Kind        EventKind `json:"kind"`
	ID          string    `json:"id"`
	ParentID    string    `json:"parentId,omitempty"`
	OldParentID string    `json:"oldParentId,omitempty"`
	Index       int       `json:"index"`
	OldIndex    int       `json:"oldIndex,omitempty"`
}
