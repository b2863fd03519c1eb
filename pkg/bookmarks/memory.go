package bookmarks

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// RootID is the identifier of the synthetic root folder.
const RootID = "0"

// MemoryTree is an in-memory Source. Mutations emit the same notifications a
// browser would, including one EventRemoved per node of a removed subtree.
type MemoryTree struct {
	mu          sync.RWMutex
	root        *Node
	byID        map[string]*Node
	nextID      int
	now         func() time.Time
	failures    map[string]error
	subscribers map[chan Event]struct{}
}

// NewMemoryTree creates an empty tree. now stamps dateAdded and
// dateGroupModified; nil uses time.Now.
func NewMemoryTree(now func() time.Time) *MemoryTree {
	if now == nil {
		now = time.Now
	}
	root := &Node{ID: RootID, Children: []*Node{}}
	return &MemoryTree{
		root:        root,
		byID:        map[string]*Node{RootID: root},
		nextID:      1,
		now:         now,
		failures:    make(map[string]error),
		subscribers: make(map[chan Event]struct{}),
	}
}

// Get returns a childless copy of the node.
func (t *MemoryTree) Get(ctx context.Context, id string) (*Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if err, ok := t.failures[id]; ok {
		return nil, err
	}
	n, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return n.Shallow(), nil
}

// GetTree returns a deep copy of the whole tree.
func (t *MemoryTree) GetTree(ctx context.Context) (*Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.Clone(), nil
}

// Watch subscribes to mutation events until ctx is cancelled.
func (t *MemoryTree) Watch(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, 256)
	t.mu.Lock()
	t.subscribers[ch] = struct{}{}
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(t.subscribers, ch)
		close(ch)
		t.mu.Unlock()
	}()
	return ch, nil
}

// FailLookup makes Get(id) return err until cleared with a nil err. The node
// itself stays in the tree.
func (t *MemoryTree) FailLookup(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.failures, id)
		return
	}
	t.failures[id] = err
}

// Create appends n under n.ParentID (the root when empty). An empty n.ID is
// assigned. Children on n are ignored; n is a folder iff n.URL is empty.
func (t *MemoryTree) Create(n Node) (*Node, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	parentID := n.ParentID
	if parentID == "" {
		parentID = RootID
	}
	parent, ok := t.byID[parentID]
	if !ok {
		return nil, fmt.Errorf("%w: parent %s", ErrNotFound, parentID)
	}
	if !parent.IsFolder() {
		return nil, fmt.Errorf("parent %s is not a folder", parentID)
	}

	if n.ID == "" {
		for {
			n.ID = strconv.Itoa(t.nextID)
			t.nextID++
			if _, taken := t.byID[n.ID]; !taken {
				break
			}
		}
	} else if _, taken := t.byID[n.ID]; taken {
		return nil, fmt.Errorf("bookmark %s already exists", n.ID)
	}

	node := &Node{
		ID:                n.ID,
		ParentID:          parentID,
		Index:             len(parent.Children),
		Title:             n.Title,
		URL:               n.URL,
		DateAdded:         n.DateAdded,
		DateGroupModified: n.DateGroupModified,
	}
	if node.DateAdded.IsZero() {
		node.DateAdded = t.now()
	}
	if node.IsFolder() {
		node.Children = []*Node{}
	}
	parent.Children = append(parent.Children, node)
	parent.DateGroupModified = t.now()
	t.byID[node.ID] = node

	t.emit(Event{Kind: EventCreated, ID: node.ID, ParentID: parentID, Index: node.Index})
	return node.Shallow(), nil
}

// Update changes a node's title and URL. A folder cannot gain a URL.
func (t *MemoryTree) Update(id, title, url string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.byID[id]
	if !ok || id == RootID {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if n.IsFolder() && url != "" {
		return fmt.Errorf("cannot set a URL on folder %s", id)
	}
	if !n.IsFolder() && url == "" {
		return fmt.Errorf("cannot clear the URL of bookmark %s", id)
	}
	n.Title = title
	n.URL = url
	t.emit(Event{Kind: EventChanged, ID: id, ParentID: n.ParentID, Index: n.Index})
	return nil
}

// Move reparents id under parentID at index (clamped; negative appends).
func (t *MemoryTree) Move(id, parentID string, index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.byID[id]
	if !ok || id == RootID {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	parent, ok := t.byID[parentID]
	if !ok || !parent.IsFolder() {
		return fmt.Errorf("%w: folder %s", ErrNotFound, parentID)
	}
	if n.Find(parentID) != nil {
		return fmt.Errorf("cannot move %s into its own subtree", id)
	}

	oldParent := t.byID[n.ParentID]
	oldParentID, oldIndex := n.ParentID, n.Index
	oldParent.Children = removeChild(oldParent.Children, id)
	renumber(oldParent)

	if index < 0 || index > len(parent.Children) {
		index = len(parent.Children)
	}
	parent.Children = append(parent.Children, nil)
	copy(parent.Children[index+1:], parent.Children[index:])
	parent.Children[index] = n
	n.ParentID = parentID
	renumber(parent)

	now := t.now()
	oldParent.DateGroupModified = now
	parent.DateGroupModified = now

	t.emit(Event{
		Kind:        EventMoved,
		ID:          id,
		ParentID:    parentID,
		OldParentID: oldParentID,
		Index:       n.Index,
		OldIndex:    oldIndex,
	})
	return nil
}

// Reorder sets the child order of a folder. childIDs must be a permutation
// of the current children.
func (t *MemoryTree) Reorder(folderID string, childIDs []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	folder, ok := t.byID[folderID]
	if !ok || !folder.IsFolder() {
		return fmt.Errorf("%w: folder %s", ErrNotFound, folderID)
	}
	if len(childIDs) != len(folder.Children) {
		return fmt.Errorf("reorder of %s must list all %d children", folderID, len(folder.Children))
	}

	current := make(map[string]*Node, len(folder.Children))
	for _, c := range folder.Children {
		current[c.ID] = c
	}
	ordered := make([]*Node, 0, len(childIDs))
	for _, id := range childIDs {
		c, ok := current[id]
		if !ok {
			return fmt.Errorf("%s is not a child of %s", id, folderID)
		}
		delete(current, id)
		ordered = append(ordered, c)
	}
	folder.Children = ordered
	renumber(folder)
	folder.DateGroupModified = t.now()

	t.emit(Event{Kind: EventChildrenReordered, ID: folderID, ParentID: folder.ParentID, Index: folder.Index})
	return nil
}

// Remove deletes id and its subtree. One EventRemoved is emitted per removed
// node, descendants first.
func (t *MemoryTree) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.byID[id]
	if !ok || id == RootID {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	parent := t.byID[n.ParentID]
	parent.Children = removeChild(parent.Children, id)
	renumber(parent)
	parent.DateGroupModified = t.now()

	var cascade func(*Node)
	cascade = func(node *Node) {
		for _, c := range node.Children {
			cascade(c)
		}
		delete(t.byID, node.ID)
		delete(t.failures, node.ID)
		t.emit(Event{Kind: EventRemoved, ID: node.ID, ParentID: node.ParentID, Index: node.Index})
	}
	cascade(n)
	return nil
}

// emit must be called with t.mu held.
func (t *MemoryTree) emit(e Event) {
	for ch := range t.subscribers {
		select {
		case ch <- e:
		default:
			// Drop for subscribers that stopped draining
		}
	}
}

func removeChild(children []*Node, id string) []*Node {
	out := children[:0]
	for _, c := range children {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

func renumber(folder *Node) {
	for i, c := range folder.Children {
		c.Index = i
	}
}
