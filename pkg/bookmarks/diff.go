package bookmarks

// Diff derives the events that turn old into new. Backends that can only
// re-read a whole snapshot (a profile file, a database) use it to produce
// notifications. Removals list descendants before their ancestors, each
// removed node once; a folder whose surviving children changed order yields
// one EventChildrenReordered.
func Diff(old, new *Node) []Event {
	oldIdx := index(old)
	newIdx := index(new)

	var events []Event

	// Removals, deepest first.
	var removeWalk func(n *Node)
	removeWalk = func(n *Node) {
		for _, c := range n.Children {
			removeWalk(c)
		}
		if _, still := newIdx[n.ID]; !still && n != old {
			events = append(events, Event{
				Kind:     EventRemoved,
				ID:       n.ID,
				ParentID: n.ParentID,
				Index:    n.Index,
			})
		}
	}
	if old != nil {
		removeWalk(old)
	}

	new.Walk(func(n *Node) {
		if n == new {
			return
		}
		prev, existed := oldIdx[n.ID]
		if !existed {
			events = append(events, Event{
				Kind:     EventCreated,
				ID:       n.ID,
				ParentID: n.ParentID,
				Index:    n.Index,
			})
			return
		}
		if prev.ParentID != n.ParentID {
			events = append(events, Event{
				Kind:        EventMoved,
				ID:          n.ID,
				ParentID:    n.ParentID,
				OldParentID: prev.ParentID,
				Index:       n.Index,
				OldIndex:    prev.Index,
			})
		}
		if prev.Title != n.Title || prev.URL != n.URL {
			events = append(events, Event{
				Kind:     EventChanged,
				ID:       n.ID,
				ParentID: n.ParentID,
				Index:    n.Index,
			})
		}
		if n.IsFolder() && reordered(prev, n) {
			events = append(events, Event{
				Kind:     EventChildrenReordered,
				ID:       n.ID,
				ParentID: n.ParentID,
				Index:    n.Index,
			})
		}
	})

	return events
}

func index(root *Node) map[string]*Node {
	idx := make(map[string]*Node)
	root.Walk(func(n *Node) {
		idx[n.ID] = n
	})
	return idx
}

// reordered reports whether the children present in both snapshots appear
// in a different relative order.
func reordered(prev, cur *Node) bool {
	inCur := make(map[string]struct{}, len(cur.Children))
	for _, c := range cur.Children {
		inCur[c.ID] = struct{}{}
	}
	inPrev := make(map[string]struct{}, len(prev.Children))
	for _, c := range prev.Children {
		inPrev[c.ID] = struct{}{}
	}

	var before, after []string
	for _, c := range prev.Children {
		if _, ok := inCur[c.ID]; ok {
			before = append(before, c.ID)
		}
	}
	for _, c := range cur.Children {
		if _, ok := inPrev[c.ID]; ok {
			after = append(after, c.ID)
		}
	}
	for i := range before {
		if before[i] != after[i] {
			return true
		}
	}
	return false
}
