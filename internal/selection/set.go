// Package selection tracks which bookmark identifiers are selected for export.
package selection

import (
	"github.com/grovetools/marksync/pkg/bookmarks"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Set is a duplicate-free set of node identifiers. Membership carries no
// ordering semantics; iteration follows insertion order so snapshots are
// deterministic.
type Set struct {
	m *orderedmap.OrderedMap[string, struct{}]
}

// NewSet creates a set holding ids.
func NewSet(ids ...string) *Set {
	s := &Set{m: orderedmap.New[string, struct{}]()}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id and reports whether the set changed.
func (s *Set) Add(id string) bool {
	if id == "" {
		return false
	}
	_, present := s.m.Set(id, struct{}{})
	return !present
}

// Remove deletes id and reports whether the set changed.
func (s *Set) Remove(id string) bool {
	_, present := s.m.Delete(id)
	return present
}

// Has reports membership.
func (s *Set) Has(id string) bool {
	_, ok := s.m.Get(id)
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	return s.m.Len()
}

// IDs returns the members in insertion order.
func (s *Set) IDs() []string {
	ids := make([]string, 0, s.m.Len())
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// SelectSubtree adds node's id and every descendant id, folders and links
// alike. It returns the number of ids added.
func (s *Set) SelectSubtree(node *bookmarks.Node) int {
	added := 0
	node.Walk(func(n *bookmarks.Node) {
		if s.Add(n.ID) {
			added++
		}
	})
	return added
}

// DeselectSubtree removes node's id and every descendant id. It returns the
// number of ids removed.
func (s *Set) DeselectSubtree(node *bookmarks.Node) int {
	removed := 0
	node.Walk(func(n *bookmarks.Node) {
		if s.Remove(n.ID) {
			removed++
		}
	})
	return removed
}
