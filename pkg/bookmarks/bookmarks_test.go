package bookmarks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestTree(t *testing.T) *MemoryTree {
	t.Helper()
	tree := NewMemoryTree(func() time.Time { return fixedNow })
	_, err := tree.Create(Node{ID: "1", Title: "Bar"})
	require.NoError(t, err)
	_, err = tree.Create(Node{ID: "2", ParentID: "1", Title: "Go", URL: "https://go.dev"})
	require.NoError(t, err)
	_, err = tree.Create(Node{ID: "3", ParentID: "1", Title: "Sub"})
	require.NoError(t, err)
	_, err = tree.Create(Node{ID: "4", ParentID: "3", Title: "Docs", URL: "https://pkg.go.dev"})
	require.NoError(t, err)
	return tree
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func TestMemoryTreeGet(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	n, err := tree.Get(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Go", n.Title)
	assert.Equal(t, "1", n.ParentID)
	assert.Equal(t, 0, n.Index)
	assert.False(t, n.IsFolder())
	assert.Equal(t, fixedNow, n.DateAdded)

	folder, err := tree.Get(ctx, "3")
	require.NoError(t, err)
	assert.True(t, folder.IsFolder())
	assert.Nil(t, folder.Children, "Get returns nodes without children")

	_, err = tree.Get(ctx, "99")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryTreeFailLookup(t *testing.T) {
	tree := newTestTree(t)
	ctx := context.Background()

	tree.FailLookup("2", assert.AnError)
	_, err := tree.Get(ctx, "2")
	assert.ErrorIs(t, err, assert.AnError)

	tree.FailLookup("2", nil)
	_, err = tree.Get(ctx, "2")
	assert.NoError(t, err)
}

func TestMemoryTreeRemoveCascades(t *testing.T) {
	tree := newTestTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := tree.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, tree.Remove("1"))

	got := drain(events)
	var removed []string
	for _, e := range got {
		require.Equal(t, EventRemoved, e.Kind)
		removed = append(removed, e.ID)
	}
	assert.Equal(t, []string{"2", "4", "3", "1"}, removed)

	root, err := tree.GetTree(ctx)
	require.NoError(t, err)
	assert.Empty(t, root.Children)
}

func TestMemoryTreeMutationEvents(t *testing.T) {
	tree := newTestTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := tree.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, tree.Update("2", "Go!", "https://go.dev/doc"))
	require.NoError(t, tree.Move("4", "1", 0))
	require.NoError(t, tree.Reorder("1", []string{"2", "3", "4"}))

	got := drain(events)
	require.Len(t, got, 3)
	assert.Equal(t, EventChanged, got[0].Kind)
	assert.Equal(t, Event{Kind: EventMoved, ID: "4", ParentID: "1", OldParentID: "3", Index: 0, OldIndex: 0}, got[1])
	assert.Equal(t, EventChildrenReordered, got[2].Kind)
	assert.Equal(t, "1", got[2].ID)

	root, err := tree.GetTree(ctx)
	require.NoError(t, err)
	bar := root.Find("1")
	require.NotNil(t, bar)
	var order []string
	for i, c := range bar.Children {
		order = append(order, c.ID)
		assert.Equal(t, i, c.Index)
	}
	assert.Equal(t, []string{"2", "3", "4"}, order)
}

func TestMemoryTreeRejectsInvalidMutations(t *testing.T) {
	tree := newTestTree(t)

	_, err := tree.Create(Node{ParentID: "2", Title: "under a link"})
	assert.Error(t, err)
	_, err = tree.Create(Node{ID: "1"})
	assert.Error(t, err)
	assert.Error(t, tree.Move("1", "3", 0), "cannot move into own subtree")
	assert.Error(t, tree.Update("3", "Sub", "https://x"), "folders have no URL")
	assert.Error(t, tree.Reorder("1", []string{"2"}))
	assert.Error(t, tree.Remove(RootID))
}

func TestMemoryTreeAssignsIDs(t *testing.T) {
	tree := NewMemoryTree(nil)
	a, err := tree.Create(Node{Title: "a", URL: "https://a"})
	require.NoError(t, err)
	b, err := tree.Create(Node{Title: "b", URL: "https://b"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 1, b.Index)
}

func TestDiff(t *testing.T) {
	old := &Node{ID: "0", Children: []*Node{
		{ID: "1", ParentID: "0", Title: "Bar", Children: []*Node{
			{ID: "2", ParentID: "1", Index: 0, Title: "Go", URL: "https://go.dev"},
			{ID: "3", ParentID: "1", Index: 1, Title: "Sub", Children: []*Node{
				{ID: "4", ParentID: "3", Title: "Docs", URL: "https://pkg.go.dev"},
			}},
			{ID: "5", ParentID: "1", Index: 2, Title: "Keep", URL: "https://keep"},
			{ID: "6", ParentID: "1", Index: 3, Title: "Mover", URL: "https://mover"},
		}},
		{ID: "7", ParentID: "0", Index: 1, Title: "Other", Children: []*Node{}},
	}}

	cur := &Node{ID: "0", Children: []*Node{
		{ID: "1", ParentID: "0", Title: "Bar", Children: []*Node{
			{ID: "5", ParentID: "1", Index: 0, Title: "Keep", URL: "https://keep"},
			{ID: "2", ParentID: "1", Index: 1, Title: "Go (renamed)", URL: "https://go.dev"},
			{ID: "8", ParentID: "1", Index: 2, Title: "New", URL: "https://new"},
		}},
		{ID: "7", ParentID: "0", Index: 1, Title: "Other", Children: []*Node{
			{ID: "6", ParentID: "7", Index: 0, Title: "Mover", URL: "https://mover"},
		}},
	}}

	events := Diff(old, cur)

	byKind := map[EventKind][]string{}
	for _, e := range events {
		byKind[e.Kind] = append(byKind[e.Kind], e.ID)
	}
	assert.Equal(t, []string{"4", "3"}, byKind[EventRemoved], "removals are deepest first")
	assert.Equal(t, []string{"8"}, byKind[EventCreated])
	assert.Equal(t, []string{"2"}, byKind[EventChanged])
	assert.Equal(t, []string{"6"}, byKind[EventMoved])
	assert.Equal(t, []string{"1"}, byKind[EventChildrenReordered])

	// Removals come before everything else.
	assert.Equal(t, EventRemoved, events[0].Kind)
	assert.Equal(t, EventRemoved, events[1].Kind)
}

func TestDiffIdenticalTrees(t *testing.T) {
	tree := newTestTree(t)
	a, err := tree.GetTree(context.Background())
	require.NoError(t, err)
	assert.Empty(t, Diff(a, a.Clone()))
}

func TestDiffFromNothing(t *testing.T) {
	cur := &Node{ID: "0", Children: []*Node{{ID: "1", ParentID: "0", URL: "https://a"}}}
	events := Diff(nil, cur)
	require.Len(t, events, 1)
	assert.Equal(t, EventCreated, events[0].Kind)
}
