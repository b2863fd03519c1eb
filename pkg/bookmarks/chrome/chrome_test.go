package chrome

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/marksync/pkg/bookmarks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "Bookmarks"))
	require.NoError(t, err)

	root, err := Parse(data)
	require.NoError(t, err)

	require.Equal(t, bookmarks.RootID, root.ID)
	require.Len(t, root.Children, 3)
	assert.Equal(t, "Bookmarks bar", root.Children[0].Title)
	assert.Equal(t, "Other bookmarks", root.Children[1].Title)
	assert.Equal(t, "Mobile bookmarks", root.Children[2].Title)

	golink := root.Find("5")
	require.NotNil(t, golink)
	assert.Equal(t, "https://go.dev/", golink.URL)
	assert.Equal(t, "1", golink.ParentID)
	assert.Equal(t, 0, golink.Index)
	assert.False(t, golink.IsFolder())
	assert.Equal(t, int64(1705526400000), golink.DateAdded.UnixMilli())

	ref := root.Find("6")
	require.NotNil(t, ref)
	assert.True(t, ref.IsFolder())
	assert.Equal(t, 1, ref.Index)
	assert.Equal(t, int64(1705526401000), ref.DateGroupModified.UnixMilli())

	other := root.Find("2")
	require.NotNil(t, other)
	assert.True(t, other.DateGroupModified.IsZero(), "date_modified 0 means unset")
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("not json"))
	assert.Error(t, err)
	_, err = Parse([]byte(`{"version":1}`))
	assert.Error(t, err)
}

func TestSourceGet(t *testing.T) {
	path := copyFixture(t)
	src, err := New(path, 0)
	require.NoError(t, err)

	ctx := context.Background()
	n, err := src.Get(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "pkg.go.dev", n.Title)
	assert.Nil(t, n.Children)

	_, err = src.Get(ctx, "404")
	assert.True(t, errors.Is(err, bookmarks.ErrNotFound))
}

func TestSourceWatchEmitsRemoval(t *testing.T) {
	t.Setenv("MARKSYNC_HOME", t.TempDir())
	path := copyFixture(t)
	src, err := New(path, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := src.Watch(ctx)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// Drop bookmark 7 from the Reference folder.
	start := strings.Index(string(data), `"children": [ {
               "date_added": "13350000001000000"`)
	require.Positive(t, start)
	end := strings.Index(string(data)[start:], "} ],") + start + len("} ],")
	edited := string(data[:start]) + `"children": [ ],` + string(data[end:])
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	select {
	case e := <-events:
		assert.Equal(t, bookmarks.EventRemoved, e.Kind)
		assert.Equal(t, "7", e.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("expected a removal event")
	}
}

func copyFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "Bookmarks"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "Bookmarks")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
