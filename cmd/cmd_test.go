package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/marksync/errors"
	"github.com/grovetools/marksync/internal/daemon/store"
	"github.com/grovetools/marksync/internal/syncer"
	"github.com/grovetools/marksync/pkg/bookmarks"
	"github.com/grovetools/marksync/pkg/daemon"
	"github.com/grovetools/marksync/pkg/paths"
	"github.com/grovetools/marksync/pkg/syncstate"
	"github.com/grovetools/marksync/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	home     string
	settings string
	state    string
}

// newEnv isolates marksync under a temp MARKSYNC_HOME with a Chromium
// fixture: bar "1" {"5" Go, "6" Reference {"7"}}.
func newEnv(t *testing.T) *env {
	t.Helper()
	home := testutil.SetupHome(t)

	fixture, err := os.ReadFile(filepath.Join("..", "pkg", "bookmarks", "chrome", "testdata", "Bookmarks"))
	require.NoError(t, err)
	bookmarksPath := filepath.Join(home, "Bookmarks")
	require.NoError(t, os.WriteFile(bookmarksPath, fixture, 0644))

	e := &env{
		home:     home,
		settings: filepath.Join(home, "marksync.yml"),
		state:    filepath.Join(home, "state.yml"),
	}
	doc := fmt.Sprintf("source:\n  kind: chrome\n  path: %s\nstate:\n  path: %s\n", bookmarksPath, e.state)
	require.NoError(t, os.WriteFile(e.settings, []byte(doc), 0644))
	return e
}

func (e *env) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--config", e.settings))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *env) record(t *testing.T) syncstate.Record {
	t.Helper()
	rec, err := syncstate.NewFileStore(e.state).Read(context.Background())
	require.NoError(t, err)
	return rec
}

func TestConfigSetEndpoint(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "", "config", "set-endpoint", "not-a-url")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	out, err := e.run(t, "", "config", "set-endpoint", "https://example.com/hook")
	require.NoError(t, err)
	assert.Contains(t, out, "Endpoint set to https://example.com/hook")
	assert.Equal(t, "https://example.com/hook", e.record(t).EndpointURL)
}

func TestConfigSecretIsRedacted(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "s3cret\n", "config", "set-secret", "--stdin")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", e.record(t).SharedSecret)

	out, err := e.run(t, "", "config", "show", "--json")
	require.NoError(t, err)
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "********")

	_, err = e.run(t, "", "config", "clear-secret")
	require.NoError(t, err)
	assert.Empty(t, e.record(t).SharedSecret)

	_, err = e.run(t, "\n", "config", "set-secret", "--stdin")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestConfigPathAndSchema(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "", "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "Settings: "+e.settings)
	assert.Contains(t, out, "Record:   "+e.state)
	assert.Contains(t, out, "Socket:   "+paths.SocketPath())

	out, err = e.run(t, "", "config", "schema")
	require.NoError(t, err)
	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
}

func TestSelectAndDeselect(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "", "select", "--recursive", "6")
	require.NoError(t, err)
	assert.Contains(t, out, "2 bookmarks selected")
	assert.Equal(t, []string{"6", "7"}, e.record(t).SelectedIDs)

	_, err = e.run(t, "", "select", "5")
	require.NoError(t, err)
	assert.Equal(t, []string{"6", "7", "5"}, e.record(t).SelectedIDs)

	_, err = e.run(t, "", "deselect", "-r", "6")
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, e.record(t).SelectedIDs)

	_, err = e.run(t, "", "select", "999")
	assert.True(t, errors.Is(err, errors.ErrCodeNodeNotFound))

	// Stale identifiers can be deselected even though the tree lacks them.
	require.NoError(t, syncstate.NewFileStore(e.state).Write(context.Background(),
		syncstate.Record{SelectedIDs: []string{"5", "999"}}))
	_, err = e.run(t, "", "deselect", "999")
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, e.record(t).SelectedIDs)

	require.NoError(t, syncstate.NewFileStore(e.state).Write(context.Background(),
		syncstate.Record{SelectedIDs: []string{"5", "404"}}))
	_, err = e.run(t, "", "deselect", "--recursive", "404")
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, e.record(t).SelectedIDs)

	_, err = e.run(t, "", "select", "--recursive", "404")
	assert.True(t, errors.Is(err, errors.ErrCodeNodeNotFound))
}

func TestSelectionAndTree(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, syncstate.NewFileStore(e.state).Write(context.Background(),
		syncstate.Record{SelectedIDs: []string{"6", "404"}}))

	out, err := e.run(t, "", "selection", "--json")
	require.NoError(t, err)
	var entries []selectionEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, selectionEntry{ID: "6", Title: "Reference", Folder: true}, entries[0])
	assert.True(t, entries[1].Missing)

	out, err = e.run(t, "", "tree")
	require.NoError(t, err)
	assert.Contains(t, out, "[x] Reference/")
	assert.Contains(t, out, "[ ] Go https://go.dev/")

	out, err = e.run(t, "", "tree", "--json")
	require.NoError(t, err)
	var root bookmarks.Node
	require.NoError(t, json.Unmarshal([]byte(out), &root))
	assert.Equal(t, bookmarks.RootID, root.ID)
}

func TestSendWithoutDaemon(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "", "send", "--quiet")
	assert.True(t, errors.Is(err, errors.ErrCodeConfigIncomplete))

	ep := testutil.NewEndpoint(t)
	require.NoError(t, syncstate.NewFileStore(e.state).Write(context.Background(),
		syncstate.Record{EndpointURL: ep.URL, SelectedIDs: []string{"6", "7"}}))

	out, err := e.run(t, "", "send", "--json")
	require.NoError(t, err)
	var resp daemon.BridgeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Outcome)
	assert.Equal(t, 2, resp.Outcome.Count)
	assert.Equal(t, 1, ep.Count())
}

func TestDaemonCommandsWithoutDaemon(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "", "daemon", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Stopped")

	out, err = e.run(t, "", "daemon", "stop")
	require.NoError(t, err)
	assert.Contains(t, out, "not running")

	_, err = e.run(t, "", "daemon", "flush")
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonUnavailable))

	_, err = e.run(t, "", "watch")
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonUnavailable))
}

func TestLogsPrintsTrailingLines(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.MkdirAll(paths.LogDir(), 0755))
	lines := `{"level":"info","msg":"first","component":"engine","time":"2024-06-01T10:00:00Z"}
{"level":"warning","msg":"second","component":"server","time":"2024-06-01T10:00:01Z","id":"7"}
`
	require.NoError(t, os.WriteFile(paths.DaemonLogPath(time.Now()), []byte(lines), 0644))

	out, err := e.run(t, "", "logs", "-n", "1")
	require.NoError(t, err)
	assert.NotContains(t, out, "first")
	assert.Contains(t, out, "second")
	assert.Contains(t, out, "id=7")

	out, err = e.run(t, "", "logs", "-n", "0", "--json")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, `"msg":`))
}

func TestTailOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.log")
	require.NoError(t, os.WriteFile(path, []byte("a\nbb\nccc\n"), 0644))

	for n, want := range map[int]int64{0: 0, 1: 5, 2: 2, 3: 0, 10: 0} {
		got, err := tailOffset(path, n)
		require.NoError(t, err)
		assert.Equal(t, want, got, "n=%d", n)
	}
}

func TestPrintUpdate(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer

	printUpdate(&buf, daemon.Update{Type: store.UpdatePruned, ID: "7"}, at)
	printUpdate(&buf, daemon.Update{Type: store.UpdateOutcome, Source: "auto_sync", Outcome: &syncer.Outcome{Count: 3}}, at)
	printUpdate(&buf, daemon.Update{Type: store.UpdateOutcome, Source: "interactive", Outcome: &syncer.Outcome{Error: "HTTP 500: Internal Server Error"}}, at)
	printUpdate(&buf, daemon.Update{Type: store.UpdateTreeEvent, Event: &bookmarks.Event{Kind: bookmarks.EventMoved, ID: "5"}}, at)

	out := buf.String()
	assert.Contains(t, out, "10:00:00 prune removed 7 from the selection")
	assert.Contains(t, out, "sent 3 bookmarks (auto_sync)")
	assert.Contains(t, out, "failed (interactive): HTTP 500")
	assert.Contains(t, out, "tree moved 5")
}

func TestVersionJSON(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "", "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "dev"`)
}
