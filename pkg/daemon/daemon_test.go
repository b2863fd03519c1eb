package daemon_test

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/marksync/config"
	"github.com/grovetools/marksync/errors"
	"github.com/grovetools/marksync/internal/daemon/engine"
	"github.com/grovetools/marksync/internal/daemon/server"
	"github.com/grovetools/marksync/internal/daemon/store"
	"github.com/grovetools/marksync/internal/snapshot"
	"github.com/grovetools/marksync/internal/syncer"
	"github.com/grovetools/marksync/internal/transmit"
	"github.com/grovetools/marksync/logging"
	"github.com/grovetools/marksync/pkg/bookmarks"
	"github.com/grovetools/marksync/pkg/daemon"
	"github.com/grovetools/marksync/pkg/syncstate"
	"github.com/grovetools/marksync/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	tree     *bookmarks.MemoryTree
	records  *syncstate.MemoryStore
	syncer   *syncer.Syncer
	endpoint *testutil.Endpoint
	clock    *testutil.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := testutil.NewFakeClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	tree := bookmarks.NewMemoryTree(clk.Now)
	_, err := tree.Create(bookmarks.Node{ID: "1", Title: "A", URL: "http://a"})
	require.NoError(t, err)

	ep := testutil.NewEndpoint(t)
	ep.Respond(200, `{"stored":1}`)
	records := syncstate.NewMemoryStore(syncstate.Record{EndpointURL: ep.URL, SelectedIDs: []string{"1"}})
	sy := syncer.New(records, snapshot.NewBuilder(tree), transmit.New())
	return &harness{tree: tree, records: records, syncer: sy, endpoint: ep, clock: clk}
}

// serve runs a daemon server for h on a unix socket and returns its path.
func (h *harness) serve(t *testing.T) (string, *engine.Engine) {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "d.sock")

	eng := engine.New(h.records, h.tree, h.syncer, engine.Options{Clock: h.clock, SourceName: "memory"},
		logging.NewLogger("engine"))
	srv := server.New(logging.NewLogger("server"))
	srv.SetEngine(eng)

	go srv.ListenAndServe(socket)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		eng.Stop()
	})
	require.Eventually(t, func() bool { return daemon.Reachable(socket) }, 2*time.Second, 10*time.Millisecond)
	return socket, eng
}

type hookLog struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (h *hookLog) lifecycle() syncer.Hooks {
	record := func(s string) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.calls = append(h.calls, s)
	}
	return syncer.Hooks{
		OnBegin:   func() { record("begin") },
		OnSuccess: func(*syncer.Outcome) { record("success") },
		OnFailure: func(err error) { h.err = err; record("failure") },
	}
}

func TestNewBridgeResponse(t *testing.T) {
	ok := daemon.NewBridgeResponse(&syncer.Outcome{Data: "queued"}, nil)
	assert.True(t, ok.Success)
	assert.Equal(t, "queued", ok.Data)
	assert.NoError(t, ok.Err())

	failed := daemon.NewBridgeResponse(&syncer.Outcome{}, errors.HTTPStatus(500))
	assert.False(t, failed.Success)
	assert.Equal(t, "HTTP 500: Internal Server Error", failed.Error)
	assert.Equal(t, string(errors.ErrCodeTransmissionFailed), failed.Code)
	assert.True(t, errors.Is(failed.Err(), errors.ErrCodeTransmissionFailed))

	wrapped := daemon.NewBridgeResponse(nil, errors.TransmissionFailed(stderrors.New("connection refused")))
	assert.Equal(t, "connection refused", wrapped.Error)

	plain := daemon.NewBridgeResponse(nil, stderrors.New("boom"))
	assert.Empty(t, plain.Code)
	assert.EqualError(t, plain.Err(), "boom")
}

func TestLocalClientSend(t *testing.T) {
	h := newHarness(t)
	client := daemon.NewLocalClient(h.syncer)
	log := &hookLog{}

	resp, err := client.Send(context.Background(), log.lifecycle())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]interface{}{"stored": float64(1)}, resp.Data)
	assert.Equal(t, []string{"begin", "success"}, log.calls)
	assert.Equal(t, 1, h.endpoint.Count())
	assert.False(t, client.IsRunning())
}

func TestLocalClientSendFailureIsAValue(t *testing.T) {
	h := newHarness(t)
	h.records.SetExternal(syncstate.Record{SelectedIDs: []string{"1"}})
	log := &hookLog{}

	resp, err := daemon.NewLocalClient(h.syncer).Send(context.Background(), log.lifecycle())
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "endpoint URL and at least one selected bookmark are required", resp.Error)
	assert.Equal(t, []string{"begin", "failure"}, log.calls)
	assert.Equal(t, 0, h.endpoint.Count())
}

func TestLocalClientDaemonOnlyOperations(t *testing.T) {
	client := daemon.NewLocalClient(newHarness(t).syncer)
	ctx := context.Background()

	_, err := client.Status(ctx)
	assert.Error(t, err)
	_, err = client.Flush(ctx)
	assert.Error(t, err)
	_, err = client.Stream(ctx)
	assert.Error(t, err)
	assert.NoError(t, client.Close())
}

func TestFactoryFallsBackToLocal(t *testing.T) {
	h := newHarness(t)
	missing := filepath.Join(t.TempDir(), "none.sock")

	client, err := daemon.New(missing, func() (*daemon.LocalClient, error) {
		return daemon.NewLocalClient(h.syncer), nil
	})
	require.NoError(t, err)
	_, isLocal := client.(*daemon.LocalClient)
	assert.True(t, isLocal)

	_, err = daemon.Connect(missing)
	assert.True(t, errors.Is(err, errors.ErrCodeDaemonUnavailable))
}

func TestRemoteClientAgainstServer(t *testing.T) {
	h := newHarness(t)
	socket, eng := h.serve(t)

	client, err := daemon.New(socket, func() (*daemon.LocalClient, error) {
		t.Fatal("fallback used while the daemon is running")
		return nil, nil
	})
	require.NoError(t, err)
	defer client.Close()
	require.True(t, client.IsRunning())

	ctx := context.Background()
	log := &hookLog{}
	resp, err := client.Send(ctx, log.lifecycle())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]interface{}{"stored": float64(1)}, resp.Data)
	require.NotNil(t, resp.Outcome)
	assert.Equal(t, 1, resp.Outcome.Count)
	assert.Equal(t, []string{"begin", "success"}, log.calls)

	eng.HandleEvent(ctx, bookmarks.Event{Kind: bookmarks.EventChanged, ID: "1"})
	st, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pending", st.State)
	assert.Equal(t, "memory", st.Source)
	require.NotNil(t, st.LastOutcome)

	flushed, err := client.Flush(ctx)
	require.NoError(t, err)
	assert.True(t, flushed)
	assert.Equal(t, 2, h.endpoint.Count())

	flushed, err = client.Flush(ctx)
	require.NoError(t, err)
	assert.False(t, flushed)
}

func TestRemoteClientRelaysFailure(t *testing.T) {
	h := newHarness(t)
	h.endpoint.Respond(503, `{}`)
	socket, _ := h.serve(t)

	client, err := daemon.Connect(socket)
	require.NoError(t, err)
	log := &hookLog{}

	resp, err := client.Send(context.Background(), log.lifecycle())
	require.NoError(t, err, "send failures are values on the bridge")
	assert.False(t, resp.Success)
	assert.Equal(t, "HTTP 503: Service Unavailable", resp.Error)
	assert.Equal(t, []string{"begin", "failure"}, log.calls)
	assert.True(t, errors.Is(log.err, errors.ErrCodeTransmissionFailed))
}

func TestRemoteClientStream(t *testing.T) {
	h := newHarness(t)
	socket, eng := h.serve(t)

	client, err := daemon.NewRemoteClient(socket)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	updates, err := client.Stream(ctx)
	require.NoError(t, err)

	// The server subscribes just after the handshake; retry until an update
	// arrives.
	require.Eventually(t, func() bool {
		eng.HandleEvent(ctx, bookmarks.Event{Kind: bookmarks.EventCreated, ID: "1"})
		select {
		case u := <-updates:
			return u.Type == store.UpdateTreeEvent && u.Event != nil && u.Event.ID == "1"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		for {
			select {
			case _, open := <-updates:
				if !open {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSettingsWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marksync.yml")
	require.NoError(t, os.WriteFile(path, []byte("window: 30s\n"), 0644))

	reloaded := make(chan *config.Settings, 4)
	w, err := daemon.NewSettingsWatcher(path, 20*time.Millisecond, func(s *config.Settings) { reloaded <- s })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// An invalid document is ignored.
	require.NoError(t, os.WriteFile(path, []byte("window: nope\n"), 0644))
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, reloaded, 0)

	require.NoError(t, os.WriteFile(path, []byte("window: 5s\n"), 0644))
	select {
	case s := <-reloaded:
		assert.Equal(t, 5*time.Second, s.Window.Duration)
	case <-time.After(3 * time.Second):
		t.Fatal("settings were not reloaded")
	}
}

func TestRestartRequired(t *testing.T) {
	running := &config.Settings{}
	running.SetDefaults()
	reloaded := *running
	assert.Empty(t, daemon.RestartRequired(running, &reloaded))

	reloaded.Window = config.NewDuration(time.Minute)
	reloaded.Logging = map[string]interface{}{"level": "debug"}
	assert.Equal(t, []string{"window"}, daemon.RestartRequired(running, &reloaded))

	reloaded.Source.Kind = config.SourceNone
	assert.Equal(t, []string{"window", "source"}, daemon.RestartRequired(running, &reloaded))
}
