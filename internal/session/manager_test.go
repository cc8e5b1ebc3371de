package session

import (
	"context"
	"testing"
	"time"

	"github.com/bhandras/kubechat/internal/engine/fakeengine"
	"github.com/bhandras/kubechat/shared/wire"
	"github.com/stretchr/testify/require"
)

// gatedScript holds the given turn open until gate is closed.
func gatedScript(turn int, gate <-chan struct{}) fakeengine.ScriptFunc {
	return func(call fakeengine.Call) fakeengine.Turn {
		t := fakeengine.DefaultScript(call)
		if call.Turn == turn {
			t.Gate = gate
		}
		return t
	}
}

func newTestManager(t *testing.T, client *fakeengine.Client, cfg ManagerConfig) (*Manager, *Store) {
	t.Helper()
	m, store := newTestMachine(client)
	mgr := NewManager(m, store, cfg)
	t.Cleanup(mgr.shutdown)
	return mgr, store
}

func TestManager_MessagesDuringInitializeDoNotStartSecondRun(t *testing.T) {
	gate := make(chan struct{})
	client := fakeengine.New(fakeengine.WithScript(gatedScript(0, gate)))
	mgr, _ := newTestManager(t, client, ManagerConfig{})
	out := &recorder{}

	require.True(t, mgr.Enqueue("c1", chat("deploy nginx"), out))
	require.True(t, mgr.Enqueue("c1", chat("now scale it to 3"), out))

	require.Eventually(t, func() bool {
		return client.Evaluations() == 1
	}, time.Second, 5*time.Millisecond)
	close(gate)

	outs := out.waitFor(t, 4)
	require.Equal(t, []wire.EventName{
		wire.EventInitial,
		wire.EventCallProgress, wire.EventCallFinish, wire.EventNext,
	}, events(outs))
	require.Equal(t, 1, client.Evaluations())
	require.Equal(t, 1, client.NextChats())
}

func TestManager_OverlappingContinuationsAreSequenced(t *testing.T) {
	gate := make(chan struct{})
	client := fakeengine.New(fakeengine.WithScript(gatedScript(1, gate)))
	mgr, _ := newTestManager(t, client, ManagerConfig{})
	out := &recorder{}

	require.True(t, mgr.Enqueue("c1", chat("deploy nginx"), out))
	out.waitFor(t, 1)

	require.True(t, mgr.Enqueue("c1", chat("scale it"), out))
	require.True(t, mgr.Enqueue("c1", chat("expose it"), out))

	require.Eventually(t, func() bool {
		return client.NextChats() == 1
	}, time.Second, 5*time.Millisecond)
	close(gate)

	outs := out.waitFor(t, 7)
	require.Equal(t, wire.EventNext, outs[3].Event)
	require.Equal(t, "fake-agent: scale it", outs[3].Message)
	require.Equal(t, wire.EventNext, outs[6].Event)
	require.Equal(t, "fake-agent: expose it", outs[6].Message)

	// The second continuation was issued from the promoted run.
	calls := client.Calls()
	require.Len(t, calls, 3)
	require.Equal(t, 1, calls[1].Turn)
	require.Equal(t, 2, calls[2].Turn)
}

func TestManager_CloseDropsSession(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	client := fakeengine.New(fakeengine.WithScript(gatedScript(0, gate)))
	mgr, _ := newTestManager(t, client, ManagerConfig{})
	out := &recorder{}

	require.True(t, mgr.Enqueue("c1", chat("deploy nginx"), out))
	require.Eventually(t, func() bool {
		return mgr.Sessions() == 1
	}, time.Second, 5*time.Millisecond)

	mgr.Close("c1")
	require.Eventually(t, func() bool {
		return mgr.Sessions() == 0
	}, time.Second, 5*time.Millisecond)
	require.Empty(t, out.outputs())

	// Closing twice, or closing an unknown connection, is harmless.
	mgr.Close("c1")
	mgr.Close("unknown")
}

func TestManager_QueueFull(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	client := fakeengine.New(fakeengine.WithScript(gatedScript(0, gate)))
	mgr, _ := newTestManager(t, client, ManagerConfig{QueueSize: 1})
	out := &recorder{}

	require.True(t, mgr.Enqueue("c1", chat("deploy nginx"), out))
	require.Eventually(t, func() bool {
		return mgr.Sessions() == 1
	}, time.Second, 5*time.Millisecond)

	require.True(t, mgr.Enqueue("c1", chat("one"), out))
	require.False(t, mgr.Enqueue("c1", chat("two"), out))

	outs := out.outputs()
	require.Len(t, outs, 1)
	require.Equal(t, wire.EventError, outs[0].Event)
	require.Equal(t, "Too many pending messages, please wait for a reply.", outs[0].Message)
}

func TestManager_SweepEvictsFailedSessions(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	client := fakeengine.New()
	mgr, store := newTestManager(t, client, ManagerConfig{
		SessionTTL: time.Minute,
		Now:        func() time.Time { return now },
	})

	store.Set("stale", Session{Initializing: true, Failed: true, TouchedAt: now.Add(-2 * time.Minute)})
	store.Set("fresh", Session{Initializing: true, Failed: true, TouchedAt: now.Add(-10 * time.Second)})
	store.Set("idle", Session{TouchedAt: now.Add(-time.Hour)})

	mgr.sweep()

	_, ok := store.Get("stale")
	require.False(t, ok)
	_, ok = store.Get("fresh")
	require.True(t, ok)
	_, ok = store.Get("idle")
	require.True(t, ok)
	require.Equal(t, 2, mgr.Sessions())
}

func TestManager_RunStopsWorkersOnCancel(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	client := fakeengine.New(fakeengine.WithScript(gatedScript(0, gate)))
	mgr, _ := newTestManager(t, client, ManagerConfig{})
	out := &recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- mgr.Run(ctx) }()

	require.True(t, mgr.Enqueue("c1", chat("deploy nginx"), out))
	require.True(t, mgr.Enqueue("c2", chat("deploy redis"), out))
	require.Eventually(t, func() bool {
		return mgr.Sessions() == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop")
	}
	require.Zero(t, mgr.Sessions())
	require.Empty(t, out.outputs())
}
