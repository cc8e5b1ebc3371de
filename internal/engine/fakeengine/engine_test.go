package fakeengine

import (
	"context"
	"errors"
	"testing"

	"github.com/bhandras/kubechat/internal/engine"
	"github.com/bhandras/kubechat/internal/tools"
	"github.com/bhandras/kubechat/shared/wire"
	"github.com/stretchr/testify/require"
)

func TestDefaultScriptChat(t *testing.T) {
	c := New()
	ctx := context.Background()
	defs := tools.NewCatalog(nil).Templates()

	run, err := c.Evaluate(ctx, defs, wire.RunOptions{Input: "deploy nginx"})
	require.NoError(t, err)
	text, err := run.Text(ctx)
	require.NoError(t, err)
	require.Equal(t, "fake-agent: deploy nginx", text)
	require.Equal(t, engine.StateContinue, run.State())

	next, err := run.NextChat(ctx, "bye")
	require.NoError(t, err)
	text, err = next.Text(ctx)
	require.NoError(t, err)
	require.Equal(t, "fake-agent: bye", text)
	require.Equal(t, engine.StateFinished, next.State())

	_, err = next.NextChat(ctx, "again")
	require.ErrorIs(t, err, engine.ErrNotContinuable)

	require.Equal(t, 1, c.Evaluations())
	require.Equal(t, 1, c.NextChats())

	calls := c.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, calls[0].RunID, calls[1].RunID)
	require.Equal(t, 1, calls[1].Turn)
	require.Len(t, calls[0].Tools, 3)
}

func TestEvaluateError(t *testing.T) {
	boom := errors.New("no credentials")
	c := New(WithEvaluateError(boom))
	_, err := c.Evaluate(context.Background(), nil, wire.RunOptions{Input: "x"})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, c.Evaluations())
}

func TestCloseReleasesGatedRun(t *testing.T) {
	gate := make(chan struct{})
	c := New(WithScript(func(Call) Turn { return Turn{Text: "never", Gate: gate} }))
	run, err := c.Evaluate(context.Background(), nil, wire.RunOptions{Input: "x"})
	require.NoError(t, err)

	require.Equal(t, engine.StateRunning, run.State())
	require.NoError(t, run.Close())

	_, err = run.Text(context.Background())
	require.Error(t, err)
	_, ok := <-run.Events()
	require.False(t, ok)
}

func TestClosedClientRejectsEvaluate(t *testing.T) {
	c := New()
	require.NoError(t, c.Close())
	_, err := c.Evaluate(context.Background(), nil, wire.RunOptions{Input: "x"})
	require.Error(t, err)
}
