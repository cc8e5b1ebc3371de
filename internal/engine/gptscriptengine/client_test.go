package gptscriptengine

import (
	"testing"

	"github.com/bhandras/kubechat/internal/tools"
	"github.com/bhandras/kubechat/shared/wire"
	"github.com/stretchr/testify/require"
)

func TestToToolDef(t *testing.T) {
	defs := tools.NewCatalog(map[string]string{tools.KubectlTool: "run it"}).Templates()

	def := toToolDef(defs[1])
	require.Equal(t, "kubectl", def.Name)
	require.Equal(t, 1000, def.MaxTokens)
	require.True(t, def.Chat)
	require.True(t, def.ModelProvider)
	require.NotNil(t, def.Temperature)
	require.InDelta(t, 0.7, float64(*def.Temperature), 1e-6)
	require.NotNil(t, def.InternalPrompt)
	require.False(t, *def.InternalPrompt)
	require.Equal(t, []string{"sys.exec"}, def.Tools)
	require.Equal(t, "run it", def.Instructions)
	require.NotNil(t, def.Arguments)
	require.Contains(t, def.Arguments.Properties, "command")
}

func TestToToolDefNilTemperature(t *testing.T) {
	defs := tools.NewCatalog(nil).Build(&wire.ToolConfig{})
	def := toToolDef(defs[0])
	require.Nil(t, def.Temperature)
	require.Zero(t, def.MaxTokens)
	require.False(t, def.Chat)
}

func TestToOptions(t *testing.T) {
	opts := toOptions(wire.RunOptions{
		Input:        "deploy nginx",
		DisableCache: true,
		Workspace:    "/tmp/ws",
		Env:          []string{"KUBECONFIG=/tmp/kc"},
	})
	require.Equal(t, "deploy nginx", opts.Input)
	require.True(t, opts.DisableCache)
	require.Equal(t, "/tmp/ws", opts.Workspace)
	require.True(t, opts.IncludeEvents)
	require.Equal(t, []string{"KUBECONFIG=/tmp/kc"}, opts.Env)
}

func TestForwardedKinds(t *testing.T) {
	require.Len(t, forwardedKinds, 3)
	_, ok := forwardedKinds["callStart"]
	require.False(t, ok)
}
