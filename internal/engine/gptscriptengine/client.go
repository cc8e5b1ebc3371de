// Package gptscriptengine implements engine.Client on top of the GPTScript Go
// SDK.
package gptscriptengine

import (
	"context"
	"fmt"
	"sort"

	"github.com/bhandras/kubechat/internal/engine"
	"github.com/bhandras/kubechat/internal/tools"
	"github.com/bhandras/kubechat/shared/logger"
	"github.com/bhandras/kubechat/shared/wire"
	"github.com/gptscript-ai/go-gptscript"
)

// Config selects the GPTScript server and model credentials.
type Config struct {
	// URL points at a running GPTScript SDK server. Empty starts one.
	URL string
	// OpenAIAPIKey is passed to the model provider.
	OpenAIAPIKey string
	// OpenAIBaseURL overrides the provider endpoint.
	OpenAIBaseURL string
	// DefaultModel is used by tools that do not set a model name.
	DefaultModel string
}

// Client implements engine.Client.
type Client struct {
	gs *gptscript.GPTScript
}

var _ engine.Client = (*Client)(nil)

// New connects to (or starts) the GPTScript SDK server.
func New(cfg Config) (*Client, error) {
	gs, err := gptscript.NewGPTScript(gptscript.GlobalOptions{
		URL:           cfg.URL,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		DefaultModel:  cfg.DefaultModel,
	})
	if err != nil {
		return nil, fmt.Errorf("create gptscript client: %w", err)
	}
	return &Client{gs: gs}, nil
}

// Evaluate implements engine.Client.
func (c *Client) Evaluate(ctx context.Context, defs []tools.Definition, opts wire.RunOptions) (engine.Run, error) {
	toolDefs := make([]gptscript.ToolDef, 0, len(defs))
	for _, def := range defs {
		toolDefs = append(toolDefs, toToolDef(def))
	}

	logger.Debugf("[gptscript] evaluate tools=%d input=%q", len(toolDefs), opts.Input)
	r, err := c.gs.Evaluate(ctx, toOptions(opts), toolDefs...)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return newRun(r), nil
}

// Close implements engine.Client.
func (c *Client) Close() error {
	c.gs.Close()
	return nil
}

func toOptions(opts wire.RunOptions) gptscript.Options {
	out := gptscript.Options{
		Input:               opts.Input,
		DisableCache:        opts.DisableCache,
		SubTool:             opts.SubTool,
		Workspace:           opts.Workspace,
		ChatState:           opts.ChatState,
		Confirm:             opts.Confirm,
		Prompt:              opts.Prompt,
		CredentialOverrides: opts.CredentialOverrides,
		Location:            opts.Location,
		ForceSequential:     opts.ForceSequential,
		// Lifecycle frames are only produced when requested, and NextChat
		// reuses these options for every following turn.
		IncludeEvents: true,
	}
	out.Env = opts.Env
	return out
}

func toToolDef(def tools.Definition) gptscript.ToolDef {
	out := gptscript.ToolDef{
		Name:          def.Name,
		Description:   def.Description,
		MaxTokens:     def.MaxTokens,
		ModelName:     def.ModelName,
		ModelProvider: def.ModelProvider,
		JSONResponse:  def.JSONResponse,
		Chat:          def.Chat,
		Tools:         def.Tools,
		GlobalTools:   def.GlobalTools,
		Context:       def.Context,
		Export:        def.Export,
		Instructions:  def.Instructions,
	}
	if def.Temperature != nil {
		t := float32(*def.Temperature)
		out.Temperature = &t
	}
	internalPrompt := def.InternalPrompt
	out.InternalPrompt = &internalPrompt

	if len(def.Arguments) > 0 {
		names := make([]string, 0, len(def.Arguments))
		for name := range def.Arguments {
			names = append(names, name)
		}
		sort.Strings(names)
		kv := make([]string, 0, 2*len(names))
		for _, name := range names {
			kv = append(kv, name, def.Arguments[name])
		}
		out.Arguments = gptscript.ObjectSchema(kv...)
	}
	return out
}
