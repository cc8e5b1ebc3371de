// Package tools builds the tool definitions handed to the run engine.
//
// The three built-in definitions are immutable templates. Every run start
// derives a fresh copy, so per-message overrides never leak between sessions.
package tools

import (
	"slices"

	"github.com/bhandras/kubechat/shared/wire"
)

const (
	// MainTool is the entrypoint tool that talks to the user.
	MainTool = "main"
	// KubectlTool runs kubectl commands.
	KubectlTool = "kubectl"
	// HelmTool runs helm commands.
	HelmTool = "helm"
)

// Definition describes one tool available to the run engine.
type Definition struct {
	Name           string
	Description    string
	MaxTokens      int
	ModelName      string
	ModelProvider  bool
	JSONResponse   bool
	Temperature    *float64
	Chat           bool
	InternalPrompt bool
	// Arguments maps each string argument name to its description.
	Arguments    map[string]string
	Tools        []string
	GlobalTools  []string
	Context      []string
	Export       []string
	Instructions string
}

// clone returns a deep copy so callers can mutate the result freely.
func (d Definition) clone() Definition {
	out := d
	if d.Temperature != nil {
		t := *d.Temperature
		out.Temperature = &t
	}
	if d.Arguments != nil {
		out.Arguments = make(map[string]string, len(d.Arguments))
		for k, v := range d.Arguments {
			out.Arguments[k] = v
		}
	}
	out.Tools = slices.Clone(d.Tools)
	out.GlobalTools = slices.Clone(d.GlobalTools)
	out.Context = slices.Clone(d.Context)
	out.Export = slices.Clone(d.Export)
	return out
}

const (
	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
)

func baseTemplate(name, description, argName, argDescription string) Definition {
	temp := defaultTemperature
	return Definition{
		Name:          name,
		Description:   description,
		MaxTokens:     defaultMaxTokens,
		ModelProvider: true,
		Temperature:   &temp,
		Chat:          true,
		Arguments:     map[string]string{argName: argDescription},
		Tools:         []string{"sys.exec"},
	}
}

// Catalog holds the immutable tool templates.
type Catalog struct {
	templates []Definition
}

// NewCatalog builds the main, kubectl and helm templates, substituting the
// instruction blobs keyed by tool name. Missing blobs leave the instructions
// empty.
func NewCatalog(instructions map[string]string) *Catalog {
	entry := baseTemplate(MainTool, "main tool for running scripts",
		"script", "the script to run")
	kubectl := baseTemplate(KubectlTool, "use kubectl command to manage k8s resources",
		"command", "the command kubectl needs to run")
	helm := baseTemplate(HelmTool, "use helm command to manage k8s charts",
		"command", "the command helm needs to run")

	entry.Instructions = instructions[MainTool]
	kubectl.Instructions = instructions[KubectlTool]
	helm.Instructions = instructions[HelmTool]

	return &Catalog{templates: []Definition{entry, kubectl, helm}}
}

// Templates returns copies of the templates in entrypoint-first order.
func (c *Catalog) Templates() []Definition {
	return c.Build(nil)
}

// Build derives the definitions for one run. When cfg is non-nil its
// maxTokens, modelName, temperature and chat values replace the template
// values on every definition, zero values included.
func (c *Catalog) Build(cfg *wire.ToolConfig) []Definition {
	defs := make([]Definition, 0, len(c.templates))
	for _, tmpl := range c.templates {
		def := tmpl.clone()
		if cfg != nil {
			def.MaxTokens = cfg.MaxTokens
			def.ModelName = cfg.ModelName
			def.Temperature = nil
			if cfg.Temperature != nil {
				t := *cfg.Temperature
				def.Temperature = &t
			}
			def.Chat = cfg.Chat
		}
		defs = append(defs, def)
	}
	return defs
}

// RunOptions merges the pass-through run options from cfg with input.
func RunOptions(cfg *wire.ToolConfig, input string) wire.RunOptions {
	var opts wire.RunOptions
	if cfg != nil {
		opts = cfg.RunOpts
		opts.Env = slices.Clone(cfg.RunOpts.Env)
		opts.CredentialOverrides = slices.Clone(cfg.RunOpts.CredentialOverrides)
	}
	opts.Input = input
	return opts
}
