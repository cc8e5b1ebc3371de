package wire

import "encoding/json"

// EventName identifies the kind of an outbound chat envelope.
type EventName string

const (
	// EventInitial carries the first output of a freshly started run.
	EventInitial EventName = "Initial"
	// EventNext carries the output of a continuation turn.
	EventNext EventName = "Next"
	// EventClose reports that the run finished and the session was dropped.
	EventClose EventName = "Close"
	// EventError reports a recoverable failure; the connection stays open.
	EventError EventName = "Error"
	// EventCallContinue forwards a run's call-continue lifecycle event.
	EventCallContinue EventName = "CallContinue"
	// EventCallProgress forwards a run's call-progress lifecycle event.
	EventCallProgress EventName = "CallProgress"
	// EventCallFinish forwards a run's call-finish lifecycle event.
	EventCallFinish EventName = "CallFinish"
)

// SystemAuthor is the author stamped on every outbound envelope.
const SystemAuthor = "System"

const (
	// ControlPing is the inbound keepalive frame type.
	ControlPing = "ping"
	// ControlPong is the reply to ControlPing.
	ControlPong = "pong"
)

// RunOptions are passed through to the engine when a run starts.
type RunOptions struct {
	// Input is the user text for the run. It is always overwritten by the
	// message input before the run starts.
	Input string `json:"input,omitempty"`
	// DisableCache turns off engine-side response caching.
	DisableCache bool `json:"disableCache,omitempty"`
	// SubTool selects a tool other than the first definition as entrypoint.
	SubTool string `json:"subTool,omitempty"`
	// Workspace is the engine workspace path or id.
	Workspace string `json:"workspace,omitempty"`
	// ChatState resumes an engine chat state blob.
	ChatState string `json:"chatState,omitempty"`
	// Confirm asks the engine to request confirmation before exec calls.
	Confirm bool `json:"confirm,omitempty"`
	// Prompt allows the engine to prompt the user.
	Prompt bool `json:"prompt,omitempty"`
	// Env holds extra KEY=VALUE entries for the run.
	Env []string `json:"env,omitempty"`
	// CredentialOverrides are engine credential override specs.
	CredentialOverrides []string `json:"credentialOverrides,omitempty"`
	// Location is the base location used to resolve relative tool refs.
	Location string `json:"location,omitempty"`
	// ForceSequential disables parallel tool calls.
	ForceSequential bool `json:"forceSequential,omitempty"`
}

// ToolConfig carries per-message overrides for the tool definitions.
//
// No field is validated; the engine rejects bad values.
type ToolConfig struct {
	// MaxTokens is the model token budget per call.
	MaxTokens int `json:"maxTokens"`
	// ModelName selects the model; empty means engine default.
	ModelName string `json:"modelName"`
	// Temperature is the sampling temperature; nil means engine default.
	Temperature *float64 `json:"temperature"`
	// Chat marks the tools as chat tools, which keeps runs open for turns.
	Chat bool `json:"chat"`
	// RunOpts are merged with the input when a run starts.
	RunOpts RunOptions `json:"runOpts"`
}

// ChatMessage is the inbound chat payload sent by the browser client.
type ChatMessage struct {
	// ID is the client-side message id, echoed into logs only.
	ID json.RawMessage `json:"id,omitempty"`
	// Author is the client-side author label.
	Author string `json:"author,omitempty"`
	// Input is the user text; empty is a distinct, valid case.
	Input string `json:"input"`
	// ToolConfig is optional; when present it overrides tool settings.
	ToolConfig *ToolConfig `json:"toolConfig,omitempty"`
}

// Output is the payload of an outbound envelope.
type Output struct {
	// Event is the envelope kind.
	Event EventName `json:"event"`
	// Message is a string for text events and an object for forwarded run
	// events.
	Message any `json:"message"`
	// Error is the raw error detail on Error events.
	Error string `json:"error,omitempty"`
}

// Envelope is the uniform outbound wrapper.
type Envelope struct {
	// ID is the send time in unix milliseconds.
	ID int64 `json:"id"`
	// Author is always SystemAuthor.
	Author string `json:"author"`
	// Output is the wrapped payload.
	Output Output `json:"output"`
}

// ControlFrame is a keepalive frame.
type ControlFrame struct {
	Type string `json:"type"`
}
