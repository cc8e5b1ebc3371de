// Package session implements the per-connection chat session state machine.
//
// A Machine decides, for each inbound chat message, whether to start a new
// run, continue the current one, close the session or report misuse. A
// Manager serializes the messages of each connection onto its own worker so
// turns of one session never overlap.
package session

import (
	"time"

	"github.com/bhandras/kubechat/internal/engine"
	"github.com/bhandras/kubechat/shared/wire"
)

// Sender delivers outbound payloads to one connection.
//
// Implementations must tolerate sends after the connection closed and report
// them as errors rather than blocking.
type Sender interface {
	Send(out wire.Output) error
}

// Session is the state of one chat session.
type Session struct {
	// CurrentRun is the run the next turn continues from. It is nil only when
	// starting the initial run failed.
	CurrentRun engine.Run
	// PendingRun is the in-flight continuation turn, promoted to CurrentRun
	// once its text is delivered.
	PendingRun engine.Run
	// Initializing is true from the initial run start until its first output
	// is delivered. It stays true when initialization fails.
	Initializing bool
	// Failed reports that the last initialization attempt failed.
	Failed bool
	// TouchedAt is the time of the last state change.
	TouchedAt time.Time
}

// Client-visible messages.
const (
	msgInitFailed      = "Failed to initialize chat session, please try again."
	msgContinueFailed  = "Failed to continue chat session, please try again."
	msgSessionFinished = "Chat session finished"
	msgNoContinueInput = "No input provided for continuation."
	msgNoInputOrState  = "No input or valid chat state found."
	msgQueueFull       = "Too many pending messages, please wait for a reply."
)
