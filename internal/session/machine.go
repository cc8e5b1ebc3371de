package session

import (
	"context"
	"time"

	"github.com/bhandras/kubechat/internal/engine"
	"github.com/bhandras/kubechat/internal/tools"
	"github.com/bhandras/kubechat/shared/logger"
	"github.com/bhandras/kubechat/shared/wire"
)

// Machine drives chat sessions. Handle must not be called concurrently for
// the same connection id; the Manager guarantees that.
type Machine struct {
	store   *Store
	client  engine.Client
	catalog *tools.Catalog
	now     func() time.Time
}

// NewMachine builds a state machine over store. A nil now uses time.Now.
func NewMachine(store *Store, client engine.Client, catalog *tools.Catalog, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{
		store:   store,
		client:  client,
		catalog: catalog,
		now:     now,
	}
}

// Handle processes one chat message for connID and reports results to out.
//
// Cancelling ctx abandons the message: nothing is sent and the store is left
// untouched from that point on.
func (m *Machine) Handle(ctx context.Context, connID string, msg *wire.ChatMessage, out Sender) {
	sess, ok := m.store.Get(connID)
	input := msg.Input

	switch {
	case input != "" && (!ok || sess.Initializing):
		m.initialize(ctx, connID, sess, ok, msg, out)

	case ok && input != "":
		m.continueChat(ctx, connID, sess, input, out)

	case ok:
		logger.Debugf("[session] %s: no input provided for continuation", connID)
		m.send(connID, out, wire.Output{Event: wire.EventError, Message: msgNoContinueInput})

	default:
		logger.Debugf("[session] %s: no input or valid chat state found", connID)
		m.send(connID, out, wire.Output{Event: wire.EventError, Message: msgNoInputOrState})
	}
}

func (m *Machine) initialize(ctx context.Context, connID string, prev Session, hadPrev bool, msg *wire.ChatMessage, out Sender) {
	logger.Infof("[session] %s: initializing chat session", connID)
	logger.Tracef("[session] %s: initial input %q", connID, msg.Input)

	// A retry replaces the run of the failed attempt.
	if hadPrev && prev.CurrentRun != nil {
		_ = prev.CurrentRun.Close()
	}

	defs := m.catalog.Build(msg.ToolConfig)
	opts := tools.RunOptions(msg.ToolConfig, msg.Input)

	run, err := m.client.Evaluate(ctx, defs, opts)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.store.Set(connID, Session{Initializing: true, Failed: true, TouchedAt: m.now()})
		m.fail(connID, out, msgInitFailed, err)
		return
	}

	// Stored before awaiting so the session is visible while the run starts.
	m.store.Set(connID, Session{CurrentRun: run, Initializing: true, TouchedAt: m.now()})

	text, err := engine.Await(ctx, run, func(ev engine.Event) {
		logger.Tracef("[session] %s: initial run event %s", connID, ev.Kind)
	})
	if ctx.Err() != nil {
		_ = run.Close()
		return
	}
	if err != nil {
		m.store.Set(connID, Session{CurrentRun: run, Initializing: true, Failed: true, TouchedAt: m.now()})
		m.fail(connID, out, msgInitFailed, err)
		return
	}

	logger.Infof("[session] %s: chat session initialized", connID)
	m.send(connID, out, wire.Output{Event: wire.EventInitial, Message: text})
	m.store.Set(connID, Session{CurrentRun: run, TouchedAt: m.now()})
}

func (m *Machine) continueChat(ctx context.Context, connID string, sess Session, input string, out Sender) {
	if !sess.CurrentRun.State().AcceptsInput() {
		logger.Infof("[session] %s: chat session finished (state=%s)", connID, sess.CurrentRun.State())
		m.send(connID, out, wire.Output{Event: wire.EventClose, Message: msgSessionFinished})
		m.store.Delete(connID)
		_ = sess.CurrentRun.Close()
		return
	}

	logger.Debugf("[session] %s: continuing chat", connID)
	logger.Tracef("[session] %s: continuation input %q", connID, input)

	next, err := sess.CurrentRun.NextChat(ctx, input)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.fail(connID, out, msgContinueFailed, err)
		return
	}

	sess.PendingRun = next
	sess.TouchedAt = m.now()
	m.store.Set(connID, sess)

	text, err := engine.Await(ctx, next, func(ev engine.Event) {
		name, ok := eventName(ev.Kind)
		if !ok {
			return
		}
		logger.Tracef("[session] %s: forwarding %s", connID, name)
		m.send(connID, out, wire.Output{Event: name, Message: ev.Data})
	})
	if ctx.Err() != nil {
		_ = next.Close()
		return
	}

	if err != nil {
		sess.PendingRun = nil
		sess.TouchedAt = m.now()
		m.store.Set(connID, sess)
		_ = next.Close()
		m.fail(connID, out, msgContinueFailed, err)
		return
	}

	sess.CurrentRun = next
	sess.PendingRun = nil
	sess.TouchedAt = m.now()
	m.store.Set(connID, sess)
	m.send(connID, out, wire.Output{Event: wire.EventNext, Message: text})
}

func (m *Machine) fail(connID string, out Sender, message string, err error) {
	logger.Warnf("[session] %s: %s: %v", connID, message, err)
	m.send(connID, out, wire.Output{
		Event:   wire.EventError,
		Message: message,
		Error:   err.Error(),
	})
}

func (m *Machine) send(connID string, out Sender, payload wire.Output) {
	if err := out.Send(payload); err != nil {
		logger.Debugf("[session] %s: dropping %s: %v", connID, payload.Event, err)
	}
}

func eventName(kind engine.EventKind) (wire.EventName, bool) {
	switch kind {
	case engine.EventCallContinue:
		return wire.EventCallContinue, true
	case engine.EventCallProgress:
		return wire.EventCallProgress, true
	case engine.EventCallFinish:
		return wire.EventCallFinish, true
	default:
		return "", false
	}
}
