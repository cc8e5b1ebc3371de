package session

import (
	"context"
	"sync"
	"time"

	"github.com/bhandras/kubechat/shared/logger"
	"github.com/bhandras/kubechat/shared/wire"
)

const (
	// DefaultQueueSize bounds the pending chat messages per connection.
	DefaultQueueSize = 32
	// DefaultSessionTTL is how long a session whose initialization failed is
	// kept waiting for a retry.
	DefaultSessionTTL = 10 * time.Minute
	// minSweepInterval bounds how often the janitor scans the store.
	minSweepInterval = time.Second
)

// Manager owns per-connection workers and provides serialized entrypoints.
type Manager struct {
	machine   *Machine
	store     *Store
	queueSize int
	ttl       time.Duration
	now       func() time.Time

	mu      sync.Mutex
	workers map[string]*worker
	wg      sync.WaitGroup
}

// ManagerConfig tunes a Manager. Zero values select the defaults.
type ManagerConfig struct {
	QueueSize  int
	SessionTTL time.Duration
	Now        func() time.Time
}

// NewManager creates a manager that feeds machine from per-connection queues.
func NewManager(machine *Machine, store *Store, cfg ManagerConfig) *Manager {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		machine:   machine,
		store:     store,
		queueSize: cfg.QueueSize,
		ttl:       cfg.SessionTTL,
		now:       cfg.Now,
		workers:   make(map[string]*worker),
	}
}

// Enqueue schedules msg for connID.
//
// Messages of one connection are handled strictly one after another in
// arrival order, so a turn never starts before the previous one resolved.
// When the connection's queue is full the message is rejected with an Error
// envelope and false is returned.
func (m *Manager) Enqueue(connID string, msg *wire.ChatMessage, out Sender) bool {
	w := m.getOrCreate(connID)
	select {
	case w.tasks <- task{msg: msg, out: out}:
		return true
	default:
		logger.Warnf("[session] %s: queue full; rejecting message", connID)
		if err := out.Send(wire.Output{Event: wire.EventError, Message: msgQueueFull}); err != nil {
			logger.Debugf("[session] %s: dropping queue-full error: %v", connID, err)
		}
		return false
	}
}

// Close stops the worker of connID, abandons its in-flight message and
// removes its session. It is safe to call for unknown ids and more than once.
func (m *Manager) Close(connID string) {
	m.mu.Lock()
	w, ok := m.workers[connID]
	if ok {
		delete(m.workers, connID)
	}
	m.mu.Unlock()

	m.dropSession(connID)
	if !ok {
		return
	}

	w.cancel()
	go func() {
		// The abandoned task may have published state before it observed
		// the cancellation.
		<-w.done
		m.dropSession(connID)
	}()
}

// Sessions returns the number of live sessions.
func (m *Manager) Sessions() int {
	return m.store.Len()
}

// Run evicts sessions whose initialization failed and that were not retried
// within the session TTL. It blocks until ctx is done, then stops every
// worker and waits for them to exit.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.ttl / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-ctx.Done():
			m.shutdown()
			return nil
		}
	}
}

func (m *Manager) sweep() {
	evicted := m.store.EvictStale(m.now(), m.ttl)
	for connID, sess := range evicted {
		logger.Infof("[session] %s: evicting session after failed initialization", connID)
		closeRuns(sess)
	}
}

func (m *Manager) shutdown() {
	m.mu.Lock()
	workers := m.workers
	m.workers = make(map[string]*worker)
	m.mu.Unlock()

	for _, w := range workers {
		w.cancel()
	}
	m.wg.Wait()

	for connID := range workers {
		m.dropSession(connID)
	}
}

func (m *Manager) dropSession(connID string) {
	if sess, ok := m.store.Delete(connID); ok {
		closeRuns(sess)
	}
}

func closeRuns(sess Session) {
	if sess.PendingRun != nil {
		_ = sess.PendingRun.Close()
	}
	if sess.CurrentRun != nil {
		_ = sess.CurrentRun.Close()
	}
}

func (m *Manager) getOrCreate(connID string) *worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.workers[connID]; ok {
		return w
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{
		connID: connID,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(chan task, m.queueSize),
		done:   make(chan struct{}),
	}
	m.workers[connID] = w

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		w.loop(m.machine)
	}()
	return w
}

type task struct {
	msg *wire.ChatMessage
	out Sender
}

type worker struct {
	connID string
	ctx    context.Context
	cancel context.CancelFunc
	tasks  chan task
	done   chan struct{}
}

func (w *worker) loop(machine *Machine) {
	defer close(w.done)
	for {
		select {
		case t := <-w.tasks:
			if w.ctx.Err() != nil {
				return
			}
			machine.Handle(w.ctx, w.connID, t.msg, t.out)
		case <-w.ctx.Done():
			return
		}
	}
}
