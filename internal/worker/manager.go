// Package worker serializes the mutating operations of each session.
// Every session gets its own goroutine with a bounded task queue, so an
// upload and a question for the same session never interleave while
// different sessions proceed in parallel.
package worker

import (
	"errors"
	"sync"
	"time"
)

// ErrSessionBusy is returned when a session's task queue is full. The
// caller reports it to the client instead of blocking the request.
var ErrSessionBusy = errors.New("session is busy")

const (
	defaultQueueSize  = 4
	defaultWorkerIdle = 5 * time.Minute
)

type task struct {
	fn   func()
	done chan struct{}
}

type sessionWorker struct {
	tasks    chan task
	stopCh   chan struct{}
	pending  int
	lastUsed time.Time
}

type Manager struct {
	mu      sync.Mutex
	workers map[string]*sessionWorker

	queueSize int
	idle      time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewManager(queueSize int, idle time.Duration) *Manager {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if idle <= 0 {
		idle = defaultWorkerIdle
	}
	m := &Manager{
		workers:   make(map[string]*sessionWorker),
		queueSize: queueSize,
		idle:      idle,
		stopCh:    make(chan struct{}),
	}
	go m.purgeStaleWorkers()
	return m
}

// Do enqueues fn on the session's worker and waits for it to finish. It
// fails fast with ErrSessionBusy when the queue is full.
func (m *Manager) Do(sessionID string, fn func()) error {
	m.mu.Lock()
	w := m.ensureWorkerLocked(sessionID)
	t := task{fn: fn, done: make(chan struct{})}
	select {
	case w.tasks <- t:
		w.pending++
		w.lastUsed = time.Now()
		m.mu.Unlock()
	default:
		m.mu.Unlock()
		return ErrSessionBusy
	}

	<-t.done
	return nil
}

// Purge retires the session's worker if its queue is empty. A busy worker
// keeps running and is left for the idle reaper.
func (m *Manager) Purge(sessionID string) {
	m.mu.Lock()
	if w, ok := m.workers[sessionID]; ok {
		w.lastUsed = time.Time{}
		if w.pending == 0 {
			delete(m.workers, sessionID)
			close(w.stopCh)
		}
	}
	m.mu.Unlock()
}

// Stop retires all idle workers and stops the purge loop.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.Lock()
	for id, w := range m.workers {
		if w.pending == 0 {
			delete(m.workers, id)
			close(w.stopCh)
		}
	}
	m.mu.Unlock()
}

func (m *Manager) ensureWorkerLocked(sessionID string) *sessionWorker {
	if w, ok := m.workers[sessionID]; ok {
		return w
	}
	w := &sessionWorker{
		tasks:    make(chan task, m.queueSize),
		stopCh:   make(chan struct{}),
		lastUsed: time.Now(),
	}
	m.workers[sessionID] = w
	go m.runWorker(sessionID, w)
	return w
}

func (m *Manager) runWorker(sessionID string, w *sessionWorker) {
	for {
		select {
		case t := <-w.tasks:
			t.fn()
			close(t.done)
			m.mu.Lock()
			w.pending--
			w.lastUsed = time.Now()
			m.mu.Unlock()
		case <-w.stopCh:
			return
		}
	}
}

// purgeStaleWorkers retires workers whose queue has been empty for the
// idle window. Retirement happens under the manager lock, so no enqueued
// task is ever dropped.
func (m *Manager) purgeStaleWorkers() {
	ticker := time.NewTicker(m.idle)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
		}

		now := time.Now()
		m.mu.Lock()
		for id, w := range m.workers {
			if w.pending == 0 && now.Sub(w.lastUsed) >= m.idle {
				delete(m.workers, id)
				close(w.stopCh)
			}
		}
		m.mu.Unlock()
	}
}
