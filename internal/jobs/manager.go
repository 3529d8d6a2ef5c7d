package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"audio-converter/internal/domain"
)

// ErrBatchAlreadyRunning is returned when starting a second active batch.
var ErrBatchAlreadyRunning = errors.New("batch already running")

// ErrNoRunningBatch is returned when cancel is requested while idle.
var ErrNoRunningBatch = errors.New("no running batch")

// ErrQueueLocked is returned for queue mutations while a batch is running.
var ErrQueueLocked = errors.New("queue is locked while a batch is running")

// Manager tracks the single allowed active batch and its transitions.
type Manager struct {
	mu              sync.RWMutex
	current         domain.Batch
	last            domain.Batch
	cancelRequested bool
	now             func() time.Time
}

// NewManager creates a manager in not-started state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Batch{State: domain.BatchStateNotStarted},
		last:    domain.Batch{State: domain.BatchStateNotStarted},
		now:     time.Now,
	}
}

// Start moves a new batch to running and locks the queue.
func (m *Manager) Start(batchID string, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.State == domain.BatchStateRunning {
		return ErrBatchAlreadyRunning
	}
	if !isValidTransition(m.current.State, domain.BatchStateRunning) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.State, domain.BatchStateRunning)
	}

	m.cancelRequested = false
	m.current = domain.Batch{
		ID:        batchID,
		State:     domain.BatchStateRunning,
		Total:     total,
		StartedAt: m.now().UTC(),
	}
	return nil
}

// Cancel raises the cooperative cancel flag for the running batch.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.State != domain.BatchStateRunning {
		return ErrNoRunningBatch
	}
	m.cancelRequested = true
	return nil
}

// CancelRequested reports whether no further jobs should be launched.
func (m *Manager) CancelRequested() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cancelRequested
}

// Finish records the final state and returns the manager to not-started.
func (m *Manager) Finish(interrupted bool) domain.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()

	final := domain.BatchStateCompleted
	if interrupted || m.cancelRequested {
		final = domain.BatchStateCancelled
	}
	if isValidTransition(m.current.State, final) {
		m.current.State = final
		m.current.FinishedAt = m.now().UTC()
		m.last = m.current
	}

	m.current = domain.Batch{State: domain.BatchStateNotStarted}
	m.cancelRequested = false
	return m.last
}

// Current returns a snapshot of the current batch.
func (m *Manager) Current() domain.Batch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Last returns the most recently finished batch.
func (m *Manager) Last() domain.Batch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// IsRunning reports whether a batch currently holds the queue lock.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.State == domain.BatchStateRunning
}

// isValidTransition enforces the allowed batch state machine edges.
func isValidTransition(from, to domain.BatchState) bool {
	switch from {
	case domain.BatchStateNotStarted:
		return to == domain.BatchStateRunning
	case domain.BatchStateRunning:
		return to == domain.BatchStateCompleted || to == domain.BatchStateCancelled
	case domain.BatchStateCompleted, domain.BatchStateCancelled:
		return to == domain.BatchStateNotStarted
	default:
		return false
	}
}
