package jobs

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/lo"

	"audio-converter/internal/domain"
)

// Queue holds the source files selected for the next batch. Mutations are
// refused while the attached manager reports a running batch.
type Queue struct {
	mu    sync.Mutex
	files []string
	state *Manager
}

// NewQueue creates an empty queue guarded by state.
func NewQueue(state *Manager) *Queue {
	return &Queue{state: state}
}

// Add appends supported, not-yet-queued files and returns rejected paths.
func (q *Queue) Add(paths ...string) (added []string, rejected []string, err error) {
	if q.locked() {
		return nil, nil, ErrQueueLocked
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}
		if abs, absErr := filepath.Abs(path); absErr == nil {
			path = abs
		}
		if !domain.IsSupportedInput(path) {
			rejected = append(rejected, path)
			continue
		}
		if lo.Contains(q.files, path) {
			continue
		}
		q.files = append(q.files, path)
		added = append(added, path)
	}
	return added, rejected, nil
}

// Remove drops the given paths from the queue.
func (q *Queue) Remove(paths ...string) error {
	if q.locked() {
		return ErrQueueLocked
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.files = lo.Without(q.files, paths...)
	return nil
}

// Clear empties the queue.
func (q *Queue) Clear() error {
	if q.locked() {
		return ErrQueueLocked
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.files = nil
	return nil
}

// Snapshot returns a copy of the queued paths in submission order.
func (q *Queue) Snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.files...)
}

// Len returns the number of queued files.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.files)
}

func (q *Queue) locked() bool {
	return q.state != nil && q.state.IsRunning()
}
