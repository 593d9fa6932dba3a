package dedupe

import (
	"context"
	"errors"
	"sync"
)

// ErrInvalidCapacity is returned when a Memory deduper is created with a
// non-positive capacity.
var ErrInvalidCapacity = errors.New("capacity must be greater than zero")

// Memory remembers the most recent delivery IDs in a ring buffer with a map
// index for O(1) lookups. When the ring is full the oldest ID is evicted, so
// memory use is bounded no matter how long the process runs.
type Memory struct {
	mu    sync.Mutex
	buf   []string       // ring buffer of delivery IDs
	index map[string]int // delivery ID → position in buf
	cap   int
	count int
	head  int // next write position
}

// NewMemory creates a Memory deduper holding up to capacity IDs.
func NewMemory(capacity int) (*Memory, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &Memory{
		buf:   make([]string, capacity),
		index: make(map[string]int, capacity),
		cap:   capacity,
	}, nil
}

// Seen records deliveryID and reports whether it was already in the window.
func (m *Memory) Seen(_ context.Context, deliveryID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[deliveryID]; ok {
		return true, nil
	}

	// Overwriting a full slot drops the oldest ID from the index.
	if m.count == m.cap {
		delete(m.index, m.buf[m.head])
	}
	m.buf[m.head] = deliveryID
	m.index[deliveryID] = m.head

	m.head = (m.head + 1) % m.cap
	if m.count < m.cap {
		m.count++
	}
	return false, nil
}
