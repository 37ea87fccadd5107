package dispatch

import (
	"sync"

	"github.com/huepad/huepad/internal/hue"
)

// Queue coalesces pending light updates. It is a last-write-wins map keyed
// by light ID, not a FIFO: a newer desired state for a light supersedes
// whatever was queued for it, so a burst of knob events collapses to the
// final position. Capacity is bounded by the number of distinct lights, so
// no backpressure is needed.
//
// The queue is the only state shared between the controller loop and the
// dispatcher loop.
type Queue struct {
	mu      sync.Mutex
	pending map[string]hue.LightState
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{pending: make(map[string]hue.LightState)}
}

// Put records the desired state for a light, replacing any queued state.
// Entire states replace each other; fields are never merged.
func (q *Queue) Put(lightID string, state hue.LightState) {
	q.mu.Lock()
	q.pending[lightID] = state
	q.mu.Unlock()
}

// Drain atomically swaps out the pending map and returns it. Writes racing
// with a drain land in the next cycle's map, never lost and never
// duplicated.
func (q *Queue) Drain() map[string]hue.LightState {
	q.mu.Lock()
	batch := q.pending
	q.pending = make(map[string]hue.LightState)
	q.mu.Unlock()
	return batch
}

// Len reports the number of lights with a pending update.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
