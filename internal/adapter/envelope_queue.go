package adapter

import (
	"sync"

	m "rigor.dev/pkg/rigor/internal/model"
)

// EnvelopeQueue is the inbound FIFO between the transport and its consumers.
type EnvelopeQueue struct {
	mu    sync.RWMutex
	items []m.Envelope
}

// NewEnvelopeQueue returns an empty queue.
func NewEnvelopeQueue() *EnvelopeQueue {
	return &EnvelopeQueue{}
}

// Enqueue appends env.
func (q *EnvelopeQueue) Enqueue(env m.Envelope) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, env)
}

// TryDequeue removes and returns the oldest envelope, if any.
func (q *EnvelopeQueue) TryDequeue() (m.Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return m.Envelope{}, false
	}

	env := q.items[0]
	q.items[0] = m.Envelope{}
	q.items = q.items[1:]

	return env, true
}

// TakeFirst removes and returns the oldest envelope for which match is true.
func (q *EnvelopeQueue) TakeFirst(match func(m.Envelope) bool) (m.Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, env := range q.items {
		if match(env) {
			q.items = append(q.items[:i:i], q.items[i+1:]...)
			return env, true
		}
	}

	return m.Envelope{}, false
}

// TryPeek returns the oldest envelope without removing it.
func (q *EnvelopeQueue) TryPeek() (m.Envelope, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.items) == 0 {
		return m.Envelope{}, false
	}

	return q.items[0], true
}

// Len returns the number of queued envelopes.
func (q *EnvelopeQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return len(q.items)
}
