package wire

import (
	"fmt"
	"sync"

	m "rigor.dev/pkg/rigor/internal/model"
)

// callKey identifies an outstanding call. Replies carry the command and the
// session of the request they answer.
type callKey struct {
	command m.Command
	session int32
}

type pendingCalls struct {
	mu     sync.Mutex
	calls  map[callKey]chan m.Envelope
	closed error
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{calls: make(map[callKey]chan m.Envelope)}
}

func (p *pendingCalls) register(key callKey) (<-chan m.Envelope, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed != nil {
		return nil, p.closed
	}

	if _, exists := p.calls[key]; exists {
		return nil, fmt.Errorf("call %s already pending for session %d", key.command, key.session)
	}

	ch := make(chan m.Envelope, 1)
	p.calls[key] = ch

	return ch, nil
}

// resolve hands env to the call waiting for it, if any.
func (p *pendingCalls) resolve(env m.Envelope) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := callKey{command: env.Command, session: env.SessionID}

	ch, ok := p.calls[key]
	if !ok {
		return false
	}

	delete(p.calls, key)
	ch <- env

	return true
}

func (p *pendingCalls) cancel(key callKey) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.calls, key)
}

// fail closes every pending call and rejects new ones with err.
func (p *pendingCalls) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed != nil {
		return
	}

	p.closed = err

	for key, ch := range p.calls {
		close(ch)
		delete(p.calls, key)
	}
}

func (p *pendingCalls) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}

func (p *pendingCalls) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.calls)
}
