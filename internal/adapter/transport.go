package adapter

import (
	m "rigor.dev/pkg/rigor/internal/model"
)

// Transporter is one end of a rigor connection.
//
// Start advances the transport by one step: connecting or accepting while not
// yet connected, then receiving at most one chunk of bytes per call. Decoded
// envelopes are appended to Queue.
type Transporter interface {
	Start() error
	Send(env m.Envelope) (uint32, error)
	Queue() *EnvelopeQueue
	Connected() bool
	Close() error
}
