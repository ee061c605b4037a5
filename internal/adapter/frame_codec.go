// Package adapter contains the transport, storage and discovery adapters of rigor.
package adapter

import (
	"bytes"
	"encoding/gob"
	"fmt"

	m "rigor.dev/pkg/rigor/internal/model"
)

// DefaultMarker is the string whose encoding terminates every frame.
const DefaultMarker = "<RIGOR-EOF>"

// FrameCodec turns envelopes into sentinel terminated frames and back.
// Every frame is a self-contained gob stream so frames can be decoded independently.
type FrameCodec struct {
	sentinel []byte
}

// NewFrameCodec builds a codec whose sentinel is the gob encoding of marker.
func NewFrameCodec(marker string) (*FrameCodec, error) {
	if marker == "" {
		marker = DefaultMarker
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(marker); err != nil {
		return nil, fmt.Errorf("failed to encode frame marker: %w", err)
	}

	return &FrameCodec{sentinel: buf.Bytes()}, nil
}

// Sentinel returns the byte sequence that terminates a frame.
func (c *FrameCodec) Sentinel() []byte {
	return c.sentinel
}

// Encode serializes env and appends the sentinel.
func (c *FrameCodec) Encode(env m.Envelope) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&env); err != nil {
		return nil, fmt.Errorf("%w: failed to encode %s: %w", m.ErrProtocolFraming, env, err)
	}

	buf.Write(c.sentinel)

	return buf.Bytes(), nil
}

// Decode deserializes a frame payload, without its sentinel.
func (c *FrameCodec) Decode(payload []byte) (m.Envelope, error) {
	var env m.Envelope
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&env); err != nil {
		return m.Envelope{}, fmt.Errorf("%w: failed to decode frame of %d bytes: %w", m.ErrProtocolFraming, len(payload), err)
	}

	return env, nil
}

// sentinelScanner looks for the sentinel in a buffer that grows between calls.
// It remembers how far it got and how much of the sentinel it had matched, so
// bytes are examined once and a sentinel split across reads is still found.
type sentinelScanner struct {
	sentinel []byte
	failure  []int
	pos      int
	matched  int
}

func newSentinelScanner(sentinel []byte) *sentinelScanner {
	failure := make([]int, len(sentinel))

	for i, k := 1, 0; i < len(sentinel); i++ {
		for k > 0 && sentinel[i] != sentinel[k] {
			k = failure[k-1]
		}

		if sentinel[i] == sentinel[k] {
			k++
		}

		failure[i] = k
	}

	return &sentinelScanner{sentinel: sentinel, failure: failure}
}

// Scan resumes scanning buf. On a match it returns the index of the last payload
// byte before the sentinel, which is -1 when the sentinel starts the buffer.
func (s *sentinelScanner) Scan(buf []byte) (int, bool) {
	for ; s.pos < len(buf); s.pos++ {
		b := buf[s.pos]

		for s.matched > 0 && b != s.sentinel[s.matched] {
			s.matched = s.failure[s.matched-1]
		}

		if b == s.sentinel[s.matched] {
			s.matched++
		}

		if s.matched == len(s.sentinel) {
			index := s.pos - len(s.sentinel)
			s.Reset()

			return index, true
		}
	}

	return 0, false
}

// Reset forgets all progress. Scan resets itself after a match, since the caller
// then drops the frame from the front of the buffer.
func (s *sentinelScanner) Reset() {
	s.pos = 0
	s.matched = 0
}
