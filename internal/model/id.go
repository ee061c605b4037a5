// Package model defines the data structures shared by the rigor scheduler and its wire protocol.
package model

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
)

// NodeID identifies a scope node or a test method across process boundaries.
type NodeID uuid.UUID

// ZeroID is the parent id of the domain root.
var ZeroID NodeID

// NewNodeID derives a stable id from the source a node was discovered in and its full name.
// Client and server compute it independently, so it must never depend on process state.
func NewNodeID(source, fullName string) NodeID {
	sum := xxh3.HashString128(source + "\x00" + fullName)

	var id NodeID

	binary.BigEndian.PutUint64(id[:8], sum.Hi)
	binary.BigEndian.PutUint64(id[8:], sum.Lo)

	return id
}

// ParseNodeID parses the textual form produced by NodeID.String.
func ParseNodeID(s string) (NodeID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ZeroID, fmt.Errorf("invalid node id %q: %w", s, err)
	}

	return NodeID(u), nil
}

// IsZero reports whether id is the zero id.
func (id NodeID) IsZero() bool {
	return id == ZeroID
}

func (id NodeID) String() string {
	return uuid.UUID(id).String()
}

// Short returns the first eight hex characters, used in tables and logs.
func (id NodeID) Short() string {
	return id.String()[:8]
}

// MarshalText renders the id in its canonical textual form.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the canonical textual form.
func (id *NodeID) UnmarshalText(text []byte) error {
	parsed, err := ParseNodeID(string(text))
	if err != nil {
		return err
	}

	*id = parsed

	return nil
}
