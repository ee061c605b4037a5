package model

import (
	"encoding/gob"
	"fmt"
	"strings"
)

// Kind is a bit set describing the role of an envelope on the wire.
type Kind uint8

const (
	// KindReply answers a request.
	KindReply Kind = 1 << iota
	// KindRequest asks the peer to do something.
	KindRequest
	// KindOnSendTests tags envelopes carrying tests being sent for execution.
	KindOnSendTests
	// KindEndOfReply closes a stream of replies.
	KindEndOfReply
	// KindTelemetry is fire-and-forget progress.
	KindTelemetry
)

var kindNames = []struct {
	kind Kind
	name string
}{
	{KindReply, "reply"},
	{KindRequest, "request"},
	{KindOnSendTests, "on-send-tests"},
	{KindEndOfReply, "end-of-reply"},
	{KindTelemetry, "telemetry"},
}

// Has reports whether every bit of flag is set.
func (k Kind) Has(flag Kind) bool {
	return k&flag == flag
}

func (k Kind) String() string {
	parts := make([]string, 0, len(kindNames))

	for _, kn := range kindNames {
		if k.Has(kn.kind) {
			parts = append(parts, kn.name)
		}
	}

	if len(parts) == 0 {
		return "none"
	}

	return strings.Join(parts, "|")
}

// Command names the operation an envelope refers to.
type Command uint8

const (
	// CommandCallFunction invokes a registered function on the server.
	CommandCallFunction Command = iota
	// CommandDiscoverTests lists the tests found in a set of sources.
	CommandDiscoverTests
	// CommandRunTests runs tests by id or by source.
	CommandRunTests
	// CommandTakeResults carries results of a finished context.
	CommandTakeResults
	// CommandCancel cancels the run in progress.
	CommandCancel
	// CommandCheckAssemblyHash asks for the digest of a source.
	CommandCheckAssemblyHash
	// CommandRecordTestStart reports that a test started.
	CommandRecordTestStart
	// CommandRecordTestEnd reports that a test ended.
	CommandRecordTestEnd
)

var commandNames = map[Command]string{
	CommandCallFunction:      "CallFunction",
	CommandDiscoverTests:     "DiscoverTests",
	CommandRunTests:          "RunTests",
	CommandTakeResults:       "TakeResults",
	CommandCancel:            "Cancel",
	CommandCheckAssemblyHash: "CheckAssemblyHash",
	CommandRecordTestStart:   "RecordTestStart",
	CommandRecordTestEnd:     "RecordTestEnd",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}

	return fmt.Sprintf("Command(%d)", uint8(c))
}

// Envelope is the unit exchanged between a client and a server.
type Envelope struct {
	ID        uint32
	SessionID int32
	Kind      Kind
	Command   Command
	Payload   any

	// Target, ConstructorArgs and CallArgs are only used by CallFunction.
	Target          string
	ConstructorArgs []any
	CallArgs        []any
}

func (e Envelope) String() string {
	return fmt.Sprintf("envelope{id=%d session=%d kind=%s command=%s payload=%T}",
		e.ID, e.SessionID, e.Kind, e.Command, e.Payload)
}

// IsTelemetry reports whether the envelope is fire-and-forget progress.
func (e Envelope) IsTelemetry() bool {
	return e.Kind.Has(KindTelemetry)
}

// DiscoverRequest is the payload of a DiscoverTests request.
type DiscoverRequest struct {
	Sources []string
}

// RunRequest is the payload of a RunTests request. Exactly one of the fields is set.
type RunRequest struct {
	IDs     []NodeID
	Sources []string
}

// HashRequest is the payload of a CheckAssemblyHash request.
type HashRequest struct {
	Source string
}

// CallRequest is the payload of a CallFunction request.
type CallRequest struct {
	Method string
}

// RemoteError is sent in place of a reply payload when the peer failed to
// handle a request.
type RemoteError struct {
	Command Command
	Message string
}

func (e RemoteError) Error() string {
	return fmt.Sprintf("remote %s failed: %s", e.Command, e.Message)
}

func init() {
	gob.Register(DiscoverRequest{})
	gob.Register(RunRequest{})
	gob.Register(HashRequest{})
	gob.Register(CallRequest{})
	gob.Register(RunSummary{})
	gob.Register(RemoteError{})
	gob.Register(TestResult{})
	gob.Register([]TestResult{})
	gob.Register([]TestCase{})
}
