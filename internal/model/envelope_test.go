package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{0, "none"},
		{KindRequest, "request"},
		{KindReply | KindEndOfReply, "reply|end-of-reply"},
		{KindTelemetry, "telemetry"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.kind.String())
	}
}

func TestKind_Values(t *testing.T) {
	assert.Equal(t, Kind(1), KindReply)
	assert.Equal(t, Kind(2), KindRequest)
	assert.Equal(t, Kind(4), KindOnSendTests)
	assert.Equal(t, Kind(8), KindEndOfReply)
	assert.Equal(t, Kind(16), KindTelemetry)
	assert.True(t, (KindReply | KindTelemetry).Has(KindTelemetry))
	assert.False(t, KindReply.Has(KindRequest))
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "RunTests", CommandRunTests.String())
	assert.Equal(t, "RecordTestEnd", CommandRecordTestEnd.String())
	assert.Equal(t, "Command(42)", Command(42).String())
}

func TestEnvelope_String(t *testing.T) {
	env := Envelope{ID: 3, SessionID: 7, Kind: KindRequest, Command: CommandDiscoverTests, Payload: DiscoverRequest{}}

	assert.Equal(t, "envelope{id=3 session=7 kind=request command=DiscoverTests payload=model.DiscoverRequest}", env.String())
	assert.False(t, env.IsTelemetry())
}
