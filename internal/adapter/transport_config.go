package adapter

import (
	"net"
	"strconv"
	"time"
)

// TransportConfig holds the connection settings of a client or server transport.
type TransportConfig struct {
	Host string
	Port int

	// SendTimeout bounds a single frame write.
	SendTimeout time.Duration
	// ReceiveTimeout bounds how long a partially received frame may stall.
	ReceiveTimeout time.Duration
	// ConnectTimeout bounds the client dial.
	ConnectTimeout time.Duration
	// PollInterval is how long one receive tick waits for bytes.
	PollInterval time.Duration
	// BufferSize is the largest chunk read in one tick.
	BufferSize int
	// Marker is encoded into the frame sentinel. Both peers must agree on it.
	Marker string
}

// Default transport settings.
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 7471
	DefaultSendTimeout    = 10 * time.Second
	DefaultReceiveTimeout = 30 * time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultPollInterval   = 50 * time.Millisecond
	DefaultBufferSize     = 8192
)

// DefaultTransportConfig returns the settings used when nothing is configured.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Host:           DefaultHost,
		Port:           DefaultPort,
		SendTimeout:    DefaultSendTimeout,
		ReceiveTimeout: DefaultReceiveTimeout,
		ConnectTimeout: DefaultConnectTimeout,
		PollInterval:   DefaultPollInterval,
		BufferSize:     DefaultBufferSize,
		Marker:         DefaultMarker,
	}
}

// Address returns host:port.
func (c TransportConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c TransportConfig) withDefaults() TransportConfig {
	d := DefaultTransportConfig()

	if c.Host == "" {
		c.Host = d.Host
	}

	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}

	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}

	if c.Marker == "" {
		c.Marker = d.Marker
	}

	return c
}
