// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits for the control daemon.
const (
	DefaultLogLevel     = "info"
	DefaultSettingsPath = "dsp.yaml"
	DefaultBackend      = BackendEmbedded
	DefaultSampleRate   = 48000
	DefaultReleaseGrace = 100 * time.Millisecond
	DefaultDepthCompat  = "direct"

	DefaultTransport   = TransportWebSocket
	DefaultRemoteURL   = "ws://127.0.0.1:8787/ws"
	DefaultSubject     = "dsp.engine"
	DefaultPriority    = 0
	DefaultCallTimeout = 2 * time.Second

	DefaultEndpointListen = "127.0.0.1:8787"
	DefaultNATSURL        = "nats://127.0.0.1:4222"

	DefaultStatusTarget   = "127.0.0.1:9090"
	DefaultStatusInterval = time.Second

	MinSampleRate = 8000   // Hz
	MaxSampleRate = 384000 // Hz
	MinDeviceID   = -1     // -1 represents the system default device
)

// Engine backends.
const (
	BackendEmbedded = "embedded"
	BackendRemote   = "remote"
)

// Remote transports. TransportLogging accepts and logs every call against
// an in-process endpoint.
const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
	TransportLogging   = "logging"
)
