// Package capture defines the contracts the engine consumes to record
// audio. Concrete devices (microphone backends, loopbacks) live outside
// the core; the engine only ever sees these interfaces.
package capture

import (
	"context"
	"time"
)

// Constraints are handed to the device when the input stream is opened.
// Which of them a backend honors is backend-specific.
type Constraints struct {
	SampleRate       int
	Channels         int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	// Latency is the added buffering the backend may introduce; zero
	// requests the minimum the backend supports.
	Latency time.Duration
}

// DefaultConstraints preserve dynamics: echo cancellation and noise
// suppression on, automatic gain control off, no added latency.
func DefaultConstraints(sampleRate, channels int) Constraints {
	return Constraints{
		SampleRate:       sampleRate,
		Channels:         channels,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  false,
	}
}

// Device opens live input streams.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an open input connection. It stays open for the lifetime of
// the session; individual captures are started on demand.
type Stream interface {
	Begin() (Capture, error)
	Close() error
}

// Capture is one in-progress recording. End stops the capture, waits
// until the device has flushed everything it buffered and returns the
// accumulated encoded bytes.
type Capture interface {
	End(ctx context.Context) ([]byte, error)
}
