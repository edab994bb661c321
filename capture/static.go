package capture

import (
	"context"
	"errors"
	"sync"
)

var ErrNoRecording = errors.New("capture: static device has no recording queued")

// StaticDevice replays canned encoded recordings, one per capture, in
// queue order. It backs tests and headless use of the engine.
type StaticDevice struct {
	mu         sync.Mutex
	recordings [][]byte

	OpenErr  error
	BeginErr error
	EndErr   error

	Opened Constraints
}

func NewStaticDevice(recordings ...[]byte) *StaticDevice {
	return &StaticDevice{recordings: recordings}
}

// Queue appends one more recording to replay.
func (d *StaticDevice) Queue(data []byte) {
	d.mu.Lock()
	d.recordings = append(d.recordings, data)
	d.mu.Unlock()
}

func (d *StaticDevice) Open(_ context.Context, c Constraints) (Stream, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	d.Opened = c
	return &staticStream{device: d}, nil
}

type staticStream struct {
	device *StaticDevice
}

func (s *staticStream) Begin() (Capture, error) {
	if s.device.BeginErr != nil {
		return nil, s.device.BeginErr
	}
	return &staticCapture{device: s.device}, nil
}

func (s *staticStream) Close() error { return nil }

type staticCapture struct {
	device *StaticDevice
	done   bool
}

func (c *staticCapture) End(context.Context) ([]byte, error) {
	if c.device.EndErr != nil {
		return nil, c.device.EndErr
	}
	c.device.mu.Lock()
	defer c.device.mu.Unlock()
	if c.done {
		return nil, ErrNoRecording
	}
	c.done = true
	if len(c.device.recordings) == 0 {
		return nil, ErrNoRecording
	}
	data := c.device.recordings[0]
	c.device.recordings = c.device.recordings[1:]
	return data, nil
}
