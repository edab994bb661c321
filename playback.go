package looper

import (
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"

	"github.com/codewandler/looper-go/pcm"
)

// Clock is the one authoritative time source for all offset and phase
// arithmetic. Now is seconds, monotonically increasing, referenced to
// the audio output. Wall-clock time is never used for scheduling.
type Clock interface {
	Now() float64
}

// Output starts playback units. All units passed to one Start call
// begin at the same clock instant.
type Output interface {
	Clock() Clock
	Start(units ...*Unit) error
}

// Unit is one looping playback voice over a single buffer. Offset is
// seconds into the buffer at which playback begins; the unit then loops
// indefinitely. Stop is safe to call more than once and on units that
// already finished.
type Unit struct {
	LayerID string
	Buffer  *pcm.Buffer
	Offset  float64

	stopped atomic.Bool
}

func newUnit(layerID string, buf *pcm.Buffer, offset float64) *Unit {
	return &Unit{LayerID: layerID, Buffer: buf, Offset: offset}
}

func (u *Unit) Stop() {
	u.stopped.Store(true)
}

func (u *Unit) Stopped() bool {
	return u.stopped.Load()
}

// Streamer returns the beep streamer feeding this unit to a mixer.
func (u *Unit) Streamer() beep.Streamer {
	pos := int(u.Offset * float64(u.Buffer.SampleRate()))
	if frames := u.Buffer.Frames(); frames > 0 {
		pos = pos % frames
	}
	return &unitStreamer{unit: u, pos: pos}
}

// unitStreamer loops a planar buffer forever, mapped to stereo (mono is
// duplicated on both sides). Returning ok=false after Stop lets the
// speaker mixer drop the voice.
type unitStreamer struct {
	unit *Unit
	pos  int
}

func (s *unitStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.unit.stopped.Load() {
		return 0, false
	}
	buf := s.unit.Buffer
	frames := buf.Frames()
	if frames == 0 {
		return 0, false
	}
	left := buf.Channel(0)
	right := left
	if buf.NumChannels() > 1 {
		right = buf.Channel(1)
	}
	for i := range samples {
		samples[i][0] = left[s.pos]
		samples[i][1] = right[s.pos]
		s.pos++
		if s.pos >= frames {
			s.pos = 0
		}
	}
	return len(samples), true
}

func (s *unitStreamer) Err() error { return nil }

// speakerOutput plays units through the beep speaker. Its clock counts
// frames pulled by the output device, so Now advances exactly as fast
// as audio leaves the process.
type speakerOutput struct {
	clock *sampleClock
}

func newSpeakerOutput(sampleRate int, bufferLatency time.Duration) (*speakerOutput, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(bufferLatency)); err != nil {
		return nil, err
	}
	clock := &sampleClock{rate: float64(sampleRate)}
	speaker.Play(clock)
	return &speakerOutput{clock: clock}, nil
}

func (o *speakerOutput) Clock() Clock { return o.clock }

// Start adds every unit to the mixer in one speaker.Play call, which
// makes their first samples land in the same mix cycle.
func (o *speakerOutput) Start(units ...*Unit) error {
	streamers := make([]beep.Streamer, len(units))
	for i, u := range units {
		streamers[i] = u.Streamer()
	}
	speaker.Play(streamers...)
	return nil
}

// sampleClock is a silent streamer that stays in the mixer forever and
// counts the frames the device consumed.
type sampleClock struct {
	rate   float64
	frames atomic.Int64
}

func (c *sampleClock) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		samples[i] = [2]float64{}
	}
	c.frames.Add(int64(len(samples)))
	return len(samples), true
}

func (c *sampleClock) Err() error { return nil }

func (c *sampleClock) Now() float64 {
	return float64(c.frames.Load()) / c.rate
}
