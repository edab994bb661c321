package looper

import (
	"github.com/faiface/beep"

	"github.com/codewandler/looper-go/pcm"
)

// bufferStreamer plays a planar buffer through once, mapped to stereo.
type bufferStreamer struct {
	buf *pcm.Buffer
	pos int
}

func newBufferStreamer(buf *pcm.Buffer) *bufferStreamer {
	return &bufferStreamer{buf: buf}
}

func (s *bufferStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	frames := s.buf.Frames()
	if s.pos >= frames {
		return 0, false
	}
	left := s.buf.Channel(0)
	right := left
	if s.buf.NumChannels() > 1 {
		right = s.buf.Channel(1)
	}
	for i := range samples {
		if s.pos >= frames {
			return i, true
		}
		samples[i][0] = left[s.pos]
		samples[i][1] = right[s.pos]
		s.pos++
	}
	return len(samples), true
}

func (s *bufferStreamer) Err() error { return nil }

// resampleBuffer converts src to toRate so a rate-mismatched overdub
// can be aligned against the master. Mono stays mono, anything else
// comes out stereo.
func resampleBuffer(src *pcm.Buffer, toRate int) *pcm.Buffer {
	if src.SampleRate() == toRate {
		return src
	}

	resampler := beep.Resample(3, beep.SampleRate(src.SampleRate()), beep.SampleRate(toRate), newBufferStreamer(src))

	channels := 2
	if src.NumChannels() == 1 {
		channels = 1
	}

	var out [][2]float64
	chunk := make([][2]float64, 1024)
	for {
		n, ok := resampler.Stream(chunk)
		out = append(out, chunk[:n]...)
		if !ok {
			break
		}
	}

	buf := pcm.NewBuffer(channels, len(out), toRate)
	for i, frame := range out {
		buf.Channel(0)[i] = frame[0]
		if channels > 1 {
			buf.Channel(1)[i] = frame[1]
		}
	}
	return buf
}
