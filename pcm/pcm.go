// Package pcm holds the multichannel sample buffer the engine works on.
// Samples are float64 in [-1, 1], stored planar (one slice per channel),
// which keeps wrap-around writes and per-channel reads index arithmetic
// instead of stride arithmetic.
package pcm

import "fmt"

type Buffer struct {
	sampleRate int
	data       [][]float64
}

// NewBuffer allocates a silent buffer of frames frames per channel.
func NewBuffer(channels, frames, sampleRate int) *Buffer {
	if channels < 1 {
		panic("pcm: buffer needs at least one channel")
	}
	data := make([][]float64, channels)
	for ch := range data {
		data[ch] = make([]float64, frames)
	}
	return &Buffer{sampleRate: sampleRate, data: data}
}

// FromInterleaved builds a buffer from interleaved samples. Trailing
// samples that do not fill a whole frame are dropped.
func FromInterleaved(samples []float64, channels, sampleRate int) *Buffer {
	frames := len(samples) / channels
	b := NewBuffer(channels, frames, sampleRate)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			b.data[ch][i] = samples[i*channels+ch]
		}
	}
	return b
}

func (b *Buffer) String() string {
	return fmt.Sprintf("pcm.Buffer(channels=%d frames=%d rate=%d)", b.NumChannels(), b.Frames(), b.sampleRate)
}

func (b *Buffer) SampleRate() int  { return b.sampleRate }
func (b *Buffer) NumChannels() int { return len(b.data) }

func (b *Buffer) Frames() int {
	return len(b.data[0])
}

// Duration is the buffer length in seconds, derived from the sample
// count. This is the authoritative duration everywhere in the engine.
func (b *Buffer) Duration() float64 {
	return float64(b.Frames()) / float64(b.sampleRate)
}

// Channel returns the backing slice for one channel.
func (b *Buffer) Channel(ch int) []float64 {
	return b.data[ch]
}

// Truncate shortens the buffer to at most frames frames.
func (b *Buffer) Truncate(frames int) {
	if frames >= b.Frames() {
		return
	}
	for ch := range b.data {
		b.data[ch] = b.data[ch][:frames]
	}
}

// Interleaved flattens the buffer into channel-interleaved order.
func (b *Buffer) Interleaved() []float64 {
	channels := b.NumChannels()
	frames := b.Frames()
	out := make([]float64, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = b.data[ch][i]
		}
	}
	return out
}

// Clamp limits s to [-1, 1].
func Clamp(s float64) float64 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	default:
		return s
	}
}

// FloatToInt16 quantizes a float sample: negative values scale by 32768,
// non-negative by 32767, truncating toward zero.
func FloatToInt16(s float64) int16 {
	s = Clamp(s)
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

// Int16ToFloat is the inverse mapping of FloatToInt16.
func Int16ToFloat(v int16) float64 {
	if v < 0 {
		return float64(v) / 32768
	}
	return float64(v) / 32767
}
