package looper

import (
	"fmt"
	"log/slog"

	"github.com/faiface/beep"

	"github.com/codewandler/looper-go/pcm"
	"github.com/codewandler/looper-go/wav"
)

// ExportMix renders the master plus every layer played once, summed, in
// a non-real-time pass of exactly the master's length, and serializes
// the result as a 16-bit stereo WAV file. Without a master loop nothing
// is rendered and ErrNothingToExport is reported.
func (e *Engine) ExportMix() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.master == nil {
		return nil, e.report(ErrNothingToExport)
	}

	mix := renderMix(e.master, e.layers.all())
	data, err := wav.EncodeBuffer(mix)
	if err != nil {
		return nil, e.report(fmt.Errorf("encode mix: %w", err))
	}
	e.logger.Info("mixdown exported", slog.Int("bytes", len(data)))
	return data, nil
}

// renderMix sums the sources through a beep mixer. All buffers have the
// master's length, so the mix drains after exactly that many frames.
// Mono sources appear duplicated on both stereo channels.
func renderMix(master *pcm.Buffer, layers []Layer) *pcm.Buffer {
	frames := master.Frames()

	streamers := make([]beep.Streamer, 0, 1+len(layers))
	streamers = append(streamers, newBufferStreamer(master))
	for _, l := range layers {
		streamers = append(streamers, newBufferStreamer(l.Buffer))
	}
	mix := beep.Mix(streamers...)

	out := pcm.NewBuffer(2, frames, master.SampleRate())
	left, right := out.Channel(0), out.Channel(1)

	chunk := make([][2]float64, 512)
	pos := 0
	for pos < frames {
		want := len(chunk)
		if frames-pos < want {
			want = frames - pos
		}
		n, ok := mix.Stream(chunk[:want])
		for i := 0; i < n; i++ {
			left[pos+i] = chunk[i][0]
			right[pos+i] = chunk[i][1]
		}
		pos += n
		if !ok {
			break
		}
	}
	return out
}
