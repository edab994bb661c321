package looper

import (
	"github.com/codewandler/looper-go/pcm"
)

// alignOverdub writes a freshly captured passage into a new buffer with
// the master's channel count, length and sample rate, starting at the
// loop phase the capture began at and wrapping past the loop boundary.
//
// offset is seconds into the loop cycle, 0 <= offset < master duration.
// Colliding destination indices within one pass are overwritten, not
// summed: each position holds the most recent sample written to it.
// Output channels beyond the input's channel count reuse input channel 0.
func alignOverdub(master, input *pcm.Buffer, offset float64) *pcm.Buffer {
	masterFrames := master.Frames()
	out := pcm.NewBuffer(master.NumChannels(), masterFrames, master.SampleRate())

	sampleOffset := int(offset / master.Duration() * float64(masterFrames))
	if sampleOffset >= masterFrames {
		sampleOffset = sampleOffset % masterFrames
	}

	inFrames := input.Frames()
	for ch := 0; ch < out.NumChannels(); ch++ {
		srcCh := ch
		if srcCh >= input.NumChannels() {
			srcCh = 0
		}
		src := input.Channel(srcCh)
		dst := out.Channel(ch)
		for i := 0; i < inFrames; i++ {
			dst[(sampleOffset+i)%masterFrames] = src[i]
		}
	}
	return out
}
