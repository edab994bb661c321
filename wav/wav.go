// Package wav serializes PCM buffers into RIFF/WAVE containers and
// decodes them back. The encoder emits the canonical 44-byte header with
// a 16-bit PCM data chunk; the decoder accepts what the encoder (and any
// plain PCM16 WAV writer) produces.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/codewandler/looper-go/pcm"
)

const headerSize = 44

var (
	ErrNotRIFF     = errors.New("wav: missing RIFF/WAVE header")
	ErrUnsupported = errors.New("wav: only 16-bit PCM is supported")
)

// Encode writes interleaved float samples as a 16-bit PCM WAV file.
func Encode(w io.Writer, samples []float64, channels, sampleRate int) error {
	if channels < 1 {
		return fmt.Errorf("wav: invalid channel count %d", channels)
	}

	dataBytes := len(samples) * 2
	header := make([]byte, headerSize)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataBytes))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(header[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(header[34:36], 16)

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataBytes))

	if _, err := w.Write(header); err != nil {
		return err
	}

	data := make([]byte, dataBytes)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(pcm.FloatToInt16(s)))
	}
	_, err := w.Write(data)
	return err
}

// EncodeBuffer serializes a buffer channel-interleaved.
func EncodeBuffer(buf *pcm.Buffer) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(headerSize + buf.Frames()*buf.NumChannels()*2)
	if err := Encode(&out, buf.Interleaved(), buf.NumChannels(), buf.SampleRate()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Decode parses a 16-bit PCM WAV file into a planar buffer. Chunks other
// than "fmt " and "data" are skipped.
func Decode(data []byte) (*pcm.Buffer, error) {
	if len(data) < headerSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotRIFF
	}

	var (
		channels   int
		sampleRate int
		bits       int
		pcmData    []byte
		haveFmt    bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("wav: truncated fmt chunk (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			if format != 1 || bits != 16 {
				return nil, ErrUnsupported
			}
			haveFmt = true
		case "data":
			pcmData = data[body : body+size]
		}

		// chunks are word aligned
		pos = body + size + size%2
	}

	if !haveFmt || pcmData == nil {
		return nil, ErrNotRIFF
	}
	if channels < 1 {
		return nil, fmt.Errorf("wav: invalid channel count %d", channels)
	}

	frames := len(pcmData) / 2 / channels
	buf := pcm.NewBuffer(channels, frames, sampleRate)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			v := int16(binary.LittleEndian.Uint16(pcmData[(i*channels+ch)*2:]))
			buf.Channel(ch)[i] = pcm.Int16ToFloat(v)
		}
	}
	return buf, nil
}

// Decoder adapts Decode to the engine's decoder collaborator contract.
type Decoder struct{}

func (Decoder) Decode(data []byte) (*pcm.Buffer, error) {
	return Decode(data)
}
