package wav

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewandler/looper-go/pcm"
)

func TestEncodeHeaderLayout(t *testing.T) {
	// 100 stereo frames at 44.1 kHz
	samples := make([]float64, 200)
	var out bytes.Buffer
	require.NoError(t, Encode(&out, samples, 2, 44_100))

	data := out.Bytes()
	require.Len(t, data, 44+400)

	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, uint32(436), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(data[16:20]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[20:22]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[22:24]))
	assert.Equal(t, uint32(44_100), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint32(44_100*2*2), binary.LittleEndian.Uint32(data[28:32]))
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(data[32:34]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[34:36]))
	assert.Equal(t, "data", string(data[36:40]))
	assert.Equal(t, uint32(400), binary.LittleEndian.Uint32(data[40:44]))
}

func TestQuantization(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Encode(&out, []float64{1, -1, 0, 2, -2}, 1, 8_000))

	data := out.Bytes()[44:]
	read := func(i int) int16 {
		return int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	assert.Equal(t, int16(32767), read(0))
	assert.Equal(t, int16(-32768), read(1))
	assert.Equal(t, int16(0), read(2))
	assert.Equal(t, int16(32767), read(3), "above full scale clamps")
	assert.Equal(t, int16(-32768), read(4), "below full scale clamps")
}

func TestRoundTrip(t *testing.T) {
	const frames = 500
	src := pcm.NewBuffer(2, frames, 44_100)
	for i := 0; i < frames; i++ {
		src.Channel(0)[i] = math.Sin(2 * math.Pi * float64(i) / 50)
		src.Channel(1)[i] = math.Cos(2 * math.Pi * float64(i) / 80)
	}

	data, err := EncodeBuffer(src)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, 2, got.NumChannels())
	require.Equal(t, frames, got.Frames())
	require.Equal(t, 44_100, got.SampleRate())

	for ch := 0; ch < 2; ch++ {
		for i := 0; i < frames; i++ {
			assert.InDelta(t, src.Channel(ch)[i], got.Channel(ch)[i], 1.0/32767,
				"channel %d frame %d", ch, i)
		}
	}
}

func TestDecodeSkipsUnknownChunks(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Encode(&out, []float64{0.25, -0.25}, 1, 22_050))
	wavData := out.Bytes()

	// splice a LIST chunk between fmt and data
	list := append([]byte("LIST"), 0x04, 0x00, 0x00, 0x00, 'I', 'N', 'F', 'O')
	spliced := append([]byte{}, wavData[:36]...)
	spliced = append(spliced, list...)
	spliced = append(spliced, wavData[36:]...)
	binary.LittleEndian.PutUint32(spliced[4:8], uint32(len(spliced)-8))

	got, err := Decode(spliced)
	require.NoError(t, err)
	require.Equal(t, 2, got.Frames())
	assert.InDelta(t, 0.25, got.Channel(0)[0], 1.0/32767)
	assert.InDelta(t, -0.25, got.Channel(0)[1], 1.0/32767)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("definitely not a wav file ......................"))
	require.ErrorIs(t, err, ErrNotRIFF)

	_, err = Decode(nil)
	require.ErrorIs(t, err, ErrNotRIFF)
}
