package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/codewandler/looper-go/capture"
	"github.com/codewandler/looper-go/pcm"
	"github.com/codewandler/looper-go/wav"
)

const captureFrames = 1024 // mic pull size

// portaudioDevice records from the default input device and hands the
// engine WAV-encoded bytes.
type portaudioDevice struct{}

func (portaudioDevice) Open(_ context.Context, c capture.Constraints) (capture.Stream, error) {
	return &paStream{constraints: c}, nil
}

type paStream struct {
	constraints capture.Constraints
}

func (s *paStream) Begin() (capture.Capture, error) {
	c := s.constraints
	in := make([]float32, captureFrames*c.Channels)

	stream, err := portaudio.OpenDefaultStream(c.Channels, 0, float64(c.SampleRate), captureFrames, in)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}

	// room for a minute of PCM16; writes block if a capture somehow
	// runs longer, which stalls the mic loop instead of dropping audio
	chunks := capture.NewChunkBuffer(60 * c.SampleRate * c.Channels * 2)

	pa := &paCapture{
		stream:      stream,
		in:          in,
		chunks:      chunks,
		constraints: c,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go pa.loop()
	return pa, nil
}

func (s *paStream) Close() error { return nil }

type paCapture struct {
	stream      *portaudio.Stream
	in          []float32
	chunks      *capture.ChunkBuffer
	constraints capture.Constraints

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func (c *paCapture) loop() {
	defer close(c.done)
	chunk := make([]byte, len(c.in)*2)
	for {
		select {
		case <-c.stop:
			return
		default:
		}
		if err := c.stream.Read(); err != nil {
			return
		}
		for i, v := range c.in {
			binary.LittleEndian.PutUint16(chunk[i*2:], uint16(pcm.FloatToInt16(float64(v))))
		}
		if _, err := c.chunks.Write(chunk); err != nil {
			return
		}
	}
}

func (c *paCapture) End(ctx context.Context) ([]byte, error) {
	c.stopOnce.Do(func() { close(c.stop) })
	select {
	case <-c.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c.stream.Stop()
	c.stream.Close()

	raw := c.chunks.Drain()
	samples := make([]float64, len(raw)/2)
	for i := range samples {
		samples[i] = pcm.Int16ToFloat(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}

	var out bytes.Buffer
	if err := wav.Encode(&out, samples, c.constraints.Channels, c.constraints.SampleRate); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
