package looper

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/codewandler/looper-go/capture"
	"github.com/codewandler/looper-go/pcm"
	"github.com/codewandler/looper-go/wav"
)

// Decoder converts the raw encoded bytes a capture delivers into PCM.
type Decoder interface {
	Decode(data []byte) (*pcm.Buffer, error)
}

type engineConfig struct {
	sampleRate       int
	channels         int
	maxLoopLength    time.Duration
	progressInterval time.Duration
	speakerLatency   time.Duration
	logger           *slog.Logger
	device           capture.Device
	decoder          Decoder
	output           Output
}

func (c *engineConfig) validate() error {
	if c.device == nil {
		return fmt.Errorf("missing capture device")
	}
	if c.sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", c.sampleRate)
	}
	if c.channels < 1 {
		return fmt.Errorf("invalid channel count %d", c.channels)
	}
	if c.maxLoopLength <= 0 {
		return fmt.Errorf("invalid max loop length %s", c.maxLoopLength)
	}
	return nil
}

type Option func(*engineConfig)

func WithSampleRate(sr int) Option {
	return func(c *engineConfig) {
		c.sampleRate = sr
	}
}

func WithChannels(n int) Option {
	return func(c *engineConfig) {
		c.channels = n
	}
}

// WithMaxLoopLength bounds the master loop; a master capture still
// running when this deadline fires is force-stopped.
func WithMaxLoopLength(d time.Duration) Option {
	return func(c *engineConfig) {
		c.maxLoopLength = d
	}
}

// WithProgressInterval sets how often the loop phase is reported while
// playing.
func WithProgressInterval(d time.Duration) Option {
	return func(c *engineConfig) {
		c.progressInterval = d
	}
}

// WithSpeakerLatency sets the output buffer size of the default speaker
// output. Ignored when WithOutput is used.
func WithSpeakerLatency(d time.Duration) Option {
	return func(c *engineConfig) {
		c.speakerLatency = d
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

func WithDefaultLogger() Option {
	return WithLogger(slog.Default())
}

func WithDevice(d capture.Device) Option {
	return func(c *engineConfig) {
		c.device = d
	}
}

func WithDecoder(d Decoder) Option {
	return func(c *engineConfig) {
		c.decoder = d
	}
}

// WithOutput replaces the speaker-backed playback output, which also
// replaces the clock all scheduling is referenced to.
func WithOutput(o Output) Option {
	return func(c *engineConfig) {
		c.output = o
	}
}

func WithOptions(opts ...Option) Option {
	return func(c *engineConfig) {
		for _, opt := range opts {
			opt(c)
		}
	}
}

func withDefaults() Option {
	return WithOptions(
		WithLogger(slog.New(slog.DiscardHandler)),
		WithSampleRate(44_100),
		WithChannels(1),
		WithMaxLoopLength(10*time.Second),
		WithProgressInterval(40*time.Millisecond),
		WithSpeakerLatency(100*time.Millisecond),
		WithDecoder(wav.Decoder{}),
	)
}
