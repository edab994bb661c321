// Package looper is a loop-based audio layering engine: the first
// recorded passage fixes the loop length, later passages are aligned to
// the loop cycle and played back phase-locked with it, with LIFO undo
// and a mixed-down WAV export.
package looper

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/codewandler/looper-go/capture"
	"github.com/codewandler/looper-go/pcm"
)

// State is what the state subscription delivers.
type State string

const (
	StateReady     State = "READY"
	StateRecording State = "RECORDING"
	StatePlaying   State = "PLAYING"
	StateStopped   State = "STOPPED"
)

// masterLayerID keys the master's playback unit in the unit map.
const masterLayerID = "master"

// Status is the snapshot delivered to state subscribers. Duration is 0
// until a master loop exists.
type Status struct {
	State    State
	Layers   int
	Duration float64
}

// recordingState exists only while a capture is in progress.
type recordingState struct {
	active    bool
	finishing bool
	capture   capture.Capture
	startTime float64
	offset    float64
	master    bool
	timer     *time.Timer
}

type Engine struct {
	config *engineConfig
	logger *slog.Logger

	mu     sync.Mutex
	stream capture.Stream
	output Output
	clock  Clock
	epoch  int

	master *pcm.Buffer
	layers layerStack

	rec         recordingState
	playing     bool
	loopStart   float64
	units       map[string]*Unit
	progressGen int

	state      State
	onState    func(s Status)
	onProgress func(phase float64)
	onError    func(err error)
}

func New(opts ...Option) *Engine {
	config := &engineConfig{}
	withDefaults()(config)
	WithOptions(opts...)(config)

	return &Engine{
		config: config,
		logger: config.logger,
		state:  StateReady,
		units:  map[string]*Unit{},
	}
}

// OnState subscribes to state transitions. The handler runs on the
// mutating goroutine and must not call back into the engine.
func (e *Engine) OnState(h func(s Status)) {
	e.mu.Lock()
	e.onState = h
	e.mu.Unlock()
}

// OnProgress subscribes to the loop phase in [0, 1), reported
// periodically while playing.
func (e *Engine) OnProgress(h func(phase float64)) {
	e.mu.Lock()
	e.onProgress = h
	e.mu.Unlock()
}

// OnError subscribes to failure notifications, exactly one per failed
// action.
func (e *Engine) OnError(h func(err error)) {
	e.mu.Lock()
	e.onError = h
	e.mu.Unlock()
}

// Open establishes the playback output and the live input connection.
// It is idempotent; BeginCapture opens lazily when it was never called.
func (e *Engine) Open(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openLocked(ctx)
}

func (e *Engine) openLocked(ctx context.Context) error {
	if e.stream != nil {
		return nil
	}
	if err := e.config.validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if e.output == nil {
		if e.config.output != nil {
			e.output = e.config.output
		} else {
			out, err := newSpeakerOutput(e.config.sampleRate, e.config.speakerLatency)
			if err != nil {
				return e.report(fmt.Errorf("%w: %v", ErrDeviceAccess, err))
			}
			e.output = out
		}
		e.clock = e.output.Clock()
	}

	stream, err := e.config.device.Open(ctx, capture.DefaultConstraints(e.config.sampleRate, e.config.channels))
	if err != nil {
		return e.report(fmt.Errorf("%w: %v", ErrDeviceAccess, err))
	}
	e.stream = stream

	e.logger.Info("session opened",
		slog.Int("sample_rate", e.config.sampleRate),
		slog.Int("channels", e.config.channels))
	return nil
}

// BeginCapture starts recording. The first completed capture becomes
// the master loop; captures while one is already active are no-ops.
func (e *Engine) BeginCapture(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec.active || e.rec.finishing {
		e.logger.Debug("capture already active")
		return nil
	}
	if err := e.openLocked(ctx); err != nil {
		return err
	}

	c, err := e.stream.Begin()
	if err != nil {
		return e.report(fmt.Errorf("%w: %v", ErrCaptureInit, err))
	}

	now := e.clock.Now()
	offset := 0.0
	if e.playing && e.master != nil {
		offset = math.Mod(now-e.loopStart, e.master.Duration())
	}

	e.rec = recordingState{
		active:    true,
		capture:   c,
		startTime: now,
		offset:    offset,
		master:    e.master == nil,
	}
	if e.rec.master {
		// a master capture still running at the deadline is force-stopped
		e.rec.timer = time.AfterFunc(e.config.maxLoopLength, func() {
			e.logger.Debug("max loop length reached, stopping capture")
			if err := e.EndCapture(context.Background()); err != nil {
				e.logger.Error("auto-stop failed", slog.Any("err", err))
			}
		})
	}

	e.logger.Debug("capture started",
		slog.Bool("master", e.rec.master),
		slog.Float64("offset", offset))
	e.setState(StateRecording)
	return nil
}

// EndCapture stops the active recording, waits for the device to flush,
// decodes the bytes and commits either the master loop or a new layer.
// Once it returns, exactly one of {master set, layer appended, error
// reported} has happened. Without an active recording it is a no-op.
func (e *Engine) EndCapture(ctx context.Context) error {
	e.mu.Lock()
	if !e.rec.active {
		e.mu.Unlock()
		return nil
	}
	rec := e.rec
	if rec.timer != nil {
		rec.timer.Stop()
	}
	epoch := e.epoch
	e.rec.active = false
	e.rec.finishing = true
	e.mu.Unlock()

	// Suspension point: no lock held while the device flushes and the
	// bytes decode. The finishing flag keeps a second capture from
	// starting in the meantime.
	var (
		buf *pcm.Buffer
		err error
	)
	data, endErr := rec.capture.End(ctx)
	if endErr != nil {
		err = fmt.Errorf("%w: %v", ErrCaptureEnd, endErr)
	} else {
		buf, err = e.config.decoder.Decode(data)
		if err == nil && buf.Frames() == 0 {
			err = fmt.Errorf("decoded buffer is empty")
		}
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if epoch != e.epoch {
		// the session was cleared while this capture was flushing; its
		// recording slot is gone and may already belong to a new capture
		e.logger.Debug("discarding capture from cleared session")
		return nil
	}
	e.rec = recordingState{}

	if err != nil {
		e.setState(e.restState())
		return e.report(err)
	}

	if rec.master {
		e.commitMasterLocked(buf, rec.startTime)
		return nil
	}
	return e.commitLayerLocked(buf, rec.offset)
}

// commitMasterLocked fixes the loop length for the session and starts
// playback. The decoded buffer's own duration is authoritative; the
// clock elapsed time is only a sanity bound, clamped to the maximum.
func (e *Engine) commitMasterLocked(buf *pcm.Buffer, startTime float64) {
	elapsed := e.clock.Now() - startTime
	maxSeconds := e.config.maxLoopLength.Seconds()
	if elapsed > maxSeconds {
		elapsed = maxSeconds
	}
	buf.Truncate(int(maxSeconds * float64(buf.SampleRate())))

	e.master = buf
	e.logger.Info("master loop recorded",
		slog.Float64("duration", buf.Duration()),
		slog.Float64("clock_elapsed", elapsed))
	e.playLocked()
}

func (e *Engine) commitLayerLocked(buf *pcm.Buffer, offset float64) error {
	buf = resampleBuffer(buf, e.master.SampleRate())
	layer := newLayer(alignOverdub(e.master, buf, offset))
	e.layers.push(layer)
	e.logger.Info("layer recorded",
		slog.String("layer", layer.ID),
		slog.Float64("offset", offset),
		slog.Int("layers", e.layers.len()))

	if !e.playing {
		e.setState(StateStopped)
		return nil
	}

	// An overdub completing mid-playback joins at the current phase
	// without restarting the already audible layers.
	phase := math.Mod(e.clock.Now()-e.loopStart, e.master.Duration())
	unit := newUnit(layer.ID, layer.Buffer, phase)
	if err := e.output.Start(unit); err != nil {
		return e.report(fmt.Errorf("start layer playback: %w", err))
	}
	e.units[layer.ID] = unit
	e.setState(StatePlaying)
	return nil
}

// Play starts synchronized looping playback of the master and every
// layer from a shared clock origin. Already playing: stop first and
// restart. No master loop: no-op.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playLocked()
}

func (e *Engine) playLocked() {
	if e.master == nil {
		return
	}
	if e.playing {
		e.stopUnitsLocked()
	}

	units := make([]*Unit, 0, 1+e.layers.len())
	units = append(units, newUnit(masterLayerID, e.master, 0))
	for _, l := range e.layers.all() {
		units = append(units, newUnit(l.ID, l.Buffer, 0))
	}

	e.loopStart = e.clock.Now()
	if err := e.output.Start(units...); err != nil {
		e.report(fmt.Errorf("start playback: %w", err))
		return
	}

	e.units = make(map[string]*Unit, len(units))
	for _, u := range units {
		e.units[u.LayerID] = u
	}
	e.playing = true
	e.progressGen++
	go e.progressLoop(e.progressGen)

	e.logger.Debug("playback started",
		slog.Float64("loop_start", e.loopStart),
		slog.Int("units", len(units)))
	e.setState(StatePlaying)
}

// Stop halts every active playback unit. Units that already finished
// are ignored.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.playing {
		return
	}
	e.stopUnitsLocked()
	e.setState(StateStopped)
}

func (e *Engine) TogglePlay() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playing {
		e.stopUnitsLocked()
		e.setState(StateStopped)
		return
	}
	e.playLocked()
}

func (e *Engine) stopUnitsLocked() {
	for _, u := range e.units {
		u.Stop()
	}
	e.units = map[string]*Unit{}
	e.playing = false
}

// Undo removes the most recent layer. With no layers left it clears the
// master loop instead, returning the session to READY.
func (e *Engine) Undo() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if l, ok := e.layers.pop(); ok {
		e.logger.Info("layer removed", slog.String("layer", l.ID))
		if e.playing {
			// keep all audible layers phase-consistent: full restart
			e.playLocked()
			return
		}
		e.setState(e.restState())
		return
	}

	if e.master != nil {
		e.logger.Info("master loop removed")
		e.stopUnitsLocked()
		e.master = nil
		e.setState(StateReady)
	}
}

// Clear wipes the layers and the master loop and returns to READY. The
// device connection stays open.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec.timer != nil {
		e.rec.timer.Stop()
	}
	if e.rec.active {
		// stop the in-flight capture so the device flushes and releases
		// the input; the bytes are discarded
		c := e.rec.capture
		go func() {
			if _, err := c.End(context.Background()); err != nil {
				e.logger.Debug("discarded capture end failed", slog.Any("err", err))
			}
		}()
	}
	e.rec = recordingState{}
	e.epoch++

	e.stopUnitsLocked()
	e.layers.clear()
	e.master = nil
	e.logger.Info("session cleared")
	e.setState(StateReady)
}

// progressLoop reports the loop phase until the active flag or the
// generation says otherwise. Cancellation is just that check.
func (e *Engine) progressLoop(gen int) {
	ticker := time.NewTicker(e.config.progressInterval)
	defer ticker.Stop()

	for range ticker.C {
		e.mu.Lock()
		if !e.playing || e.progressGen != gen {
			e.mu.Unlock()
			return
		}
		duration := e.master.Duration()
		phase := math.Mod(e.clock.Now()-e.loopStart, duration) / duration
		cb := e.onProgress
		e.mu.Unlock()

		if cb != nil {
			cb(phase)
		}
	}
}

func (e *Engine) restState() State {
	switch {
	case e.master == nil:
		return StateReady
	case e.playing:
		return StatePlaying
	default:
		return StateStopped
	}
}

func (e *Engine) setState(s State) {
	e.state = s
	if e.onState != nil {
		duration := 0.0
		if e.master != nil {
			duration = e.master.Duration()
		}
		e.onState(Status{State: s, Layers: e.layers.len(), Duration: duration})
	}
}

func (e *Engine) report(err error) error {
	e.logger.Error("action failed", slog.Any("err", err))
	if e.onError != nil {
		e.onError(err)
	}
	return err
}

// State returns the current session state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LayerCount is the number of overdub layers on the stack.
func (e *Engine) LayerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.layers.len()
}

// LoopDuration is the master loop length in seconds, 0 without one.
func (e *Engine) LoopDuration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.master == nil {
		return 0
	}
	return e.master.Duration()
}
