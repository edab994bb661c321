package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	looper "github.com/codewandler/looper-go"
	"github.com/codewandler/looper-go/capture"
	"github.com/codewandler/looper-go/events"
	"github.com/codewandler/looper-go/wav"
)

type testClock struct {
	t atomic.Int64 // milliseconds
}

func (c *testClock) Now() float64 {
	return float64(c.t.Load()) / 1000
}

type nullOutput struct {
	clock *testClock
}

func (o *nullOutput) Clock() looper.Clock { return o.clock }

func (o *nullOutput) Start(units ...*looper.Unit) error { return nil }

func newTestEngine(t *testing.T) (*looper.Engine, *capture.StaticDevice) {
	t.Helper()
	device := capture.NewStaticDevice()
	e := looper.New(
		looper.WithDevice(device),
		looper.WithOutput(&nullOutput{clock: &testClock{}}),
		looper.WithSampleRate(100),
		looper.WithProgressInterval(time.Hour), // keep progress quiet
	)
	require.NoError(t, e.Open(context.Background()))
	return e, device
}

func dial(t *testing.T, url string) net.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(url, "http"))
	require.NoError(t, err)
	return conn
}

func sendCommand(t *testing.T, conn net.Conn, cmd string) {
	t.Helper()
	data, err := json.Marshal(events.NewCommandEvent(cmd))
	require.NoError(t, err)
	require.NoError(t, wsutil.WriteClientMessage(conn, ws.OpText, data))
}

func readEvent[T any](t *testing.T, conn net.Conn, eventType string) *T {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, op, err := wsutil.ReadServerData(conn)
		require.NoError(t, err)
		if op != ws.OpText {
			continue
		}
		var base events.BaseEvent
		require.NoError(t, json.Unmarshal(data, &base))
		if base.Type != eventType {
			continue
		}
		evt, err := events.Parse[T](data)
		require.NoError(t, err)
		return evt
	}
	t.Fatalf("no %s event received", eventType)
	return nil
}

func TestBridgeRoundTrip(t *testing.T) {
	engine, device := newTestEngine(t)
	srv := New(engine, slog.New(slog.DiscardHandler))

	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	conn := dial(t, httpSrv.URL)
	defer conn.Close()

	// queue a 1 s master recording
	var buf bytes.Buffer
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = 0.4
	}
	require.NoError(t, wav.Encode(&buf, samples, 1, 100))
	device.Queue(buf.Bytes())

	sendCommand(t, conn, events.CmdRecordStart)
	state := readEvent[events.StateEvent](t, conn, events.TypeState)
	assert.Equal(t, string(looper.StateRecording), state.State)

	sendCommand(t, conn, events.CmdRecordStop)
	state = readEvent[events.StateEvent](t, conn, events.TypeState)
	assert.Equal(t, string(looper.StatePlaying), state.State, "master commit starts playback")
	assert.InDelta(t, 1.0, state.LoopLength, 1e-9)

	sendCommand(t, conn, events.CmdExport)
	export := readEvent[events.ExportEvent](t, conn, events.TypeExport)
	assert.Equal(t, 44+100*2*2, export.Bytes, "stereo WAV of the loop")

	sendCommand(t, conn, events.CmdClear)
	state = readEvent[events.StateEvent](t, conn, events.TypeState)
	assert.Equal(t, string(looper.StateReady), state.State)
}

func TestBridgeReportsErrors(t *testing.T) {
	engine, _ := newTestEngine(t)
	srv := New(engine, slog.New(slog.DiscardHandler))

	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	conn := dial(t, httpSrv.URL)
	defer conn.Close()

	sendCommand(t, conn, events.CmdExport)
	evt := readEvent[events.ErrorEvent](t, conn, events.TypeError)
	assert.Equal(t, "export_precondition", evt.Code)
}
