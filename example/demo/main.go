package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gordonklaus/portaudio"
	nanoid "github.com/matoous/go-nanoid/v2"

	looper "github.com/codewandler/looper-go"
	"github.com/codewandler/looper-go/bridge"
)

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		addr       = ""
		debug      = false
		sampleRate = 44_100
		maxLoopSec = 10
	)

	flag.StringVar(&addr, "addr", addr, "serve the websocket control bridge on this address (empty = off)")
	flag.IntVar(&sampleRate, "sample-rate", sampleRate, "capture/playback sample rate")
	flag.IntVar(&maxLoopSec, "max-loop", maxLoopSec, "maximum master loop length in seconds")
	flag.BoolVar(&debug, "debug", false, "enable debug logs")
	flag.Parse()

	slog.SetLogLoggerLevel(slog.LevelError)
	if debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	must(portaudio.Initialize())
	defer portaudio.Terminate()

	engine := looper.New(
		looper.WithDefaultLogger(),
		looper.WithDevice(portaudioDevice{}),
		looper.WithSampleRate(sampleRate),
		looper.WithMaxLoopLength(time.Duration(maxLoopSec)*time.Second),
	)

	engine.OnState(func(s looper.Status) {
		fmt.Printf("\r[%s] layers=%d loop=%.2fs\n> ", s.State, s.Layers, s.Duration)
	})
	engine.OnError(func(err error) {
		fmt.Printf("\rerror: %v\n> ", err)
	})

	must(engine.Open(ctx))

	if addr != "" {
		srv := bridge.New(engine, slog.Default())
		mux := http.NewServeMux()
		mux.Handle("/ws", srv.Handler())
		go func() {
			slog.Info("control bridge listening", slog.String("addr", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				slog.Error("bridge server failed", slog.Any("err", err))
			}
		}()
	}

	fmt.Println("commands: rec | stop | play | undo | clear | export | quit")
	fmt.Print("> ")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch scanner.Text() {
		case "rec":
			if err := engine.BeginCapture(ctx); err == nil {
				fmt.Println("recording...")
			}
		case "stop":
			_ = engine.EndCapture(ctx)
		case "play":
			engine.TogglePlay()
		case "undo":
			engine.Undo()
		case "clear":
			engine.Clear()
		case "export":
			data, err := engine.ExportMix()
			if err != nil {
				break
			}
			id, _ := nanoid.New()
			name := fmt.Sprintf("loop-%s.wav", id)
			if err := os.WriteFile(name, data, 0o644); err != nil {
				fmt.Println("write failed:", err)
				break
			}
			fmt.Println("exported", name)
		case "quit", "q":
			engine.Stop()
			return
		case "":
		default:
			fmt.Println("unknown command")
		}
		fmt.Print("> ")
	}
}
