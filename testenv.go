package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"dictate/audio"
	"dictate/config"
	"dictate/log"
	"dictate/platform"
	"dictate/session"
)

// idleSink signals each return to Idle so the WAIT command can block on it.
type idleSink struct {
	session.Sink
	idle chan struct{}
}

func (s idleSink) StateChanged(id uuid.UUID, from, to session.State) {
	s.Sink.StateChanged(id, from, to)
	if to == session.Idle && from != session.Idle {
		select {
		case s.idle <- struct{}{}:
		default:
		}
	}
}

// runTestMode replays wavPath as the microphone and drives the controller
// from stdin commands:
//
//	TOGGLE           press the hotkey
//	WAIT             block until the session is back to idle
//	WAIT_AUDIO_DONE  block until the whole WAV has been captured
//	SLEEP <ms>
//	QUIT
func runTestMode(cfg *config.Config, info platform.Info, wavPath string) int {
	fakeCtx, err := audio.NewFakeContext(wavPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		return 1
	}
	capture, err := fakeCtx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: uint32(cfg.Recording.SampleRate),
		Channels:   1,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating capture: %v\n", err)
		return 1
	}
	defer capture.Close()
	fake := capture.(*audio.FakeCapture)

	sink := idleSink{Sink: printSink{}, idle: make(chan struct{}, 1)}
	a, err := newApp(cfg, capture, info, sink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	log.AppStart("stdin", a.tr.Name(), a.inj.Name())

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		logRunExit(a.ctrl.Run(ctx))
	}()

	driveTest(os.Stdin, a.ctrl, sink.idle, fake.AudioDone)

	cancel()
	<-runDone
	log.AppEnd(a.ctrl.Sessions())
	return 0
}

// driveTest executes commands from r until QUIT or end of input.
func driveTest(r io.Reader, ctrl interface{ Toggle() }, idle <-chan struct{}, audioDone func() <-chan struct{}) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "TOGGLE":
			ctrl.Toggle()
		case cmd == "WAIT":
			<-idle
		case cmd == "WAIT_AUDIO_DONE":
			<-audioDone()
		case cmd == "QUIT":
			return
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(strings.TrimSpace(cmd[6:])); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		case cmd == "":
		default:
			log.Warnf("test mode: unknown command %q", cmd)
		}
	}
}
