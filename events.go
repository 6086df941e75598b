package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"dictate/beep"
	"dictate/session"
)

// uiSink turns controller events into cue tones and TUI updates. In
// headless mode send is nil and only the tones remain.
type uiSink struct {
	send func(any)
}

// tuiSink posts to the running bubbletea program. tea.Msg is its own
// interface type, so tuiSend is wrapped rather than assigned.
func tuiSink() uiSink {
	return uiSink{send: func(msg any) { tuiSend(msg) }}
}

func (s uiSink) post(msg any) {
	if s.send != nil {
		s.send(msg)
	}
}

func (s uiSink) StateChanged(_ uuid.UUID, from, to session.State) {
	switch {
	case to == session.Recording:
		beep.Play(beep.Start)
	case from == session.Recording && to != session.Error:
		beep.Play(beep.Stop)
	}
	s.post(stateMsg{from: from, to: to, at: time.Now()})
}

func (s uiSink) Transcript(_ uuid.UUID, text string, audio, took time.Duration) {
	s.post(transcriptMsg{text: text, audio: audio, took: took})
}

func (s uiSink) Error(_ uuid.UUID, err error) {
	beep.Play(beep.Failure)
	s.post(errorMsg{err: err})
}

func (s uiSink) Dropped(state session.State) {
	s.post(droppedMsg{state: state})
}

// printSink reports to stdout when there is no TUI.
type printSink struct {
	uiSink
}

func (s printSink) Transcript(id uuid.UUID, text string, audio, took time.Duration) {
	if text == "" {
		fmt.Printf("(no speech, %.1fs audio)\n", audio.Seconds())
		return
	}
	fmt.Printf("%s\n", text)
}

func (s printSink) Error(id uuid.UUID, err error) {
	s.uiSink.Error(id, err)
	fmt.Printf("error: %v\n", err)
}
