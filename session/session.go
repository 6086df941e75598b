// Package session runs the dictation state machine: toggles start and stop
// a recording, the recording is transcribed and the text is injected.
package session

import (
	"time"

	"github.com/google/uuid"

	"dictate/audio"
)

type State int

const (
	Idle State = iota
	Recording
	Transcribing
	Injecting
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Injecting:
		return "injecting"
	case Error:
		return "error"
	}
	return "unknown"
}

// Session is one dictation from the starting toggle to the return to Idle.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time
	Deadline  time.Time // zero when recording is unlimited
	Buffer    audio.Buffer
}

// Recorder is the part of audio.Recorder the controller drives.
type Recorder interface {
	Start(maxDuration time.Duration) error
	Stop() (audio.Buffer, error)
	IsRecording() bool
	OnAutoStop(fn func(audio.Buffer))
}

// Sink observes the controller. Methods are called from the controller
// goroutine and must not block.
type Sink interface {
	StateChanged(id uuid.UUID, from, to State)
	Transcript(id uuid.UUID, text string, audio, took time.Duration)
	Error(id uuid.UUID, err error)
	Dropped(state State)
}

type NopSink struct{}

func (NopSink) StateChanged(uuid.UUID, State, State) {}
func (NopSink) Transcript(uuid.UUID, string, time.Duration, time.Duration) {}
func (NopSink) Error(uuid.UUID, error) {}
func (NopSink) Dropped(State) {}

type Options struct {
	// MaxDuration ends a recording on its own; zero means unlimited.
	MaxDuration time.Duration
	// Recordings shorter than MinDuration are discarded like empty ones.
	MinDuration time.Duration
	SampleRate  int
	Language    string

	// TranscribeTimeout bounds a single transcription call; zero means no
	// limit beyond shutdown.
	TranscribeTimeout time.Duration

	// Normalize, if set, cleans up the transcript before injection.
	Normalize func(string) string
	// SpeechGate, if set, reports whether a recording contains speech.
	// Recordings without speech are discarded.
	SpeechGate func(audio.Buffer) bool

	Sink Sink
}
