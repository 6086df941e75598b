package transcriber

import (
	"context"
	"sync"
	"time"
)

// Fake returns a fixed text, optionally after a delay, and records calls.
type Fake struct {
	Text  string
	Err   error
	Delay time.Duration

	mu    sync.Mutex
	calls []FakeCall
}

type FakeCall struct {
	Samples    int
	SampleRate int
	Language   string
}

func NewFake(text string, err error) *Fake {
	return &Fake{Text: text, Err: err}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Transcribe(ctx context.Context, samples []float32, sampleRate int, lang string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Samples: len(samples), SampleRate: sampleRate, Language: lang})
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", &Error{Backend: "fake", Err: ctx.Err()}
		}
	}
	if f.Err != nil {
		return "", &Error{Backend: "fake", Err: f.Err}
	}
	return f.Text, nil
}

func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
