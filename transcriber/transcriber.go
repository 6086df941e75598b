// Package transcriber turns recorded samples into text.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

// Error is returned by every backend so callers can tell a failed
// transcription apart from other failures.
type Error struct {
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcription failed (%s): %v", e.Backend, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (string, error)
}

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
	RateLimit   string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

const (
	BackendGroq       = "groq"
	BackendOpenAI     = "openai"
	BackendWhisperCpp = "whispercpp"
)

type Options struct {
	Backend string
	APIKey  string
	Model   string // model name, or model file for whispercpp
	Format  string // upload encoding for API backends
	BaseURL string // overrides the API endpoint
	BinPath string // whisper.cpp binary, found on PATH if empty
}

// New builds the configured backend.
func New(opts Options) (Transcriber, error) {
	switch opts.Backend {
	case BackendGroq, "":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("groq backend needs an API key (set GROQ_API_KEY)")
		}
		return NewGroq(opts), nil
	case BackendOpenAI:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai backend needs an API key (set OPENAI_API_KEY)")
		}
		return NewOpenAI(opts), nil
	case BackendWhisperCpp:
		return NewWhisperCpp(opts)
	default:
		return nil, fmt.Errorf("unknown transcriber backend %q", opts.Backend)
	}
}

// Wrap tags err with the backend name unless it already carries one.
func Wrap(backend string, err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Backend: backend, Err: err}
}
