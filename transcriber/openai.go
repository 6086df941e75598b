package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"dictate/audio"
	"dictate/encoder"
	"dictate/log"
)

const (
	groqBaseURL      = "https://api.groq.com/openai/v1/"
	groqDefaultModel = "whisper-large-v3-turbo"
	openAIModel      = "whisper-1"
)

// API talks to an OpenAI-compatible /audio/transcriptions endpoint. Groq
// serves the same API under its own base URL.
type API struct {
	name   string
	model  string
	format string
	client openai.Client
	trace  *tracedTransport
}

func newAPI(name, model string, opts Options, extra ...option.RequestOption) *API {
	if opts.Model != "" {
		model = opts.Model
	}
	httpClient, trace := newTracedClient()
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(1),
	}
	reqOpts = append(reqOpts, extra...)
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &API{
		name:   name,
		model:  model,
		format: opts.Format,
		client: openai.NewClient(reqOpts...),
		trace:  trace,
	}
}

func NewGroq(opts Options) *API {
	return newAPI(BackendGroq, groqDefaultModel, opts, option.WithBaseURL(groqBaseURL))
}

func NewOpenAI(opts Options) *API {
	return newAPI(BackendOpenAI, openAIModel, opts)
}

func (a *API) Name() string { return a.name }

func (a *API) Model() string { return a.model }

func (a *API) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (string, error) {
	if err := CheckLanguage(language, a.model); err != nil {
		return "", &Error{Backend: a.name, Err: err}
	}

	data, mime, err := encoder.Encode(a.format, audio.ToPCM16(samples), sampleRate)
	if err != nil {
		return "", &Error{Backend: a.name, Err: fmt.Errorf("encode: %w", err)}
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(data), "audio."+encoder.Ext(a.format), mime),
		Model: openai.AudioModel(a.model),
	}
	if language != "" {
		params.Language = openai.String(language)
	}

	resp, err := a.client.Audio.Transcriptions.New(ctx, params)
	if m := a.trace.Last(); m != nil {
		log.Infof("%s request: %d bytes, ttfb=%s total=%s reused=%t tls=%s requests=%s",
			a.name, len(data), m.TTFB, m.Total, m.ConnReused, m.TLSProtocol, m.RateLimit)
	}
	if err != nil {
		return "", &Error{Backend: a.name, Err: err}
	}
	return strings.TrimSpace(resp.Text), nil
}
