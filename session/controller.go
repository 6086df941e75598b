package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"dictate/audio"
	"dictate/inject"
	"dictate/log"
	"dictate/transcriber"
)

var ErrRunning = errors.New("controller already running")

const inboxSize = 32

type msgToggle struct{}

type msgAutoStop struct {
	buf audio.Buffer
}

type msgTranscribed struct {
	id   uuid.UUID
	text string
	took time.Duration
	err  error
}

type msgInjected struct {
	id  uuid.UUID
	err error
}

// Controller owns the single dictation session. Toggle may be called from
// any goroutine; everything else happens on the Run goroutine, with
// transcription and injection handed to worker goroutines that report back
// through the inbox.
type Controller struct {
	rec  Recorder
	tr   transcriber.Transcriber
	inj  inject.Injector
	opts Options

	inbox   chan any
	quit    chan struct{}
	running atomic.Bool
	wg      sync.WaitGroup
	ctx     context.Context

	mu    sync.Mutex
	state State
	cur   *Session

	sessions atomic.Int64
}

func New(rec Recorder, tr transcriber.Transcriber, inj inject.Injector, opts Options) *Controller {
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = 16000
	}
	c := &Controller{
		rec:   rec,
		tr:    tr,
		inj:   inj,
		opts:  opts,
		inbox: make(chan any, inboxSize),
		quit:  make(chan struct{}),
	}
	rec.OnAutoStop(func(buf audio.Buffer) {
		c.post(msgAutoStop{buf: buf})
	})
	return c
}

// Toggle asks the controller to start or stop recording. It never blocks;
// if the inbox is full the toggle is dropped.
func (c *Controller) Toggle() {
	select {
	case c.inbox <- msgToggle{}:
	default:
		st := c.State()
		log.Dropped(st.String())
		log.Warn("toggle dropped: inbox full")
	}
}

// post delivers an internal message unless the controller has shut down.
func (c *Controller) post(m any) {
	select {
	case c.inbox <- m:
	case <-c.quit:
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns a copy of the active session, if any.
func (c *Controller) Current() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return Session{}, false
	}
	return *c.cur, true
}

// Sessions counts recordings started since New.
func (c *Controller) Sessions() int { return int(c.sessions.Load()) }

// Run processes toggles and worker results until ctx is cancelled. On the
// way out it abandons any recording and waits for workers to finish.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	c.ctx = ctx

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case m := <-c.inbox:
			c.handle(m)
		}
	}
}

func (c *Controller) shutdown() {
	close(c.quit)
	if c.State() == Recording {
		if _, err := c.rec.Stop(); err != nil && !errors.Is(err, audio.ErrNotRecording) {
			log.Warnf("stop on shutdown: %v", err)
		}
		c.transition(Idle)
	}
	c.wg.Wait()
}

func (c *Controller) handle(m any) {
	switch m := m.(type) {
	case msgToggle:
		c.onToggle()
	case msgAutoStop:
		c.onAutoStop(m.buf)
	case msgTranscribed:
		c.onTranscribed(m)
	case msgInjected:
		c.onInjected(m)
	}
}

func (c *Controller) onToggle() {
	switch st := c.State(); st {
	case Idle:
		c.startRecording()
	case Recording:
		buf, err := c.rec.Stop()
		if errors.Is(err, audio.ErrNotRecording) {
			// The max-duration timer got there first; its buffer is
			// already on the way.
			log.Info("stop lost race with auto-stop")
			return
		}
		if err != nil {
			c.fail(err)
			return
		}
		log.Info("recording_stop")
		c.finishRecording(buf)
	default:
		log.Dropped(st.String())
		c.opts.Sink.Dropped(st)
	}
}

func (c *Controller) startRecording() {
	s := &Session{ID: uuid.New(), StartedAt: time.Now()}
	c.mu.Lock()
	c.cur = s
	c.mu.Unlock()

	if err := c.rec.Start(c.opts.MaxDuration); err != nil {
		if errors.Is(err, audio.ErrAlreadyRecording) {
			log.Warnf("start: %v", err)
			c.mu.Lock()
			c.cur = nil
			c.mu.Unlock()
			return
		}
		c.fail(err)
		return
	}
	if c.opts.MaxDuration > 0 {
		c.mu.Lock()
		s.Deadline = s.StartedAt.Add(c.opts.MaxDuration)
		c.mu.Unlock()
	}
	c.sessions.Add(1)
	log.SessionStart(s.ID.String(), c.opts.MaxDuration)
	c.transition(Recording)
}

func (c *Controller) onAutoStop(buf audio.Buffer) {
	if st := c.State(); st != Recording {
		log.Warnf("auto-stop buffer discarded in state %s", st)
		return
	}
	log.Info("recording_auto_stop")
	c.finishRecording(buf)
}

func (c *Controller) finishRecording(buf audio.Buffer) {
	if reason := c.discardReason(buf); reason != "" {
		log.Info(reason)
		c.transition(Idle)
		return
	}

	c.mu.Lock()
	c.cur.Buffer = buf
	id := c.cur.ID
	c.mu.Unlock()

	c.transition(Transcribing)
	c.wg.Add(1)
	go c.transcribe(id, buf)
}

func (c *Controller) discardReason(buf audio.Buffer) string {
	switch {
	case buf.Empty():
		return "empty_recording"
	case buf.Duration() < c.opts.MinDuration:
		return "short_recording"
	case c.opts.SpeechGate != nil && !c.opts.SpeechGate(buf):
		return "no_speech"
	}
	return ""
}

func (c *Controller) transcribe(id uuid.UUID, buf audio.Buffer) {
	defer c.wg.Done()

	ctx := c.ctx
	if c.opts.TranscribeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.TranscribeTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.callTranscriber(ctx, buf)
	c.post(msgTranscribed{id: id, text: text, took: time.Since(start), err: err})
}

func (c *Controller) callTranscriber(ctx context.Context, buf audio.Buffer) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = transcriber.Wrap(c.tr.Name(), fmt.Errorf("panic: %v", r))
		}
	}()
	text, err = c.tr.Transcribe(ctx, buf.Samples, buf.SampleRate, c.opts.Language)
	return text, transcriber.Wrap(c.tr.Name(), err)
}

func (c *Controller) onTranscribed(m msgTranscribed) {
	cur, ok := c.Current()
	if !ok || cur.ID != m.id || c.State() != Transcribing {
		log.Warnf("stale transcription result for %s", m.id)
		return
	}

	// The buffer belongs to the worker once handed over.
	c.mu.Lock()
	c.cur.Buffer = audio.Buffer{}
	c.mu.Unlock()

	if m.err != nil {
		log.Errorf("transcription error: %v", m.err)
		c.opts.Sink.Error(m.id, m.err)
		c.transition(Idle)
		return
	}

	text := m.text
	if c.opts.Normalize != nil {
		text = c.opts.Normalize(text)
	}
	dur := cur.Buffer.Duration()
	log.Transcript(m.id.String(), c.tr.Name(), dur, m.took, len(text))
	c.opts.Sink.Transcript(m.id, text, dur, m.took)

	if text == "" {
		log.Info("no text transcribed")
		c.transition(Idle)
		return
	}
	log.TranscriptionText(text)

	c.transition(Injecting)
	c.wg.Add(1)
	go c.inject(m.id, text)
}

func (c *Controller) inject(id uuid.UUID, text string) {
	defer c.wg.Done()
	c.post(msgInjected{id: id, err: c.callInjector(text)})
}

func (c *Controller) callInjector(text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = inject.Wrap(c.inj.Name(), fmt.Errorf("panic: %v", r))
		}
	}()
	return inject.Wrap(c.inj.Name(), c.inj.Inject(c.ctx, text))
}

func (c *Controller) onInjected(m msgInjected) {
	cur, ok := c.Current()
	if !ok || cur.ID != m.id || c.State() != Injecting {
		log.Warnf("stale injection result for %s", m.id)
		return
	}
	if m.err != nil {
		log.Errorf("injection error: %v", m.err)
		c.opts.Sink.Error(m.id, m.err)
	}
	c.transition(Idle)
}

// fail reports a device failure and passes through Error back to Idle.
func (c *Controller) fail(err error) {
	id := uuid.Nil
	if cur, ok := c.Current(); ok {
		id = cur.ID
	}
	log.Errorf("recording error: %v", err)
	c.transition(Error)
	c.opts.Sink.Error(id, err)
	c.transition(Idle)
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	id := uuid.Nil
	if c.cur != nil {
		id = c.cur.ID
	}
	if to == Idle {
		c.cur = nil
	}
	c.mu.Unlock()

	log.State(id.String(), from.String(), to.String())
	c.opts.Sink.StateChanged(id, from, to)
}
