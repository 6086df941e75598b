package session

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"dictate/audio"
	"dictate/inject"
	"dictate/transcriber"
)

const rate = 16000

func tone(n int) []int16 {
	pcm := make([]int16, n)
	for i := range pcm {
		if i%2 == 0 {
			pcm[i] = 8000
		} else {
			pcm[i] = -8000
		}
	}
	return pcm
}

type testSink struct {
	mu      sync.Mutex
	states  []State
	ids     []uuid.UUID
	texts   []string
	errs    []error
	dropped []State
	changed chan State
}

func newTestSink() *testSink {
	return &testSink{changed: make(chan State, 256)}
}

func (s *testSink) StateChanged(id uuid.UUID, _, to State) {
	s.mu.Lock()
	s.states = append(s.states, to)
	s.ids = append(s.ids, id)
	s.mu.Unlock()
	s.changed <- to
}

func (s *testSink) Transcript(_ uuid.UUID, text string, _, _ time.Duration) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
}

func (s *testSink) Error(_ uuid.UUID, err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *testSink) Dropped(st State) {
	s.mu.Lock()
	s.dropped = append(s.dropped, st)
	s.mu.Unlock()
}

func (s *testSink) sequence() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]State(nil), s.states...)
}

func (s *testSink) errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func (s *testSink) transcripts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func (s *testSink) drops() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]State(nil), s.dropped...)
}

func waitFor(t *testing.T, s *testSink, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case got := <-s.changed:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s, saw %v", want, s.sequence())
		}
	}
}

func sameStates(got, want []State) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// startController runs c until the test ends and returns a func that
// cancels it and yields Run's error.
func startController(t *testing.T, c *Controller) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	var once sync.Once
	var runErr error
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case runErr = <-done:
			case <-time.After(2 * time.Second):
				t.Error("Run did not return after cancel")
			}
		})
		return runErr
	}
	t.Cleanup(func() { stop() })
	return stop
}

func newFakeRecorder(pcm []int16, realtime bool) (*audio.Recorder, *audio.FakeCapture) {
	dev := audio.NewFakeCapture(audio.EncodePCM16(pcm), rate, realtime)
	return audio.NewRecorder(dev, rate), dev
}

// countingRecorder checks that Start is never called twice without a stop
// in between.
type countingRecorder struct {
	mu        sync.Mutex
	recording bool
	starts    int
	stops     int
	overlap   bool
	buf       audio.Buffer
	auto      func(audio.Buffer)
	stopCalls chan struct{}
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		buf:       audio.Buffer{Samples: audio.ToFloat32(tone(rate)), SampleRate: rate},
		stopCalls: make(chan struct{}, 1024),
	}
}

func (r *countingRecorder) Start(time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		r.overlap = true
		return audio.ErrAlreadyRecording
	}
	r.recording = true
	r.starts++
	return nil
}

func (r *countingRecorder) Stop() (audio.Buffer, error) {
	r.mu.Lock()
	defer func() {
		r.mu.Unlock()
		r.stopCalls <- struct{}{}
	}()
	if !r.recording {
		return audio.Buffer{}, audio.ErrNotRecording
	}
	r.recording = false
	r.stops++
	return r.buf, nil
}

func (r *countingRecorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func (r *countingRecorder) OnAutoStop(fn func(audio.Buffer)) {
	r.mu.Lock()
	r.auto = fn
	r.mu.Unlock()
}

// expire ends the recording the way the max-duration timer does and returns
// a func that delivers the buffer.
func (r *countingRecorder) expire() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return func() {}
	}
	r.recording = false
	r.stops++
	fn, buf := r.auto, r.buf
	return func() { fn(buf) }
}

func TestToggleRecordTranscribeInject(t *testing.T) {
	rec, dev := newFakeRecorder(tone(2*rate), false)
	tr := transcriber.NewFake("hello world", nil)
	inj := inject.NewFake()
	sink := newTestSink()
	c := New(rec, tr, inj, Options{SampleRate: rate, Language: "en", Sink: sink})
	startController(t, c)

	c.Toggle()
	waitFor(t, sink, Recording, time.Second)
	c.Toggle()
	waitFor(t, sink, Idle, 2*time.Second)

	if got := inj.Texts(); len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("injected %q, want [hello world]", got)
	}
	calls := tr.Calls()
	if len(calls) != 1 {
		t.Fatalf("transcriber calls = %d, want 1", len(calls))
	}
	if calls[0].Samples != 2*rate || calls[0].SampleRate != rate || calls[0].Language != "en" {
		t.Errorf("call = %+v", calls[0])
	}
	want := []State{Recording, Transcribing, Injecting, Idle}
	if got := sink.sequence(); !sameStates(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
	if dev.Starts() != 1 || dev.Stops() != 1 {
		t.Errorf("device starts/stops = %d/%d", dev.Starts(), dev.Stops())
	}
	if c.State() != Idle {
		t.Errorf("final state = %s", c.State())
	}
	if _, ok := c.Current(); ok {
		t.Error("session still active after Idle")
	}
}

func TestToggleWhileTranscribingDropped(t *testing.T) {
	rec, dev := newFakeRecorder(tone(rate), false)
	tr := transcriber.NewFake("text", nil)
	tr.Delay = 300 * time.Millisecond
	inj := inject.NewFake()
	sink := newTestSink()
	c := New(rec, tr, inj, Options{Sink: sink})
	startController(t, c)

	c.Toggle()
	waitFor(t, sink, Recording, time.Second)
	c.Toggle()
	waitFor(t, sink, Transcribing, time.Second)
	c.Toggle()
	waitFor(t, sink, Idle, 2*time.Second)

	if got := sink.drops(); len(got) != 1 || got[0] != Transcribing {
		t.Errorf("dropped = %v, want [transcribing]", got)
	}
	if dev.Starts() != 1 {
		t.Errorf("recorder started %d times, want 1", dev.Starts())
	}
	if got := inj.Texts(); len(got) != 1 {
		t.Errorf("injected %d times, want 1", len(got))
	}
}

func TestTranscriberErrorReturnsToIdle(t *testing.T) {
	rec, _ := newFakeRecorder(tone(rate), false)
	tr := transcriber.NewFake("", errors.New("503 service unavailable"))
	inj := inject.NewFake()
	sink := newTestSink()
	c := New(rec, tr, inj, Options{Sink: sink})
	startController(t, c)

	c.Toggle()
	waitFor(t, sink, Recording, time.Second)
	c.Toggle()
	waitFor(t, sink, Idle, time.Second)

	errs := sink.errors()
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want one", errs)
	}
	var te *transcriber.Error
	if !errors.As(errs[0], &te) {
		t.Errorf("error %v is not a *transcriber.Error", errs[0])
	}
	if len(inj.Texts()) != 0 {
		t.Error("injector called after transcription failure")
	}
	want := []State{Recording, Transcribing, Idle}
	if got := sink.sequence(); !sameStates(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
}

func TestInjectErrorReturnsToIdle(t *testing.T) {
	rec, _ := newFakeRecorder(tone(rate), false)
	tr := transcriber.NewFake("hi", nil)
	inj := inject.NewFake()
	inj.Err = inject.ErrBackendUnavailable
	sink := newTestSink()
	c := New(rec, tr, inj, Options{Sink: sink})
	startController(t, c)

	c.Toggle()
	waitFor(t, sink, Recording, time.Second)
	c.Toggle()
	waitFor(t, sink, Idle, time.Second)

	errs := sink.errors()
	if len(errs) != 1 {
		t.Fatalf("errors = %v, want one", errs)
	}
	var ie *inject.Error
	if !errors.As(errs[0], &ie) || !errors.Is(errs[0], inject.ErrBackendUnavailable) {
		t.Errorf("error = %v", errs[0])
	}
	want := []State{Recording, Transcribing, Injecting, Idle}
	if got := sink.sequence(); !sameStates(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
}

func TestDiscardedRecordings(t *testing.T) {
	tests := []struct {
		name string
		pcm  []int16
		opts Options
	}{
		{"empty", nil, Options{}},
		{"shorter than min", tone(rate / 20), Options{MinDuration: 100 * time.Millisecond}},
		{"no speech", tone(rate), Options{SpeechGate: func(audio.Buffer) bool { return false }}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := newFakeRecorder(tt.pcm, false)
			tr := transcriber.NewFake("should not be used", nil)
			inj := inject.NewFake()
			sink := newTestSink()
			tt.opts.Sink = sink
			c := New(rec, tr, inj, tt.opts)
			startController(t, c)

			c.Toggle()
			waitFor(t, sink, Recording, time.Second)
			c.Toggle()
			waitFor(t, sink, Idle, time.Second)

			if n := len(tr.Calls()); n != 0 {
				t.Errorf("transcriber called %d times", n)
			}
			if n := len(inj.Texts()); n != 0 {
				t.Errorf("injector called %d times", n)
			}
			want := []State{Recording, Idle}
			if got := sink.sequence(); !sameStates(got, want) {
				t.Errorf("states = %v, want %v", got, want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		injected []string
		states   []State
	}{
		{"applied", "hello", []string{"HELLO"}, []State{Recording, Transcribing, Injecting, Idle}},
		{"blank skips injection", "   ", nil, []State{Recording, Transcribing, Idle}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := newFakeRecorder(tone(rate), false)
			tr := transcriber.NewFake(tt.text, nil)
			inj := inject.NewFake()
			sink := newTestSink()
			c := New(rec, tr, inj, Options{
				Sink: sink,
				Normalize: func(s string) string {
					return strings.ToUpper(strings.TrimSpace(s))
				},
			})
			startController(t, c)

			c.Toggle()
			waitFor(t, sink, Recording, time.Second)
			c.Toggle()
			waitFor(t, sink, Idle, time.Second)

			got := inj.Texts()
			if len(got) != len(tt.injected) {
				t.Fatalf("injected %q, want %q", got, tt.injected)
			}
			for i := range got {
				if got[i] != tt.injected[i] {
					t.Errorf("injected %q, want %q", got, tt.injected)
				}
			}
			if states := sink.sequence(); !sameStates(states, tt.states) {
				t.Errorf("states = %v, want %v", states, tt.states)
			}
			if len(sink.transcripts()) != 1 {
				t.Errorf("transcripts reported = %q", sink.transcripts())
			}
		})
	}
}

func TestMaxDurationAutoStops(t *testing.T) {
	rec, _ := newFakeRecorder(tone(rate), true)
	tr := transcriber.NewFake("auto", nil)
	inj := inject.NewFake()
	sink := newTestSink()
	c := New(rec, tr, inj, Options{Sink: sink, MaxDuration: 150 * time.Millisecond})
	startController(t, c)

	start := time.Now()
	c.Toggle()
	waitFor(t, sink, Recording, time.Second)
	waitFor(t, sink, Transcribing, time.Second)
	if el := time.Since(start); el < 150*time.Millisecond {
		t.Errorf("auto-stopped after %v, before max duration", el)
	}
	waitFor(t, sink, Idle, time.Second)

	if got := inj.Texts(); len(got) != 1 || got[0] != "auto" {
		t.Errorf("injected %q", got)
	}
	if rec.IsRecording() {
		t.Error("recorder still recording")
	}
}

func TestDeviceErrorPassesThroughError(t *testing.T) {
	dev := audio.NewFakeCapture(nil, rate, false)
	dev.StartErr = errors.New("no such device")
	rec := audio.NewRecorder(dev, rate)
	tr := transcriber.NewFake("x", nil)
	sink := newTestSink()
	c := New(rec, tr, inject.NewFake(), Options{Sink: sink})
	startController(t, c)

	c.Toggle()
	waitFor(t, sink, Idle, time.Second)

	want := []State{Error, Idle}
	if got := sink.sequence(); !sameStates(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
	errs := sink.errors()
	var de *audio.DeviceError
	if len(errs) != 1 || !errors.As(errs[0], &de) {
		t.Errorf("errors = %v, want one *audio.DeviceError", errs)
	}
	if c.Sessions() != 0 {
		t.Errorf("Sessions = %d after failed start", c.Sessions())
	}
}

func TestStopLosesRaceToAutoStop(t *testing.T) {
	rec := newCountingRecorder()
	tr := transcriber.NewFake("raced", nil)
	inj := inject.NewFake()
	sink := newTestSink()
	c := New(rec, tr, inj, Options{Sink: sink})
	startController(t, c)

	c.Toggle()
	waitFor(t, sink, Recording, time.Second)

	// Timer stops the recorder but its buffer has not reached the
	// controller yet when the user toggles.
	deliver := rec.expire()
	c.Toggle()
	select {
	case <-rec.stopCalls:
	case <-time.After(time.Second):
		t.Fatal("controller never called Stop")
	}
	deliver()
	waitFor(t, sink, Idle, time.Second)

	want := []State{Recording, Transcribing, Injecting, Idle}
	if got := sink.sequence(); !sameStates(got, want) {
		t.Errorf("states = %v, want %v", got, want)
	}
	if len(sink.errors()) != 0 {
		t.Errorf("benign race reported errors: %v", sink.errors())
	}
	if got := inj.Texts(); len(got) != 1 {
		t.Errorf("injected %d times, want 1", len(got))
	}
}

func TestNoOverlappingStarts(t *testing.T) {
	rec := newCountingRecorder()
	tr := transcriber.NewFake("x", nil)
	c := New(rec, tr, inject.NewFake(), Options{})
	startController(t, c)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0:
			rec.expire()()
		default:
			c.Toggle()
		}
		if rng.Intn(10) == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	time.Sleep(50 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.overlap {
		t.Error("Start called while already recording")
	}
	if rec.starts == 0 {
		t.Error("no recordings started")
	}
	if rec.stops > rec.starts {
		t.Errorf("stops %d > starts %d", rec.stops, rec.starts)
	}
}

func TestShutdownStopsRecording(t *testing.T) {
	rec, dev := newFakeRecorder(tone(rate), true)
	tr := transcriber.NewFake("x", nil)
	sink := newTestSink()
	c := New(rec, tr, inject.NewFake(), Options{Sink: sink})
	stop := startController(t, c)

	c.Toggle()
	waitFor(t, sink, Recording, time.Second)

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
	if rec.IsRecording() {
		t.Error("still recording after shutdown")
	}
	if dev.Stops() != 1 {
		t.Errorf("device stops = %d, want 1", dev.Stops())
	}
	if len(tr.Calls()) != 0 {
		t.Error("abandoned recording was transcribed")
	}
}

func TestShutdownWaitsForWorker(t *testing.T) {
	rec, _ := newFakeRecorder(tone(rate), false)
	tr := transcriber.NewFake("x", nil)
	tr.Delay = 10 * time.Second
	sink := newTestSink()
	c := New(rec, tr, inject.NewFake(), Options{Sink: sink})
	stop := startController(t, c)

	c.Toggle()
	waitFor(t, sink, Recording, time.Second)
	c.Toggle()
	waitFor(t, sink, Transcribing, time.Second)

	start := time.Now()
	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}
	if el := time.Since(start); el > time.Second {
		t.Errorf("shutdown took %v", el)
	}
}

func TestTranscribeTimeout(t *testing.T) {
	rec, _ := newFakeRecorder(tone(rate), false)
	tr := transcriber.NewFake("late", nil)
	tr.Delay = 5 * time.Second
	inj := inject.NewFake()
	sink := newTestSink()
	c := New(rec, tr, inj, Options{Sink: sink, TranscribeTimeout: 50 * time.Millisecond})
	startController(t, c)

	c.Toggle()
	waitFor(t, sink, Recording, time.Second)
	c.Toggle()
	waitFor(t, sink, Idle, time.Second)

	errs := sink.errors()
	if len(errs) != 1 || !errors.Is(errs[0], context.DeadlineExceeded) {
		t.Errorf("errors = %v, want deadline exceeded", errs)
	}
	if len(inj.Texts()) != 0 {
		t.Error("injected after timeout")
	}
}

type panicTranscriber struct{}

func (panicTranscriber) Name() string { return "panicky" }

func (panicTranscriber) Transcribe(context.Context, []float32, int, string) (string, error) {
	panic("boom")
}

func TestTranscriberPanicRecovered(t *testing.T) {
	rec, _ := newFakeRecorder(tone(rate), false)
	sink := newTestSink()
	c := New(rec, panicTranscriber{}, inject.NewFake(), Options{Sink: sink})
	startController(t, c)

	c.Toggle()
	waitFor(t, sink, Recording, time.Second)
	c.Toggle()
	waitFor(t, sink, Idle, time.Second)

	errs := sink.errors()
	var te *transcriber.Error
	if len(errs) != 1 || !errors.As(errs[0], &te) || te.Backend != "panicky" {
		t.Errorf("errors = %v", errs)
	}
}

func TestSessionsAreDistinct(t *testing.T) {
	rec, _ := newFakeRecorder(tone(rate), false)
	sink := newTestSink()
	c := New(rec, transcriber.NewFake("x", nil), inject.NewFake(), Options{
		Sink:        sink,
		MaxDuration: time.Minute,
	})
	startController(t, c)

	var ids []uuid.UUID
	for i := 0; i < 2; i++ {
		c.Toggle()
		waitFor(t, sink, Recording, time.Second)
		cur, ok := c.Current()
		if !ok {
			t.Fatal("no current session while recording")
		}
		if !cur.Deadline.Equal(cur.StartedAt.Add(time.Minute)) {
			t.Errorf("deadline %v, started %v", cur.Deadline, cur.StartedAt)
		}
		ids = append(ids, cur.ID)
		c.Toggle()
		waitFor(t, sink, Idle, time.Second)
	}
	if ids[0] == ids[1] {
		t.Error("sessions share an ID")
	}
	if c.Sessions() != 2 {
		t.Errorf("Sessions = %d, want 2", c.Sessions())
	}
}

func TestRunTwice(t *testing.T) {
	rec, _ := newFakeRecorder(nil, false)
	sink := newTestSink()
	c := New(rec, transcriber.NewFake("", nil), inject.NewFake(), Options{Sink: sink})
	startController(t, c)
	c.Toggle()
	waitFor(t, sink, Recording, time.Second)

	if err := c.Run(context.Background()); !errors.Is(err, ErrRunning) {
		t.Errorf("second Run = %v, want ErrRunning", err)
	}
}

func TestStateString(t *testing.T) {
	for st, want := range map[State]string{
		Idle: "idle", Recording: "recording", Transcribing: "transcribing",
		Injecting: "injecting", Error: "error", State(42): "unknown",
	} {
		if st.String() != want {
			t.Errorf("%d.String() = %q, want %q", st, st.String(), want)
		}
	}
}
