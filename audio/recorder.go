package audio

import (
	"sync"
	"sync/atomic"
	"time"
)

// Recorder accumulates one recording at a time from a CaptureDevice.
//
// Start and Stop may be called from any goroutine. The capture callback only
// touches the sample buffer, which has its own lock, so a callback in flight
// never blocks on Stop.
type Recorder struct {
	dev        CaptureDevice
	sampleRate int

	mu        sync.Mutex
	recording atomic.Bool
	gen       uint64
	timer     *time.Timer
	onAuto    func(Buffer)
	onLevel   func(float64)

	bufMu     sync.Mutex
	accepting bool
	pcm       []int16
}

func NewRecorder(dev CaptureDevice, sampleRate int) *Recorder {
	return &Recorder{dev: dev, sampleRate: sampleRate}
}

// OnAutoStop registers fn to receive the buffer when a recording is ended by
// its max duration rather than by Stop. fn runs on the timer goroutine.
func (r *Recorder) OnAutoStop(fn func(Buffer)) {
	r.mu.Lock()
	r.onAuto = fn
	r.mu.Unlock()
}

// OnLevel registers fn to receive the RMS level of each captured chunk.
func (r *Recorder) OnLevel(fn func(float64)) {
	r.mu.Lock()
	r.onLevel = fn
	r.mu.Unlock()
}

func (r *Recorder) SampleRate() int { return r.sampleRate }

func (r *Recorder) IsRecording() bool { return r.recording.Load() }

// Start begins capturing. A maxDuration of zero disables the auto-stop timer.
func (r *Recorder) Start(maxDuration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording.Load() {
		return ErrAlreadyRecording
	}

	r.bufMu.Lock()
	r.pcm = nil
	r.accepting = true
	r.bufMu.Unlock()

	level := r.onLevel
	r.dev.SetCallback(func(data []byte, _ uint32) {
		if len(data) == 0 {
			return
		}
		r.bufMu.Lock()
		if !r.accepting {
			r.bufMu.Unlock()
			return
		}
		r.pcm = append(r.pcm, DecodePCM16(data)...)
		r.bufMu.Unlock()
		if level != nil {
			level(RMS(data))
		}
	})

	if err := r.dev.Start(); err != nil {
		r.dev.ClearCallback()
		r.bufMu.Lock()
		r.accepting = false
		r.bufMu.Unlock()
		return &DeviceError{Op: "start", Err: err}
	}

	r.gen++
	r.recording.Store(true)
	if maxDuration > 0 {
		gen := r.gen
		r.timer = time.AfterFunc(maxDuration, func() { r.expire(gen) })
	}
	return nil
}

// Stop ends the recording and hands over its samples. The caller owns the
// returned buffer.
//
// Stop waits for the device to release its stream: one PulseAudio round
// trip, or miniaudio draining its last period. Chunks delivered during that
// wait are kept.
func (r *Recorder) Stop() (Buffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked()
}

func (r *Recorder) stopLocked() (Buffer, error) {
	if !r.recording.Load() {
		return Buffer{}, ErrNotRecording
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}

	r.dev.Stop()
	r.dev.ClearCallback()

	r.bufMu.Lock()
	r.accepting = false
	pcm := r.pcm
	r.pcm = nil
	r.bufMu.Unlock()

	r.recording.Store(false)
	return Buffer{Samples: ToFloat32(pcm), SampleRate: r.sampleRate}, nil
}

// expire is the max-duration path. It goes through the same stopLocked as
// Stop, so whichever of the two runs second sees ErrNotRecording.
func (r *Recorder) expire(gen uint64) {
	r.mu.Lock()
	if r.gen != gen {
		r.mu.Unlock()
		return
	}
	buf, err := r.stopLocked()
	fn := r.onAuto
	r.mu.Unlock()

	if err == nil && fn != nil {
		fn(buf)
	}
}
