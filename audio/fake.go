package audio

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext hands out captures that replay fixed PCM instead of a mic.
type FakeContext struct {
	pcm        []byte
	realtime   bool
	sampleRate int
}

// NewFakeContext replays the PCM payload of a 16-bit mono WAV file.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) < WAVHeaderSize {
		return nil, fmt.Errorf("%s: too short for a WAV file", wavPath)
	}
	return &FakeContext{pcm: data[WAVHeaderSize:], realtime: realtime, sampleRate: 16000}, nil
}

func NewFakeContextPCM(pcm []int16, sampleRate int, realtime bool) *FakeContext {
	return &FakeContext{pcm: EncodePCM16(pcm), realtime: realtime, sampleRate: sampleRate}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	rate := f.sampleRate
	if config.SampleRate != 0 {
		rate = int(config.SampleRate)
	}
	return NewFakeCapture(f.pcm, rate, f.realtime), nil
}

// FakeCapture feeds its PCM to the callback on Start. In realtime mode the
// PCM is paced at the sample rate and followed by silence until Stop, like
// an open mic; otherwise it is delivered synchronously inside Start.
type FakeCapture struct {
	pcm        []byte
	realtime   bool
	sampleRate int

	// StartErr, if set, is returned by Start to simulate a missing device.
	StartErr error

	mu        sync.Mutex
	cb        DataCallback
	stopCh    chan struct{}
	feedDone  chan struct{}
	audioDone chan struct{}
	starts    int
	stops     int
}

func NewFakeCapture(pcm []byte, sampleRate int, realtime bool) *FakeCapture {
	return &FakeCapture{
		pcm:        pcm,
		realtime:   realtime,
		sampleRate: sampleRate,
		audioDone:  make(chan struct{}),
	}
}

// AudioDone is closed once the whole PCM payload has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audioDone
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

// Starts and Stops count calls, for tests that check pairing.
func (f *FakeCapture) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *FakeCapture) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// Push delivers samples to the current callback as if captured now.
func (f *FakeCapture) Push(samples []int16) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(EncodePCM16(samples), uint32(len(samples)))
	}
}

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	return end
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	if f.StartErr != nil {
		f.mu.Unlock()
		return f.StartErr
	}
	f.starts++
	stopCh := make(chan struct{})
	feedDone := make(chan struct{})
	audioDone := f.audioDone
	f.stopCh, f.feedDone = stopCh, feedDone
	f.mu.Unlock()

	chunkBytes := fakeFrameSize * fakeBytesPerFrame

	if !f.realtime {
		if cb := f.callback(); cb != nil {
			for pos := 0; pos < len(f.pcm); {
				pos = f.feedChunk(cb, pos, chunkBytes)
			}
		}
		close(audioDone)
		close(feedDone)
		return nil
	}

	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(f.sampleRate)
	go func() {
		defer close(feedDone)
		pos := 0
		silence := make([]byte, chunkBytes)
		audioFinished := false
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if cb := f.callback(); cb != nil {
				if pos < len(f.pcm) {
					pos = f.feedChunk(cb, pos, chunkBytes)
				} else {
					cb(silence, fakeFrameSize)
				}
			}
			if pos >= len(f.pcm) && !audioFinished {
				audioFinished = true
				close(audioDone)
			}

			select {
			case <-stopCh:
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	stopCh, feedDone := f.stopCh, f.feedDone
	f.stopCh, f.feedDone = nil, nil
	if stopCh != nil {
		f.stops++
	}
	f.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-feedDone

	f.mu.Lock()
	select {
	case <-f.audioDone:
		f.audioDone = make(chan struct{}) // reset for replay
	default:
	}
	f.mu.Unlock()
}

func (f *FakeCapture) Close() { f.Stop() }
