// Package vad detects speech in 16-bit PCM with the WebRTC voice activity
// detector.
package vad

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"dictate/audio"
)

const (
	mode     = 3
	frameMs  = 20
	debounce = 3 // consecutive speech frames to confirm voice
)

type Processor struct {
	vad        *webrtcvad.VAD
	rate       int
	frameBytes int

	mu            sync.Mutex
	buf           []byte
	voiceDetected bool
	speechRun     int
	totalFrames   int
	speechFrames  int
}

// New returns a processor for the given sample rate, which must be one the
// WebRTC VAD supports: 8, 16, 32 or 48 kHz.
func New(rate int) (*Processor, error) {
	switch rate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("vad: unsupported sample rate %d", rate)
	}
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(mode); err != nil {
		return nil, err
	}
	return &Processor{vad: v, rate: rate, frameBytes: rate * frameMs / 1000 * 2}, nil
}

// Process consumes little-endian PCM. Chunks need not align with frames.
func (p *Processor) Process(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, data...)
	for len(p.buf) >= p.frameBytes {
		frame := p.buf[:p.frameBytes]
		p.buf = p.buf[p.frameBytes:]

		active, err := p.vad.Process(p.rate, frame)
		if err != nil {
			continue
		}
		p.totalFrames++
		if active {
			p.speechFrames++
			p.speechRun++
			if p.speechRun >= debounce {
				p.voiceDetected = true
			}
		} else {
			p.speechRun = 0
		}
	}
}

func (p *Processor) VoiceDetected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voiceDetected
}

func (p *Processor) Stats() (total, speech int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalFrames, p.speechFrames
}

func (p *Processor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = p.buf[:0]
	p.voiceDetected = false
	p.speechRun = 0
	p.totalFrames, p.speechFrames = 0, 0
}

// HasSpeech runs a whole recording through a fresh processor.
func HasSpeech(buf audio.Buffer) (bool, error) {
	p, err := New(buf.SampleRate)
	if err != nil {
		return false, err
	}
	p.Process(audio.EncodePCM16(audio.ToPCM16(buf.Samples)))
	return p.VoiceDetected(), nil
}
