// Package beep plays short cue tones when recording starts, stops or fails.
package beep

import (
	"math"
	"sync/atomic"
)

type Tone int

const (
	Start Tone = iota
	Stop
	Failure
)

const sampleRate = 44100

type shape struct {
	freq   float64
	volume float64
	decay  float64 // envelope falloff per second
	dur    float64 // seconds per pulse
	double bool    // two pulses with a gap
}

// Stop is lower than Start so the pair reads as up/down; Failure is a low
// double pulse.
var shapes = map[Tone]shape{
	Start:   {freq: 1200, volume: 0.5, decay: 60, dur: 0.2},
	Stop:    {freq: 900, volume: 0.5, decay: 40, dur: 0.2},
	Failure: {freq: 350, volume: 0.6, decay: 30, dur: 0.08, double: true},
}

const pulseGap = 0.05

var enabled atomic.Bool

func init() { enabled.Store(true) }

func SetEnabled(on bool) { enabled.Store(on) }

func Enabled() bool { return enabled.Load() }

// Samples renders t as interleaved 16-bit PCM.
func Samples(t Tone, rate, channels int) []int16 {
	s, ok := shapes[t]
	if !ok {
		return nil
	}
	pulse := render(s, rate, channels)
	if !s.double {
		return pulse
	}
	gap := make([]int16, int(float64(rate)*pulseGap)*channels)
	out := make([]int16, 0, 2*len(pulse)+len(gap))
	out = append(out, pulse...)
	out = append(out, gap...)
	return append(out, pulse...)
}

func render(s shape, rate, channels int) []int16 {
	n := int(float64(rate) * s.dur)
	out := make([]int16, n*channels)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(rate)
		v := int16(math.Sin(2*math.Pi*s.freq*t) * 32767 * s.volume * math.Exp(-t*s.decay))
		for c := 0; c < channels; c++ {
			out[i*channels+c] = v
		}
	}
	return out
}

// Play starts t in the background. It is a no-op when beeps are disabled
// or no output device is available.
func Play(t Tone) {
	if !enabled.Load() {
		return
	}
	go play(t)
}
