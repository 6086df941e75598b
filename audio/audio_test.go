package audio

import (
	"math"
	"testing"
	"time"
)

func TestToFloat32(t *testing.T) {
	got := ToFloat32([]int16{0, -32768, 32767, 16384})
	want := []float32{0, -1, 32767.0 / 32768.0, 0.5}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
	for _, s := range got {
		if s < -1 || s >= 1 {
			t.Errorf("sample %v outside [-1, 1)", s)
		}
	}
}

func TestToFloat32Empty(t *testing.T) {
	if got := ToFloat32(nil); len(got) != 0 {
		t.Errorf("expected empty output, got %d samples", len(got))
	}
}

func TestToPCM16Clamps(t *testing.T) {
	got := ToPCM16([]float32{2, -2, 0.5, 0})
	want := []int16{math.MaxInt16, math.MinInt16, 16384, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestPCM16RoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 1000, -32768, 32767}
	out := DecodePCM16(EncodePCM16(in))
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestDecodePCM16OddLength(t *testing.T) {
	if got := DecodePCM16([]byte{1, 0, 7}); len(got) != 1 || got[0] != 1 {
		t.Errorf("DecodePCM16 = %v, want [1]", got)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := RMS(EncodePCM16(make([]int16, 100))); got != 0 {
		t.Errorf("RMS(silence) = %v, want 0", got)
	}
	loud := make([]int16, 100)
	for i := range loud {
		loud[i] = -32768
	}
	if got := RMS(EncodePCM16(loud)); math.Abs(got-1) > 1e-9 {
		t.Errorf("RMS(full scale) = %v, want 1", got)
	}
}

func TestBufferDuration(t *testing.T) {
	b := Buffer{Samples: make([]float32, 8000), SampleRate: 16000}
	if got := b.Duration(); got != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", got)
	}
	if (Buffer{}).Duration() != 0 {
		t.Error("zero buffer should have zero duration")
	}
	if !(Buffer{SampleRate: 16000}).Empty() {
		t.Error("buffer without samples should be empty")
	}
}

func TestIsBluetooth(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"AirPods Pro", true},
		{"Jabra Evolve 65", true},
		{"Built-in Microphone", false},
		{"alsa_input.pci-0000_00_1f.3.analog-stereo", false},
		{"Headset (BT)", true},
		{"[BT] Car Kit", true},
		{"Mic BT", false},
		{"Subtle Audio Interface", false},
	}
	for _, tt := range tests {
		if got := IsBluetooth(tt.name); got != tt.want {
			t.Errorf("IsBluetooth(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
