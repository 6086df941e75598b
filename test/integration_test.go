//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atotto/clipboard"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("DICTATE_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "DICTATE_TEST_BIN not set; build with: go build -o /tmp/dictate . && DICTATE_TEST_BIN=/tmp/dictate go test -tags integration ./test")
		os.Exit(1)
	}

	if err := os.MkdirAll("data", 0755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir data: %v\n", err)
		os.Exit(1)
	}
	silencePath := filepath.Join("data", "silence.wav")
	if err := writeWAV(silencePath, 16000, make([]int16, 16000)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate silence.wav: %v\n", err)
		os.Exit(1)
	}
	defer os.Remove(silencePath)

	tonePath := filepath.Join("data", "tone.wav")
	if err := writeWAV(tonePath, 16000, tone(16000, 440, 0.5)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate tone.wav: %v\n", err)
		os.Exit(1)
	}
	defer os.Remove(tonePath)

	os.Exit(m.Run())
}

func tone(n int, freq, amp float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * 32767 * math.Sin(2*math.Pi*freq*float64(i)/16000))
	}
	return out
}

func writeWAV(path string, sampleRate int, pcm []int16) error {
	const headerSize = 44
	dataSize := len(pcm) * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[headerSize+2*i:], uint16(s))
	}

	return os.WriteFile(path, buf, 0644)
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func runDictate(t *testing.T, stdin string, args ...string) (logDir, out string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = os.Environ()

	b, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("dictate exited with error: %v\noutput: %s", err, b)
	}
	return logDir, string(b)
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func requireGroqKey(t *testing.T) {
	t.Helper()
	if os.Getenv("GROQ_API_KEY") == "" {
		t.Skip("GROQ_API_KEY not set")
	}
}

func TestVersion(t *testing.T) {
	out, err := exec.Command(testBinary, "-version").CombinedOutput()
	if err != nil || !strings.HasPrefix(string(out), "dictate ") {
		t.Fatalf("-version = %q, %v", out, err)
	}
}

func TestListLanguages(t *testing.T) {
	out, err := exec.Command(testBinary, "-list-languages").CombinedOutput()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "de  German") {
		t.Errorf("language list missing German:\n%s", out)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("hotkey:\n  mode: triple\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := exec.Command(testBinary, "-config", path, "-test", "data/silence.wav").CombinedOutput()
	if err == nil {
		t.Fatalf("expected failure, got output: %s", out)
	}
	if !strings.Contains(string(out), "hotkey.mode") {
		t.Errorf("error does not name the field:\n%s", out)
	}
}

func TestToggleTranscribes(t *testing.T) {
	requireGroqKey(t)
	logDir, _ := runDictate(t, cmds("TOGGLE", "WAIT_AUDIO_DONE", "TOGGLE", "WAIT", "QUIT"), "-test", "data/tone.wav")
	diag := readLog(t, logDir, "diagnostics_log.txt")
	for _, want := range []string{"session_start", "to=transcribing", "transcription"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %q", want)
		}
	}
}

func TestShortRecordingSkipped(t *testing.T) {
	requireGroqKey(t)
	logDir, _ := runDictate(t, cmds("TOGGLE", "TOGGLE", "WAIT", "QUIT"), "-test", "data/silence.wav")
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if strings.Contains(diag, "to=transcribing") {
		t.Error("instant stop should not reach transcription")
	}
}

func TestTwoSessions(t *testing.T) {
	requireGroqKey(t)
	logDir, _ := runDictate(t,
		cmds("TOGGLE", "SLEEP 500", "TOGGLE", "WAIT", "TOGGLE", "SLEEP 500", "TOGGLE", "WAIT", "QUIT"),
		"-test", "data/tone.wav")
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if n := strings.Count(diag, "session_start"); n != 2 {
		t.Errorf("session_start count = %d, want 2", n)
	}
	if !strings.Contains(diag, "sessions=2") {
		t.Error("app end should report 2 sessions")
	}
}

func TestClipboardRestore(t *testing.T) {
	requireGroqKey(t)

	sentinel := fmt.Sprintf("dictate-test-sentinel-%d", time.Now().UnixNano())
	if err := clipboard.WriteAll(sentinel); err != nil {
		t.Skip("clipboard not available")
	}

	_, _ = runDictate(t, cmds("TOGGLE", "WAIT_AUDIO_DONE", "TOGGLE", "WAIT", "SLEEP 1200", "QUIT"),
		"-test", "data/tone.wav")

	clip, err := clipboard.ReadAll()
	if err != nil {
		t.Skip("clipboard not available")
	}
	if strings.TrimSpace(clip) != sentinel {
		t.Errorf("clipboard not restored: got %q, want %q", strings.TrimSpace(clip), sentinel)
	}
}
