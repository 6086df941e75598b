package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestResolveDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"absolute flag", "/tmp/mylog", "", "/tmp/mylog"},
		{"relative flag", "logs", "", filepath.Join(wd, "logs")},
		{"flag beats env", "/tmp/flag", "/tmp/env", "/tmp/flag"},
		{"env", "", "/tmp/dictate-env-log", "/tmp/dictate-env-log"},
		{"relative env", "", "envlogs", filepath.Join(wd, "envlogs")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(envLogPath, tt.env)
			got, err := ResolveDir(tt.flag)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv(envLogPath, "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, appName) {
		t.Errorf("default dir %q does not mention %q", got, appName)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "transcribe_log.txt"} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestTranscriptionText(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	TranscriptionText("hello world")

	line := readFile(t, filepath.Join(tmp, "transcribe_log.txt"))
	if !strings.Contains(line, "hello world") {
		t.Errorf("transcribe_log.txt missing text, got: %q", line)
	}
	if strings.Count(line, "\t") != 2 {
		t.Errorf("expected tab-separated format, got: %q", line)
	}
}

func TestSessionEvents(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	SessionStart("abc", 10*time.Minute)
	State("abc", "idle", "recording")
	Dropped("transcribing")
	Transcript("abc", "fake", 2*time.Second, 15*time.Millisecond, 11)
	Close()

	diag := readFile(t, filepath.Join(tmp, "diagnostics_log.txt"))
	for _, want := range []string{"session_start", "max_s=600", "state", "session=abc", "to=recording", "toggle_dropped", "backend=fake", "chars=11"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %q:\n%s", want, diag)
		}
	}
}

func TestNoopBeforeInit(t *testing.T) {
	setupLogDir(t)
	Info("ignored")
	Warnf("ignored %d", 1)
	TranscriptionText("ignored")
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
