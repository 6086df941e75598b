package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

const envLogPath = "DICTATE_LOG_PATH"

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absPath(flagPath)
	}

	// Priority 2: DICTATE_LOG_PATH environment variable
	if envPath := os.Getenv(envLogPath); envPath != "" {
		return absPath(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribePath := filepath.Join(dir, "transcribe_log.txt")
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05.000",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

func ready() bool {
	logMu.Lock()
	defer logMu.Unlock()
	return logReady
}

func Info(msg string) {
	if ready() {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if ready() {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if ready() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if ready() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if ready() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if ready() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// AppStart records the effective setup once per process.
func AppStart(hotkey, transcriber, injector string) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("hotkey", hotkey).
		Str("transcriber", transcriber).
		Str("injector", injector).
		Msg("app_start")
}

func AppEnd(sessions int) {
	if !ready() {
		return
	}
	diagLog.Info().
		Int("sessions", sessions).
		Msg("app_end")
}

func SessionStart(sessionID string, maxDuration time.Duration) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Float64("max_s", maxDuration.Seconds()).
		Msg("session_start")
}

func State(sessionID, from, to string) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Str("from", from).
		Str("to", to).
		Msg("state")
}

func Dropped(state string) {
	if !ready() {
		return
	}
	diagLog.Info().Str("state", state).Msg("toggle_dropped")
}

// Transcript logs timing for a finished transcription; the text itself goes
// to transcribe_log.txt via TranscriptionText.
func Transcript(sessionID, backend string, audio, took time.Duration, chars int) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Str("backend", backend).
		Float64("audio_s", audio.Seconds()).
		Float64("total_ms", float64(took.Microseconds())/1000).
		Int("chars", chars).
		Msg("transcription")
}

func TranscriptionText(text string) {
	logMu.Lock()
	defer logMu.Unlock()
	if !logReady {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}
