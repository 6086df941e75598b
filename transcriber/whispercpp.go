package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"dictate/audio"
	"dictate/encoder"
)

var whisperBinaries = []string{"whisper-cli", "whisper-cpp", "whisper"}

// WhisperCpp runs the whisper.cpp CLI on a temporary WAV file. Nothing
// leaves the machine.
type WhisperCpp struct {
	modelPath string
	binPath   string

	// run executes the command; replaced in tests.
	run func(cmd *exec.Cmd) error
}

func NewWhisperCpp(opts Options) (*WhisperCpp, error) {
	if opts.Model == "" {
		return nil, fmt.Errorf("whispercpp backend needs a model file (transcriber.model)")
	}
	if _, err := os.Stat(opts.Model); err != nil {
		return nil, fmt.Errorf("whisper model: %w", err)
	}
	bin := opts.BinPath
	if bin == "" {
		bin = findWhisperBinary()
	}
	if bin == "" {
		return nil, fmt.Errorf("whisper.cpp binary not found (install whisper-cli or set its path)")
	}
	return &WhisperCpp{modelPath: opts.Model, binPath: bin, run: (*exec.Cmd).Run}, nil
}

func (w *WhisperCpp) Name() string { return BackendWhisperCpp }

func (w *WhisperCpp) Model() string { return w.modelPath }

func (w *WhisperCpp) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (string, error) {
	if err := CheckLanguage(language, filepath.Base(w.modelPath)); err != nil {
		return "", &Error{Backend: w.Name(), Err: err}
	}

	f, err := os.CreateTemp("", "dictate-*.wav")
	if err != nil {
		return "", &Error{Backend: w.Name(), Err: err}
	}
	defer os.Remove(f.Name())
	werr := encoder.EncodeWAV(f, audio.ToPCM16(samples), sampleRate)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return "", &Error{Backend: w.Name(), Err: fmt.Errorf("write audio file: %w", werr)}
	}

	lang := language
	if lang == "" {
		lang = "auto"
	}
	cmd := exec.CommandContext(ctx, w.binPath, "-m", w.modelPath, "-f", f.Name(), "-l", lang, "-nt", "-np")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := w.run(cmd); err != nil {
		return "", &Error{Backend: w.Name(), Err: fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))}
	}
	return joinLines(stdout.String()), nil
}

// joinLines flattens whisper's one-segment-per-line output.
func joinLines(s string) string {
	var parts []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

func findWhisperBinary() string {
	for _, name := range whisperBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	home, _ := os.UserHomeDir()
	for _, dir := range []string{"/opt/homebrew/bin", "/usr/local/bin", filepath.Join(home, ".local", "bin")} {
		for _, name := range whisperBinaries {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
