// Package doctor walks the user through each stage of a dictation, from
// key capture to text injection, and reports what fails.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"dictate/audio"
	"dictate/config"
	"dictate/hotkey"
	"dictate/inject"
	"dictate/platform"
	"dictate/shutdown"
	"dictate/transcriber"
	"dictate/vad"
)

const recordFor = 3 * time.Second

type doctor struct {
	cfg *config.Config
	in  *bufio.Reader
	out io.Writer

	buf audio.Buffer // filled by the microphone check
}

type check struct {
	name string
	run  func(*doctor) bool
}

var checks = []check{
	{"Platform", (*doctor).checkPlatform},
	{"Key events", (*doctor).checkKeySource},
	{"Hotkey gesture", (*doctor).checkGesture},
	{"Microphone", (*doctor).checkMic},
	{"Transcription", (*doctor).checkTranscription},
	{"Clipboard", (*doctor).checkClipboard},
	{"Keystroke output", (*doctor).checkInject},
}

// Run executes the checks in order, stopping at the first failure, and
// returns an exit code.
func Run(cfg *config.Config) int {
	fd := int(os.Stdin.Fd())
	if st, err := term.GetState(fd); err == nil {
		defer term.Restore(fd, st)
		ctx, stop := shutdown.Context(context.Background())
		defer stop()
		go func() {
			<-ctx.Done()
			term.Restore(fd, st)
		}()
	}

	d := &doctor{cfg: cfg, in: bufio.NewReader(os.Stdin), out: os.Stdout}
	d.printf("dictate doctor - interactive system diagnostics\n")
	d.printf("===============================================\n")

	passed := 0
	for i, c := range checks {
		d.printf("\n[%d/%d] %s\n", i+1, len(checks), c.name)
		if !c.run(d) {
			break
		}
		passed++
	}

	d.printf("\n")
	if passed == len(checks) {
		d.printf("All checks passed!\n")
		return 0
	}
	d.printf("%d of %d checks passed. See details above.\n", passed, len(checks))
	return 1
}

func (d *doctor) printf(format string, args ...any) {
	fmt.Fprintf(d.out, format, args...)
}

func (d *doctor) pass(format string, args ...any) bool {
	d.printf("  PASS: "+format+"\n", args...)
	return true
}

func (d *doctor) fail(format string, args ...any) bool {
	d.printf("  FAIL: "+format+"\n", args...)
	return false
}

func (d *doctor) confirm(question string) bool {
	d.printf("%s [y/n]: ", question)
	answer, _ := d.in.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func (d *doctor) checkPlatform() bool {
	info := platform.Detect()
	d.printf("  os=%s arch=%s session=%s\n", info.OS, info.Arch, info.Session)
	for _, w := range platform.Warnings(info, d.cfg.Inject.Backend) {
		d.printf("  Warning: %s\n", w)
	}
	return d.pass("platform detected")
}

func (d *doctor) checkKeySource() bool {
	msg, err := hotkey.Diagnose()
	if err != nil {
		return d.fail("%v", err)
	}
	return d.pass("%s", msg)
}

func (d *doctor) detectorConfig() (hotkey.Config, string, error) {
	cfg, err := d.cfg.Hotkey.Detector()
	if err != nil {
		return cfg, "", err
	}
	if cfg.Mode == hotkey.ModeDoublePress {
		return cfg, "Double-press " + cfg.Key, nil
	}
	return cfg, "Press " + cfg.Combo.String(), nil
}

func (d *doctor) checkGesture() bool {
	cfg, prompt, err := d.detectorConfig()
	if err != nil {
		return d.fail("%v", err)
	}
	src, err := hotkey.NewSource(d.cfg.Hotkey.Backend, cfg.Combo)
	if err != nil {
		return d.fail("%v", err)
	}
	det, err := hotkey.NewDetector(src, cfg)
	if err != nil {
		return d.fail("%v", err)
	}
	if err := det.Start(); err != nil {
		return d.fail("%v", err)
	}
	defer det.Stop()

	d.printf("%s...\n", prompt)
	select {
	case <-det.Toggles():
		return d.pass("gesture detected")
	case <-time.After(10 * time.Second):
		return d.fail("timeout waiting for the gesture")
	}
}

// parseChoice reads a 1-based menu choice; empty input picks the first.
func parseChoice(s string, n int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 1 || i > n {
		return 0, fmt.Errorf("invalid choice %q", s)
	}
	return i - 1, nil
}

func (d *doctor) pickDevice(devices []audio.DeviceInfo) (*audio.DeviceInfo, error) {
	if name := d.cfg.Recording.Device; name != "" {
		for i := range devices {
			if devices[i].Name == name {
				return &devices[i], nil
			}
		}
		return nil, fmt.Errorf("configured device %q not found", name)
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}
	d.printf("Select input device:\n")
	for i, dev := range devices {
		d.printf("  %d. %s\n", i+1, dev.Name)
	}
	d.printf("Choice [1-%d]: ", len(devices))
	line, _ := d.in.ReadString('\n')
	idx, err := parseChoice(line, len(devices))
	if err != nil {
		return nil, err
	}
	return &devices[idx], nil
}

func (d *doctor) checkMic() bool {
	ctx, err := audio.NewContext()
	if err != nil {
		return d.fail("cannot connect to audio: %v", err)
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		return d.fail("cannot list devices: %v", err)
	}
	if len(devices) == 0 {
		return d.fail("no capture devices found")
	}
	dev, err := d.pickDevice(devices)
	if err != nil {
		return d.fail("%v", err)
	}
	d.printf("Using device: %s\n", dev.Name)
	if audio.IsBluetooth(dev.Name) {
		d.printf("  Warning: Bluetooth headset mics run in low-quality mode while recording\n")
	}

	rate := d.cfg.Recording.SampleRate
	capture, err := ctx.NewCapture(dev, audio.CaptureConfig{SampleRate: uint32(rate), Channels: 1})
	if err != nil {
		return d.fail("%v", err)
	}
	defer capture.Close()

	var peak float64
	rec := audio.NewRecorder(capture, rate)
	rec.OnLevel(func(l float64) { peak = max(peak, l) })

	d.printf("Press Enter and speak for %d seconds...", int(recordFor.Seconds()))
	d.in.ReadString('\n')
	if err := rec.Start(0); err != nil {
		return d.fail("%v", err)
	}
	d.printf("  Recording")
	for i := 0; i < int(recordFor/(500*time.Millisecond)); i++ {
		time.Sleep(500 * time.Millisecond)
		d.printf(".")
	}
	buf, err := rec.Stop()
	d.printf(" done\n")
	if err != nil {
		return d.fail("%v", err)
	}
	if buf.Empty() {
		return d.fail("no audio captured")
	}
	d.buf = buf
	d.printf("  Captured %.1fs, peak level %.3f\n", buf.Duration().Seconds(), peak)

	if speech, err := vad.HasSpeech(buf); err != nil {
		d.printf("  Warning: voice detection unavailable: %v\n", err)
	} else if !speech {
		d.printf("  Warning: no speech detected, check the input volume\n")
	}
	return d.pass("microphone captured audio")
}

func (d *doctor) checkTranscription() bool {
	tc := d.cfg.Transcriber
	tr, err := transcriber.New(tc.Options())
	if err != nil {
		return d.fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), tc.Timeout)
	defer cancel()
	d.printf("  Transcribing with %s...\n", tr.Name())
	start := time.Now()
	text, err := tr.Transcribe(ctx, d.buf.Samples, d.buf.SampleRate, tc.Language())
	if err != nil {
		return d.fail("%v", err)
	}
	if text == "" {
		text = "(no speech detected)"
	}
	d.printf("\n  Transcribed in %dms: %s\n\n", time.Since(start).Milliseconds(), text)
	if !d.confirm("Is this correct?") {
		return d.fail("transcription not confirmed")
	}
	return d.pass("transcription verified by user")
}

func (d *doctor) checkClipboard() bool {
	if d.cfg.Inject.Backend == inject.BackendType || d.cfg.Inject.Backend == inject.BackendYdotool {
		return d.pass("not used by the %s backend", d.cfg.Inject.Backend)
	}
	msg, err := inject.CheckClipboard(3 * time.Second)
	if err != nil {
		return d.fail("%v", err)
	}
	return d.pass("%s", msg)
}

func (d *doctor) checkInject() bool {
	if d.cfg.Inject.Backend == inject.BackendYdotool {
		if !platform.HasCommand("ydotool") {
			return d.fail("ydotool not found in PATH")
		}
		return d.pass("ydotool found")
	}
	msg, err := inject.Verify()
	if err != nil {
		return d.fail("%v", err)
	}
	return d.pass("%s", msg)
}
