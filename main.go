package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"dictate/audio"
	"dictate/beep"
	"dictate/config"
	"dictate/doctor"
	"dictate/hotkey"
	"dictate/inject"
	"dictate/log"
	"dictate/platform"
	"dictate/session"
	"dictate/shutdown"
	"dictate/textproc"
	"dictate/transcriber"
	"dictate/vad"
)

var version = "dev"

type flags struct {
	configFile    string
	envFile       string
	logPath       string
	setup         bool
	device        string
	lang          string
	doctor        bool
	test          bool
	version       bool
	listLanguages bool
	tui           bool
	noBeep        bool
	profile       string
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configFile, "config", "", "config file (default: search the user config dir, then ./config.yaml)")
	flag.StringVar(&f.envFile, "env-file", "", "dotenv file with API keys (default: ./.env if present)")
	flag.StringVar(&f.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.BoolVar(&f.setup, "setup", false, "Select microphone device interactively")
	flag.StringVar(&f.device, "device", "", "Use named microphone device")
	flag.StringVar(&f.lang, "lang", "", "Comma-separated language codes, first one is used (e.g. en or de,en). auto = detect")
	flag.BoolVar(&f.doctor, "doctor", false, "Run system diagnostics and exit")
	flag.BoolVar(&f.test, "test", false, "Test mode (headless, stdin-driven, reads a WAV instead of the mic)")
	flag.BoolVar(&f.version, "version", false, "Print version and exit")
	flag.BoolVar(&f.listLanguages, "list-languages", false, "Print supported language codes and exit")
	flag.BoolVar(&f.tui, "tui", true, "Run with terminal UI")
	flag.BoolVar(&f.noBeep, "no-beep", false, "Disable cue tones")
	flag.StringVar(&f.profile, "profile", "", "Enable pprof profiling server (e.g., localhost:6060)")
	flag.Parse()
	return f
}

// initCrashLog sends fatal runtime errors to crash_log.txt in the log dir.
func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func loadConfig(f flags) (*config.Config, error) {
	cfg, err := config.Load(config.Options{ConfigFile: f.configFile, EnvFile: f.envFile})
	if err != nil {
		return nil, err
	}
	if f.device != "" {
		cfg.Recording.Device = f.device
	}
	if f.lang != "" {
		cfg.Transcriber.Languages = strings.Split(f.lang, ",")
	}
	return cfg, nil
}

func run() {
	f := parseFlags()

	if f.version {
		fmt.Printf("dictate %s\n", version)
		os.Exit(0)
	}
	if f.listLanguages {
		for _, code := range transcriber.Languages {
			fmt.Printf("%s  %s\n", code, transcriber.LanguageName(code))
		}
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(f.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	if f.profile != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", f.profile)
			if err := http.ListenAndServe(f.profile, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		if !f.doctor {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if f.doctor {
		os.Exit(doctor.Run(cfg))
	}

	os.Exit(start(cfg, f))
}

// start runs the app once config is settled; the exit code is returned so
// deferred cleanup runs before os.Exit.
func start(cfg *config.Config, f flags) int {
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	beep.SetEnabled(!f.noBeep && !f.test)
	defer beep.Close()

	info := platform.Detect()
	for _, w := range platform.Warnings(info, cfg.Inject.Backend) {
		log.Warn(w)
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}

	if f.test {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: dictate -test <wav-file>")
			return 1
		}
		return runTestMode(cfg, info, args[0])
	}
	return runLive(cfg, info, f)
}

func runLive(cfg *config.Config, info platform.Info, f flags) int {
	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}
	defer actx.Close()

	dev, err := pickDevice(actx, cfg.Recording.Device, f.setup)
	if errors.Is(err, audio.ErrSelectionCancelled) {
		return 130
	}
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Fprintf(os.Stderr, "Warning: %v, using the default device\n", err)
	}
	capture, err := actx.NewCapture(dev, audio.CaptureConfig{
		SampleRate: uint32(cfg.Recording.SampleRate),
		Channels:   1,
	})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing capture device: %v\n", err)
		return 1
	}
	defer capture.Close()

	var sink session.Sink = printSink{}
	if f.tui {
		sink = tuiSink()
	}
	a, err := newApp(cfg, capture, info, sink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	hcfg, err := cfg.Hotkey.Detector()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	src, err := hotkey.NewSource(cfg.Hotkey.Backend, hcfg.Combo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	det, err := hotkey.NewDetector(src, hcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := det.Start(); err != nil {
		log.Errorf("hotkey: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if info.IsLinux() {
			fmt.Fprintln(os.Stderr, "Fix with: sudo usermod -aG input $USER (then log in again)")
		}
		return 1
	}
	defer det.Stop()

	gesture := hotkeyLabel(hcfg)
	log.AppStart(gesture, a.tr.Name(), a.inj.Name())

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	go forwardToggles(ctx, det.Toggles(), a.ctrl)

	if !f.tui {
		fmt.Printf("dictate %s ready: %s to record (%s -> %s)\n", version, gesture, a.tr.Name(), a.inj.Name())
		logRunExit(a.ctrl.Run(ctx))
		log.AppEnd(a.ctrl.Sessions())
		return 0
	}

	a.rec.OnLevel(func(level float64) { tuiSend(levelMsg{level: level}) })

	tuiMu.Lock()
	tuiProgram = newTUIProgram(tuiModel{
		maxDur:     cfg.Recording.MaxDuration,
		hotkeyLine: gesture,
		modeLine:   modeLine(cfg, a),
		deviceLine: deviceLine(dev),
	})
	p := tuiProgram
	tuiMu.Unlock()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		logRunExit(a.ctrl.Run(ctx))
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
	}
	stop()
	<-runDone

	tuiMu.Lock()
	tuiProgram = nil
	tuiMu.Unlock()

	log.AppEnd(a.ctrl.Sessions())
	return 0
}

type app struct {
	ctrl *session.Controller
	rec  *audio.Recorder
	tr   transcriber.Transcriber
	inj  inject.Injector
}

// newApp wires the recorder, transcriber and injector into a controller.
func newApp(cfg *config.Config, capture audio.CaptureDevice, info platform.Info, sink session.Sink) (*app, error) {
	tr, err := transcriber.New(cfg.Transcriber.Options())
	if err != nil {
		return nil, err
	}
	inj, err := inject.New(inject.Options{
		Backend:          cfg.Inject.Backend,
		RestoreClipboard: cfg.Inject.RestoreClipboard,
		Platform:         info,
	})
	if err != nil {
		return nil, err
	}
	rec := audio.NewRecorder(capture, cfg.Recording.SampleRate)
	return &app{
		ctrl: session.New(rec, tr, inj, sessionOptions(cfg, sink)),
		rec:  rec,
		tr:   tr,
		inj:  inj,
	}, nil
}

func sessionOptions(cfg *config.Config, sink session.Sink) session.Options {
	opts := session.Options{
		MaxDuration:       cfg.Recording.MaxDuration,
		MinDuration:       cfg.Recording.MinDuration,
		SampleRate:        cfg.Recording.SampleRate,
		Language:          cfg.Transcriber.Language(),
		TranscribeTimeout: cfg.Transcriber.Timeout,
		Sink:              sink,
	}
	if cfg.Inject.Normalize {
		opts.Normalize = textproc.Normalize
	}
	if cfg.Recording.SkipSilence {
		opts.SpeechGate = speechGate
	}
	return opts
}

// speechGate lets a recording through when voice detection cannot run.
func speechGate(buf audio.Buffer) bool {
	ok, err := vad.HasSpeech(buf)
	if err != nil {
		log.Warnf("vad: %v", err)
		return true
	}
	return ok
}

func forwardToggles(ctx context.Context, toggles <-chan hotkey.Toggle, ctrl *session.Controller) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-toggles:
			ctrl.Toggle()
		}
	}
}

// pickDevice resolves the configured device name, or asks when setup is
// set. A nil device means the system default.
func pickDevice(actx audio.Context, name string, setup bool) (*audio.DeviceInfo, error) {
	if setup {
		return audio.SelectDevice(actx)
	}
	if name == "" {
		return nil, nil
	}
	devices, err := actx.Devices()
	if err != nil {
		return nil, err
	}
	return findDevice(devices, name)
}

func findDevice(devices []audio.DeviceInfo, name string) (*audio.DeviceInfo, error) {
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device named %q", name)
}

func hotkeyLabel(cfg hotkey.Config) string {
	if cfg.Mode == hotkey.ModeDoublePress {
		return "double-press " + cfg.Key
	}
	return cfg.Combo.String()
}

func modeLine(cfg *config.Config, a *app) string {
	label := a.tr.Name()
	if lang := cfg.Transcriber.Language(); lang != "" {
		label += " (" + transcriber.LanguageName(lang) + ")"
	}
	return label + " -> " + a.inj.Name()
}

func deviceLine(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

// logRunExit records why the controller loop ended. Cancellation is the
// normal shutdown path.
func logRunExit(err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("controller stopped: %v", err)
	}
}
