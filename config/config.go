// Package config loads dictate's settings from a YAML file, the environment
// and a .env file, and validates them.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"dictate/hotkey"
	"dictate/transcriber"
)

type Config struct {
	Hotkey      HotkeyConfig      `mapstructure:"hotkey" yaml:"hotkey"`
	Recording   RecordingConfig   `mapstructure:"recording" yaml:"recording"`
	Transcriber TranscriberConfig `mapstructure:"transcriber" yaml:"transcriber"`
	Inject      InjectConfig      `mapstructure:"inject" yaml:"inject"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-" yaml:"-"`
}

type HotkeyConfig struct {
	Mode    string        `mapstructure:"mode" yaml:"mode" validate:"oneof=combo double"`
	Combo   string        `mapstructure:"combo" yaml:"combo" validate:"required_if=Mode combo"`
	Key     string        `mapstructure:"key" yaml:"key" validate:"required_if=Mode double"`
	Window  time.Duration `mapstructure:"window" yaml:"window" validate:"gt=0"`
	Backend string        `mapstructure:"backend" yaml:"backend" validate:"oneof=auto evdev hook global"`
}

type RecordingConfig struct {
	MaxDuration time.Duration `mapstructure:"max_duration" yaml:"max_duration" validate:"gte=0"`
	MinDuration time.Duration `mapstructure:"min_duration" yaml:"min_duration" validate:"gte=0"`
	SampleRate  int           `mapstructure:"sample_rate" yaml:"sample_rate" validate:"oneof=8000 16000 22050 44100 48000"`
	Device      string        `mapstructure:"device" yaml:"device"`
	SkipSilence bool          `mapstructure:"skip_silence" yaml:"skip_silence"`
}

type TranscriberConfig struct {
	Backend   string        `mapstructure:"backend" yaml:"backend" validate:"oneof=groq openai whispercpp"`
	APIKey    string        `mapstructure:"api_key" yaml:"api_key"`
	Model     string        `mapstructure:"model" yaml:"model"`
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	BinPath   string        `mapstructure:"bin_path" yaml:"bin_path"`
	Languages []string      `mapstructure:"languages" yaml:"languages" validate:"min=1"`
	Format    string        `mapstructure:"format" yaml:"format" validate:"oneof=wav flac"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
}

// Language is the code sent to the backend; the first configured entry.
// "auto" and "" both mean let the model detect it.
func (t TranscriberConfig) Language() string {
	if len(t.Languages) == 0 || t.Languages[0] == "auto" {
		return ""
	}
	return t.Languages[0]
}

type InjectConfig struct {
	Backend          string `mapstructure:"backend" yaml:"backend" validate:"oneof=auto type paste ydotool"`
	Normalize        bool   `mapstructure:"normalize" yaml:"normalize"`
	RestoreClipboard bool   `mapstructure:"restore_clipboard" yaml:"restore_clipboard"`
}

// DefaultCombo is the toggle combo for goos. macOS keyboards put Cmd where
// others have Ctrl.
func DefaultCombo(goos string) string {
	if goos == "darwin" {
		return "super_l+alt"
	}
	return "ctrl+alt"
}

func Default(goos string) Config {
	return Config{
		Hotkey: HotkeyConfig{
			Mode:    string(hotkey.ModeCombo),
			Combo:   DefaultCombo(goos),
			Key:     "super_r",
			Window:  hotkey.DefaultWindow,
			Backend: "auto",
		},
		Recording: RecordingConfig{
			MaxDuration: 600 * time.Second,
			MinDuration: 100 * time.Millisecond,
			SampleRate:  16000,
		},
		Transcriber: TranscriberConfig{
			Backend:   transcriber.BackendGroq,
			Languages: []string{"en"},
			Format:    "flac",
			Timeout:   60 * time.Second,
		},
		Inject: InjectConfig{
			Backend:          "auto",
			Normalize:        true,
			RestoreClipboard: true,
		},
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return strings.ToLower(fld.Name)
			}
			return name
		})
	})
	return validate
}

// Validate checks field constraints and the rules that span fields. All
// problems are reported together.
func (c *Config) Validate() error {
	var problems []string

	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		for _, e := range verrs {
			problems = append(problems, fieldName(e)+": "+describe(e))
		}
	}

	if c.Hotkey.Mode == string(hotkey.ModeCombo) && c.Hotkey.Combo != "" {
		if _, err := hotkey.ParseCombo(c.Hotkey.Combo); err != nil {
			problems = append(problems, "hotkey.combo: "+err.Error())
		}
	}
	if c.Hotkey.Mode == string(hotkey.ModeDoublePress) && c.Hotkey.Key != "" {
		if _, err := hotkey.NormalizeKey(c.Hotkey.Key); err != nil {
			problems = append(problems, "hotkey.key: "+err.Error())
		}
	}

	t := c.Transcriber
	switch t.Backend {
	case transcriber.BackendGroq, transcriber.BackendOpenAI:
		if t.APIKey == "" {
			problems = append(problems, fmt.Sprintf("transcriber.api_key: required for %s (or set %s)", t.Backend, apiKeyEnv(t.Backend)))
		}
	case transcriber.BackendWhisperCpp:
		if t.Model == "" {
			problems = append(problems, "transcriber.model: path to a ggml model file is required for whispercpp")
		}
	}
	for _, code := range t.Languages {
		if code == "auto" {
			continue
		}
		if err := transcriber.CheckLanguage(code, t.Model); err != nil {
			problems = append(problems, "transcriber.languages: "+err.Error())
		}
	}

	if c.Recording.MaxDuration > 0 && c.Recording.MinDuration >= c.Recording.MaxDuration {
		problems = append(problems, "recording.min_duration: must be shorter than max_duration")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// fieldName drops the root type from the namespace: "Config.hotkey.mode"
// becomes "hotkey.mode".
func fieldName(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", e.Param(), e.Value())
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must not be negative"
	case "min":
		return "needs at least " + e.Param() + " entry"
	case "url":
		return "must be a URL"
	}
	return "failed " + e.Tag()
}

func apiKeyEnv(backend string) string {
	if backend == transcriber.BackendOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GROQ_API_KEY"
}

// Detector converts the hotkey section into detector settings.
func (h HotkeyConfig) Detector() (hotkey.Config, error) {
	cfg := hotkey.Config{Mode: hotkey.Mode(h.Mode), Key: h.Key, Window: h.Window}
	if cfg.Mode == hotkey.ModeDoublePress {
		return cfg, nil
	}
	combo, err := hotkey.ParseCombo(h.Combo)
	if err != nil {
		return cfg, err
	}
	cfg.Combo = combo
	return cfg, nil
}

func (t TranscriberConfig) Options() transcriber.Options {
	return transcriber.Options{
		Backend: t.Backend,
		APIKey:  t.APIKey,
		Model:   t.Model,
		Format:  t.Format,
		BaseURL: t.BaseURL,
		BinPath: t.BinPath,
	}
}
