package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "DICTATE"

// Options names explicit files; empty fields fall back to the search paths.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// SearchPaths lists where a config file is looked for, in order.
func SearchPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "dictate", "config.yaml"))
	}
	return append(paths, "config.yaml")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Load reads defaults, then the config file, then the environment. An
// explicitly named file that does not exist is an error; a missing default
// file is not. The result is not validated.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" && exists(".env") {
		envFile = ".env"
	}
	if envFile != "" {
		// godotenv never overrides variables already set in the environment.
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v, Default(runtime.GOOS))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := opts.ConfigFile
	if file != "" {
		if !exists(file) {
			return nil, fmt.Errorf("config file %s not found", file)
		}
	} else {
		for _, p := range SearchPaths() {
			if exists(p) {
				file = p
				break
			}
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = file

	if cfg.Transcriber.APIKey == "" {
		cfg.Transcriber.APIKey = os.Getenv(apiKeyEnv(cfg.Transcriber.Backend))
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("hotkey.mode", d.Hotkey.Mode)
	v.SetDefault("hotkey.combo", d.Hotkey.Combo)
	v.SetDefault("hotkey.key", d.Hotkey.Key)
	v.SetDefault("hotkey.window", d.Hotkey.Window)
	v.SetDefault("hotkey.backend", d.Hotkey.Backend)

	v.SetDefault("recording.max_duration", d.Recording.MaxDuration)
	v.SetDefault("recording.min_duration", d.Recording.MinDuration)
	v.SetDefault("recording.sample_rate", d.Recording.SampleRate)
	v.SetDefault("recording.device", d.Recording.Device)
	v.SetDefault("recording.skip_silence", d.Recording.SkipSilence)

	v.SetDefault("transcriber.backend", d.Transcriber.Backend)
	v.SetDefault("transcriber.api_key", d.Transcriber.APIKey)
	v.SetDefault("transcriber.model", d.Transcriber.Model)
	v.SetDefault("transcriber.base_url", d.Transcriber.BaseURL)
	v.SetDefault("transcriber.bin_path", d.Transcriber.BinPath)
	v.SetDefault("transcriber.languages", d.Transcriber.Languages)
	v.SetDefault("transcriber.format", d.Transcriber.Format)
	v.SetDefault("transcriber.timeout", d.Transcriber.Timeout)

	v.SetDefault("inject.backend", d.Inject.Backend)
	v.SetDefault("inject.normalize", d.Inject.Normalize)
	v.SetDefault("inject.restore_clipboard", d.Inject.RestoreClipboard)
}
