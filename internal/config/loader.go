package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.ASR.Engine == "" {
		errs = append(errs, errors.New("asr.engine is required; valid values: whisper, browser"))
	} else if !cfg.ASR.Engine.IsValid() {
		errs = append(errs, fmt.Errorf("asr.engine %q is invalid; valid values: whisper, browser", cfg.ASR.Engine))
	}

	if cfg.ASR.Fallback != "" {
		if !cfg.ASR.Fallback.IsValid() {
			errs = append(errs, fmt.Errorf("asr.fallback %q is invalid; valid values: whisper, browser", cfg.ASR.Fallback))
		} else if cfg.ASR.Fallback == cfg.ASR.Engine {
			errs = append(errs, fmt.Errorf("asr.fallback %q duplicates asr.engine", cfg.ASR.Fallback))
		}
	}

	usesWhisper := cfg.ASR.Engine == EngineWhisper || cfg.ASR.Fallback == EngineWhisper
	if usesWhisper && cfg.ASR.ModelPath == "" {
		errs = append(errs, errors.New("asr.model_path is required when the whisper engine is configured"))
	}

	usesBrowser := cfg.ASR.Engine == EngineBrowser || cfg.ASR.Fallback == EngineBrowser
	if usesBrowser && cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required when the browser engine is configured"))
	}

	if cfg.ASR.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("asr.sample_rate %d is negative", cfg.ASR.SampleRate))
	}

	if cfg.TTS.URL == "" {
		errs = append(errs, errors.New("tts.url is required"))
	}

	if cfg.Assist.Provider != "" && cfg.Assist.Model == "" {
		errs = append(errs, fmt.Errorf("assist.model is required when assist.provider (%q) is set", cfg.Assist.Provider))
	}

	if cfg.History.PostgresDSN == "" {
		slog.Info("history.postgres_dsn is empty; utterance history stays in memory")
	}

	return errors.Join(errs...)
}
