// Package config provides the configuration schema and loader for the
// voicemate subsystem.
//
// Behavioural constants of the voice pipeline (the 10 second disambiguation
// timeout, the 2 character transcript floor) are compile-time constants in
// their packages, not configuration.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Engine selects a speech-recognition backend.
type Engine string

const (
	// EngineWhisper runs recognition on-device through whisper.cpp.
	EngineWhisper Engine = "whisper"

	// EngineBrowser receives transcripts from a connected browser page over
	// the WebSocket bridge.
	EngineBrowser Engine = "browser"
)

// IsValid reports whether e is a recognised engine.
func (e Engine) IsValid() bool {
	return e == EngineWhisper || e == EngineBrowser
}

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	ASR     ASRConfig     `yaml:"asr"`
	TTS     TTSConfig     `yaml:"tts"`
	Assist  AssistConfig  `yaml:"assist"`
	History HistoryConfig `yaml:"history"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server (metrics endpoint and
	// browser bridge) listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Empty means "info".
	LogLevel LogLevel `yaml:"log_level"`
}

// ASRConfig selects and tunes the recognition engines.
type ASRConfig struct {
	// Engine is the primary recognition backend.
	Engine Engine `yaml:"engine"`

	// Fallback is the backend tried once when the primary fails to start.
	// Empty disables the fallback.
	Fallback Engine `yaml:"fallback"`

	// ModelPath is the whisper.cpp model file. Required when the whisper
	// engine is the primary or the fallback.
	ModelPath string `yaml:"model_path"`

	// Language is the spoken language hint (e.g., "en").
	Language string `yaml:"language"`

	// SampleRate is the capture sample rate in Hz. Zero means 16000.
	SampleRate int `yaml:"sample_rate"`
}

// TTSConfig points at the local synthesis server.
type TTSConfig struct {
	// URL is the base URL of the piper HTTP server.
	URL string `yaml:"url"`

	// Voice selects the synthesis voice. Empty uses the server default.
	Voice string `yaml:"voice"`
}

// AssistConfig enables the optional LLM pass for unmatched utterances.
// The zero value disables it.
type AssistConfig struct {
	// Provider is the any-llm-go backend name ("openai", "anthropic",
	// "ollama", ...). Empty disables the assist stage.
	Provider string `yaml:"provider"`

	// Model is the model identifier for the provider.
	Model string `yaml:"model"`

	// APIKey authenticates against the provider, when it needs one. Falls
	// back to the provider's environment variable when empty.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`
}

// HistoryConfig configures the utterance audit log.
type HistoryConfig struct {
	// PostgresDSN is the connection string for the Postgres-backed history
	// store. Empty keeps history in memory.
	PostgresDSN string `yaml:"postgres_dsn"`
}
