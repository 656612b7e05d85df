// Package config provides the configuration schema and loader for the
// voxgate media gateway.
package config

import "time"

// LogLevel controls log verbosity for the gateway.
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

// Config is the root configuration structure for the gateway.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader],
// then overlaid with environment variables via [ApplyEnv].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	ARI       ARIConfig       `yaml:"ari"`
	Media     MediaConfig     `yaml:"media"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Recording RecordingConfig `yaml:"recording"`

	// Greeting is an optional PBX media URI (e.g. "sound:hello-world")
	// played on the caller's channel once the bridge is up.
	Greeting string `yaml:"greeting"`
}

// ServerConfig holds the metrics endpoint and logging settings.
type ServerConfig struct {
	// MetricsAddr is the TCP address the /metrics endpoint listens on
	// (e.g. ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ARIConfig holds the Asterisk REST Interface connection settings.
type ARIConfig struct {
	// URL is the ARI root, e.g. "http://pbx:8088/ari".
	URL string `yaml:"url"`

	// App is the Stasis application name.
	App string `yaml:"app"`

	// Username and Password are the ARI Basic Auth credentials.
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MediaConfig holds the RTP endpoint settings.
type MediaConfig struct {
	// BindHost is the local address per-call UDP sockets bind to.
	BindHost string `yaml:"bind_host"`

	// ExternalHost is the address the PBX sends RTP to, as reachable from
	// the PBX. Defaults to BindHost.
	ExternalHost string `yaml:"external_host"`
}

// ProvidersConfig selects and configures the speech backends.
type ProvidersConfig struct {
	STT BackendConfig `yaml:"stt"`
	TTS BackendConfig `yaml:"tts"`
	LLM BackendConfig `yaml:"llm"`
}

// BackendConfig configures one speech backend.
type BackendConfig struct {
	// Name selects the implementation: "openai" or "mock".
	Name string `yaml:"name"`

	// APIKey is the backend credential. Defaults from the environment.
	APIKey string `yaml:"api_key"`

	// Model is the backend model identifier.
	Model string `yaml:"model"`

	// BaseURL overrides the backend API base URL.
	BaseURL string `yaml:"base_url"`

	// Voice selects the synthesis voice (TTS only).
	Voice string `yaml:"voice"`

	// SystemPrompt seeds the conversation (LLM only).
	SystemPrompt string `yaml:"system_prompt"`
}

// PipelineConfig tunes the per-call media pipeline.
type PipelineConfig struct {
	// SpeechFrames is the consecutive-speech-frame count that triggers
	// barge-in. Zero uses the default (10).
	SpeechFrames int `yaml:"speech_frames"`

	// SilenceFrames is the consecutive-silence-frame count that terminates
	// an utterance. Zero uses the default (20).
	SilenceFrames int `yaml:"silence_frames"`

	// SilenceRMS is the RMS amplitude below which a frame counts as
	// silence. Zero uses the default (30).
	SilenceRMS float64 `yaml:"silence_rms"`

	// BackendTimeout bounds each speech backend call. Zero uses the
	// default (30s).
	BackendTimeout time.Duration `yaml:"backend_timeout"`

	// CaptureDir, when set, receives every detected utterance as a raw
	// µ-law file. Diagnostic only.
	CaptureDir string `yaml:"capture_dir"`
}

// RecordingConfig enables PBX-side bridge recording.
type RecordingConfig struct {
	// Enabled starts a WAV recording of each call's bridge.
	Enabled bool `yaml:"enabled"`

	// MaxDuration limits the recording length. Zero means no limit.
	MaxDuration time.Duration `yaml:"max_duration"`

	// MaxSilence stops the recording after this much continuous silence.
	// Zero means no limit.
	MaxSilence time.Duration `yaml:"max_silence"`

	// Beep plays a beep when the recording starts.
	Beep bool `yaml:"beep"`
}
