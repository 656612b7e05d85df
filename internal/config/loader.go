package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [Validate] when the corresponding field is empty.
const (
	DefaultARIHost  = "localhost"
	DefaultARIPort  = "8088"
	DefaultARIApp   = "voicebot"
	DefaultBindHost = "0.0.0.0"
)

// validBackendNames lists known backend names per backend kind.
var validBackendNames = map[string][]string{
	"stt": {"openai", "mock"},
	"tts": {"openai", "mock"},
	"llm": {"openai", "mock"},
}

// Load reads the YAML configuration file at path, overlays environment
// variables, and returns a validated [Config].
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

// LoadFromReader decodes a YAML config from r, overlays environment
// variables, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. A set variable always
// wins over the file value:
//
//	AST_URL          — full ARI root URL (overrides AST_HOST/AST_PORT)
//	AST_HOST         — PBX host, combined with AST_PORT into the ARI URL
//	AST_PORT         — PBX ARI port
//	AST_APP          — Stasis application name
//	AST_USER         — ARI username
//	AST_PASS         — ARI password
//	OPENAI_API_KEY   — fallback API key for any openai backend without one
func ApplyEnv(cfg *Config) {
	host := os.Getenv("AST_HOST")
	port := os.Getenv("AST_PORT")
	if host != "" || port != "" {
		if host == "" {
			host = DefaultARIHost
		}
		if port == "" {
			port = DefaultARIPort
		}
		cfg.ARI.URL = "http://" + net.JoinHostPort(host, port) + "/ari"
	}
	if v := os.Getenv("AST_URL"); v != "" {
		cfg.ARI.URL = v
	}
	if v := os.Getenv("AST_APP"); v != "" {
		cfg.ARI.App = v
	}
	if v := os.Getenv("AST_USER"); v != "" {
		cfg.ARI.Username = v
	}
	if v := os.Getenv("AST_PASS"); v != "" {
		cfg.ARI.Password = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		for _, b := range []*BackendConfig{&cfg.Providers.STT, &cfg.Providers.TTS, &cfg.Providers.LLM} {
			if b.Name == "openai" && b.APIKey == "" {
				b.APIKey = v
			}
		}
	}
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults. It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.ARI.URL == "" {
		cfg.ARI.URL = "http://" + net.JoinHostPort(DefaultARIHost, DefaultARIPort) + "/ari"
	}
	if cfg.ARI.App == "" {
		cfg.ARI.App = DefaultARIApp
	}

	if cfg.Media.BindHost == "" {
		cfg.Media.BindHost = DefaultBindHost
	}
	if cfg.Media.ExternalHost == "" {
		cfg.Media.ExternalHost = cfg.Media.BindHost
	}

	errs = append(errs, validateBackend("stt", cfg.Providers.STT)...)
	errs = append(errs, validateBackend("tts", cfg.Providers.TTS)...)
	errs = append(errs, validateBackend("llm", cfg.Providers.LLM)...)

	if cfg.Pipeline.SpeechFrames < 0 {
		errs = append(errs, fmt.Errorf("pipeline.speech_frames must not be negative"))
	}
	if cfg.Pipeline.SilenceFrames < 0 {
		errs = append(errs, fmt.Errorf("pipeline.silence_frames must not be negative"))
	}
	if cfg.Pipeline.SilenceRMS < 0 {
		errs = append(errs, fmt.Errorf("pipeline.silence_rms must not be negative"))
	}
	if cfg.Pipeline.BackendTimeout < 0 {
		errs = append(errs, fmt.Errorf("pipeline.backend_timeout must not be negative"))
	}

	if cfg.Recording.MaxDuration < 0 {
		errs = append(errs, fmt.Errorf("recording.max_duration must not be negative"))
	}
	if cfg.Recording.MaxSilence < 0 {
		errs = append(errs, fmt.Errorf("recording.max_silence must not be negative"))
	}

	return errors.Join(errs...)
}

// validateBackend checks one backend block. An empty name means "mock".
func validateBackend(kind string, b BackendConfig) []error {
	if b.Name == "" {
		return nil
	}
	var errs []error
	if !slices.Contains(validBackendNames[kind], b.Name) {
		errs = append(errs, fmt.Errorf("providers.%s.name %q is unknown; valid values: %v", kind, b.Name, validBackendNames[kind]))
	}
	if b.Name == "openai" && b.APIKey == "" {
		errs = append(errs, fmt.Errorf("providers.%s.api_key is required for the openai backend (or set OPENAI_API_KEY)", kind))
	}
	return errs
}
