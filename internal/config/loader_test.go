package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/voxgate/voxgate/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	yaml := `
server:
  metrics_addr: ":9090"
  log_level: debug
ari:
  url: http://pbx:8088/ari
  app: voicebot
  username: user
  password: secret
media:
  bind_host: 0.0.0.0
  external_host: 10.0.0.5
providers:
  stt:
    name: openai
    api_key: sk-test
    model: whisper-1
  tts:
    name: openai
    api_key: sk-test
    voice: alloy
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
    system_prompt: Be brief.
pipeline:
  speech_frames: 10
  silence_frames: 20
  silence_rms: 30
  backend_timeout: 45s
recording:
  enabled: true
  max_duration: 10m
greeting: sound:hello-world
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.ARI.URL != "http://pbx:8088/ari" || cfg.ARI.App != "voicebot" {
		t.Errorf("ari = %+v", cfg.ARI)
	}
	if cfg.Media.ExternalHost != "10.0.0.5" {
		t.Errorf("external_host = %q", cfg.Media.ExternalHost)
	}
	if cfg.Pipeline.BackendTimeout != 45*time.Second {
		t.Errorf("backend_timeout = %v", cfg.Pipeline.BackendTimeout)
	}
	if !cfg.Recording.Enabled || cfg.Recording.MaxDuration != 10*time.Minute {
		t.Errorf("recording = %+v", cfg.Recording)
	}
	if cfg.Greeting != "sound:hello-world" {
		t.Errorf("greeting = %q", cfg.Greeting)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := `
server:
  listen_port: 8080
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("unknown field accepted, want decode error")
	}
}

func TestLoadFromReader_EmptyGetsDefaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.ARI.URL != "http://localhost:8088/ari" {
		t.Errorf("default ari url = %q", cfg.ARI.URL)
	}
	if cfg.ARI.App != config.DefaultARIApp {
		t.Errorf("default app = %q", cfg.ARI.App)
	}
	if cfg.Media.BindHost != config.DefaultBindHost {
		t.Errorf("default bind host = %q", cfg.Media.BindHost)
	}
	if cfg.Media.ExternalHost != cfg.Media.BindHost {
		t.Errorf("external host = %q, want bind host fallback", cfg.Media.ExternalHost)
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_UnknownBackendName(t *testing.T) {
	yaml := `
providers:
  llm:
    name: skynet
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown backend name, got nil")
	}
	if !strings.Contains(err.Error(), "skynet") {
		t.Errorf("error should name the backend, got: %v", err)
	}
}

func TestValidate_OpenAIRequiresAPIKey(t *testing.T) {
	yaml := `
providers:
  stt:
    name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for openai backend without api key, got nil")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("error should mention api_key, got: %v", err)
	}
}

func TestValidate_NegativeThresholds(t *testing.T) {
	yaml := `
pipeline:
  speech_frames: -1
  silence_frames: -2
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative thresholds, got nil")
	}
	if !strings.Contains(err.Error(), "speech_frames") || !strings.Contains(err.Error(), "silence_frames") {
		t.Errorf("joined error should list both failures, got: %v", err)
	}
}

func TestApplyEnv_HostPortOverride(t *testing.T) {
	t.Setenv("AST_HOST", "pbx.example.com")
	t.Setenv("AST_PORT", "9088")
	t.Setenv("AST_APP", "frontdesk")
	t.Setenv("AST_USER", "ops")
	t.Setenv("AST_PASS", "hunter2")

	cfg := &config.Config{}
	cfg.ARI.URL = "http://stale:8088/ari"
	config.ApplyEnv(cfg)

	if cfg.ARI.URL != "http://pbx.example.com:9088/ari" {
		t.Errorf("ari url = %q", cfg.ARI.URL)
	}
	if cfg.ARI.App != "frontdesk" || cfg.ARI.Username != "ops" || cfg.ARI.Password != "hunter2" {
		t.Errorf("ari = %+v", cfg.ARI)
	}
}

func TestApplyEnv_URLWinsOverHostPort(t *testing.T) {
	t.Setenv("AST_HOST", "ignored")
	t.Setenv("AST_URL", "https://pbx:8089/ari")

	cfg := &config.Config{}
	config.ApplyEnv(cfg)

	if cfg.ARI.URL != "https://pbx:8089/ari" {
		t.Errorf("ari url = %q, want the AST_URL value", cfg.ARI.URL)
	}
}

func TestApplyEnv_OpenAIKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := &config.Config{}
	cfg.Providers.LLM.Name = "openai"
	cfg.Providers.STT.Name = "openai"
	cfg.Providers.STT.APIKey = "sk-explicit"
	config.ApplyEnv(cfg)

	if cfg.Providers.LLM.APIKey != "sk-env" {
		t.Errorf("llm api key = %q, want env fallback", cfg.Providers.LLM.APIKey)
	}
	if cfg.Providers.STT.APIKey != "sk-explicit" {
		t.Errorf("stt api key = %q, explicit key must win", cfg.Providers.STT.APIKey)
	}
}
