// Command voxgate is the main entry point for the voxgate media gateway: it
// bridges a PBX Stasis application with speech backends over per-call RTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxgate/voxgate/internal/app"
	"github.com/voxgate/voxgate/internal/ari"
	"github.com/voxgate/voxgate/internal/call"
	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/observe"
	llmmock "github.com/voxgate/voxgate/pkg/provider/llm/mock"
	llmopenai "github.com/voxgate/voxgate/pkg/provider/llm/openai"
	sttmock "github.com/voxgate/voxgate/pkg/provider/stt/mock"
	sttopenai "github.com/voxgate/voxgate/pkg/provider/stt/openai"
	ttsmock "github.com/voxgate/voxgate/pkg/provider/tts/mock"
	ttsopenai "github.com/voxgate/voxgate/pkg/provider/tts/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxgate: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxgate: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxgate starting",
		"config", *configPath,
		"ari_url", cfg.ARI.URL,
		"app", cfg.ARI.App,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voxgate",
	})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "err", err)
			}
		}()
		defer srv.Close()
		slog.Info("metrics endpoint up", "addr", cfg.Server.MetricsAddr)
	}

	// ── Speech backends ───────────────────────────────────────────────────────
	backends, err := buildBackends(cfg)
	if err != nil {
		slog.Error("failed to build speech backends", "err", err)
		return 1
	}

	// ── Control plane ─────────────────────────────────────────────────────────
	client, err := ari.NewClient(ari.ClientConfig{
		BaseURL:  cfg.ARI.URL,
		App:      cfg.ARI.App,
		Username: cfg.ARI.Username,
		Password: cfg.ARI.Password,
	})
	if err != nil {
		slog.Error("failed to create ARI client", "err", err)
		return 1
	}

	application, err := app.New(client, cfg, backends, metrics)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("gateway ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Backend wiring ────────────────────────────────────────────────────────────

// buildBackends instantiates the three speech backends named in cfg. An empty
// or "mock" name yields the in-process mock, which keeps the gateway usable
// for wiring tests without credentials.
func buildBackends(cfg *config.Config) (call.Backends, error) {
	var b call.Backends

	switch cfg.Providers.STT.Name {
	case "openai":
		var opts []sttopenai.Option
		if cfg.Providers.STT.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(cfg.Providers.STT.BaseURL))
		}
		r, err := sttopenai.New(cfg.Providers.STT.APIKey, cfg.Providers.STT.Model, opts...)
		if err != nil {
			return b, fmt.Errorf("create stt backend: %w", err)
		}
		b.Recognizer = r
	default:
		b.Recognizer = &sttmock.Recognizer{}
		slog.Warn("stt backend is a mock; configure providers.stt for real recognition")
	}

	switch cfg.Providers.TTS.Name {
	case "openai":
		opts := []ttsopenai.Option{}
		if cfg.Providers.TTS.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(cfg.Providers.TTS.BaseURL))
		}
		if cfg.Providers.TTS.Voice != "" {
			opts = append(opts, ttsopenai.WithVoice(cfg.Providers.TTS.Voice))
		}
		s, err := ttsopenai.New(cfg.Providers.TTS.APIKey, cfg.Providers.TTS.Model, opts...)
		if err != nil {
			return b, fmt.Errorf("create tts backend: %w", err)
		}
		b.Synthesizer = s
	default:
		b.Synthesizer = &ttsmock.Synthesizer{}
		slog.Warn("tts backend is a mock; configure providers.tts for real synthesis")
	}

	switch cfg.Providers.LLM.Name {
	case "openai":
		var opts []llmopenai.Option
		if cfg.Providers.LLM.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(cfg.Providers.LLM.BaseURL))
		}
		if cfg.Providers.LLM.SystemPrompt != "" {
			opts = append(opts, llmopenai.WithSystemPrompt(cfg.Providers.LLM.SystemPrompt))
		}
		m, err := llmopenai.New(cfg.Providers.LLM.APIKey, cfg.Providers.LLM.Model, opts...)
		if err != nil {
			return b, fmt.Errorf("create llm backend: %w", err)
		}
		b.Model = m
	default:
		b.Model = &llmmock.Model{Reply: "I am sorry, no language model is configured."}
		slog.Warn("llm backend is a mock; configure providers.llm for real replies")
	}

	return b, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
