// Package openai provides a speech synthesizer backed by the OpenAI audio
// speech API.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxgate/voxgate/pkg/audio"
	"github.com/voxgate/voxgate/pkg/provider/tts"
)

// Compile-time check that *Synthesizer satisfies [tts.Synthesizer].
var _ tts.Synthesizer = (*Synthesizer)(nil)

// maxSpeechResponse caps a synthesis download. One minute of 24 kHz 16-bit
// WAV is under 3 MiB; 32 MiB leaves ample headroom.
const maxSpeechResponse = 32 << 20

// Synthesizer implements tts.Synthesizer using the OpenAI speech API. The
// API returns wideband WAV; the synthesizer downsamples it to the telephony
// rate and compresses it to µ-law.
type Synthesizer struct {
	client oai.Client
	model  string
	voice  string
}

// config holds optional configuration for the synthesizer.
type config struct {
	baseURL string
	timeout time.Duration
	voice   string
}

// Option is a functional option for Synthesizer.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithVoice selects the synthesis voice. Default: alloy.
func WithVoice(voice string) Option {
	return func(c *config) {
		c.voice = voice
	}
}

// New constructs a new OpenAI synthesizer. An empty model defaults to tts-1.
func New(apiKey string, model string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		model = "tts-1"
	}

	cfg := &config{voice: "alloy"}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.voice == "" {
		cfg.voice = "alloy"
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Synthesizer{
		client: oai.NewClient(reqOpts...),
		model:  model,
		voice:  cfg.voice,
	}, nil
}

// Synthesize implements tts.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(s.model),
		Voice:          oai.AudioSpeechNewParamsVoice(s.voice),
		Input:          text,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatWAV,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: speech synthesis: %w", err)
	}
	defer resp.Body.Close()

	wav, err := io.ReadAll(io.LimitReader(resp.Body, maxSpeechResponse))
	if err != nil {
		return nil, fmt.Errorf("openai: read speech response: %w", err)
	}

	pcm, rate, err := audio.UnwrapWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("openai: decode speech response: %w", err)
	}
	pcm = audio.ResamplePCM(pcm, rate, audio.SampleRate)
	return audio.PCMToUlaw(pcm), nil
}
