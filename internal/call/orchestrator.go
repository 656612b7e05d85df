// Package call runs one call end-to-end: it consumes the media endpoint's
// ingress stream, segments it into utterances, asks the speech backends for
// a reply, and feeds sentence-sized chunks into the endpoint's playback
// queue — cancelling everything the moment the caller barges in.
//
// An [Orchestrator] owns its endpoint, its VAD state, its pending-chunks
// queue, and handles to the (shared, immutable) backends. Two goroutines
// cooperate per call: the ingress loop and the playback feeder. A per-call
// mutex serializes the only two transitions an observer can distinguish —
// "a chunk enters the playback queue" and "barge-in empties it" — so that
// after a barge-in completes, no chunk produced before it can still reach
// the playback worker.
package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxgate/voxgate/internal/media"
	"github.com/voxgate/voxgate/internal/observe"
	"github.com/voxgate/voxgate/internal/vad"
	"github.com/voxgate/voxgate/pkg/audio"
	"github.com/voxgate/voxgate/pkg/provider/llm"
	"github.com/voxgate/voxgate/pkg/provider/stt"
	"github.com/voxgate/voxgate/pkg/provider/tts"
)

const (
	// prefillFrames is the amount of µ-law silence prepended to the very
	// first playback of a call: 40 frames = 800 ms. It gives the remote RTP
	// receiver time to initialize its buffers before real audio arrives.
	prefillFrames = 40

	// defaultBackendTimeout bounds each recognizer/model/synthesizer call.
	defaultBackendTimeout = 30 * time.Second
)

// Backends groups the three speech backends a call needs. Backends are
// shared immutably across calls.
type Backends struct {
	Recognizer  stt.Recognizer
	Synthesizer tts.Synthesizer
	Model       llm.LanguageModel
}

// Config holds everything an [Orchestrator] needs at construction.
type Config struct {
	// ChannelID is the PBX channel id this call belongs to (used in logs).
	ChannelID string

	// Endpoint is the bound media endpoint. The orchestrator takes ownership
	// and closes it when Run returns.
	Endpoint *media.Endpoint

	// Backends are the speech backends. All three are required.
	Backends Backends

	// BackendTimeout bounds each backend call. Zero means the default (30 s).
	BackendTimeout time.Duration

	// VAD overrides the detector thresholds. Zero values use the defaults.
	VAD vad.Config

	// CaptureDir, when non-empty, receives every emitted utterance as a raw
	// µ-law file. Purely diagnostic.
	CaptureDir string

	// Metrics records pipeline instrumentation. May be nil.
	Metrics *observe.Metrics
}

// chunk is one pending reply fragment awaiting synthesis and playback.
type chunk struct {
	text string
	peer *net.UDPAddr
}

// Orchestrator drives one call's media pipeline.
type Orchestrator struct {
	cfg      Config
	endpoint *media.Endpoint

	mu     sync.Mutex // serializes enqueue-chunk vs barge-in
	chunks []chunk
	gen    uint64 // bumped by barge-in; stale synth results are dropped
	wake   chan struct{}

	prefilled bool // first-playback silence prefill already sent

	wg sync.WaitGroup // in-flight respond pipelines
}

// New creates an Orchestrator for one call. Call [Orchestrator.Run] to start
// it; Run owns the endpoint's lifetime.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Endpoint == nil {
		return nil, fmt.Errorf("call: endpoint is required")
	}
	if cfg.Backends.Recognizer == nil || cfg.Backends.Synthesizer == nil || cfg.Backends.Model == nil {
		return nil, fmt.Errorf("call: all three backends are required")
	}
	if cfg.BackendTimeout <= 0 {
		cfg.BackendTimeout = defaultBackendTimeout
	}
	return &Orchestrator{
		cfg:      cfg,
		endpoint: cfg.Endpoint,
		wake:     make(chan struct{}, 1),
	}, nil
}

// Run executes the call until ctx is cancelled or the ingress stream ends.
// The endpoint is closed on every exit path, including panics in the ingress
// loop, so the UDP bind is always released for the next call.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer func() {
		if err := o.endpoint.Close(); err != nil {
			slog.Warn("call: endpoint close", "channel_id", o.cfg.ChannelID, "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.ingressLoop(ctx) })
	g.Go(func() error { return o.playbackFeeder(ctx) })

	err := g.Wait()
	cancel()
	o.wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("call %s: %w", o.cfg.ChannelID, err)
	}
	return nil
}

// ingressLoop consumes RTP payloads, feeds the voice activity detector, and
// reacts to its hooks. The playback peer is pinned from the first received
// packet and kept for the call's lifetime.
func (o *Orchestrator) ingressLoop(ctx context.Context) error {
	frames, err := o.endpoint.Ingress(ctx, media.DefaultPacketSize)
	if err != nil {
		return fmt.Errorf("ingress: %w", err)
	}

	var peer *net.UDPAddr

	detector := vad.New(vad.Config{
		SpeechFrames:  o.cfg.VAD.SpeechFrames,
		SilenceFrames: o.cfg.VAD.SilenceFrames,
		SilenceRMS:    o.cfg.VAD.SilenceRMS,
		OnBargeIn:     o.bargeIn,
		OnUtterance: func(utterance []byte) {
			o.handleUtterance(ctx, utterance, peer)
		},
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt, ok := <-frames:
			if !ok {
				return nil
			}
			if peer == nil {
				peer = pkt.Peer
			}
			detector.Feed(pkt.Payload)
		}
	}
}

// bargeIn fires when the caller starts talking over the bot. Under the
// per-call mutex it discards every pending chunk and cancels the endpoint's
// current and queued playback, leaving silence.
func (o *Orchestrator) bargeIn() {
	o.mu.Lock()
	dropped := len(o.chunks)
	o.chunks = nil
	o.gen++
	o.endpoint.CancelPlayback()
	o.mu.Unlock()

	if o.cfg.Metrics != nil {
		o.cfg.Metrics.BargeIns.Add(context.Background(), 1)
	}
	slog.Info("call: barge-in, playback cancelled",
		"channel_id", o.cfg.ChannelID, "dropped_chunks", dropped)
}

// handleUtterance schedules the recognize → generate → split pipeline for one
// utterance. The pipeline runs asynchronously so the ingress loop keeps
// consuming frames (and can still fire barge-in) while backends are busy.
func (o *Orchestrator) handleUtterance(ctx context.Context, utterance []byte, peer *net.UDPAddr) {
	slog.Info("call: utterance detected",
		"channel_id", o.cfg.ChannelID,
		"bytes", len(utterance),
		"seconds", float64(len(utterance))/audio.SampleRate,
	)
	o.captureUtterance(utterance)
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.Utterances.Add(ctx, 1)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.respond(ctx, utterance, peer)
	}()
}

// respond runs recognition and generation for one utterance and pushes the
// reply's sentence chunks onto the pending queue. Any backend failure or
// timeout skips the response; the call stays up and ready for the next
// utterance.
func (o *Orchestrator) respond(ctx context.Context, utterance []byte, peer *net.UDPAddr) {
	text, err := o.recognize(ctx, utterance)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("call: recognition failed, skipping utterance",
				"channel_id", o.cfg.ChannelID, "err", err)
		}
		return
	}
	if text == "" {
		slog.Debug("call: no confident transcription", "channel_id", o.cfg.ChannelID)
		return
	}
	slog.Info("call: recognized", "channel_id", o.cfg.ChannelID, "text", text)

	reply, err := o.generate(ctx, text)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("call: reply generation failed, skipping response",
				"channel_id", o.cfg.ChannelID, "err", err)
		}
		return
	}
	if reply == "" {
		return
	}
	slog.Info("call: reply generated", "channel_id", o.cfg.ChannelID, "text", reply)

	pieces := SplitSentences(reply)

	o.mu.Lock()
	for _, p := range pieces {
		o.chunks = append(o.chunks, chunk{text: p, peer: peer})
	}
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// playbackFeeder pops pending chunks, synthesizes each, and enqueues the
// audio for playback. Synthesis runs outside the per-call mutex so a barge-in
// never waits on a backend call; the generation counter sampled at pop time
// detects a barge-in that raced the synthesis, in which case the stale audio
// is dropped instead of enqueued. Post-barge-in, both the chunk queue and the
// endpoint queue are therefore guaranteed empty.
func (o *Orchestrator) playbackFeeder(ctx context.Context) error {
	for {
		o.mu.Lock()
		if len(o.chunks) == 0 {
			o.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-o.wake:
				continue
			}
		}
		c := o.chunks[0]
		o.chunks = o.chunks[1:]
		gen := o.gen
		o.mu.Unlock()

		ulaw, err := o.synthesize(ctx, c.text)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			slog.Warn("call: synthesis failed, skipping chunk",
				"channel_id", o.cfg.ChannelID, "err", err)
			continue
		}

		o.mu.Lock()
		if o.gen != gen {
			o.mu.Unlock()
			slog.Debug("call: dropping chunk synthesized across a barge-in",
				"channel_id", o.cfg.ChannelID)
			continue
		}
		if !o.prefilled {
			ulaw = append(audio.Silence(prefillFrames), ulaw...)
			o.prefilled = true
		}
		err = o.endpoint.EnqueuePlayback(ulaw, c.peer, audio.SampleRate, audio.FrameDuration)
		o.mu.Unlock()
		if err != nil {
			return fmt.Errorf("feeder: %w", err)
		}
		if o.cfg.Metrics != nil {
			o.cfg.Metrics.PlaybackChunks.Add(ctx, 1)
		}
	}
}

// ─── Backend wrappers ─────────────────────────────────────────────────────────

func (o *Orchestrator) recognize(ctx context.Context, utterance []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.BackendTimeout)
	defer cancel()

	start := time.Now()
	text, err := o.cfg.Backends.Recognizer.Recognize(ctx, utterance)
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.RecognitionDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			o.cfg.Metrics.RecordBackendError(ctx, "stt")
		}
	}
	return text, err
}

func (o *Orchestrator) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.BackendTimeout)
	defer cancel()

	start := time.Now()
	reply, err := o.cfg.Backends.Model.Generate(ctx, prompt)
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.GenerationDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			o.cfg.Metrics.RecordBackendError(ctx, "llm")
		}
	}
	return reply, err
}

func (o *Orchestrator) synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.BackendTimeout)
	defer cancel()

	start := time.Now()
	ulaw, err := o.cfg.Backends.Synthesizer.Synthesize(ctx, text)
	if o.cfg.Metrics != nil {
		o.cfg.Metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			o.cfg.Metrics.RecordBackendError(ctx, "tts")
		}
	}
	return ulaw, err
}

// captureUtterance writes an utterance to the configured capture directory
// as raw µ-law. Best-effort: failures are logged and otherwise ignored.
func (o *Orchestrator) captureUtterance(utterance []byte) {
	if o.cfg.CaptureDir == "" {
		return
	}
	name := fmt.Sprintf("%s-%d.ulaw", o.cfg.ChannelID, time.Now().UnixMilli())
	path := filepath.Join(o.cfg.CaptureDir, name)
	if err := os.WriteFile(path, utterance, 0o644); err != nil {
		slog.Warn("call: utterance capture failed", "path", path, "err", err)
	}
}
