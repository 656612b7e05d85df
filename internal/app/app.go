// Package app wires the gateway together: it consumes the PBX event stream
// and manages the lifecycle of per-call media pipelines.
//
// For every caller entering the Stasis application the adapter answers the
// channel, binds a fresh UDP media endpoint, asks the PBX to originate an
// external-media channel pointing at it, bridges the two channels, and starts
// a call orchestrator. When the caller leaves, the orchestrator is cancelled
// and its resources released. The external-media channel enters the same
// Stasis application with an empty caller number, which is exactly the event
// shape the adapter ignores, so it never spawns a second pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/ari"
	"github.com/voxgate/voxgate/internal/call"
	"github.com/voxgate/voxgate/internal/config"
	"github.com/voxgate/voxgate/internal/media"
	"github.com/voxgate/voxgate/internal/observe"
	"github.com/voxgate/voxgate/internal/vad"
)

// activeCall is the registry entry for one running call.
type activeCall struct {
	cancel     context.CancelFunc
	externalID string
	bridgeID   string
	done       chan struct{}
}

// App is the control-plane adapter. Safe for concurrent use; the registry is
// mutated only from the event loop but read by tests and shutdown.
type App struct {
	client   *ari.Client
	cfg      *config.Config
	backends call.Backends
	metrics  *observe.Metrics

	mu    sync.Mutex
	calls map[string]*activeCall
}

// New creates the adapter. metrics may be nil.
func New(client *ari.Client, cfg *config.Config, backends call.Backends, metrics *observe.Metrics) (*App, error) {
	if client == nil {
		return nil, fmt.Errorf("app: ari client is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	return &App{
		client:   client,
		cfg:      cfg,
		backends: backends,
		metrics:  metrics,
		calls:    make(map[string]*activeCall),
	}, nil
}

// Run connects to the PBX event stream and dispatches events until ctx is
// cancelled or the stream ends. All running calls are cancelled before Run
// returns.
func (a *App) Run(ctx context.Context) error {
	events, err := a.client.Events(ctx)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	slog.Info("app: connected to event stream", "app", a.client.App())

	defer a.shutdownCalls()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return fmt.Errorf("app: event stream closed")
			}
			a.HandleEvent(ctx, evt)
		}
	}
}

// HandleEvent dispatches one Stasis event. Exported for tests; Run calls it
// for every received event. Unknown event types have no side effects.
func (a *App) HandleEvent(ctx context.Context, evt ari.Event) {
	switch evt.Type {
	case ari.EventStasisStart:
		a.handleStasisStart(ctx, evt)
	case ari.EventStasisEnd:
		a.handleStasisEnd(evt)
	}
}

// ActiveCalls returns the channel ids of all currently running calls.
func (a *App) ActiveCalls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.calls))
	for id := range a.calls {
		ids = append(ids, id)
	}
	return ids
}

// handleStasisStart sets up the media path for a new caller and starts its
// orchestrator. Events without a caller number (including our own
// external-media channels) are ignored. Setup failures tear down whatever
// was already created and leave the registry untouched.
func (a *App) handleStasisStart(ctx context.Context, evt ari.Event) {
	ch := evt.Channel
	if ch == nil || ch.Caller.Number == "" {
		return
	}

	a.mu.Lock()
	_, exists := a.calls[ch.ID]
	a.mu.Unlock()
	if exists {
		slog.Warn("app: duplicate StasisStart, ignoring", "channel_id", ch.ID)
		return
	}

	slog.Info("app: incoming call",
		"channel_id", ch.ID,
		"caller_name", ch.Caller.Name,
		"caller_number", ch.Caller.Number,
		"state", ch.State.String(),
	)

	if err := a.client.Answer(ctx, ch.ID); err != nil {
		slog.Error("app: answer failed", "channel_id", ch.ID, "err", err)
		return
	}

	endpoint, err := media.Open(net.JoinHostPort(a.cfg.Media.BindHost, "0"))
	if err != nil {
		slog.Error("app: media endpoint bind failed", "channel_id", ch.ID, "err", err)
		return
	}

	externalID := uuid.NewString()
	externalHost := net.JoinHostPort(a.cfg.Media.ExternalHost, strconv.Itoa(endpoint.LocalAddr().Port))
	if err := a.client.CreateExternalMedia(ctx, externalID, externalHost); err != nil {
		slog.Error("app: external media failed", "channel_id", ch.ID, "err", err)
		endpoint.Close()
		return
	}

	bridgeID, err := a.client.CreateBridge(ctx)
	if err != nil {
		slog.Error("app: bridge creation failed", "channel_id", ch.ID, "err", err)
		endpoint.Close()
		return
	}
	if err := a.client.AddChannel(ctx, bridgeID, ch.ID); err != nil {
		slog.Error("app: bridge caller channel", "channel_id", ch.ID, "bridge_id", bridgeID, "err", err)
		endpoint.Close()
		return
	}
	if err := a.client.AddChannel(ctx, bridgeID, externalID); err != nil {
		slog.Error("app: bridge external channel", "channel_id", ch.ID, "bridge_id", bridgeID, "err", err)
		endpoint.Close()
		return
	}

	if a.cfg.Greeting != "" {
		if err := a.client.Play(ctx, ch.ID, a.cfg.Greeting); err != nil {
			slog.Warn("app: greeting playback failed", "channel_id", ch.ID, "err", err)
		}
	}
	if a.cfg.Recording.Enabled {
		opts := ari.RecordOptions{
			Name:        "call-" + ch.ID,
			MaxDuration: a.cfg.Recording.MaxDuration,
			MaxSilence:  a.cfg.Recording.MaxSilence,
			Beep:        a.cfg.Recording.Beep,
		}
		if err := a.client.Record(ctx, bridgeID, opts); err != nil {
			slog.Warn("app: bridge recording failed", "channel_id", ch.ID, "err", err)
		}
	}

	orch, err := call.New(call.Config{
		ChannelID:      ch.ID,
		Endpoint:       endpoint,
		Backends:       a.backends,
		BackendTimeout: a.cfg.Pipeline.BackendTimeout,
		VAD:            a.vadConfig(),
		CaptureDir:     a.cfg.Pipeline.CaptureDir,
		Metrics:        a.metrics,
	})
	if err != nil {
		slog.Error("app: orchestrator setup failed", "channel_id", ch.ID, "err", err)
		endpoint.Close()
		return
	}

	callCtx, cancel := context.WithCancel(ctx)
	entry := &activeCall{
		cancel:     cancel,
		externalID: externalID,
		bridgeID:   bridgeID,
		done:       make(chan struct{}),
	}

	a.mu.Lock()
	a.calls[ch.ID] = entry
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.ActiveCalls.Add(ctx, 1)
	}

	go func() {
		defer close(entry.done)
		err := orch.Run(callCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("app: call ended with error", "channel_id", ch.ID, "err", err)
		} else {
			slog.Info("app: call ended", "channel_id", ch.ID)
		}
		a.removeCall(ch.ID)
	}()

	slog.Info("app: call started",
		"channel_id", ch.ID,
		"external_id", externalID,
		"bridge_id", bridgeID,
		"rtp_addr", externalHost,
	)
}

// handleStasisEnd cancels the call belonging to the departed channel. Ends
// for unknown channels (including external-media channels) are ignored.
func (a *App) handleStasisEnd(evt ari.Event) {
	if evt.Channel == nil {
		return
	}
	a.mu.Lock()
	entry, ok := a.calls[evt.Channel.ID]
	a.mu.Unlock()
	if !ok {
		return
	}
	slog.Info("app: caller left, tearing down", "channel_id", evt.Channel.ID)
	entry.cancel()
}

// removeCall drops a call from the registry once its orchestrator has
// returned.
func (a *App) removeCall(channelID string) {
	a.mu.Lock()
	entry, ok := a.calls[channelID]
	if ok {
		delete(a.calls, channelID)
	}
	a.mu.Unlock()
	if !ok {
		return
	}
	entry.cancel()
	if a.metrics != nil {
		a.metrics.ActiveCalls.Add(context.Background(), -1)
	}
}

// shutdownCalls cancels every running call and waits for the orchestrators
// to return.
func (a *App) shutdownCalls() {
	a.mu.Lock()
	entries := make([]*activeCall, 0, len(a.calls))
	for _, entry := range a.calls {
		entries = append(entries, entry)
	}
	a.mu.Unlock()

	for _, entry := range entries {
		entry.cancel()
	}
	for _, entry := range entries {
		<-entry.done
	}
}

// vadConfig translates the pipeline tuning into detector thresholds.
func (a *App) vadConfig() vad.Config {
	return vad.Config{
		SpeechFrames:  a.cfg.Pipeline.SpeechFrames,
		SilenceFrames: a.cfg.Pipeline.SilenceFrames,
		SilenceRMS:    a.cfg.Pipeline.SilenceRMS,
	}
}
