package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxgate/voxgate/internal/app"
	"github.com/voxgate/voxgate/internal/ari"
	"github.com/voxgate/voxgate/internal/call"
	"github.com/voxgate/voxgate/internal/config"
	llmmock "github.com/voxgate/voxgate/pkg/provider/llm/mock"
	sttmock "github.com/voxgate/voxgate/pkg/provider/stt/mock"
	ttsmock "github.com/voxgate/voxgate/pkg/provider/tts/mock"
)

// fakePBX serves the ARI REST surface the adapter touches and records the
// request paths in order.
type fakePBX struct {
	*httptest.Server

	mu    sync.Mutex
	paths []string
}

func newFakePBX(t *testing.T) *fakePBX {
	t.Helper()
	f := &fakePBX{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.paths = append(f.paths, r.URL.Path)
		f.mu.Unlock()

		switch {
		case r.URL.Path == "/ari/channels/externalMedia":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"id":"ext"}`))
		case r.URL.Path == "/ari/bridges":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"id":"bridge-1"}`))
		case r.URL.Path == "/ari/bridges/bridge-1/addChannel":
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/ari/bridges/bridge-1/record":
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"name":"rec"}`))
		default:
			// channels/{id}/answer and channels/{id}/play
			switch {
			case strings.HasSuffix(r.URL.Path, "/answer"):
				w.WriteHeader(http.StatusNoContent)
			case strings.HasSuffix(r.URL.Path, "/play"):
				w.WriteHeader(http.StatusCreated)
				w.Write([]byte(`{"id":"pb"}`))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}
	}))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *fakePBX) requestPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.paths))
	copy(out, f.paths)
	return out
}

func newTestApp(t *testing.T, pbx *fakePBX, cfg *config.Config) *app.App {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.ARI.URL = pbx.URL + "/ari"
	cfg.ARI.App = "voicebot"
	cfg.Media.BindHost = "127.0.0.1"
	cfg.Media.ExternalHost = "127.0.0.1"

	client, err := ari.NewClient(ari.ClientConfig{
		BaseURL:  cfg.ARI.URL,
		App:      cfg.ARI.App,
		Username: "user",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	backends := call.Backends{
		Recognizer:  &sttmock.Recognizer{},
		Synthesizer: &ttsmock.Synthesizer{},
		Model:       &llmmock.Model{},
	}
	a, err := app.New(client, cfg, backends, nil)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	return a
}

func startEvent(channelID, number string) ari.Event {
	return ari.Event{
		Type:        ari.EventStasisStart,
		Application: "voicebot",
		Channel: &ari.Channel{
			ID:     channelID,
			State:  ari.StateRing,
			Caller: ari.Caller{Name: "Alice", Number: number},
		},
	}
}

func endEvent(channelID string) ari.Event {
	return ari.Event{
		Type:    ari.EventStasisEnd,
		Channel: &ari.Channel{ID: channelID},
	}
}

func waitForCalls(t *testing.T, a *app.App, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for len(a.ActiveCalls()) != want {
		if time.Now().After(deadline) {
			t.Fatalf("active calls = %v, want %d", a.ActiveCalls(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestApp_StasisStartCreatesCall(t *testing.T) {
	t.Parallel()
	pbx := newFakePBX(t)
	a := newTestApp(t, pbx, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.HandleEvent(ctx, startEvent("chan-1", "100"))

	waitForCalls(t, a, 1)

	paths := pbx.requestPaths()
	want := []string{
		"/ari/channels/chan-1/answer",
		"/ari/channels/externalMedia",
		"/ari/bridges",
		"/ari/bridges/bridge-1/addChannel",
		"/ari/bridges/bridge-1/addChannel",
	}
	if len(paths) != len(want) {
		t.Fatalf("request paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("request %d = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestApp_EmptyCallerNumberIgnored(t *testing.T) {
	t.Parallel()
	pbx := newFakePBX(t)
	a := newTestApp(t, pbx, nil)

	a.HandleEvent(context.Background(), startEvent("ext-chan", ""))

	if got := a.ActiveCalls(); len(got) != 0 {
		t.Errorf("active calls = %v, want none", got)
	}
	if paths := pbx.requestPaths(); len(paths) != 0 {
		t.Errorf("requests issued for empty caller number: %v", paths)
	}
}

func TestApp_UnknownEventNoSideEffects(t *testing.T) {
	t.Parallel()
	pbx := newFakePBX(t)
	a := newTestApp(t, pbx, nil)

	a.HandleEvent(context.Background(), ari.Event{Type: ari.EventUnknown})

	if paths := pbx.requestPaths(); len(paths) != 0 {
		t.Errorf("requests issued for unknown event: %v", paths)
	}
}

func TestApp_StasisEndTearsDownCall(t *testing.T) {
	t.Parallel()
	pbx := newFakePBX(t)
	a := newTestApp(t, pbx, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.HandleEvent(ctx, startEvent("chan-1", "100"))
	waitForCalls(t, a, 1)

	a.HandleEvent(ctx, endEvent("chan-1"))
	waitForCalls(t, a, 0)
}

func TestApp_StasisEndForUnknownChannelIgnored(t *testing.T) {
	t.Parallel()
	pbx := newFakePBX(t)
	a := newTestApp(t, pbx, nil)

	a.HandleEvent(context.Background(), endEvent("never-seen"))

	if got := a.ActiveCalls(); len(got) != 0 {
		t.Errorf("active calls = %v, want none", got)
	}
}

func TestApp_ConcurrentCallsAreIndependent(t *testing.T) {
	t.Parallel()
	pbx := newFakePBX(t)
	a := newTestApp(t, pbx, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.HandleEvent(ctx, startEvent("chan-1", "100"))
	a.HandleEvent(ctx, startEvent("chan-2", "200"))
	waitForCalls(t, a, 2)

	a.HandleEvent(ctx, endEvent("chan-1"))
	waitForCalls(t, a, 1)

	if got := a.ActiveCalls(); len(got) != 1 || got[0] != "chan-2" {
		t.Errorf("active calls = %v, want [chan-2]", got)
	}
}

func TestApp_GreetingAndRecordingRequested(t *testing.T) {
	t.Parallel()
	pbx := newFakePBX(t)
	cfg := &config.Config{Greeting: "sound:hello-world"}
	cfg.Recording.Enabled = true
	a := newTestApp(t, pbx, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.HandleEvent(ctx, startEvent("chan-1", "100"))
	waitForCalls(t, a, 1)

	var sawPlay, sawRecord bool
	for _, p := range pbx.requestPaths() {
		if p == "/ari/channels/chan-1/play" {
			sawPlay = true
		}
		if p == "/ari/bridges/bridge-1/record" {
			sawRecord = true
		}
	}
	if !sawPlay {
		t.Error("no play request for the configured greeting")
	}
	if !sawRecord {
		t.Error("no record request despite recording enabled")
	}
}
