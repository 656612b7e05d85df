package ari_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/voxgate/voxgate/internal/ari"
)

func TestClient_Events(t *testing.T) {
	t.Parallel()

	type seen struct {
		path string
		app  string
		sub  string
		auth string
	}
	sawReq := make(chan seen, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawReq <- seen{
			path: r.URL.Path,
			app:  r.URL.Query().Get("app"),
			sub:  r.URL.Query().Get("subscribeAll"),
			auth: r.Header.Get("Authorization"),
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		msgs := []string{
			`{"type":"StasisStart","application":"voicebot","channel":{"id":"c1","caller":{"number":"100"}}}`,
			`{not json`,
			`{"type":"ChannelVarset"}`,
		}
		for _, m := range msgs {
			if err := conn.Write(ctx, websocket.MessageText, []byte(m)); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		conn.Read(ctx)
	}))
	t.Cleanup(srv.Close)

	c, err := ari.NewClient(ari.ClientConfig{
		BaseURL:  srv.URL + "/ari",
		App:      "voicebot",
		Username: "user",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, err := c.Events(ctx)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}

	req := <-sawReq
	if req.path != "/ari/events" {
		t.Errorf("path = %q, want /ari/events", req.path)
	}
	if req.app != "voicebot" || req.sub != "true" {
		t.Errorf("query app=%q subscribeAll=%q", req.app, req.sub)
	}
	if req.auth == "" {
		t.Error("no Authorization header sent")
	}

	first := <-events
	if first.Type != ari.EventStasisStart {
		t.Errorf("first event type = %v, want StasisStart", first.Type)
	}
	if first.Channel == nil || first.Channel.ID != "c1" {
		t.Errorf("first event channel = %+v", first.Channel)
	}

	// The malformed message is skipped; the unknown type still arrives.
	second := <-events
	if second.Type != ari.EventUnknown {
		t.Errorf("second event type = %v, want Unknown", second.Type)
	}
}
