package ari

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
)

// Events connects to the ARI WebSocket and returns a channel of decoded
// Stasis events. The channel is closed when ctx is cancelled or the
// connection drops; a non-cancellation read error is logged before closing.
// Malformed event payloads are logged and skipped.
func (c *Client) Events(ctx context.Context) (<-chan Event, error) {
	wsURL, err := c.eventsURL()
	if err != nil {
		return nil, fmt.Errorf("ari: events url: %w", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Basic " + auth},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ari: dial events: %w", err)
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer conn.Close(websocket.StatusNormalClosure, "shutting down")

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("ari: event stream read", "err", err)
				}
				return
			}

			var evt Event
			if err := json.Unmarshal(data, &evt); err != nil {
				slog.Warn("ari: malformed event, skipping", "err", err)
				continue
			}

			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

// eventsURL derives the WebSocket events URL from the REST base URL:
// http(s)://host/ari becomes ws(s)://host/ari/events with the app and
// subscribeAll query parameters.
func (c *Client) eventsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/events"
	u.RawQuery = url.Values{
		"app":          {c.app},
		"subscribeAll": {"true"},
	}.Encode()
	return u.String(), nil
}
