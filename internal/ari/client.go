package ari

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is an Asterisk REST Interface client scoped to one Stasis
// application. Safe for concurrent use.
type Client struct {
	baseURL  string
	app      string
	username string
	password string
	http     *http.Client
}

// ClientConfig holds the connection parameters for an ARI [Client].
type ClientConfig struct {
	// BaseURL is the ARI root, e.g. "http://pbx:8088/ari".
	BaseURL string

	// App is the Stasis application name.
	App string

	// Username and Password are the ARI HTTP Basic Auth credentials.
	Username string
	Password string

	// HTTPClient overrides the HTTP client. Nil means a client with a 10 s
	// timeout.
	HTTPClient *http.Client
}

// NewClient creates a Client from cfg.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ari: base URL is required")
	}
	if cfg.App == "" {
		return nil, fmt.Errorf("ari: application name is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		app:      cfg.App,
		username: cfg.Username,
		password: cfg.Password,
		http:     hc,
	}, nil
}

// App returns the Stasis application name this client is scoped to.
func (c *Client) App() string { return c.app }

// Credentials returns the Basic Auth username and password.
func (c *Client) Credentials() (user, pass string) { return c.username, c.password }

// BaseURL returns the ARI root URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Answer answers the channel.
func (c *Client) Answer(ctx context.Context, channelID string) error {
	_, err := c.post(ctx, "/channels/"+url.PathEscape(channelID)+"/answer", nil, http.StatusNoContent)
	if err != nil {
		return fmt.Errorf("ari: answer channel %s: %w", channelID, err)
	}
	return nil
}

// CreateExternalMedia asks Asterisk to originate an external-media channel
// that exchanges µ-law RTP with externalHost ("host:port"). The channel is
// created with the given id and placed into this client's Stasis app.
func (c *Client) CreateExternalMedia(ctx context.Context, channelID, externalHost string) error {
	q := url.Values{
		"channelId":       {channelID},
		"app":             {c.app},
		"external_host":   {externalHost},
		"format":          {"ulaw"},
		"encapsulation":   {"rtp"},
		"transport":       {"udp"},
		"connection_type": {"client"},
		"direction":       {"both"},
	}
	_, err := c.post(ctx, "/channels/externalMedia", q, http.StatusOK)
	if err != nil {
		return fmt.Errorf("ari: create external media %s: %w", channelID, err)
	}
	return nil
}

// CreateBridge creates a mixing bridge and returns its id.
func (c *Client) CreateBridge(ctx context.Context) (string, error) {
	q := url.Values{"type": {"mixing"}}
	body, err := c.post(ctx, "/bridges", q, http.StatusOK)
	if err != nil {
		return "", fmt.Errorf("ari: create bridge: %w", err)
	}
	var bridge struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &bridge); err != nil {
		return "", fmt.Errorf("ari: create bridge: decode response: %w", err)
	}
	if bridge.ID == "" {
		return "", fmt.Errorf("ari: create bridge: response carries no id")
	}
	return bridge.ID, nil
}

// AddChannel adds a channel to a bridge.
func (c *Client) AddChannel(ctx context.Context, bridgeID, channelID string) error {
	q := url.Values{"channel": {channelID}}
	_, err := c.post(ctx, "/bridges/"+url.PathEscape(bridgeID)+"/addChannel", q, http.StatusNoContent)
	if err != nil {
		return fmt.Errorf("ari: add channel %s to bridge %s: %w", channelID, bridgeID, err)
	}
	return nil
}

// Play starts playback of a media URI (e.g. "sound:hello-world") on a
// channel.
func (c *Client) Play(ctx context.Context, channelID, media string) error {
	q := url.Values{"media": {media}}
	_, err := c.post(ctx, "/channels/"+url.PathEscape(channelID)+"/play", q, http.StatusCreated)
	if err != nil {
		return fmt.Errorf("ari: play %q on channel %s: %w", media, channelID, err)
	}
	return nil
}

// RecordOptions configures a bridge recording.
type RecordOptions struct {
	// Name is the recording name on the PBX.
	Name string

	// MaxDuration limits the recording length. Zero means no limit.
	MaxDuration time.Duration

	// MaxSilence stops the recording after this much continuous silence.
	// Zero means no limit.
	MaxSilence time.Duration

	// Beep plays a beep when the recording starts.
	Beep bool
}

// Record starts a WAV recording of a bridge. The recording fails if a
// recording with the same name already exists.
func (c *Client) Record(ctx context.Context, bridgeID string, opts RecordOptions) error {
	q := url.Values{
		"name":               {opts.Name},
		"format":             {"wav"},
		"maxDurationSeconds": {strconv.Itoa(int(opts.MaxDuration / time.Second))},
		"maxSilenceSeconds":  {strconv.Itoa(int(opts.MaxSilence / time.Second))},
		"ifExists":           {"fail"},
		"beep":               {strconv.FormatBool(opts.Beep)},
	}
	_, err := c.post(ctx, "/bridges/"+url.PathEscape(bridgeID)+"/record", q, http.StatusCreated)
	if err != nil {
		return fmt.Errorf("ari: record bridge %s: %w", bridgeID, err)
	}
	return nil
}

// post issues a POST to path with query params and verifies the response
// status. The response body is returned for callers that decode it.
func (c *Client) post(ctx context.Context, path string, q url.Values, wantStatus int) ([]byte, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != wantStatus {
		return nil, fmt.Errorf("unexpected status %d (want %d): %s",
			resp.StatusCode, wantStatus, strings.TrimSpace(string(body)))
	}
	return body, nil
}
