// Package ari talks to the Asterisk REST Interface: a typed event model for
// the Stasis WebSocket stream, a REST client for channel and bridge control,
// and the event-stream reader.
package ari

import (
	"encoding/json"
	"time"
)

// EventType identifies a Stasis event. Any type the gateway does not handle
// decodes to [EventUnknown] so that new Asterisk event types never break the
// stream.
type EventType int

const (
	// EventUnknown is any event type the gateway does not act on.
	EventUnknown EventType = iota

	// EventStasisStart signals a channel entering the Stasis application.
	EventStasisStart

	// EventStasisEnd signals a channel leaving the Stasis application.
	EventStasisEnd
)

// String returns the ARI wire name of the event type.
func (t EventType) String() string {
	switch t {
	case EventStasisStart:
		return "StasisStart"
	case EventStasisEnd:
		return "StasisEnd"
	default:
		return "Unknown"
	}
}

// UnmarshalJSON decodes an ARI event type string, degrading unrecognized
// values to [EventUnknown].
func (t *EventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "StasisStart":
		*t = EventStasisStart
	case "StasisEnd":
		*t = EventStasisEnd
	default:
		*t = EventUnknown
	}
	return nil
}

// ChannelState is the Asterisk channel state. States the gateway does not
// distinguish decode to [StateUnknown].
type ChannelState int

const (
	// StateUnknown is any channel state the gateway does not distinguish.
	StateUnknown ChannelState = iota

	// StateUp means the channel is answered and passing media.
	StateUp

	// StateRing means the channel is ringing.
	StateRing
)

// String returns the ARI wire name of the channel state.
func (s ChannelState) String() string {
	switch s {
	case StateUp:
		return "Up"
	case StateRing:
		return "Ring"
	default:
		return "Unknown"
	}
}

// UnmarshalJSON decodes an ARI channel state string, degrading unrecognized
// values to [StateUnknown].
func (s *ChannelState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "Up":
		*s = StateUp
	case "Ring":
		*s = StateRing
	default:
		*s = StateUnknown
	}
	return nil
}

// Caller identifies the calling party of a channel.
type Caller struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// Dialplan describes the dialplan location a channel is executing.
type Dialplan struct {
	Context  string `json:"context"`
	Exten    string `json:"exten"`
	Priority int64  `json:"priority"`
	AppName  string `json:"app_name"`
	AppData  string `json:"app_data"`
}

// Channel is the ARI channel object carried by Stasis events.
type Channel struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	State      ChannelState `json:"state"`
	ProtocolID string       `json:"protocol_id"`
	Caller     Caller       `json:"caller"`
	Dialplan   Dialplan     `json:"dialplan"`
	Language   string       `json:"language"`
}

// Event is the envelope of one Stasis event. Channel is nil for events that
// do not carry one.
type Event struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AsteriskID  string    `json:"asterisk_id"`
	Application string    `json:"application"`
	Channel     *Channel  `json:"channel,omitempty"`
}
