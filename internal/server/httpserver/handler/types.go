package handler

import "encoding/json"

// ChannelAttributes describes one channel in a channel index or show
// response. UserCount is only present for presence channels.
type ChannelAttributes struct {
	Occupied          bool   `json:"occupied"`
	SubscriptionCount int64  `json:"subscription_count"`
	UserCount         *int64 `json:"user_count,omitempty"`
}

// ChannelsResponse is the body of GET /apps/{appId}/channels.
type ChannelsResponse struct {
	Channels map[string]ChannelAttributes `json:"channels"`
}

// ChannelUser is one presence member in a users listing.
type ChannelUser struct {
	ID string `json:"id"`
}

// ChannelUsersResponse is the body of GET /apps/{appId}/channels/{channel}/users.
type ChannelUsersResponse struct {
	Users []ChannelUser `json:"users"`
}

// EventBody is one event as posted to the events endpoints. Data
// passes through untouched, so callers may send either a JSON string
// (the Pusher convention) or a raw object.
type EventBody struct {
	Name     string          `json:"name"`
	Data     json.RawMessage `json:"data"`
	Channels []string        `json:"channels,omitempty"`
	Channel  string          `json:"channel,omitempty"`
	SocketID string          `json:"socket_id,omitempty"`
	Info     string          `json:"info,omitempty"`
}

// BatchBody is the body of POST /apps/{appId}/batch_events.
type BatchBody struct {
	Batch []EventBody `json:"batch"`
}

// ChannelCounts carries the attributes requested through an event's
// info field.
type ChannelCounts struct {
	SubscriptionCount *int64 `json:"subscription_count,omitempty"`
	UserCount         *int64 `json:"user_count,omitempty"`
}

// EventsResponse is the body of POST /apps/{appId}/events. Channels is
// only present when the event requested info attributes.
type EventsResponse struct {
	OK       bool                     `json:"ok"`
	Channels map[string]ChannelCounts `json:"channels,omitempty"`
}

// BatchEventsResponse is the body of POST /apps/{appId}/batch_events.
// Batch is aligned with the posted events and only present when at
// least one of them requested info attributes.
type BatchEventsResponse struct {
	OK    bool            `json:"ok"`
	Batch []ChannelCounts `json:"batch,omitempty"`
}

// OKResponse acknowledges a write with no further payload.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// eventMessage is the wire shape delivered to channel subscribers.
type eventMessage struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}
