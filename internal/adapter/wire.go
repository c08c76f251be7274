package adapter

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pusher/pusher-http-go/v5"

	"github.com/atymic/soketi/internal/namespace"
)

// ============================================================================
// Request kinds
// ============================================================================

// RequestType identifies a cluster query on the wire. The numeric
// values are the wire contract shared by every node; never reorder.
type RequestType int

const (
	RequestSockets RequestType = iota
	RequestChannels
	RequestChannelSockets
	RequestChannelMembers
	RequestSocketsCount
	RequestChannelMembersCount
	RequestChannelSocketsCount
	RequestSocketExistsInChannel
	RequestChannelsWithSocketsCount
	RequestTerminateUserConnections
)

var requestTypeNames = map[RequestType]string{
	RequestSockets:                  "sockets",
	RequestChannels:                 "channels",
	RequestChannelSockets:           "channel_sockets",
	RequestChannelMembers:           "channel_members",
	RequestSocketsCount:             "sockets_count",
	RequestChannelMembersCount:      "channel_members_count",
	RequestChannelSocketsCount:      "channel_sockets_count",
	RequestSocketExistsInChannel:    "socket_exists_in_channel",
	RequestChannelsWithSocketsCount: "channels_with_sockets_count",
	RequestTerminateUserConnections: "terminate_user_connections",
}

func (t RequestType) String() string {
	if name, ok := requestTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

func (t RequestType) valid() bool {
	_, ok := requestTypeNames[t]
	return ok
}

// ============================================================================
// Messages
// ============================================================================

// RequestMessage asks every peer for its local answer to one query.
type RequestMessage struct {
	RequestID string       `json:"requestId"`
	AppID     string       `json:"appId"`
	Type      RequestType  `json:"type"`
	Opts      *RequestOpts `json:"opts,omitempty"`
}

// RequestOpts carries the kind-specific query parameters. Only the
// fields the kind needs are set.
type RequestOpts struct {
	Channel  string `json:"channel,omitempty"`
	SocketID string `json:"connectionId,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

// options returns the opts, never nil.
func (m *RequestMessage) options() RequestOpts {
	if m.Opts == nil {
		return RequestOpts{}
	}
	return *m.Opts
}

// ResponseMessage carries one process's partial answer back to the
// requester. Exactly one payload field is set, matching the request
// kind; the rest stay empty and are omitted from the wire.
type ResponseMessage struct {
	RequestID     string                 `json:"requestId"`
	Sockets       []*namespace.WebSocket `json:"sockets,omitempty"`
	Channels      ChannelOccupancy       `json:"channels,omitempty"`
	Members       MemberList             `json:"members,omitempty"`
	ChannelCounts ChannelCounts          `json:"channelsWithSocketsCount,omitempty"`
	TotalCount    *int64                 `json:"totalCount,omitempty"`
	Exists        *bool                  `json:"exists,omitempty"`
}

// BroadcastMessage fans one application event out to the cluster. Data
// stays an opaque pre-encoded string so relaying nodes never reparse
// client payloads.
type BroadcastMessage struct {
	OriginID    string `json:"originId"`
	AppID       string `json:"appId"`
	Channel     string `json:"channel"`
	Data        string `json:"data"`
	ExceptingID string `json:"exceptingId,omitempty"`
}

// ============================================================================
// Pair-array collections
// ============================================================================

// ChannelOccupancy maps a channel name to the socket ids subscribed to
// it. On the wire it is a list of [channel, [id, ...]] pairs, the
// serialized-Map form peers exchange.
type ChannelOccupancy map[string][]string

func (c ChannelOccupancy) MarshalJSON() ([]byte, error) {
	entries := make([][]any, 0, len(c))
	for channel, ids := range c {
		if ids == nil {
			ids = []string{}
		}
		entries = append(entries, []any{channel, ids})
	}
	return json.Marshal(entries)
}

func (c *ChannelOccupancy) UnmarshalJSON(data []byte) error {
	entries, err := decodePairs(data)
	if err != nil {
		return err
	}
	out := make(ChannelOccupancy, len(entries))
	for _, entry := range entries {
		var channel string
		if err := json.Unmarshal(entry[0], &channel); err != nil {
			return fmt.Errorf("channel name: %w", err)
		}
		var ids []string
		if err := json.Unmarshal(entry[1], &ids); err != nil {
			return fmt.Errorf("channel %q sockets: %w", channel, err)
		}
		out[channel] = ids
	}
	*c = out
	return nil
}

// MemberList maps a presence member id to its member data. On the wire
// it is a list of [id, memberData] pairs.
type MemberList map[string]pusher.MemberData

func (m MemberList) MarshalJSON() ([]byte, error) {
	entries := make([][]any, 0, len(m))
	for id, member := range m {
		entries = append(entries, []any{id, member})
	}
	return json.Marshal(entries)
}

func (m *MemberList) UnmarshalJSON(data []byte) error {
	entries, err := decodePairs(data)
	if err != nil {
		return err
	}
	out := make(MemberList, len(entries))
	for _, entry := range entries {
		var id string
		if err := json.Unmarshal(entry[0], &id); err != nil {
			return fmt.Errorf("member id: %w", err)
		}
		var member pusher.MemberData
		if err := json.Unmarshal(entry[1], &member); err != nil {
			return fmt.Errorf("member %q data: %w", id, err)
		}
		out[id] = member
	}
	*m = out
	return nil
}

// ChannelCounts maps a channel name to a subscription count. On the
// wire it is a list of [channel, count] pairs.
type ChannelCounts map[string]int64

func (c ChannelCounts) MarshalJSON() ([]byte, error) {
	entries := make([][]any, 0, len(c))
	for channel, count := range c {
		entries = append(entries, []any{channel, count})
	}
	return json.Marshal(entries)
}

func (c *ChannelCounts) UnmarshalJSON(data []byte) error {
	entries, err := decodePairs(data)
	if err != nil {
		return err
	}
	out := make(ChannelCounts, len(entries))
	for _, entry := range entries {
		var channel string
		if err := json.Unmarshal(entry[0], &channel); err != nil {
			return fmt.Errorf("channel name: %w", err)
		}
		var count int64
		if err := json.Unmarshal(entry[1], &count); err != nil {
			return fmt.Errorf("channel %q count: %w", channel, err)
		}
		out[channel] = count
	}
	*c = out
	return nil
}

// decodePairs parses a [[k, v], ...] list and verifies every entry has
// exactly two elements.
func decodePairs(data []byte) ([][]json.RawMessage, error) {
	var entries [][]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	for i, entry := range entries {
		if len(entry) != 2 {
			return nil, fmt.Errorf("entry %d has %d elements, want 2", i, len(entry))
		}
	}
	return entries, nil
}

// ============================================================================
// Decoding
// ============================================================================

// decodeRequest parses a peer request. Frames that do not parse, lack
// a correlation id or carry an unknown kind are rejected; the caller
// drops them without touching any state.
func decodeRequest(data []byte) (*RequestMessage, error) {
	var msg RequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RequestID == "" {
		return nil, errors.New("missing requestId")
	}
	if !msg.Type.valid() {
		return nil, fmt.Errorf("unknown request type %d", int(msg.Type))
	}
	return &msg, nil
}

// decodeResponse parses a peer response.
func decodeResponse(data []byte) (*ResponseMessage, error) {
	var msg ResponseMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.RequestID == "" {
		return nil, errors.New("missing requestId")
	}
	return &msg, nil
}

// decodeBroadcast parses a relayed application event.
func decodeBroadcast(data []byte) (*BroadcastMessage, error) {
	var msg BroadcastMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OriginID == "" {
		return nil, errors.New("missing originId")
	}
	if msg.Channel == "" {
		return nil, errors.New("missing channel")
	}
	return &msg, nil
}

func socketsToSlice(sockets map[string]*namespace.WebSocket) []*namespace.WebSocket {
	out := make([]*namespace.WebSocket, 0, len(sockets))
	for _, ws := range sockets {
		out = append(out, ws)
	}
	return out
}
