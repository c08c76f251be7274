package namespace

import (
	pusher "github.com/pusher/pusher-http-go/v5"
)

// Close codes sent to evicted clients, from the Pusher protocol's
// 4000-4099 client error range.
const (
	CloseCodeAppTerminated = 4009
)

// TerminationMessage is the reason delivered when an app evicts a user.
const TerminationMessage = "You got disconnected by the app."

// Conn is the write side of a live client connection. The WebSocket
// frontend implements it; tests substitute a recording fake.
type Conn interface {
	// Send delivers one serialized protocol message to the client.
	Send(data []byte) error

	// Close terminates the connection with a protocol close code.
	Close(code int, reason string) error
}

// WebSocket is one connection's record in a namespace.
//
// Only the exported fields travel on the wire; records received from
// peer processes carry no usable Conn and cannot be written to.
type WebSocket struct {
	// ID is the Pusher socket id ({number}.{number}).
	ID string `json:"id"`

	// UserID is set once the connection is signed in to a user.
	UserID string `json:"user_id,omitempty"`

	conn Conn

	// presence maps a channel name to this connection's member data,
	// for presence channels only. Guarded by the owning Namespace.
	presence map[string]pusher.MemberData
}

// NewWebSocket creates a connection record for a live local connection.
func NewWebSocket(id string, conn Conn) *WebSocket {
	return &WebSocket{
		ID:       id,
		conn:     conn,
		presence: make(map[string]pusher.MemberData),
	}
}

// Send delivers data to the client. Records without a live connection
// (remote snapshots) drop the write.
func (ws *WebSocket) Send(data []byte) error {
	if ws.conn == nil {
		return nil
	}
	return ws.conn.Send(data)
}

// CloseConn terminates the underlying connection if one is attached.
func (ws *WebSocket) CloseConn(code int, reason string) error {
	if ws.conn == nil {
		return nil
	}
	return ws.conn.Close(code, reason)
}
