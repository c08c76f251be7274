package domain

import (
	"fmt"
	"strings"
)

// Channel name prefixes defined by the Pusher protocol.
const (
	PrivateChannelPrefix   = "private-"
	EncryptedChannelPrefix = "private-encrypted-"
	PresenceChannelPrefix  = "presence-"
)

// DefaultMaxChannelNameLength caps channel names when the app sets no limit.
const DefaultMaxChannelNameLength = 200

// IsPrivateChannel reports whether the channel requires client authorization.
// Encrypted channels are private channels.
func IsPrivateChannel(channel string) bool {
	return strings.HasPrefix(channel, PrivateChannelPrefix)
}

// IsEncryptedChannel reports whether the channel carries end-to-end
// encrypted payloads.
func IsEncryptedChannel(channel string) bool {
	return strings.HasPrefix(channel, EncryptedChannelPrefix)
}

// IsPresenceChannel reports whether the channel tracks member presence.
func IsPresenceChannel(channel string) bool {
	return strings.HasPrefix(channel, PresenceChannelPrefix)
}

// ValidateChannelName validates a channel name against the given length limit.
// A zero or negative maxLength falls back to DefaultMaxChannelNameLength.
func ValidateChannelName(channel string, maxLength int) error {
	if channel == "" {
		return ErrEventValidation.WithDetails("channel name is empty")
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxChannelNameLength
	}
	if len(channel) > maxLength {
		return ErrChannelNameTooLong.WithDetails(fmt.Sprintf("%d > %d characters", len(channel), maxLength))
	}
	return nil
}
