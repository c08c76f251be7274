package apps

import (
	"fmt"

	"github.com/atymic/soketi/internal/core/domain"
)

// Default per-app limits, applied where a field is zero.
const (
	DefaultMaxChannelNameLength         = 200
	DefaultMaxEventChannelsAtOnce       = 100
	DefaultMaxEventNameLength           = 200
	DefaultMaxEventPayloadInKB          = 100
	DefaultMaxEventBatchSize            = 10
	DefaultMaxPresenceMembersPerChannel = 100
	DefaultMaxPresenceMemberSizeInKB    = 2
)

// App is one tenant: a credential pair with its own connections,
// channels and limits.
//
// Rate limits of zero or below mean unlimited. Structural limits of
// zero are filled with the defaults above.
type App struct {
	ID       string `koanf:"id" json:"id"`
	Key      string `koanf:"key" json:"key"`
	Secret   string `koanf:"secret" json:"secret"`
	Disabled bool   `koanf:"disabled" json:"disabled,omitempty"`

	EnableClientMessages bool `koanf:"enable_client_messages" json:"enable_client_messages,omitempty"`

	MaxConnections            int64 `koanf:"max_connections" json:"max_connections,omitempty"`
	MaxBackendEventsPerSecond int   `koanf:"max_backend_events_per_second" json:"max_backend_events_per_second,omitempty"`
	MaxClientEventsPerSecond  int   `koanf:"max_client_events_per_second" json:"max_client_events_per_second,omitempty"`
	MaxReadRequestsPerSecond  int   `koanf:"max_read_requests_per_second" json:"max_read_requests_per_second,omitempty"`

	MaxPresenceMembersPerChannel int `koanf:"max_presence_members_per_channel" json:"max_presence_members_per_channel,omitempty"`
	MaxPresenceMemberSizeInKB    int `koanf:"max_presence_member_size_in_kb" json:"max_presence_member_size_in_kb,omitempty"`
	MaxChannelNameLength         int `koanf:"max_channel_name_length" json:"max_channel_name_length,omitempty"`
	MaxEventChannelsAtOnce       int `koanf:"max_event_channels_at_once" json:"max_event_channels_at_once,omitempty"`
	MaxEventNameLength           int `koanf:"max_event_name_length" json:"max_event_name_length,omitempty"`
	MaxEventPayloadInKB          int `koanf:"max_event_payload_in_kb" json:"max_event_payload_in_kb,omitempty"`
	MaxEventBatchSize            int `koanf:"max_event_batch_size" json:"max_event_batch_size,omitempty"`
}

// ApplyDefaults fills zero-valued structural limits.
func (a *App) ApplyDefaults() {
	if a.MaxChannelNameLength == 0 {
		a.MaxChannelNameLength = DefaultMaxChannelNameLength
	}
	if a.MaxEventChannelsAtOnce == 0 {
		a.MaxEventChannelsAtOnce = DefaultMaxEventChannelsAtOnce
	}
	if a.MaxEventNameLength == 0 {
		a.MaxEventNameLength = DefaultMaxEventNameLength
	}
	if a.MaxEventPayloadInKB == 0 {
		a.MaxEventPayloadInKB = DefaultMaxEventPayloadInKB
	}
	if a.MaxEventBatchSize == 0 {
		a.MaxEventBatchSize = DefaultMaxEventBatchSize
	}
	if a.MaxPresenceMembersPerChannel == 0 {
		a.MaxPresenceMembersPerChannel = DefaultMaxPresenceMembersPerChannel
	}
	if a.MaxPresenceMemberSizeInKB == 0 {
		a.MaxPresenceMemberSizeInKB = DefaultMaxPresenceMemberSizeInKB
	}
}

// Validate checks the credential triple is complete.
func (a *App) Validate() error {
	if a.ID == "" {
		return domain.ErrAppValidation.WithDetails("app id is required")
	}
	if a.Key == "" {
		return domain.ErrAppValidation.WithDetails(fmt.Sprintf("app %s: key is required", a.ID))
	}
	if a.Secret == "" {
		return domain.ErrAppValidation.WithDetails(fmt.Sprintf("app %s: secret is required", a.ID))
	}
	return nil
}

// MaxEventPayloadBytes returns the payload limit in bytes.
func (a *App) MaxEventPayloadBytes() int {
	return a.MaxEventPayloadInKB * 1024
}
