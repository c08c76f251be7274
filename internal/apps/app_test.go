package apps

import (
	"errors"
	"testing"

	"github.com/atymic/soketi/internal/core/domain"
)

func TestAppApplyDefaults(t *testing.T) {
	app := App{ID: "app-1", Key: "key-1", Secret: "secret-1"}
	app.ApplyDefaults()

	if app.MaxChannelNameLength != DefaultMaxChannelNameLength {
		t.Errorf("MaxChannelNameLength = %d, want %d", app.MaxChannelNameLength, DefaultMaxChannelNameLength)
	}
	if app.MaxEventChannelsAtOnce != DefaultMaxEventChannelsAtOnce {
		t.Errorf("MaxEventChannelsAtOnce = %d, want %d", app.MaxEventChannelsAtOnce, DefaultMaxEventChannelsAtOnce)
	}
	if app.MaxEventNameLength != DefaultMaxEventNameLength {
		t.Errorf("MaxEventNameLength = %d, want %d", app.MaxEventNameLength, DefaultMaxEventNameLength)
	}
	if app.MaxEventPayloadInKB != DefaultMaxEventPayloadInKB {
		t.Errorf("MaxEventPayloadInKB = %d, want %d", app.MaxEventPayloadInKB, DefaultMaxEventPayloadInKB)
	}
	if app.MaxEventBatchSize != DefaultMaxEventBatchSize {
		t.Errorf("MaxEventBatchSize = %d, want %d", app.MaxEventBatchSize, DefaultMaxEventBatchSize)
	}
	if app.MaxPresenceMembersPerChannel != DefaultMaxPresenceMembersPerChannel {
		t.Errorf("MaxPresenceMembersPerChannel = %d, want %d", app.MaxPresenceMembersPerChannel, DefaultMaxPresenceMembersPerChannel)
	}
	if app.MaxPresenceMemberSizeInKB != DefaultMaxPresenceMemberSizeInKB {
		t.Errorf("MaxPresenceMemberSizeInKB = %d, want %d", app.MaxPresenceMemberSizeInKB, DefaultMaxPresenceMemberSizeInKB)
	}

	// Rate limits stay at zero (unlimited).
	if app.MaxBackendEventsPerSecond != 0 {
		t.Errorf("MaxBackendEventsPerSecond = %d, want 0", app.MaxBackendEventsPerSecond)
	}
}

func TestAppApplyDefaultsKeepsExplicitLimits(t *testing.T) {
	app := App{ID: "app-1", Key: "key-1", Secret: "secret-1", MaxEventBatchSize: 50}
	app.ApplyDefaults()

	if app.MaxEventBatchSize != 50 {
		t.Errorf("MaxEventBatchSize = %d, want 50", app.MaxEventBatchSize)
	}
}

func TestAppValidate(t *testing.T) {
	tests := []struct {
		name    string
		app     App
		wantErr bool
	}{
		{"valid", App{ID: "app-1", Key: "key-1", Secret: "secret-1"}, false},
		{"missing id", App{Key: "key-1", Secret: "secret-1"}, true},
		{"missing key", App{ID: "app-1", Secret: "secret-1"}, true},
		{"missing secret", App{ID: "app-1", Key: "key-1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.app.Validate()
			if tt.wantErr {
				if !errors.Is(err, domain.ErrAppValidation) {
					t.Errorf("Validate() = %v, want ErrAppValidation", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestAppMaxEventPayloadBytes(t *testing.T) {
	app := App{MaxEventPayloadInKB: 100}
	if got := app.MaxEventPayloadBytes(); got != 100*1024 {
		t.Errorf("MaxEventPayloadBytes() = %d, want %d", got, 100*1024)
	}
}
