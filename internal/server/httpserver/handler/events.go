package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/atymic/soketi/internal/apps"
	"github.com/atymic/soketi/internal/core/domain"
)

// handleEvents handles POST /apps/{appId}/events.
//
// Validates the event against the app's limits, fans it out to every
// target channel and, when the event requests info attributes, returns
// the per-channel counts observed after the send.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	app, err := h.app(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if h.limiters != nil && !h.limiters.AllowBackendEvent(app) {
		h.writeDomainError(w, domain.ErrRateLimited.WithDetails("backend event limit reached"))
		return
	}

	var event EventBody
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.GetErrorCode(domain.ErrBadRequest), "invalid request body")
		return
	}

	channels, err := validateEvent(app, &event)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if err := h.broadcast(app.ID, &event, channels); err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := EventsResponse{OK: true}
	if event.Info != "" {
		resp.Channels = make(map[string]ChannelCounts, len(channels))
		for _, channel := range channels {
			counts, err := h.channelCounts(app.ID, channel, event.Info)
			if err != nil {
				h.writeDomainError(w, err)
				return
			}
			resp.Channels[channel] = counts
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// handleBatchEvents handles POST /apps/{appId}/batch_events.
//
// The whole batch is validated before anything is sent, so a bad event
// in the middle never leaves the batch half-published.
func (h *Handler) handleBatchEvents(w http.ResponseWriter, r *http.Request) {
	app, err := h.app(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	var body BatchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.GetErrorCode(domain.ErrBadRequest), "invalid request body")
		return
	}
	if len(body.Batch) == 0 {
		h.writeDomainError(w, domain.ErrEventValidation.WithDetails("batch is empty"))
		return
	}
	if len(body.Batch) > app.MaxEventBatchSize {
		h.writeDomainError(w, domain.ErrEventBatchTooLarge.WithDetails(
			fmt.Sprintf("%d > %d events", len(body.Batch), app.MaxEventBatchSize)))
		return
	}

	if h.limiters != nil && !h.limiters.AllowBackendEventN(app, len(body.Batch)) {
		h.writeDomainError(w, domain.ErrRateLimited.WithDetails("backend event limit reached"))
		return
	}

	targets := make([][]string, len(body.Batch))
	for i := range body.Batch {
		channels, err := validateEvent(app, &body.Batch[i])
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		targets[i] = channels
	}

	for i := range body.Batch {
		if err := h.broadcast(app.ID, &body.Batch[i], targets[i]); err != nil {
			h.writeDomainError(w, err)
			return
		}
	}

	resp := BatchEventsResponse{OK: true}
	withInfo := false
	infos := make([]ChannelCounts, len(body.Batch))
	for i := range body.Batch {
		if body.Batch[i].Info == "" {
			continue
		}
		withInfo = true
		counts, err := h.channelCounts(app.ID, targets[i][0], body.Batch[i].Info)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		infos[i] = counts
	}
	if withInfo {
		resp.Batch = infos
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// handleTerminateUser handles POST /apps/{appId}/users/{userId}/terminate_connections.
func (h *Handler) handleTerminateUser(w http.ResponseWriter, r *http.Request) {
	app, err := h.app(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	userID := r.PathValue("userId")

	if err := h.adapter.TerminateUserConnections(app.ID, userID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

// validateEvent checks one event against the app's limits and returns
// the resolved channel list.
func validateEvent(app *apps.App, event *EventBody) ([]string, error) {
	if event.Name == "" {
		return nil, domain.ErrEventValidation.WithDetails("event name is required")
	}
	if len(event.Data) == 0 {
		return nil, domain.ErrEventValidation.WithDetails("event data is required")
	}

	channels := event.Channels
	if len(channels) == 0 && event.Channel != "" {
		channels = []string{event.Channel}
	}
	if len(channels) == 0 {
		return nil, domain.ErrEventValidation.WithDetails("event targets no channel")
	}
	if len(channels) > app.MaxEventChannelsAtOnce {
		return nil, domain.ErrEventTooManyChannels.WithDetails(
			fmt.Sprintf("%d > %d channels", len(channels), app.MaxEventChannelsAtOnce))
	}
	if len(event.Name) > app.MaxEventNameLength {
		return nil, domain.ErrEventValidation.WithDetails(
			fmt.Sprintf("event name exceeds %d characters", app.MaxEventNameLength))
	}
	if len(event.Data) > app.MaxEventPayloadBytes() {
		return nil, domain.ErrEventPayloadTooLarge.WithDetails(
			fmt.Sprintf("%d > %d bytes", len(event.Data), app.MaxEventPayloadBytes()))
	}
	for _, channel := range channels {
		if err := domain.ValidateChannelName(channel, app.MaxChannelNameLength); err != nil {
			return nil, err
		}
	}
	return channels, nil
}

// broadcast wraps the event in its client-facing envelope and hands it
// to the adapter once per channel.
func (h *Handler) broadcast(appID string, event *EventBody, channels []string) error {
	for _, channel := range channels {
		payload, err := json.Marshal(eventMessage{Event: event.Name, Channel: channel, Data: event.Data})
		if err != nil {
			return domain.ErrInternalServer.WithCause(err)
		}
		if err := h.adapter.Send(appID, channel, payload, event.SocketID); err != nil {
			return err
		}
	}
	return nil
}

// channelCounts resolves the attributes named by an info list for one
// channel. user_count is silently skipped on non-presence channels.
func (h *Handler) channelCounts(appID, channel, info string) (ChannelCounts, error) {
	var counts ChannelCounts
	if hasInfoField(info, "subscription_count") {
		n, err := h.adapter.ChannelSocketsCount(appID, channel, false)
		if err != nil {
			return counts, err
		}
		counts.SubscriptionCount = &n
	}
	if hasInfoField(info, "user_count") && domain.IsPresenceChannel(channel) {
		n, err := h.adapter.ChannelMembersCount(appID, channel, false)
		if err != nil {
			return counts, err
		}
		counts.UserCount = &n
	}
	return counts, nil
}
