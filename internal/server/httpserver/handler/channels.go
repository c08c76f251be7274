package handler

import (
	"net/http"
	"sort"
	"strings"

	"github.com/atymic/soketi/internal/core/domain"
)

// handleChannels handles GET /apps/{appId}/channels.
//
// Lists every occupied channel with its subscription count, optionally
// narrowed by filter_by_prefix. info=user_count additionally resolves
// the distinct presence member count, which the Pusher contract only
// allows together with a presence- prefix filter.
func (h *Handler) handleChannels(w http.ResponseWriter, r *http.Request) {
	app, err := h.app(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	query := r.URL.Query()
	prefix := query.Get("filter_by_prefix")
	wantUserCount := hasInfoField(query.Get("info"), "user_count")

	if wantUserCount && !strings.HasPrefix(prefix, domain.PresenceChannelPrefix) {
		h.writeError(w, http.StatusBadRequest, domain.GetErrorCode(domain.ErrBadRequest),
			"user_count may only be requested for presence channels; set filter_by_prefix=presence-")
		return
	}

	counts, err := h.adapter.ChannelsWithSocketsCount(app.ID, false)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	channels := make(map[string]ChannelAttributes, len(counts))
	for channel, n := range counts {
		if n == 0 {
			continue
		}
		if prefix != "" && !strings.HasPrefix(channel, prefix) {
			continue
		}

		attrs := ChannelAttributes{Occupied: true, SubscriptionCount: n}
		if wantUserCount {
			users, err := h.adapter.ChannelMembersCount(app.ID, channel, false)
			if err != nil {
				h.writeDomainError(w, err)
				return
			}
			attrs.UserCount = &users
		}
		channels[channel] = attrs
	}

	h.writeJSON(w, http.StatusOK, ChannelsResponse{Channels: channels})
}

// handleChannel handles GET /apps/{appId}/channels/{channel}.
func (h *Handler) handleChannel(w http.ResponseWriter, r *http.Request) {
	app, err := h.app(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	channel := r.PathValue("channel")

	subscribers, err := h.adapter.ChannelSocketsCount(app.ID, channel, false)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	attrs := ChannelAttributes{
		Occupied:          subscribers > 0,
		SubscriptionCount: subscribers,
	}
	if domain.IsPresenceChannel(channel) {
		users, err := h.adapter.ChannelMembersCount(app.ID, channel, false)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		attrs.UserCount = &users
	}

	h.writeJSON(w, http.StatusOK, attrs)
}

// handleChannelUsers handles GET /apps/{appId}/channels/{channel}/users.
func (h *Handler) handleChannelUsers(w http.ResponseWriter, r *http.Request) {
	app, err := h.app(r)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	channel := r.PathValue("channel")

	if !domain.IsPresenceChannel(channel) {
		h.writeDomainError(w, domain.ErrNotPresenceChannel.WithDetails(channel))
		return
	}

	members, err := h.adapter.ChannelMembers(app.ID, channel, false)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	users := make([]ChannelUser, 0, len(members))
	for id := range members {
		users = append(users, ChannelUser{ID: id})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	h.writeJSON(w, http.StatusOK, ChannelUsersResponse{Users: users})
}

// hasInfoField reports whether a comma-separated info list names the
// given attribute.
func hasInfoField(info, field string) bool {
	if info == "" {
		return false
	}
	for _, f := range strings.Split(info, ",") {
		if strings.TrimSpace(f) == field {
			return true
		}
	}
	return false
}
