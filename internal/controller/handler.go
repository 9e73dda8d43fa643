package controller

import (
	"net/http"

	"github.com/sharetube/party/internal/service/party"
)

type createPartyRequest struct {
	ContentID   string  `json:"content_id" validate:"required,max=128"`
	ContentKind string  `json:"content_kind" validate:"required,oneof=movie series"`
	EpisodeID   *string `json:"episode_id" validate:"omitempty,max=128"`
	DisplayName string  `json:"display_name" validate:"max=32"`
	AvatarURL   *string `json:"avatar_url" validate:"omitempty,url"`
}

func (c controller) createParty(w http.ResponseWriter, r *http.Request) {
	var req createPartyRequest
	if !c.readBody(w, r, &req, false) {
		return
	}

	identity := c.getIdentityFromCtx(r.Context())
	p, err := c.partyService.CreateParty(r.Context(), &party.CreatePartyParams{
		UserID:      identity.UserID,
		ContentID:   req.ContentID,
		ContentKind: req.ContentKind,
		EpisodeID:   req.EpisodeID,
		DisplayName: orDefault(req.DisplayName, identity.Name),
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeData(w, r, http.StatusCreated, p)
}

func (c controller) previewParty(w http.ResponseWriter, r *http.Request) {
	preview, err := c.partyService.PreviewParty(r.Context(),
		c.getIdentityFromCtx(r.Context()).UserID,
		c.getPartyCodeFromCtx(r.Context()),
	)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeData(w, r, http.StatusOK, preview)
}

type joinPartyRequest struct {
	DisplayName string  `json:"display_name" validate:"max=32"`
	AvatarURL   *string `json:"avatar_url" validate:"omitempty,url"`
}

func (c controller) joinParty(w http.ResponseWriter, r *http.Request) {
	var req joinPartyRequest
	if !c.readBody(w, r, &req, true) {
		return
	}

	since, err := c.getSince(r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	identity := c.getIdentityFromCtx(r.Context())
	state, err := c.partyService.JoinParty(r.Context(), &party.JoinPartyParams{
		UserID:      identity.UserID,
		Code:        c.getPartyCodeFromCtx(r.Context()),
		DisplayName: orDefault(req.DisplayName, identity.Name),
		AvatarURL:   req.AvatarURL,
		Since:       since,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeData(w, r, http.StatusOK, state)
}

func (c controller) getState(w http.ResponseWriter, r *http.Request) {
	since, err := c.getSince(r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	state, err := c.partyService.GetState(r.Context(), &party.GetStateParams{
		UserID: c.getIdentityFromCtx(r.Context()).UserID,
		Code:   c.getPartyCodeFromCtx(r.Context()),
		Since:  since,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeData(w, r, http.StatusOK, state)
}

func (c controller) leaveParty(w http.ResponseWriter, r *http.Request) {
	res, err := c.partyService.LeaveParty(r.Context(), &party.LeavePartyParams{
		UserID: c.getIdentityFromCtx(r.Context()).UserID,
		Code:   c.getPartyCodeFromCtx(r.Context()),
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeData(w, r, http.StatusOK, res)
}

type syncPlaybackRequest struct {
	Position  *float64 `json:"position" validate:"required,gte=0"`
	IsPlaying *bool    `json:"is_playing" validate:"required"`
}

func (c controller) syncPlayback(w http.ResponseWriter, r *http.Request) {
	var req syncPlaybackRequest
	if !c.readBody(w, r, &req, false) {
		return
	}

	pb, err := c.partyService.SyncPlayback(r.Context(), &party.SyncPlaybackParams{
		UserID:    c.getIdentityFromCtx(r.Context()).UserID,
		Code:      c.getPartyCodeFromCtx(r.Context()),
		Position:  *req.Position,
		IsPlaying: *req.IsPlaying,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeData(w, r, http.StatusOK, pb)
}

type postChatRequest struct {
	Text string `json:"text" validate:"required"`
}

func (c controller) postChat(w http.ResponseWriter, r *http.Request) {
	var req postChatRequest
	if !c.readBody(w, r, &req, false) {
		return
	}

	msg, err := c.partyService.PostChat(r.Context(), &party.PostChatParams{
		UserID: c.getIdentityFromCtx(r.Context()).UserID,
		Code:   c.getPartyCodeFromCtx(r.Context()),
		Text:   req.Text,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeData(w, r, http.StatusCreated, msg)
}

func (c controller) getChat(w http.ResponseWriter, r *http.Request) {
	since, err := c.getSince(r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	chat, err := c.partyService.GetChat(r.Context(), &party.GetChatParams{
		UserID: c.getIdentityFromCtx(r.Context()).UserID,
		Code:   c.getPartyCodeFromCtx(r.Context()),
		Since:  since,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeData(w, r, http.StatusOK, chat)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}
