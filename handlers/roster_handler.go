package handlers

import (
	"net/http"

	"github.com/Dosada05/ladder-system/middleware"
	"github.com/Dosada05/ladder-system/services"
)

type RosterHandler struct {
	rosterService services.RosterService
}

func NewRosterHandler(rosterService services.RosterService) *RosterHandler {
	return &RosterHandler{rosterService: rosterService}
}

func (h *RosterHandler) AddMembers(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	ladderID, err := urlParamInt(r, "ladderID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Members []services.MemberInput `json:"members"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	members, err := h.rosterService.AddMembers(r.Context(), actorID, ladderID, input.Members)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"members": members}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RosterHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	ladderID, err := urlParamInt(r, "ladderID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	memberID, err := urlParamInt(r, "memberID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.MemberInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	member, err := h.rosterService.UpdateMember(r.Context(), actorID, ladderID, memberID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"member": member}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RosterHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	ladderID, err := urlParamInt(r, "ladderID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	memberID, err := urlParamInt(r, "memberID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.rosterService.RemoveMember(r.Context(), actorID, ladderID, memberID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RosterHandler) ReplaceRoster(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	ladderID, err := urlParamInt(r, "ladderID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Members []services.MemberInput `json:"members"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	members, err := h.rosterService.ReplaceRoster(r.Context(), actorID, ladderID, input.Members)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"members": members}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
