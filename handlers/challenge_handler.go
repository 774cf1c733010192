package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/ladder-system/middleware"
	"github.com/Dosada05/ladder-system/services"
)

const maxProofUploadBytes = 10 << 20 // 10MB

type ChallengeHandler struct {
	challengeService services.ChallengeService
}

func NewChallengeHandler(challengeService services.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService}
}

func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var input services.CreateChallengeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	challenge, err := h.challengeService.Create(r.Context(), actorID, ladderID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"challenge": challenge}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ChallengeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
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
	challengeID, err := urlParamInt(r, "challengeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.ResolveChallengeInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	challenge, err := h.challengeService.Resolve(r.Context(), actorID, ladderID, challengeID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"challenge": challenge}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ChallengeHandler) UploadProof(w http.ResponseWriter, r *http.Request) {
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
	challengeID, err := urlParamInt(r, "challengeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(maxProofUploadBytes); err != nil {
		badRequestResponse(w, r, errors.New("failed to parse multipart form"))
		return
	}
	file, header, err := r.FormFile("proof")
	if err != nil {
		badRequestResponse(w, r, errors.New("proof file is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	challenge, err := h.challengeService.UploadProof(r.Context(), actorID, ladderID, challengeID, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"challenge": challenge}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ChallengeHandler) Void(w http.ResponseWriter, r *http.Request) {
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
	challengeID, err := urlParamInt(r, "challengeID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.challengeService.Void(r.Context(), actorID, ladderID, challengeID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	viewerID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	ladderID, err := urlParamInt(r, "ladderID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	feed, err := h.challengeService.List(r.Context(), viewerID, ladderID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{
		"pending": feed.Pending,
		"history": feed.History,
	}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
