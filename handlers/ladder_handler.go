package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dosada05/ladder-system/middleware"
	"github.com/Dosada05/ladder-system/models"
	"github.com/Dosada05/ladder-system/services"
	"github.com/go-chi/chi/v5"
)

const maxLogoUploadBytes = 5 << 20 // 5MB

type LadderHandler struct {
	ladderService services.LadderService
}

func NewLadderHandler(ladderService services.LadderService) *LadderHandler {
	return &LadderHandler{ladderService: ladderService}
}

func (h *LadderHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input services.CreateLadderInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ladder, err := h.ladderService.Create(r.Context(), actorID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"ladder": ladder}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *LadderHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	ladder, err := h.ladderService.Get(r.Context(), viewerID, ladderID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"ladder": ladder}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetBySlug отдаёт лестницу по человекочитаемому адресу внутри капсулы.
func (h *LadderHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	viewerID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	capsuleID, err := urlParamInt(r, "capsuleID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	slug := chi.URLParam(r, "ladderSlug")
	if slug == "" {
		badRequestResponse(w, r, errors.New("ladder slug is required"))
		return
	}

	ladder, err := h.ladderService.GetBySlug(r.Context(), viewerID, capsuleID, slug)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"ladder": ladder}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *LadderHandler) ListByCapsule(w http.ResponseWriter, r *http.Request) {
	viewerID, err := middleware.CurrentUserID(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	capsuleID, err := urlParamInt(r, "capsuleID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ladders, err := h.ladderService.ListByCapsule(r.Context(), viewerID, capsuleID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"ladders": ladders}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *LadderHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var input services.UpdateLadderInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ladder, err := h.ladderService.Update(r.Context(), actorID, ladderID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"ladder": ladder}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *LadderHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.ladderService.Publish)
}

func (h *LadderHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.ladderService.Archive)
}

func (h *LadderHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
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

	if err := r.ParseMultipartForm(maxLogoUploadBytes); err != nil {
		badRequestResponse(w, r, errors.New("failed to parse multipart form"))
		return
	}
	file, header, err := r.FormFile("logo")
	if err != nil {
		badRequestResponse(w, r, errors.New("logo file is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	ladder, err := h.ladderService.UploadLogo(r.Context(), actorID, ladderID, contentType, file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"ladder": ladder}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *LadderHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.ladderService.Delete(r.Context(), actorID, ladderID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transition обслуживает смену статуса лестницы (publish/archive).
func (h *LadderHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, actorID, ladderID int) (*models.Ladder, error),
) {
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

	ladder, err := op(r.Context(), actorID, ladderID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"ladder": ladder}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
