package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"reading-adventure-service/internal/app"
	"reading-adventure-service/internal/domain"
)

// APIHandler exposes the reading use cases as JSON over HTTP.
type APIHandler struct {
	service           *app.ReadingService
	profiles          *ProfileResolver
	generationTimeout time.Duration
}

func NewAPIHandler(service *app.ReadingService, profiles *ProfileResolver, generationTimeout time.Duration) *APIHandler {
	return &APIHandler{service: service, profiles: profiles, generationTimeout: generationTimeout}
}

type answerRequest struct {
	Question int `json:"question"`
	Option   int `json:"option"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Register mounts the API routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/story", h.generateStory)
	mux.HandleFunc("GET /api/progress", h.progress)
	mux.HandleFunc("GET /api/sessions/{id}", h.session)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.endSession)
	mux.HandleFunc("POST /api/sessions/{id}/paragraphs/{p}/open", h.openParagraph)
	mux.HandleFunc("POST /api/sessions/{id}/paragraphs/{p}/answers", h.selectAnswer)
	mux.HandleFunc("POST /api/sessions/{id}/paragraphs/{p}/grade", h.grade)
}

func (h *APIHandler) generateStory(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.profile(w, r)
	if !ok {
		return
	}
	var params domain.StoryParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid story request"})
		return
	}

	ctx := r.Context()
	if h.generationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.generationTimeout)
		defer cancel()
	}
	snapshot, err := h.service.GenerateStory(ctx, profileID, params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

func (h *APIHandler) progress(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.profile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.service.Progress(r.Context(), profileID))
}

func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.profile(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.Session(r.Context(), profileID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *APIHandler) endSession(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.profile(w, r)
	if !ok {
		return
	}
	if err := h.service.EndSession(r.Context(), profileID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) openParagraph(w http.ResponseWriter, r *http.Request) {
	profileID, paragraph, ok := h.paragraphRequest(w, r)
	if !ok {
		return
	}
	snapshot, err := h.service.OpenParagraph(r.Context(), profileID, r.PathValue("id"), paragraph)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *APIHandler) selectAnswer(w http.ResponseWriter, r *http.Request) {
	profileID, paragraph, ok := h.paragraphRequest(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid answer payload"})
		return
	}
	snapshot, err := h.service.SelectAnswer(r.Context(), profileID, r.PathValue("id"), paragraph, req.Question, req.Option)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *APIHandler) grade(w http.ResponseWriter, r *http.Request) {
	profileID, paragraph, ok := h.paragraphRequest(w, r)
	if !ok {
		return
	}
	outcome, err := h.service.GradeParagraph(r.Context(), profileID, r.PathValue("id"), paragraph)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *APIHandler) profile(w http.ResponseWriter, r *http.Request) (string, bool) {
	profileID, err := h.profiles.Resolve(w, r)
	if err != nil {
		log.Printf("resolve profile: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "profile unavailable"})
		return "", false
	}
	return profileID, true
}

func (h *APIHandler) paragraphRequest(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	profileID, ok := h.profile(w, r)
	if !ok {
		return "", 0, false
	}
	paragraph, err := strconv.Atoi(r.PathValue("p"))
	if err != nil {
		writeError(w, domain.ErrInvalidParagraph)
		return "", 0, false
	}
	return profileID, paragraph, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := err.Error()
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidParagraph),
		errors.Is(err, domain.ErrInvalidQuestion),
		errors.Is(err, domain.ErrInvalidOption),
		errors.Is(err, domain.ErrInvalidStoryParams):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrGenerationInProgress):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrGenerationFailed):
		status = http.StatusBadGateway
		message = domain.ErrGenerationFailed.Error()
	default:
		log.Printf("request failed: %v", err)
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
