// Package api exposes keyframe sessions over HTTP.
package api

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/zsiec/keyseek/internal/errors"
	"github.com/zsiec/keyseek/internal/keyframe"
	"github.com/zsiec/keyseek/internal/logger"
	"github.com/zsiec/keyseek/internal/session"
)

// maxRequestBody bounds open requests; timelines for long files are the
// largest bodies.
const maxRequestBody = 8 << 20

// Handler serves the session API.
type Handler struct {
	manager      *session.Manager
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

// NewHandler creates a session API handler.
func NewHandler(manager *session.Manager, errorHandler *errors.ErrorHandler, log logger.Logger) *Handler {
	return &Handler{
		manager:      manager,
		errorHandler: errorHandler,
		logger:       log.WithField("component", "api"),
	}
}

// RegisterRoutes mounts the API under /api/v1.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/sessions", h.handleOpen).Methods("POST")
	api.HandleFunc("/sessions", h.handleList).Methods("GET")
	api.HandleFunc("/sessions/{id}", h.handleGet).Methods("GET")
	api.HandleFunc("/sessions/{id}", h.handleClose).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/index", h.handleIndex).Methods("GET")
	api.HandleFunc("/sessions/{id}/seek", h.handleSeek).Methods("GET")
	api.HandleFunc("/sessions/{id}/scrub", h.handleScrub).Methods("GET")
	api.HandleFunc("/sessions/{id}/validate", h.handleValidate).Methods("POST")
	api.HandleFunc("/sessions/{id}/rebuild", h.handleRebuild).Methods("POST")
}

// OpenRequest is the body of POST /sessions.
type OpenRequest struct {
	Path          string             `json:"path"`
	Strategy      *keyframe.Strategy `json:"strategy,omitempty"`
	MemoryLimitMB int                `json:"memory_limit_mb,omitempty"`
	Timeline      *keyframe.Timeline `json:"timeline,omitempty"`
}

// ListResponse is the body of GET /sessions.
type ListResponse struct {
	Sessions []session.Info `json:"sessions"`
	Count    int            `json:"count"`
}

// SeekResponse is a seek result plus its normalised closeness score.
type SeekResponse struct {
	*keyframe.SeekResult
	Closeness float64 `json:"closeness"`
}

// ValidateResponse reports whether the session index passed validation.
type ValidateResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.errorHandler.HandleError(w, r, errors.NewValidationError(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	if req.Path == "" {
		h.errorHandler.HandleError(w, r, errors.NewValidationError("path is required"))
		return
	}
	if req.MemoryLimitMB < 0 {
		h.errorHandler.HandleError(w, r, errors.NewValidationError("memory_limit_mb cannot be negative"))
		return
	}

	sess, err := h.manager.Open(r.Context(), session.OpenRequest{
		Path:          req.Path,
		Strategy:      req.Strategy,
		MemoryLimitMB: req.MemoryLimitMB,
		Timeline:      req.Timeline,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/sessions/"+sess.ID)
	h.writeJSON(w, http.StatusCreated, sess.Info())
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	infos := h.manager.List()
	h.writeJSON(w, http.StatusOK, ListResponse{Sessions: infos, Count: len(infos)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess.Info())
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Close(mux.Vars(r)["id"]); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess.Index())
}

func (h *Handler) handleSeek(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("t")
	if raw == "" {
		h.errorHandler.HandleError(w, r, errors.NewValidationError("query parameter t is required"))
		return
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(t, 0) {
		h.errorHandler.HandleError(w, r, errors.NewValidationError(fmt.Sprintf("invalid seek time %q", raw)))
		return
	}

	result, err := h.manager.Seek(r.Context(), mux.Vars(r)["id"], t)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SeekResponse{SeekResult: result, Closeness: result.Closeness()})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	err := h.manager.Validate(mux.Vars(r)["id"])
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, ValidateResponse{Valid: true})
	case stderrors.Is(err, keyframe.ErrInvalidKeyframeIndex):
		h.writeJSON(w, http.StatusOK, ValidateResponse{Valid: false, Reason: err.Error()})
	default:
		h.errorHandler.HandleError(w, r, err)
	}
}

func (h *Handler) handleRebuild(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Rebuild(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess.Info())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}
