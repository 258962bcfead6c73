package api

import (
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/zsiec/keyseek/internal/errors"
)

const (
	scrubReadLimit    = 4096
	scrubWriteTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ScrubRequest is one seek on a scrub connection.
type ScrubRequest struct {
	Seq int64    `json:"seq"`
	T   *float64 `json:"t"`
}

// ScrubResponse answers the ScrubRequest with the same Seq.
type ScrubResponse struct {
	Seq    int64                `json:"seq"`
	Result *SeekResponse        `json:"result,omitempty"`
	Error  *errors.ErrorDetails `json:"error,omitempty"`
}

// handleScrub serves many seeks over one websocket so players dragging a
// timeline avoid a request per position. Requests are answered in order.
func (h *Handler) handleScrub(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.manager.Get(id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.WithError(err).WithField("session_id", id).Warn("Scrub upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(scrubReadLimit)

	log := h.logger.WithField("session_id", id)
	log.Debug("Scrub connection opened")

	for {
		var req ScrubRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("Scrub connection error")
			}
			return
		}

		resp := h.scrub(r, id, req)
		conn.SetWriteDeadline(time.Now().Add(scrubWriteTimeout))
		if err := conn.WriteJSON(resp); err != nil {
			log.WithError(err).Warn("Failed to write scrub response")
			return
		}

		// the session was closed while scrubbing
		if resp.Error != nil && resp.Error.Type == errors.ErrorTypeNotFound {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(scrubWriteTimeout))
			return
		}
	}
}

func (h *Handler) scrub(r *http.Request, id string, req ScrubRequest) ScrubResponse {
	resp := ScrubResponse{Seq: req.Seq}

	if req.T == nil || math.IsInf(*req.T, 0) || math.IsNaN(*req.T) {
		resp.Error = errorBody(errors.NewValidationError("field t is required and must be finite"))
		return resp
	}

	result, err := h.manager.Seek(r.Context(), id, *req.T)
	if err != nil {
		resp.Error = errorBody(err)
		return resp
	}

	resp.Result = &SeekResponse{SeekResult: result, Closeness: result.Closeness()}
	return resp
}

func errorBody(err error) *errors.ErrorDetails {
	details, _ := errors.Details(err)
	return &details
}
