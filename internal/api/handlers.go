package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/btouchard/switchboard/internal/call"
	"github.com/btouchard/switchboard/internal/session"
	"github.com/btouchard/switchboard/internal/store"
)

const maxBodyBytes = 64 << 10

type handler struct {
	calls   *session.Manager
	history History
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"active_calls": h.calls.ActiveCount(),
	})
}

func (h *handler) listCalls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := session.Filter{
		Status: q.Get("status"),
		Remote: q.Get("remote"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}

	calls := h.calls.List(f)
	if calls == nil {
		calls = []call.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": calls})
}

type createCallRequest struct {
	Remote    string         `json:"remote"`
	Direction call.Direction `json:"direction"`
}

func (h *handler) createCall(w http.ResponseWriter, r *http.Request) {
	var req createCallRequest
	if !decode(w, r, &req) {
		return
	}

	var (
		c   *call.Call
		err error
	)
	switch req.Direction {
	case "", call.DirectionOutgoing:
		c, err = h.calls.Dial(req.Remote)
	case call.DirectionIncoming:
		c, err = h.calls.Incoming(req.Remote)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown direction %q", req.Direction))
		return
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c.Snapshot())
}

// getCall serves live calls from memory and falls back to the history store
// for calls that have been pruned.
func (h *handler) getCall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	c, err := h.calls.Get(id)
	if err == nil {
		writeJSON(w, http.StatusOK, c.Snapshot())
		return
	}

	rec, herr := h.history.GetCall(id)
	if herr != nil {
		if !errors.Is(herr, store.ErrNotFound) {
			slog.Error("reading call history failed", "call_id", id, "error", herr)
		}
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) getEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := h.history.GetEvents(id, limit)
	if err != nil {
		slog.Error("reading call events failed", "call_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "reading call events failed")
		return
	}
	if events == nil {
		events = []store.CallEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"call_id": id, "events": events})
}

func (h *handler) ring(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.calls.Ring)
}

func (h *handler) answer(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.calls.Answer)
}

type hangupRequest struct {
	Reason call.DisconnectionType `json:"reason"`
}

func (h *handler) hangup(w http.ResponseWriter, r *http.Request) {
	var req hangupRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = call.DisconnectLocalLeft
	}
	h.act(w, r, func(id string) error { return h.calls.Hangup(id, req.Reason) })
}

type mediaRequest struct {
	Video *bool `json:"video"`
	Audio *bool `json:"audio"`
}

func (h *handler) media(w http.ResponseWriter, r *http.Request) {
	var req mediaRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Video == nil && req.Audio == nil {
		writeError(w, http.StatusBadRequest, "video or audio is required")
		return
	}
	h.act(w, r, func(id string) error { return h.calls.SetLocalMedia(id, req.Video, req.Audio) })
}

type remoteMediaRequest struct {
	Kind call.RemoteMediaChangeType `json:"kind"`
	On   bool                       `json:"on"`
}

func (h *handler) remoteMedia(w http.ResponseWriter, r *http.Request) {
	var req remoteMediaRequest
	if !decode(w, r, &req) {
		return
	}
	h.act(w, r, func(id string) error { return h.calls.UpdateRemoteMedia(id, req.Kind, req.On) })
}

type cameraRequest struct {
	FacingMode call.FacingMode `json:"facing_mode"`
}

func (h *handler) camera(w http.ResponseWriter, r *http.Request) {
	var req cameraRequest
	if !decode(w, r, &req) {
		return
	}
	h.act(w, r, func(id string) error { return h.calls.SwitchCamera(id, req.FacingMode) })
}

type toggleRequest struct {
	On *bool `json:"on"`
}

func (h *handler) speaker(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !decode(w, r, &req) {
		return
	}
	if req.On == nil {
		writeError(w, http.StatusBadRequest, "on is required")
		return
	}
	h.act(w, r, func(id string) error { return h.calls.SetLoudSpeaker(id, *req.On) })
}

type viewSizeRequest struct {
	View   string `json:"view"`
	Height uint32 `json:"height"`
	Width  uint32 `json:"width"`
}

func (h *handler) viewSize(w http.ResponseWriter, r *http.Request) {
	var req viewSizeRequest
	if !decode(w, r, &req) {
		return
	}
	switch req.View {
	case "remote":
		h.act(w, r, func(id string) error { return h.calls.ResizeRemoteView(id, req.Height, req.Width) })
	case "local":
		h.act(w, r, func(id string) error { return h.calls.ResizeLocalView(id, req.Height, req.Width) })
	default:
		writeError(w, http.StatusBadRequest, `view must be "remote" or "local"`)
	}
}

func (h *handler) dtmf(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !decode(w, r, &req) {
		return
	}
	if req.On == nil {
		writeError(w, http.StatusBadRequest, "on is required")
		return
	}
	h.act(w, r, func(id string) error { return h.calls.SetDTMFEnabled(id, *req.On) })
}

type dtmfSendRequest struct {
	Digits string `json:"digits"`
}

func (h *handler) dtmfSend(w http.ResponseWriter, r *http.Request) {
	var req dtmfSendRequest
	if !decode(w, r, &req) {
		return
	}
	h.act(w, r, func(id string) error { return h.calls.SendDTMF(id, req.Digits) })
}

// act runs op against the call named in the URL and replies with the
// call's state afterwards.
func (h *handler) act(w http.ResponseWriter, r *http.Request, op func(id string) error) {
	id := chi.URLParam(r, "id")
	if err := op(id); err != nil {
		writeSessionError(w, err)
		return
	}
	c, err := h.calls.Get(id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err))
		return false
	}
	return true
}

// decodeOptional is decode for endpoints whose body may be empty.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return decode(w, r, v)
}

func writeSessionError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrInvalidTransition), errors.Is(err, session.ErrDTMFDisabled):
		status = http.StatusConflict
	case errors.Is(err, session.ErrLimitReached):
		status = http.StatusTooManyRequests
	}
	if status == http.StatusInternalServerError {
		slog.Error("call operation failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
