package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/caine128/NotesApp-sub000/internal/auth"
	"github.com/caine128/NotesApp-sub000/internal/service/syncservice"
)

// PushChanges applies one client batch and returns per-item outcomes.
// A 200 with every item Failed is a normal response; only the device gate
// and infrastructure failures produce an error status.
func (s *Server) PushChanges(w http.ResponseWriter, r *http.Request) {
	var req syncservice.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Request.Malformed", "invalid JSON body")
		return
	}
	if req.DeviceID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "Request.Malformed", "deviceId is required")
		return
	}

	res, err := s.Push.Push(r.Context(), auth.UserID(r.Context()), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PullChanges returns the delta since the client's cursor.
// Query parameters: deviceId?, sinceUtc? (RFC 3339), maxItemsPerEntity?.
func (s *Server) PullChanges(w http.ResponseWriter, r *http.Request) {
	var q syncservice.PullQuery

	if v := r.URL.Query().Get("deviceId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Request.Malformed", "deviceId is not a UUID")
			return
		}
		q.DeviceID = &id
	}
	if v := r.URL.Query().Get("sinceUtc"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Request.Malformed", "sinceUtc is not an RFC 3339 timestamp")
			return
		}
		since = since.UTC()
		q.Since = &since
	}
	if v := r.URL.Query().Get("maxItemsPerEntity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Request.Malformed", "maxItemsPerEntity must be a positive integer")
			return
		}
		q.MaxItemsPerEntity = &n
	}

	res, err := s.Pull.Pull(r.Context(), auth.UserID(r.Context()), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type resolveReq struct {
	Items []syncservice.ResolutionItem `json:"items"`
}

type resolveResp struct {
	Items []syncservice.ResolutionResult `json:"items"`
}

// ResolveConflicts applies client-chosen conflict resolutions.
func (s *Server) ResolveConflicts(w http.ResponseWriter, r *http.Request) {
	var req resolveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Request.Malformed", "invalid JSON body")
		return
	}

	results, err := s.Resolve.Resolve(r.Context(), auth.UserID(r.Context()), req.Items)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolveResp{Items: results})
}
