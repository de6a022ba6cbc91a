package server

import (
	"encoding/json"
	"net/http"

	"github.com/rldls/doorlog/internal/errors"
	"github.com/rldls/doorlog/internal/logging"
	"github.com/rldls/doorlog/internal/models"
)

// handleHealth confirms the process is running.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLog ingests one event: append the raw row, then fold it into the
// derived tables. Aggregation steps that fail are reported in the
// response detail but do not fail the request — the log row itself is
// already durable, and that is the contract the client queue relies on.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	var e models.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := e.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "missing or malformed fields", err)
		return
	}

	if err := s.updater.AppendLog(r.Context(), &e); err != nil {
		switch {
		case errors.Is(err, errors.ErrDuplicate):
			writeError(w, http.StatusConflict, "already logged", err)
		case errors.Is(err, errors.ErrConfiguration):
			writeError(w, http.StatusInternalServerError, "server configuration error", err)
		default:
			writeError(w, http.StatusInternalServerError, "failed to add log", err)
		}
		return
	}

	resp := map[string]interface{}{"message": "log added"}
	if err := s.updater.Apply(r.Context(), &e); err != nil {
		logging.Error("aggregation incomplete", err, map[string]interface{}{
			"timestamp": e.Timestamp,
		})
		resp["detail"] = "log stored; some aggregates were not updated"
	}

	s.hub.Broadcast(EventLogConfirmed, map[string]interface{}{
		"street": e.StreetName, "door": e.DoorNumber,
		"status": string(e.Status), "timestamp": e.Timestamp,
	})
	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteLog removes the event addressed by its timestamp, the only
// handle the client has. A timestamp no tier can resolve is a benign 404,
// not a failure: the row is already absent.
func (s *Server) handleDeleteLog(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TimestampToDelete string `json:"timestampToDelete"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.TimestampToDelete == "" {
		writeError(w, http.StatusBadRequest, "timestampToDelete is required", nil)
		return
	}

	deleted, err := s.updater.DeleteByTimestamp(r.Context(), req.TimestampToDelete)
	if err != nil && deleted == nil {
		if errors.Is(err, errors.ErrNotFoundRemote) {
			writeError(w, http.StatusNotFound, "no matching log found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete log", err)
		return
	}

	resp := map[string]interface{}{"message": "log deleted"}
	if err != nil {
		// Row cleared but the bucket decrement failed; surfaced, not fatal.
		logging.Error("bucket decrement failed after delete", err, map[string]interface{}{
			"timestamp": req.TimestampToDelete,
		})
		resp["detail"] = "log removed; interval counts were not adjusted"
	}

	s.hub.Broadcast(EventLogDeleted, map[string]interface{}{
		"timestamp": req.TimestampToDelete,
	})
	writeJSON(w, http.StatusOK, resp)
}

// handleLastLog returns the most recent known position for a user, used
// by the client to seed a new day's carry-over entry.
func (s *Server) handleLastLog(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")

	pos, err := s.updater.LastPosition(r.Context(), user)
	if err != nil {
		if errors.Is(err, errors.ErrNotFoundRemote) {
			writeError(w, http.StatusNotFound, "no data found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch last log", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"lastLog": pos})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]interface{}{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	writeJSON(w, status, body)
}
