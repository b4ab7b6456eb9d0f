package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Billy-Davies-2/warband-roster/internal/attendance"
	"github.com/Billy-Davies-2/warband-roster/internal/form"
	"github.com/Billy-Davies-2/warband-roster/internal/logger"
	"github.com/Billy-Davies-2/warband-roster/internal/pubsub"
	"github.com/Billy-Davies-2/warband-roster/internal/roster"
	"github.com/Billy-Davies-2/warband-roster/internal/workspace"
)

// maxBody caps request bodies; a full roster export is well below this
const maxBody = 8 << 20

// APIHandlers contains all API handler methods
type APIHandlers struct {
	ws     *workspace.Workspace
	pubsub *pubsub.PubSub
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(ws *workspace.Workspace, ps *pubsub.PubSub) *APIHandlers {
	return &APIHandlers{
		ws:     ws,
		pubsub: ps,
	}
}

// Register mounts the API on mux. guard wraps every mutating route.
func (h *APIHandlers) Register(mux *http.ServeMux, guard func(http.HandlerFunc) http.HandlerFunc) {
	if guard == nil {
		guard = func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	mux.HandleFunc("/api/state", h.GetState)
	mux.HandleFunc("/api/dispatch", guard(h.Dispatch))
	mux.HandleFunc("/api/load", guard(h.Load))
	mux.HandleFunc("/api/save", guard(h.Save))
	mux.HandleFunc("/api/export", h.Export)

	mux.HandleFunc("/api/attendance/import", guard(h.ImportAttendance))
	mux.HandleFunc("/api/attendance/history", h.AttendanceHistory)

	mux.HandleFunc("/api/players/form", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			guard(h.SubmitForm)(w, r)
			return
		}
		h.GetForm(w, r)
	})
	mux.HandleFunc("/api/groups/summary", h.GroupSummary)
	mux.HandleFunc("/api/units/search", h.SearchUnits)
	mux.HandleFunc("/api/snapshots", h.Snapshots)

	mux.HandleFunc("/api/events", h.EventsSSE)
}

// GetState returns the current document and dirty flag
func (h *APIHandlers) GetState(w http.ResponseWriter, r *http.Request) {
	logger.Debug("Getting roster state")
	writeJSON(w, http.StatusOK, h.ws.State())
}

// Dispatch applies one {"type", "payload"} action
func (h *APIHandlers) Dispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	action, err := roster.DecodeEnvelope(body)
	if err != nil {
		logger.Warn("Failed to decode action", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state, err := h.ws.Handle(r.Context(), action)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Load replaces the document with the posted JSON
func (h *APIHandlers) Load(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state, err := h.ws.Load(body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Save persists the document as a new snapshot
func (h *APIHandlers) Save(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := h.ws.Save()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Export downloads the document as a file
func (h *APIHandlers) Export(w http.ResponseWriter, r *http.Request) {
	data, name, err := h.ws.Export()
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(data)
}

// ImportAttendance installs a signup export posted as the request body
func (h *APIHandlers) ImportAttendance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := h.ws.ImportAttendance(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}

	accepted, maybe, declined := out.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": accepted,
		"maybe":    maybe,
		"declined": declined,
		"state":    h.ws.State(),
	})
}

// AttendanceHistory returns recorded attendance per player
func (h *APIHandlers) AttendanceHistory(w http.ResponseWriter, r *http.Request) {
	counts, err := h.ws.AttendanceHistory(r.Context())
	if err != nil {
		logger.Error("Failed to read attendance history", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// GetForm renders a player's form as plain text
func (h *APIHandlers) GetForm(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	version := 0
	if v := r.URL.Query().Get("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "Invalid version parameter", http.StatusBadRequest)
			return
		}
		version = n
	}

	text, err := h.ws.GenerateForm(id, version)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, text)
}

// SubmitForm parses a filled-in form from the raw request body
func (h *APIHandlers) SubmitForm(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.ws.SubmitForm(id, string(body))
	if err != nil {
		writeError(w, err)
		return
	}

	logger.Info("Player form applied", "player_id", id, "matched", res.Matched, "version", res.Version)
	writeJSON(w, http.StatusOK, map[string]any{
		"matched": res.Matched,
		"version": res.Version,
		"state":   h.ws.State(),
	})
}

// GroupSummary returns the copyable text block of a group
func (h *APIHandlers) GroupSummary(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	text, err := h.ws.GroupSummary(id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, text)
}

// SearchUnits lists players owning units matching q
func (h *APIHandlers) SearchUnits(w http.ResponseWriter, r *http.Request) {
	matches := h.ws.SearchUnits(r.URL.Query().Get("q"))
	if matches == nil {
		matches = []roster.UnitMatch{}
	}
	writeJSON(w, http.StatusOK, matches)
}

// Snapshots lists stored snapshots newest first
func (h *APIHandlers) Snapshots(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	snaps, err := h.ws.Snapshots(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

// EventsSSE provides Server-Sent Events for realtime updates
func (h *APIHandlers) EventsSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	eventChan := h.pubsub.Subscribe()
	defer h.pubsub.Unsubscribe(eventChan)

	flush := func() {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n")
	flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			data, _ := json.Marshal(event)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flush()
		case <-r.Context().Done():
			logger.Debug("SSE client disconnected")
			return
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flush()
		}
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// statusFor maps workspace errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, workspace.ErrPlayerNotFound), errors.Is(err, workspace.ErrGroupNotFound):
		return http.StatusNotFound
	case errors.Is(err, roster.ErrInvalidDocument),
		errors.Is(err, attendance.ErrInvalidJSON),
		errors.Is(err, attendance.ErrMissingSignUps),
		errors.Is(err, form.ErrUnknownVersion),
		errors.Is(err, workspace.ErrServerAction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}
