package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/soochol/dbadmin/internal/dbadmin"
	"github.com/soochol/dbadmin/internal/navigation"
	"github.com/soochol/dbadmin/internal/services"
)

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.State())
}

// streamState sends the current snapshot, then every state change as SSE.
func (s *Server) streamState(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		http.Error(w, "state stream not configured", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	changes := s.bus.Channel(r.Context(), 32)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeSSE(w, "state", s.manager.State())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			writeSSE(w, "change", change)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, v any) {
	data, _ := json.Marshal(v)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func (s *Server) getLocation(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Path   string             `json:"path"`
		Visits []navigation.Visit `json:"visits"`
	}{}
	if s.history != nil {
		resp.Path = s.history.Current()
		resp.Visits = s.history.Visits()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listEngines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engines)
}

func (s *Server) listTracking(w http.ResponseWriter, r *http.Request) {
	if s.trackingRepo == nil {
		writeJSON(w, http.StatusOK, []dbadmin.TrackingEvent{})
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(w, "invalid limit")
			return
		}
		limit = n
	}
	events, err := s.trackingRepo.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []dbadmin.TrackingEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Mutations *services.MutationStats `json:"mutations,omitempty"`
		Jobs      map[string]time.Time    `json:"jobs,omitempty"`
	}{}
	if s.limiter != nil {
		st := s.limiter.Stats()
		resp.Mutations = &st
	}
	if s.scheduler != nil {
		resp.Jobs = s.scheduler.Jobs()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) fetchDatabases(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.FetchAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.manager.State())
}

func (s *Server) addSampleDataset(w http.ResponseWriter, r *http.Request) {
	rec, err := s.manager.AddSampleDataset(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) syncAll(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.SyncAll(r.Context(), s.syncConcurrency); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) syncDatabase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid database id")
		return
	}
	if err := s.manager.SyncMetadata(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteDatabase deletes from the detail view unless ?from=list is given.
func (s *Server) deleteDatabase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid database id")
		return
	}
	fromDetail := r.URL.Query().Get("from") != "list"
	if err := s.manager.Delete(r.Context(), id, fromDetail); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) initializeDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid request body")
		return
	}
	if err := s.manager.InitializeDraft(r.Context(), req.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.manager.State().Draft)
}

func (s *Server) resetDraft(w http.ResponseWriter, r *http.Request) {
	s.manager.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) selectEngine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Engine string `json:"engine"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Engine == "" {
		badRequest(w, "engine is required")
		return
	}
	s.manager.SelectEngine(req.Engine)
	writeJSON(w, http.StatusOK, s.manager.State().Draft)
}

// saveDraft answers with the SaveResult; the status reflects the form error
// kind when the save failed.
func (s *Server) saveDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Database dbadmin.DatabaseRecord `json:"database"`
		Details  dbadmin.Details        `json:"details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	res := s.manager.SaveDraft(r.Context(), req.Database, req.Details)
	status := http.StatusOK
	if res.FormResult.Error != nil {
		status = statusFor(res.FormResult.Error.Kind)
	}
	writeJSON(w, status, res)
}
