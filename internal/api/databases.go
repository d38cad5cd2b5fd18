package api

import (
	"encoding/json"
	"net/http"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

// Embedded data-access REST surface, consumed by remote.Client.

func (s *Server) restList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.dataAccess.ListDatabases(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) restGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid database id")
		return
	}
	rec, err := s.dataAccess.GetDatabase(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) restCreate(w http.ResponseWriter, r *http.Request) {
	var rec dbadmin.DatabaseRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	saved, err := s.dataAccess.CreateDatabase(r.Context(), &rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) restUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid database id")
		return
	}
	var rec dbadmin.DatabaseRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	rec.ID = id
	saved, err := s.dataAccess.UpdateDatabase(r.Context(), &rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) restDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid database id")
		return
	}
	if err := s.dataAccess.DeleteDatabase(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) restSync(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid database id")
		return
	}
	if err := s.dataAccess.SyncMetadata(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) restAddSample(w http.ResponseWriter, r *http.Request) {
	rec, err := s.dataAccess.AddSampleDataset(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
