package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func today() string { return time.Now().Format("2006-01-02") }

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Control.Start(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Control.Stop(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Control.Restart(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "restarted"})
}

type runSingleRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleRunSingle(w http.ResponseWriter, r *http.Request) {
	var req runSingleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "missing email")
		return
	}
	if err := s.deps.Control.RunSingle(r.Context(), req.Email); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "email": req.Email})
}

func (s *Server) handleAccountReset(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "missing email")
		return
	}
	if err := s.deps.JobState.Reset(email, today()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "email": email})
}

func (s *Server) handleResetState(w http.ResponseWriter, r *http.Request) {
	accts := s.deps.Accounts.Accounts()
	names := make([]string, len(accts))
	for i, a := range accts {
		names[i] = a.Email
	}
	if err := s.deps.JobState.ResetAllToday(today(), names); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset_all"})
}
