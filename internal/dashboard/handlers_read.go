package dashboard

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrelops/rewardsbot/internal/history"
	"github.com/kestrelops/rewardsbot/internal/metrics"
)

const defaultHistoryLimit = 50

func intQuery(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

type statusResponse struct {
	Standby      bool                 `json:"standby"`
	StopRequested bool                `json:"stop_requested"`
	AccountCount int                  `json:"account_count"`
	Host         metrics.HostSnapshot `json:"host"`
	Now          time.Time            `json:"now"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	host := metrics.Host(r.Context(), 200*time.Millisecond)
	writeJSON(w, http.StatusOK, statusResponse{
		Standby:       s.deps.Control.StandbyEngaged(),
		StopRequested: s.deps.Control.StopRequested(),
		AccountCount:  len(s.deps.Accounts.Accounts()),
		Host:          host,
		Now:           time.Now(),
	})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	accts := s.deps.Accounts.Accounts()
	// Never echo credentials back to the dashboard.
	type publicAccount struct {
		Email   string `json:"email"`
		Enabled bool   `json:"enabled"`
	}
	out := make([]publicAccount, len(accts))
	for i, a := range accts {
		out[i] = publicAccount{Email: a.Email, Enabled: a.Enabled}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLogsList(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 200)
	writeJSON(w, http.StatusOK, s.deps.Logs.Recent(limit))
}

func (s *Server) handleLogsClear(w http.ResponseWriter, r *http.Request) {
	s.deps.Logs.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// aggregateHistory merges recent runs across every known account, newest
// first, truncated to limit.
func (s *Server) aggregateHistory(r *http.Request, limit int) ([]history.Run, error) {
	names, err := s.deps.History.Accounts(r.Context())
	if err != nil {
		return nil, err
	}
	var all []history.Run
	for _, acct := range names {
		runs, err := s.deps.History.History(r.Context(), acct, limit)
		if err != nil {
			return nil, err
		}
		all = append(all, runs...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CompletedAt.After(all[j].CompletedAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", defaultHistoryLimit)
	runs, err := s.aggregateHistory(r, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleAccountHistory(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", defaultHistoryLimit)
	email := chi.URLParam(r, "email")
	if email == "" {
		s.handleHistory(w, r)
		return
	}
	runs, err := s.deps.History.History(r.Context(), email, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleAccountStats(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "missing email")
		return
	}
	stats, err := s.deps.History.Stats(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStatsHistorical(w http.ResponseWriter, r *http.Request) {
	days := intQuery(r, "days", 7)
	stats, err := s.deps.History.HistoricalDaily(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStatsActivityBreakdown(w http.ResponseWriter, r *http.Request) {
	days := intQuery(r, "days", 7)
	breakdown, err := s.deps.History.ActivityBreakdown(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (s *Server) handleStatsGlobal(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.History.GlobalStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metrics.Host(r.Context(), 200*time.Millisecond))
}

// handleMetrics exposes the process's Prometheus collectors in exposition
// format (spec.md §4.14 GET /api/metrics); metrics.New registers against
// the default registerer, so the default promhttp handler serves them.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
