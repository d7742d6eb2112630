// Package dashboard implements the Dashboard Gateway (C14, spec.md §4.14):
// a read-mostly HTTP surface exposing live orchestrator state, the
// ring-buffered log, run history, and a small set of operator commands.
// Grounded on the teacher's applications/httpapi router (route table +
// withMethod wrapping) and infrastructure/middleware/serviceauth.go (bearer
// auth), rebuilt on chi instead of a bespoke http.ServeMux wrapper.
package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/kestrelops/rewardsbot/internal/account"
	"github.com/kestrelops/rewardsbot/internal/history"
	"github.com/kestrelops/rewardsbot/internal/jobstate"
	"github.com/kestrelops/rewardsbot/internal/logring"
	"github.com/kestrelops/rewardsbot/internal/metrics"
)

// Controller is the subset of the orchestrator the gateway can command.
// cmd/rewardsrund supplies a concrete implementation wiring the scheduler
// and worker pool together; the gateway never touches either directly.
type Controller interface {
	Start() error
	Stop() error
	Restart() error
	RunSingle(ctx context.Context, email string) error
	StandbyEngaged() bool
	StopRequested() bool
}

// AccountProvider exposes the currently loaded account roster.
type AccountProvider interface {
	Accounts() []account.Account
}

// Deps wires every collaborator the gateway's handlers read from.
type Deps struct {
	History   history.Store
	JobState  *jobstate.Store
	Logs      *logring.Buffer
	Metrics   *metrics.Metrics
	Accounts  AccountProvider
	Control   Controller
	Log       *logrus.Entry
	AuthSecret []byte
}

// Server holds the gateway's dependencies and builds its chi.Mux.
type Server struct {
	deps Deps
}

// New returns a Server ready to have its Router mounted.
func New(deps Deps) *Server {
	return &Server{deps: deps}
}

// Router builds the full route table: read endpoints are open, the
// command endpoints (POST /api/start, /api/stop, ...) require a bearer
// token signed with deps.AuthSecret.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api", func(api chi.Router) {
		api.Get("/status", s.handleStatus)
		api.Get("/accounts", s.handleAccounts)
		api.Get("/logs", s.handleLogsList)
		api.Delete("/logs", s.handleLogsClear)
		api.Get("/logs/stream", s.handleLogsStream)
		api.Get("/history", s.handleHistory)
		api.Get("/metrics", s.handleMetrics)
		api.Get("/memory", s.handleMemory)
		api.Get("/account-history", s.handleAccountHistory)
		api.Get("/account-history/{email}", s.handleAccountHistory)
		api.Get("/account-stats/{email}", s.handleAccountStats)
		api.Get("/stats/historical", s.handleStatsHistorical)
		api.Get("/stats/activity-breakdown", s.handleStatsActivityBreakdown)
		api.Get("/stats/global", s.handleStatsGlobal)

		api.Group(func(cmd chi.Router) {
			cmd.Use(requireBearer(s.deps.AuthSecret))
			cmd.Post("/start", s.handleStart)
			cmd.Post("/stop", s.handleStop)
			cmd.Post("/restart", s.handleRestart)
			cmd.Post("/run-single", s.handleRunSingle)
			cmd.Post("/account/{email}/reset", s.handleAccountReset)
			cmd.Post("/reset-state", s.handleResetState)
			cmd.Route("/config", func(cfg chi.Router) {
				cfg.Post("/*", s.handleConfigWriteRejected)
				cfg.Put("/*", s.handleConfigWriteRejected)
				cfg.Delete("/*", s.handleConfigWriteRejected)
			})
		})
	})

	return r
}

// handleConfigWriteRejected answers every config-write attempt with the
// spec's fixed 403 (spec.md §4.14: "Config-write endpoints return 403 with
// an 'edit file manually' message").
func (s *Server) handleConfigWriteRejected(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusForbidden, "edit file manually")
}
