// Command rewardsrund is the orchestrator's process entrypoint: it loads
// config and accounts, wires every internal/* collaborator together, and
// serves the Dashboard Gateway alongside the scheduled worker pool.
// Grounded on the teacher's cmd/gateway/main.go shape (flags/env → build
// dependency graph → serve → signal-driven graceful shutdown).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/kestrelops/rewardsbot/internal/account"
	"github.com/kestrelops/rewardsbot/internal/activity"
	"github.com/kestrelops/rewardsbot/internal/antidetect"
	"github.com/kestrelops/rewardsbot/internal/ban"
	"github.com/kestrelops/rewardsbot/internal/browser"
	"github.com/kestrelops/rewardsbot/internal/config"
	"github.com/kestrelops/rewardsbot/internal/dashboard"
	"github.com/kestrelops/rewardsbot/internal/history"
	"github.com/kestrelops/rewardsbot/internal/history/postgres"
	"github.com/kestrelops/rewardsbot/internal/jobstate"
	"github.com/kestrelops/rewardsbot/internal/login"
	"github.com/kestrelops/rewardsbot/internal/logring"
	"github.com/kestrelops/rewardsbot/internal/metrics"
	"github.com/kestrelops/rewardsbot/internal/notify"
	"github.com/kestrelops/rewardsbot/internal/orchestrator"
	"github.com/kestrelops/rewardsbot/internal/pipeline"
	"github.com/kestrelops/rewardsbot/internal/rng"
	"github.com/kestrelops/rewardsbot/internal/search"
	"github.com/kestrelops/rewardsbot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the orchestrator config file")
	accountsPath := flag.String("accounts", "accounts.json", "path to the account roster file")
	stateDir := flag.String("state-dir", "state", "directory for job-state and history files")
	profileRoot := flag.String("profile-root", "profiles", "directory for per-account browser profiles")
	addr := flag.String("addr", ":8090", "dashboard gateway bind address")
	locale := flag.String("locale", "en-US", "default locale for search/login")
	timezone := flag.String("timezone", "America/Chicago", "default timezone for fingerprinting")
	homeURL := flag.String("home-url", "https://rewards.bing.com/", "rewards portal home URL")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	raw, err := os.ReadFile(*accountsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read accounts file: %v\n", err)
		os.Exit(1)
	}
	accounts, err := account.LoadFile(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load accounts: %v\n", err)
		os.Exit(1)
	}

	logBuffer := logring.New(2000)
	log := logger.New(logger.Config{
		Level:  envOr("LOG_LEVEL", "info"),
		Format: envOr("LOG_FORMAT", "text"),
		Ring:   logBuffer,
	})
	root := log.WithField("component", "rewardsrund")

	rngSrc := rng.New()

	if err := os.MkdirAll(*stateDir, 0o755); err != nil {
		root.WithError(err).Fatal("create state dir")
	}
	if err := os.MkdirAll(*profileRoot, 0o755); err != nil {
		root.WithError(err).Fatal("create profile dir")
	}

	jobStore, err := jobstate.New(*stateDir + "/jobstate")
	if err != nil {
		root.WithError(err).Fatal("init job-state store")
	}

	historyStore, err := buildHistoryStore(*stateDir + "/history")
	if err != nil {
		root.WithError(err).Fatal("init history store")
	}
	defer historyStore.Close()

	transports := []notify.Transport{notify.NewLogTransport(root.WithField("component", "notify"))}
	if webhookURL := os.Getenv("NOTIFY_WEBHOOK_URL"); webhookURL != "" {
		transports = append(transports, notify.NewWebhookTransport("webhook", webhookURL))
	}
	notifySink := notify.NewSink(root.WithField("component", "notify"), 5*time.Second, transports...)

	banDetector := ban.New()
	loginSelectors := login.Selectors{
		PortalHost:         "rewards.bing.com",
		LoginHost:          "login.live.com",
		PortalPresence:     "Rewards",
		EmailInput:         "input[type=email]",
		PasswordInput:      "input[type=password]",
		OTPInput:           "input[name=otc]",
		KMSIButton:         "#idBtn_Back",
		OAuthAuthorizePath: "/oauth20_authorize.srf",
	}
	loginMachine := login.NewMachine(loginSelectors, rngSrc, root.WithField("component", "login"))

	edgeVersions := browser.NewEdgeVersionCache(6 * time.Hour)
	antiDetect := antidetect.New(rngSrc)
	browserFactory := browser.NewFactory(
		unconfiguredDriver{},
		antiDetect, edgeVersions, rngSrc, root.WithField("component", "browser"),
		*locale, *timezone, *homeURL, 8, 8, nil,
	)

	registry := newAccountRegistry(accounts)

	searchEndpoint := envOr("SEARCH_ENDPOINT", "https://www.bing.com/search")
	rewardsAPIBaseURL := envOr("REWARDS_API_BASE_URL", "https://prod.rewardsplatform.microsoft.com")

	pipelineRunner := pipeline.New(pipeline.Deps{
		BrowserFactory:   browserFactory,
		LoginMachine:     loginMachine,
		LoginAccounts:    loginSelectors,
		BanDetector:      banDetector,
		JobState:         jobStore,
		History:          historyStore,
		Notify:           notifySink,
		RNG:              rngSrc,
		Log:              root.WithField("component", "pipeline"),
		AccountsFilePath: *accountsPath,
		ProfileRoot:      *profileRoot,
		SearchEndpoint:   searchEndpoint,
		HomeURL:          *homeURL,
		Locale:           *locale,
		NewSearchRunner: func(cfg config.Config, locale string) activity.SearchRunner {
			gen := search.NewQueryGenerator(nil, nil, rngSrc)
			return search.NewRunner(search.Config{
				SearchEndpoint:       searchEndpoint,
				RefetchEveryNQueries: 3,
				StallBreakAfter:      5,
				DwellMinSeconds:      cfg.SearchSettings.SearchDelay.Min.Duration().Seconds(),
				DwellMaxSeconds:      cfg.SearchSettings.SearchDelay.Max.Duration().Seconds(),
			}, gen, rngSrc, root.WithField("component", "search"))
		},
		NewAPIClient: func(token string) *activity.APIClient {
			return activity.NewAPIClient(rewardsAPIBaseURL, token)
		},
		// Promotions (dashboard scraping) and OAuthToken (mobile token
		// exchange) are left unwired: both depend on the concrete rewards
		// portal DOM/OAuth flow, which is an external collaborator per
		// spec.md §1 just like the browser driver itself. pipeline.Deps
		// treats a nil PromotionSource/OAuthTokenFetcher as "this stage is
		// unavailable" rather than panicking, so the run still completes
		// login/ban-check/search with those two stages skipped until a
		// concrete scraper is wired in.
	})

	// pool is declared before the RunFunc closure so the closure can read
	// pool.StandbyEngaged by reference; NewPool needs the closure to
	// construct the Pool itself, so the two are tied together here rather
	// than threaded through another layer of indirection.
	var pool *orchestrator.Pool
	pool = orchestrator.NewPool(cfg.Clusters, cfg.Execution.InterPassDelay.Duration(), func(ctx context.Context, acct account.Account, pass int) {
		pipelineRunner.Run(ctx, acct, cfg, time.Now().Format("2006-01-02"), pool.StandbyEngaged)
	}, root.WithField("component", "orchestrator"))

	supervisor := &supervisor{
		pool:     pool,
		registry: registry,
		cfg:      cfg,
		log:      root.WithField("component", "supervisor"),
	}

	scheduler, err := orchestrator.NewScheduler(cfg.Schedule, rngSrc, root.WithField("component", "scheduler"), func() {
		go pool.RunAll(context.Background(), registry.Accounts(), cfg.Execution.Passes)
	})
	if err != nil {
		root.WithError(err).Fatal("init scheduler")
	}
	supervisor.scheduler = scheduler

	authSecret := []byte(envOr("DASHBOARD_AUTH_SECRET", ""))
	if len(authSecret) == 0 {
		authSecret = []byte(rng.ShortToken() + rng.ShortToken())
		root.Warn("DASHBOARD_AUTH_SECRET not set; generated an ephemeral secret for this process only")
	}
	operatorToken, err := dashboard.IssueOperatorToken(authSecret, "default-operator", jwt.RegisteredClaims{
		IssuedAt: jwt.NewNumericDate(time.Now()),
	})
	if err != nil {
		root.WithError(err).Fatal("issue operator token")
	}
	root.WithField("operator_token", operatorToken).Info("dashboard operator bearer token (store this, it is not printed again)")

	metricsRegistry := metrics.New()

	dash := dashboard.New(dashboard.Deps{
		History:    historyStore,
		JobState:   jobStore,
		Logs:       logBuffer,
		Metrics:    metricsRegistry,
		Accounts:   registry,
		Control:    supervisor,
		Log:        root.WithField("component", "dashboard"),
		AuthSecret: authSecret,
	})

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           dash.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		root.WithField("addr", *addr).Info("dashboard gateway listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			root.WithError(err).Fatal("dashboard gateway server error")
		}
	}()

	scheduler.Start()
	root.Info("scheduler started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	root.Info("shutdown signal received")

	pool.RequestStop()
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		root.WithError(err).Warn("dashboard gateway shutdown error")
	}
}

// unconfiguredDriver satisfies browser.Driver without performing any real
// automation. The concrete browser-automation library is an external
// collaborator out of scope per spec.md §1; wiring one in means replacing
// this type with a Driver backed by that library.
type unconfiguredDriver struct{}

func (unconfiguredDriver) Launch(ctx context.Context, spec browser.SessionSpec) (browser.Session, error) {
	return nil, fmt.Errorf("no browser driver configured: wire a concrete automation driver before running")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func buildHistoryStore(fileDir string) (history.Store, error) {
	if dsn := os.Getenv("HISTORY_DSN"); dsn != "" {
		return postgres.Open(dsn)
	}
	return history.NewFileStore(fileDir)
}

// accountRegistry is the AccountProvider the dashboard reads and the
// lookup table the supervisor uses for "run single account" commands.
type accountRegistry struct {
	mu   sync.RWMutex
	list []account.Account
}

func newAccountRegistry(accts []account.Account) *accountRegistry {
	return &accountRegistry{list: accts}
}

func (r *accountRegistry) Accounts() []account.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]account.Account, len(r.list))
	copy(out, r.list)
	return out
}

func (r *accountRegistry) find(email string) (account.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.list {
		if a.Email == email {
			return a, true
		}
	}
	return account.Account{}, false
}

// supervisor implements dashboard.Controller over the orchestrator pool
// and scheduler, the one place this module lets the gateway reach into
// the running orchestrator.
type supervisor struct {
	pool      *orchestrator.Pool
	scheduler *orchestrator.Scheduler
	registry  *accountRegistry
	cfg       config.Config
	log       *logrus.Entry
}

func (s *supervisor) Start() error {
	s.pool.ClearStop()
	return nil
}

func (s *supervisor) Stop() error {
	s.pool.RequestStop()
	return nil
}

func (s *supervisor) Restart() error {
	s.pool.ClearStop()
	s.pool.ClearStandby()
	return nil
}

// RunSingle dispatches the run in the background and returns once it has
// been accepted: the dashboard handler responds 202 immediately, and the
// request's context would be canceled the moment that response is
// written, so the run is deliberately detached onto context.Background()
// rather than ctx.
func (s *supervisor) RunSingle(ctx context.Context, email string) error {
	acct, ok := s.registry.find(email)
	if !ok {
		return fmt.Errorf("supervisor: unknown account %q", email)
	}
	go s.pool.RunSingle(context.Background(), acct)
	return nil
}

func (s *supervisor) StandbyEngaged() bool { return s.pool.StandbyEngaged() }
func (s *supervisor) StopRequested() bool  { return s.pool.StopRequested() }
