package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/ohcupload/ohcupload/internal/config"
	"github.com/ohcupload/ohcupload/internal/core"
	"github.com/ohcupload/ohcupload/internal/core/engine"
	"github.com/ohcupload/ohcupload/internal/core/scanner"
	"github.com/ohcupload/ohcupload/internal/core/store"
	"github.com/ohcupload/ohcupload/internal/core/submit"
	"github.com/ohcupload/ohcupload/internal/server/handlers"
	"github.com/ohcupload/ohcupload/internal/status"
	"github.com/ohcupload/ohcupload/internal/statusfile"
)

// uploaderOptions selects where status updates go.
type uploaderOptions struct {
	// Out receives one line per status update. Nil disables it.
	Out io.Writer
	// LogStatus mirrors status updates into the logger.
	LogStatus bool
	Logger    *logging.Logger
	Clock     func() time.Time
	Sleeper   engine.Sleeper
}

// uploader owns one orchestrator and everything it was built from.
type uploader struct {
	orch       *engine.Orchestrator
	quota      *engine.QuotaTracker
	db         *store.Store
	statusFile *statusfile.File
	hourlyCap  int
	logger     *logging.Logger

	// base is the context background batches started by Trigger run on.
	base context.Context
	wg   sync.WaitGroup

	mu        sync.RWMutex
	dir       string
	creds     core.Credentials
	whitelist scanner.Whitelist
}

func newUploader(ctx context.Context, cfg *config.Config, opts uploaderOptions) (*uploader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	logger := opts.Logger

	policy, err := engine.PolicyByName(cfg.Policy)
	if err != nil {
		// Validation reports the bad name; fall back so the orchestrator stays constructible.
		policy = engine.AbortOnFailure{}
	}

	quota := engine.NewQuotaTracker(engine.QuotaLimits{
		HourlyCap: cfg.Quota.HourlyCap,
		Window:    cfg.Quota.Window,
		Cooldown:  cfg.Quota.Cooldown,
	}, clock)
	quota.Logger = logger

	up := &uploader{
		quota:     quota,
		hourlyCap: quota.Limits.HourlyCap,
		logger:    logger,
		base:      ctx,
	}
	up.applyRequest(cfg)

	if cfg.Store.Enabled {
		db, err := openStore(ctx, cfg)
		if err != nil {
			up.warn("OHC: quota ledger unavailable, quota state stays in memory", err)
		} else {
			up.db = db
			quota.Ledger = &store.QuotaLedger{Store: db, Service: serviceName(cfg.API.URL)}
			if cfg.Quota.Restore {
				if err := quota.Restore(ctx); err != nil {
					up.warn("OHC: failed to restore quota state", err)
				}
			}
		}
	}

	var observers []engine.RunObserver
	if strings.TrimSpace(cfg.StatusFile) != "" {
		file, err := statusfile.Open(cfg.StatusFile, logger)
		if err != nil {
			up.warn("OHC: status file unavailable", err)
		}
		if file != nil {
			up.statusFile = file
			observers = append(observers, file)
		}
	}

	var sinks []status.Sink
	if opts.Out != nil {
		sinks = append(sinks, status.NewWriterSink(opts.Out))
	}
	if opts.LogStatus {
		sinks = append(sinks, status.LogSink{Logger: logger})
	}

	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = engine.TimerSleeper{}
	}

	up.orch = &engine.Orchestrator{
		Scanner: &scanner.Scanner{Logger: logger},
		Client: &submit.Client{
			URL:       cfg.API.URL,
			Timeout:   cfg.API.Timeout,
			UserAgent: handlers.UserAgent(),
			Logger:    logger,
			Clock:     clock,
		},
		Quota:         quota,
		Cooldown:      cfg.Quota.Cooldown,
		Status:        status.Safe(status.Multi(sinks...)),
		Policy:        policy,
		Sleeper:       sleeper,
		Observers:     observers,
		Logger:        logger,
		Clock:         clock,
		AnnouncePause: cfg.Display.Pause,
		FinishPause:   cfg.Display.Pause,
	}
	up.orch.Activate(config.Validate(cfg))

	return up, nil
}

// Active reports whether the configuration validated.
func (u *uploader) Active() bool { return u.orch.Active() }

// Running reports whether a batch is in flight.
func (u *uploader) Running() bool { return u.orch.Running() }

// LastRun returns the most recent batch summary.
func (u *uploader) LastRun() *core.RunSummary { return u.orch.LastRun() }

// Snapshot returns the live quota state.
func (u *uploader) Snapshot() core.QuotaState { return u.quota.Snapshot() }

// RunOnce runs a batch with the current request settings.
func (u *uploader) RunOnce(ctx context.Context) (*core.RunSummary, error) {
	return u.orch.RunOnce(ctx, u.request())
}

// Trigger starts a batch. With wait it blocks until the batch finishes;
// otherwise the batch runs in the background and nil is returned.
func (u *uploader) Trigger(ctx context.Context, wait bool) (*core.RunSummary, error) {
	if !u.orch.Active() {
		return nil, engine.ErrInactive
	}
	if wait {
		return u.RunOnce(ctx)
	}
	if u.orch.Running() {
		return nil, engine.ErrRunInProgress
	}

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		if _, err := u.RunOnce(u.base); err != nil && u.logger != nil {
			u.logger.Warn("OHC: triggered batch ended with error", zap.Error(err))
		}
	}()
	return nil, nil
}

// Reload picks up the directory, credentials and whitelist of a reloaded
// configuration. Quota limits and the activation verdict are kept.
func (u *uploader) Reload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if err := config.Validate(cfg); err != nil {
		u.warn("OHC: reloaded configuration is invalid, keeping previous settings", err)
		return
	}
	u.applyRequest(cfg)
	if u.logger != nil {
		u.logger.Info("OHC: configuration reloaded",
			zap.String("handshakes_dir", cfg.HandshakesDir),
			zap.Int("whitelist", len(cfg.Whitelist)))
	}
}

// Wait blocks until background batches started by Trigger return.
func (u *uploader) Wait() {
	u.wg.Wait()
}

// Close releases the quota ledger.
func (u *uploader) Close() error {
	if u == nil || u.db == nil {
		return nil
	}
	return u.db.Close()
}

func (u *uploader) applyRequest(cfg *config.Config) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.dir = cfg.HandshakesDir
	u.creds = core.Credentials{APIKey: cfg.Credentials.APIKey, Email: cfg.Credentials.Email}
	u.whitelist = scanner.NewPatternWhitelist(cfg.Whitelist)
}

func (u *uploader) request() engine.Request {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return engine.Request{Dir: u.dir, Credentials: u.creds, Whitelist: u.whitelist}
}

func (u *uploader) warn(msg string, err error) {
	if u.logger != nil {
		u.logger.Warn(msg, zap.Error(err))
	}
}

// serviceName keys the quota ledger by API host.
func serviceName(apiURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(apiURL))
	if err != nil || parsed.Host == "" {
		return store.DefaultService
	}
	return strings.ToLower(parsed.Host)
}

