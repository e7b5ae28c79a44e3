// Package app assembles the bot: config, logging, the NHL provider, the
// goal tracker, the Telegram publisher, the scheduler, and the liveness
// endpoint. It owns startup order, hot reload, and shutdown.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"goalbot/internal/config"
	"goalbot/internal/health"
	"goalbot/internal/nhl"
	"goalbot/internal/notifier"
	"goalbot/internal/poller"
	"goalbot/internal/retry"
	"goalbot/internal/runtime/supervisor"
	"goalbot/internal/scheduler"
	"goalbot/internal/storage"
	"goalbot/internal/tracker"
	logx "goalbot/pkg/logx"
)

const (
	defaultTimezone     = "America/New_York"
	defaultPollInterval = 50 * time.Second
	defaultRetention    = 5 * time.Hour
	defaultMaxUpdates   = 2

	defaultSettleDelay     = 45 * time.Second
	defaultPostSettleDelay = 90 * time.Second
	defaultLockTimeout     = time.Minute
	defaultSendTimeout     = 10 * time.Second

	defaultRestartFailures = 5
	defaultRestartCooldown = 30 * time.Second
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store    *tracker.Store
	resolver *tracker.Resolver
	workflow *notifier.Workflow
	telegram *notifier.Telegram
	audit    storage.Store
	health   *health.Service
	sched    *scheduler.Service
	sup      *supervisor.Supervisor

	// pollMu guards the provider rebuild after repeated upstream failures.
	pollMu        sync.Mutex
	poll          *poller.Poller
	failStreak    int
	cooldownUntil time.Time

	restartMax      int
	restartCooldown time.Duration
}

// New loads and validates the config and builds every component, but does
// not start any of them.
func New(configPath string) (*App, error) {
	mgr := config.NewManager(configPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log.With(logx.String("component", "config")))
	mgr.SetValidator(func(ctx context.Context, c *config.Config) error {
		return config.Validate(c)
	})

	a := &App{cfgMgr: mgr, logSvc: logSvc, log: log}
	if err := a.build(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	tz := strings.TrimSpace(cfg.Tracker.Timezone)
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("tracker timezone: %w", err)
	}

	retention, err := config.ParseDurationOrDefault("tracker.retention", cfg.Tracker.Retention, defaultRetention)
	if err != nil {
		return err
	}
	clock := tracker.SystemClock()
	a.store = tracker.NewStore(clock, loc, retention, a.log.With(logx.String("component", "tracker")))
	a.resolver = tracker.NewResolver(a.store, maxUpdates(cfg), a.log.With(logx.String("component", "resolver")))

	sendTimeout, err := config.ParseDurationOrDefault("notifier.send_timeout", cfg.Notifier.SendTimeout, defaultSendTimeout)
	if err != nil {
		return err
	}
	a.telegram, err = notifier.NewTelegram(notifier.TelegramConfig{
		Token:       cfg.Telegram.Token,
		ChannelID:   cfg.Telegram.ChannelID,
		RatePerSec:  cfg.Notifier.RatePerSec,
		SendTimeout: sendTimeout,
	}, a.log.With(logx.String("component", "telegram")))
	if err != nil {
		return err
	}

	client := nhl.NewClient(nhlConfig(cfg), a.log.With(logx.String("component", "nhl")))

	wcfg, err := workflowConfig(cfg)
	if err != nil {
		return err
	}
	a.workflow = notifier.NewWorkflow(a.store, a.telegram, client, clock, wcfg,
		a.log.With(logx.String("component", "workflow")))

	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return err
		}
		a.audit, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
			KeepDays:    cfg.Storage.KeepDays,
		}, a.log.With(logx.String("component", "storage")))
		if err != nil {
			return fmt.Errorf("open announcement log: %w", err)
		}
		if a.audit != nil {
			a.workflow.SetRecorder(a.audit)
		}
	}

	a.poll = poller.New(client, a.store, a.resolver, a.workflow,
		a.log.With(logx.String("component", "poller")))

	a.health = health.New(health.Config{
		Enabled: cfg.Health.Enabled,
		Addr:    cfg.Health.Addr,
	}, a.log.With(logx.String("component", "health")))

	a.sched, err = scheduler.New(scheduler.Config{Timezone: tz},
		a.log.With(logx.String("component", "scheduler")))
	if err != nil {
		return err
	}

	a.restartMax = cfg.Restart.MaxConsecutiveFailures
	if a.restartMax <= 0 {
		a.restartMax = defaultRestartFailures
	}
	a.restartCooldown, err = config.ParseDurationOrDefault("restart.cooldown", cfg.Restart.Cooldown, defaultRestartCooldown)
	if err != nil {
		return err
	}

	pollEvery, err := config.ParseDurationOrDefault("nhl.poll_interval", cfg.NHL.PollInterval, defaultPollInterval)
	if err != nil {
		return err
	}
	a.sched.Add("poll", fmt.Sprintf("@every %s", pollEvery), a.pollOnce)
	a.sched.Add("day-rollover", "0 0 * * *", func(ctx context.Context) {
		a.store.Clear()
		a.log.Info("day rollover: tracked goals cleared")
	})
	if a.audit != nil {
		a.sched.Add("audit-prune", "30 5 * * *", func(ctx context.Context) {
			if _, err := a.audit.Prune(ctx); err != nil {
				a.log.Warn("announcement log prune failed", logx.Err(err))
			}
		})
	}
	return nil
}

// Start logs in to Telegram (bounded retries; exhaustion is fatal), then
// starts the liveness endpoint, the scheduler, and the config watcher.
func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgMgr.Get()

	policy, err := loginPolicy(cfg)
	if err != nil {
		return err
	}
	if err := policy.Do(ctx, a.log, "telegram login", a.telegram.Login); err != nil {
		return fmt.Errorf("telegram login: %w", err)
	}

	if err := a.health.Start(ctx); err != nil {
		return fmt.Errorf("health: %w", err)
	}

	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))
	a.sup.Go("config-watch", a.cfgMgr.Watch)

	updates := a.cfgMgr.Subscribe(1)
	a.sup.Go("config-apply", func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				a.cfgMgr.Unsubscribe(updates)
				return nil
			case next, ok := <-updates:
				if !ok {
					return nil
				}
				a.applyReload(next)
			}
		}
	})

	// Tracked state never survives a restart; stamp today's table fresh.
	a.store.Clear()

	if err := a.sched.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	a.log.Info("bot started")
	return nil
}

// pollOnce runs one cycle and escalates repeated provider failures into a
// provider rebuild with a cooldown.
func (a *App) pollOnce(ctx context.Context) {
	a.pollMu.Lock()
	if wait := time.Until(a.cooldownUntil); wait > 0 {
		a.pollMu.Unlock()
		a.log.Debug("poll skipped (cooldown)", logx.Duration("remaining", wait))
		return
	}
	p := a.poll
	a.pollMu.Unlock()

	err := p.Cycle(ctx)
	if err == nil || ctx.Err() != nil {
		a.pollMu.Lock()
		a.failStreak = 0
		a.pollMu.Unlock()
		return
	}

	a.pollMu.Lock()
	defer a.pollMu.Unlock()
	if !nhl.IsTransient(err) {
		// Not an outage signature; it breaks the consecutive-transient
		// streak instead of feeding it.
		a.failStreak = 0
		a.log.Warn("poll cycle failed", logx.Err(err))
		return
	}
	a.failStreak++
	a.log.Warn("poll cycle failed",
		logx.Int("streak", a.failStreak),
		logx.Int("max", a.restartMax),
		logx.Err(err))
	if a.failStreak < a.restartMax {
		return
	}

	// Too many consecutive upstream failures: replace the provider and back
	// off before polling again.
	a.log.Error("provider unreachable; rebuilding after cooldown",
		logx.Duration("cooldown", a.restartCooldown))
	cfg := a.cfgMgr.Get()
	client := nhl.NewClient(nhlConfig(cfg), a.log.With(logx.String("component", "nhl")))
	a.workflow.SetSource(client)
	a.poll = poller.New(client, a.store, a.resolver, a.workflow,
		a.log.With(logx.String("component", "poller")))
	a.failStreak = 0
	a.cooldownUntil = time.Now().Add(a.restartCooldown)
}

// applyReload pushes a validated config change into the running components.
// Telegram identity and the poll schedule are fixed for the process
// lifetime; changing those needs a restart.
func (a *App) applyReload(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})

	if retention, err := config.ParseDurationOrDefault("tracker.retention", cfg.Tracker.Retention, defaultRetention); err == nil {
		a.store.SetRetention(retention)
	}
	a.resolver.SetMaxUpdates(maxUpdates(cfg))

	if wcfg, err := workflowConfig(cfg); err == nil {
		a.workflow.Apply(wcfg)
	}

	a.pollMu.Lock()
	client := nhl.NewClient(nhlConfig(cfg), a.log.With(logx.String("component", "nhl")))
	a.workflow.SetSource(client)
	a.poll = poller.New(client, a.store, a.resolver, a.workflow,
		a.log.With(logx.String("component", "poller")))
	a.pollMu.Unlock()

	a.log.Info("runtime config applied")
}

// Stop shuts down in reverse start order: scheduler first so no new cycles
// begin, then the watcher goroutines, then the edges.
func (a *App) Stop(ctx context.Context) {
	if a.sched != nil {
		a.sched.Stop(ctx)
	}
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil {
			a.log.Warn("background goroutines did not stop cleanly", logx.Err(err))
		}
	}
	if a.health != nil {
		if err := a.health.Stop(ctx); err != nil {
			a.log.Warn("health shutdown failed", logx.Err(err))
		}
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.log.Warn("announcement log close failed", logx.Err(err))
		}
	}
	a.log.Info("bot stopped")
	_ = a.logSvc.Close()
}

func nhlConfig(cfg *config.Config) nhl.Config {
	timeout, _ := config.ParseDurationField("nhl.request_timeout", cfg.NHL.RequestTimeout)
	return nhl.Config{
		BaseURL:        cfg.NHL.BaseURL,
		RequestTimeout: timeout,
	}
}

func workflowConfig(cfg *config.Config) (notifier.Config, error) {
	settle, err := config.ParseDurationOrDefault("notifier.settle_delay", cfg.Notifier.SettleDelay, defaultSettleDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	hold, err := config.ParseDurationOrDefault("notifier.post_settle_delay", cfg.Notifier.PostSettleDelay, defaultPostSettleDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	lock, err := config.ParseDurationOrDefault("notifier.lock_timeout", cfg.Notifier.LockTimeout, defaultLockTimeout)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		SettleDelay:       settle,
		PostSettleDelay:   hold,
		LockTimeout:       lock,
		CountEmptyUpdates: cfg.Tracker.CountEmptyUpdates,
	}, nil
}

// maxUpdates distinguishes an omitted correction budget (default) from an
// explicit zero, which disables corrections.
func maxUpdates(cfg *config.Config) int {
	if cfg.Tracker.MaxUpdates == nil {
		return defaultMaxUpdates
	}
	if *cfg.Tracker.MaxUpdates < 0 {
		return 0
	}
	return *cfg.Tracker.MaxUpdates
}

func loginPolicy(cfg *config.Config) (retry.Policy, error) {
	base, err := config.ParseDurationField("telegram.login_base_delay", cfg.Telegram.LoginBaseDelay)
	if err != nil {
		return retry.Policy{}, err
	}
	max, err := config.ParseDurationField("telegram.login_max_delay", cfg.Telegram.LoginMaxDelay)
	if err != nil {
		return retry.Policy{}, err
	}
	return retry.Policy{
		MaxAttempts: cfg.Telegram.LoginMaxAttempts,
		BaseDelay:   base,
		MaxDelay:    max,
		// Failures that look like an outage (timeouts, resets, 5xx) wait
		// longer between attempts than a locally wrong token would.
		UpstreamFactor: 3,
		Classify:       nhl.IsTransient,
	}, nil
}
