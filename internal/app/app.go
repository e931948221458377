package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc"

	"github.com/riskibarqy/matchpulse/external/apifootball"
	"github.com/riskibarqy/matchpulse/external/telegram"
	"github.com/riskibarqy/matchpulse/internal/config"
	"github.com/riskibarqy/matchpulse/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/matchpulse/internal/infrastructure/repository/postgres"
	redisrepo "github.com/riskibarqy/matchpulse/internal/infrastructure/repository/redis"
	"github.com/riskibarqy/matchpulse/internal/interfaces/httpapi"
	"github.com/riskibarqy/matchpulse/internal/observability"
	"github.com/riskibarqy/matchpulse/internal/platform/cache"
	"github.com/riskibarqy/matchpulse/internal/platform/logging"
	"github.com/riskibarqy/matchpulse/internal/realtime"
	"github.com/riskibarqy/matchpulse/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

// App owns every long-lived component of the service.
type App struct {
	cfg    config.Config
	logger *logging.Logger

	telemetry *observability.Telemetry
	db        *sqlx.DB
	redis     *goredis.Client

	hub       *realtime.Hub
	sync      *usecase.MatchSyncService
	archiver  *usecase.RawArchiver
	poller    *usecase.Poller
	resources *usecase.ResourceService
	catalog   *cache.Store
	server    *http.Server
	scheduler *cron.Cron

	mirror   *redisrepo.SnapshotMirror
	notifier *telegram.GoalNotifier
}

// New builds the service from cfg. Nothing runs until Run is called.
func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.closeResources(context.Background())
		}
	}()

	telemetry, err := observability.Start(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.telemetry = telemetry

	store := memory.NewMatchStore()
	a.hub = realtime.NewHub(cfg.HubSubscriberBuffer, logger.Named("hub"))

	if cfg.RawArchiveEnabled {
		db, err := openDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.archiver = usecase.NewRawArchiver(postgres.NewRawDataRepository(db), logger.Named("archive"))
	}

	if cfg.FeedAPIKey == "" {
		logger.Warn("FEED_API_KEY is empty, every poll class will report a configuration error")
	}
	feed := apifootball.NewClient(apifootball.ClientConfig{
		BaseURL:           cfg.FeedBaseURL,
		APIKey:            cfg.FeedAPIKey,
		Timeout:           cfg.FeedTimeout,
		MaxRetries:        cfg.FeedMaxRetries,
		RequestsPerMinute: cfg.FeedRequestsPerMinute,
		DedupWindow:       cfg.FeedDedupWindow,
		Logger:            logger.Named("feed"),
		CircuitBreaker:    cfg.FeedCircuitBreaker(),
	})

	a.sync = usecase.NewMatchSyncService(store, feed, a.hub, a.archiver, cfg.SyncWorkers, logger.Named("sync"))
	a.poller = usecase.NewPoller(feed, a.sync, pollClasses(cfg), logger.Named("poller"))
	a.catalog = cache.NewStore(cfg.LeagueCatalogTTL)
	a.resources = usecase.NewResourceService(store, feed, a.poller, a.catalog, cfg.TrackedLeagueSeasons())

	handler := httpapi.NewHandler(a.resources, a.hub, logger, httpapi.HandlerConfig{
		DefaultUpcomingDays: cfg.PollUpcomingDays,
		AllowedOrigins:      cfg.CORSAllowedOrigins,
	})
	a.server = &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(handler, logger, httpapi.RouterConfig{
			ServiceName:        cfg.ServiceName,
			CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	if cfg.RedisEnabled {
		a.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.mirror = redisrepo.NewSnapshotMirror(a.redis, store, redisrepo.MirrorConfig{
			Stream:       cfg.RedisStream,
			StreamMaxLen: cfg.RedisStreamMaxLen,
			SnapshotTTL:  cfg.RedisSnapshotTTL,
		}, logger.Named("redis"))
	}

	if cfg.TelegramEnabled {
		bot, err := telegram.NewBot(cfg.TelegramToken)
		if err != nil {
			return nil, err
		}
		a.notifier = telegram.NewGoalNotifier(bot, store, telegram.NotifierConfig{
			ChatID:       cfg.TelegramChatID,
			SendInterval: cfg.TelegramSendInterval,
		}, logger.Named("telegram"))
	}

	a.scheduler = cron.New()
	if _, err := a.scheduler.AddFunc(cfg.StorePruneSchedule, a.prune); err != nil {
		return nil, fmt.Errorf("schedule store prune %q: %w", cfg.StorePruneSchedule, err)
	}

	ok = true
	return a, nil
}

// Run starts polling, consumers and the HTTP server, then blocks until ctx
// is done or the server fails. It always shuts everything down before
// returning.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	consumers := conc.NewWaitGroup()
	if a.redis != nil {
		if err := a.redis.Ping(runCtx).Err(); err != nil {
			a.logger.Warn("redis ping failed, mirror will retry on each change", "addr", a.cfg.RedisAddr, "error", err)
		}
	}
	if a.mirror != nil {
		consumers.Go(func() {
			if err := a.mirror.Run(runCtx, a.hub); err != nil {
				a.logger.Error("redis mirror stopped", "error", err)
			}
		})
	}
	if a.notifier != nil {
		consumers.Go(func() {
			if err := a.notifier.Run(runCtx, a.hub); err != nil {
				a.logger.Error("telegram notifier stopped", "error", err)
			}
		})
	}

	a.poller.Start(runCtx)
	a.scheduler.Start()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "addr", a.cfg.HTTPAddr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, open := <-serverErr:
		if open && err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	<-a.scheduler.Stop().Done()
	a.poller.Stop()
	// Closing the hub ends websocket streams and in-process consumers.
	a.hub.Close()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("http shutdown: %w", err))
	}
	cancel()
	consumers.Wait()

	if err := a.closeResources(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, err)
	}
	a.logger.Info("service stopped")
	return runErr
}

func (a *App) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := a.sync.PruneStale(ctx, a.cfg.StoreRetention); err != nil {
		a.logger.Error("store prune failed", "error", err)
	}
	if _, err := a.archiver.Prune(ctx, a.cfg.RawArchiveRetention); err != nil {
		a.logger.Error("raw archive prune failed", "error", err)
	}
	if removed := a.catalog.Sweep(); removed > 0 {
		a.logger.Debug("catalog cache swept", "removed", removed)
	}
}

func (a *App) closeResources(ctx context.Context) error {
	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func pollClasses(cfg config.Config) []usecase.ResourceClass {
	classes := []usecase.ResourceClass{
		usecase.LiveClass(cfg.PollLiveInterval),
		usecase.UpcomingClass(cfg.PollUpcomingInterval, cfg.PollUpcomingDays),
	}
	for _, league := range cfg.TrackedLeagues {
		interval := league.Interval
		if interval <= 0 {
			interval = cfg.PollLeagueInterval
		}
		classes = append(classes, usecase.LeagueClass(league.ID, league.Season, interval))
	}
	return classes
}
