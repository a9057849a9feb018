package bootstrap

import (
	"time"

	"shrinkbot/internal/adapters/codec"
	"shrinkbot/internal/adapters/config"
	errnoop "shrinkbot/internal/adapters/errors/noop"
	"shrinkbot/internal/adapters/errors/sentry"
	redisclient "shrinkbot/internal/adapters/redis"
	telegram "shrinkbot/internal/adapters/telegram"
	"shrinkbot/internal/api"
	"shrinkbot/internal/api/health"
	"shrinkbot/internal/domain/conversation"
	"shrinkbot/internal/metrics"
	"shrinkbot/internal/repository/memory"
	redisrepo "shrinkbot/internal/repository/redis"
	compressionsvc "shrinkbot/internal/services/compression"
	conversationsvc "shrinkbot/internal/services/conversation"
	"shrinkbot/internal/workers"
	"shrinkbot/internal/workers/sessions"
	"shrinkbot/pkg/errors"
	"shrinkbot/pkg/logger"
	tg "shrinkbot/pkg/telegram"
	"shrinkbot/pkg/telegram/adapters/tgbotapi"
	"shrinkbot/pkg/templates"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects to Redis when sessions live there
func (c *Container) MustInitInfrastructure() {
	if c.Config.Session.Store != config.SessionStoreRedis {
		c.Log.Info("Session store: in-memory (single replica only)")
		return
	}

	c.Log.Infow("Connecting to Redis...", "addr", c.Config.Redis.Addr())
	client, err := redisclient.NewClient(c.Context, c.Config.Redis)
	if err != nil {
		c.Log.Fatalf("failed to connect redis: %v", err)
	}
	c.Redis = client
	c.Log.Info("✓ Redis connected")
}

// ========================================
// Phase 3: Repositories
// ========================================

// MustInitRepositories selects the session store and exposes its population as a metric
func (c *Container) MustInitRepositories() {
	switch c.Config.Session.Store {
	case config.SessionStoreRedis:
		c.Repos.Sessions = redisrepo.NewSessionRepository(c.Redis.Client())
	default:
		c.Repos.Sessions = memory.NewSessionRepository()
	}

	metrics.RegisterSessionCollector(metrics.NewSessionCollector(c.Log, c.Config.Session.Store, c.Repos.Sessions))
	c.Log.Infow("✓ Session repository initialized", "store", c.Config.Session.Store)
}

// ========================================
// Phase 4: Adapters
// ========================================

// MustInitAdapters creates the Telegram client
func (c *Container) MustInitAdapters() {
	bot, err := provideTelegramBot(c.Config, c.Log)
	if err != nil {
		c.Log.Fatalf("failed to create telegram bot: %v", err)
	}
	c.Adapters.Bot = bot
}

// ========================================
// Phase 5: Services
// ========================================

// MustInitServices builds the compression engine and the conversation service
func (c *Container) MustInitServices() {
	if err := templates.Get().Require(replyTemplateIDs()...); err != nil {
		c.Log.Fatalf("reply templates incomplete: %v", err)
	}

	c.Services.Locker = provideLocker(c.Config, c.Redis, c.Log)

	c.Services.Compression = compressionsvc.NewEngine(
		codec.NewJPEG(codec.DefaultMaxPixels),
		compressionsvc.Config{
			TempDir:     c.Config.Compression.TempDir,
			QualityStep: c.Config.Compression.QualityStep,
			MinQuality:  c.Config.Compression.MinQuality,
		},
		c.Log,
	)

	c.Services.Conversation = conversationsvc.NewService(conversationsvc.Deps{
		Repo:       c.Repos.Sessions,
		Locker:     c.Services.Locker,
		Compressor: c.Services.Compression,
		Messenger:  c.Adapters.Bot,
		Renderer:   templates.Get(),
		Tracker:    c.ErrorTracker,
		Config: conversationsvc.Config{
			SessionTTL:     c.Config.Session.TTL,
			MaxSourceBytes: c.Config.Compression.MaxSourceBytes,
			LockWait:       c.Config.Session.LockWait,
		},
		Log: c.Log,
	})
	c.Log.Info("✓ Conversation service initialized")
}

// ========================================
// Phase 6: Background
// ========================================

// MustInitBackground schedules the session janitor
func (c *Container) MustInitBackground() {
	c.Background.WorkerScheduler = workers.NewScheduler(c.Log, 30*time.Second)

	// Redis expires keys itself
	sweep := c.Config.Session.Store == config.SessionStoreMemory
	c.Background.WorkerScheduler.RegisterWorker(
		sessions.NewJanitor(c.Repos.Sessions, c.Config.Session.JanitorInterval, sweep, c.Log),
	)
}

// ========================================
// Phase 7: Application Layer
// ========================================

// MustInitApplication wires updates into the dispatcher and builds the HTTP server
func (c *Container) MustInitApplication() {
	c.Application.TelegramHandler = telegram.NewHandler(c.Adapters.Bot, c.Services.Conversation, c.Log)
	c.Adapters.Dispatcher = provideDispatcher(c.Config, c.Application.TelegramHandler, c.Log)
	c.Adapters.Bot.SetHandler(c.Adapters.Dispatcher.HandleUpdate)

	var webhook *tg.WebhookHandler
	if c.Config.Telegram.WebhookMode() {
		webhook = tg.NewWebhookHandler(c.Adapters.Dispatcher.HandleUpdate, c.Config.Telegram.WebhookSecret, c.Log)
	}

	checks := map[string]health.Checker{"workers": c.Background.WorkerScheduler}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}

	c.Application.HTTPServer = provideHTTPServer(c.Config, webhook, checks, c.Log)
}

// ========================================
// Providers
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

func provideLocker(cfg *config.Config, client *redisclient.Client, log *logger.Logger) conversationsvc.Locker {
	if client == nil {
		return conversationsvc.NewKeyedLocker()
	}
	return redisclient.NewSessionLocker(client, cfg.Session.LockTTL, log)
}

func provideTelegramBot(cfg *config.Config, log *logger.Logger) (*tgbotapi.Bot, error) {
	return tgbotapi.NewBot(tgbotapi.Config{
		Token:          cfg.Telegram.BotToken,
		Debug:          cfg.Telegram.Debug,
		WebhookURL:     cfg.Telegram.WebhookURL,
		WebhookSecret:  cfg.Telegram.WebhookSecret,
		HTTPTimeout:    cfg.Telegram.HTTPTimeout,
		RateLimitRate:  cfg.Telegram.RateLimit,
		RateLimitBurst: cfg.Telegram.RateBurst,
	}, log)
}

func provideDispatcher(cfg *config.Config, handler *telegram.Handler, log *logger.Logger) *tg.Dispatcher {
	var dispatcher *tg.Dispatcher
	dispatcher = tg.NewDispatcher(handler.HandleUpdate, tg.DispatcherConfig{
		QueueSize: cfg.Dispatch.QueueSize,
		OnProcessed: func(tg.Update, time.Duration) {
			metrics.DispatchQueueDepth.Set(float64(dispatcher.Queues()))
		},
		OnDropped: func(update tg.Update, _ error) {
			metrics.RecordDroppedUpdate(telegram.UpdateKind(update))
		},
	}, log)
	return dispatcher
}

func provideHTTPServer(cfg *config.Config, webhook *tg.WebhookHandler, checks map[string]health.Checker, log *logger.Logger) *api.Server {
	serverCfg := api.ServerConfig{
		Port:        cfg.HTTP.Port,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
	}
	if webhook != nil {
		serverCfg.TelegramWebhook = webhook
	}

	return api.NewServer(serverCfg, health.New(log, cfg.App.Name, cfg.App.Version, checks), log)
}

// replyTemplateIDs lists every template the conversation can render
func replyTemplateIDs() []string {
	kinds := []conversation.ReplyKind{
		conversation.ReplyWelcome,
		conversation.ReplyHelp,
		conversation.ReplyAskSize,
		conversation.ReplyInvalidSize,
		conversation.ReplyAskQuality,
		conversation.ReplyProcessing,
		conversation.ReplyResult,
		conversation.ReplyError,
		conversation.ReplyCancelled,
		conversation.ReplyInvalidInput,
	}

	ids := make([]string, 0, len(kinds))
	for _, k := range kinds {
		ids = append(ids, "telegram/"+k.String())
	}
	return ids
}
