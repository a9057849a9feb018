package bootstrap

import (
	"context"
	"sync"

	"shrinkbot/internal/adapters/config"
	redisclient "shrinkbot/internal/adapters/redis"
	telegram "shrinkbot/internal/adapters/telegram"
	"shrinkbot/internal/api"
	"shrinkbot/internal/domain/conversation"
	compressionsvc "shrinkbot/internal/services/compression"
	conversationsvc "shrinkbot/internal/services/conversation"
	"shrinkbot/internal/workers"
	"shrinkbot/pkg/errors"
	"shrinkbot/pkg/logger"
	tg "shrinkbot/pkg/telegram"
	"shrinkbot/pkg/telegram/adapters/tgbotapi"
	"shrinkbot/pkg/templates"
)

// SessionStore is what the container needs from either session backend
type SessionStore interface {
	conversation.Repository
	CountByState(ctx context.Context) (map[string]int, error)
	Cleanup(ctx context.Context) (int, error)
}

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure (nil when the memory store is used)
	Redis *redisclient.Client

	Repos       *Repositories
	Adapters    *Adapters
	Services    *Services
	Application *Application
	Background  *Background

	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups data access
type Repositories struct {
	Sessions SessionStore
}

// Adapters groups external integrations
type Adapters struct {
	Bot        *tgbotapi.Bot
	Dispatcher *tg.Dispatcher
}

// Services groups domain services
type Services struct {
	Locker       conversationsvc.Locker
	Compression  *compressionsvc.Engine
	Conversation *conversationsvc.Service
}

// Application groups the inbound surfaces
type Application struct {
	TelegramHandler *telegram.Handler
	HTTPServer      *api.Server
}

// Background groups periodic work
type Background struct {
	WorkerScheduler *workers.Scheduler
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Adapters:    &Adapters{},
		Services:    &Services{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitBackground()
	c.MustInitApplication()
}

// Start starts all background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorw("HTTP server failed", "error", err)
			c.Cancel()
		}
	}()

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		err := c.Adapters.Bot.Start(c.Context)
		if err != nil && c.Context.Err() == nil {
			c.Log.Errorw("Telegram bot failed", "error", err)
			c.Cancel()
		}
	}()

	c.Log.Infow("✓ All systems operational",
		"session_store", c.Config.Session.Store,
		"webhook", c.Config.Telegram.WebhookMode(),
	)
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// No new updates from polling; in-flight ones keep the dispatcher's context
	c.Adapters.Bot.Stop()
	c.Cancel()

	c.Lifecycle.Shutdown(
		c.WG,
		c.Application.HTTPServer,
		c.Adapters.Dispatcher,
		c.Background.WorkerScheduler,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}

// TemplateRegistry returns the global template registry
func (c *Container) TemplateRegistry() *templates.Registry {
	return templates.Get()
}
