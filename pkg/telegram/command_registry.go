package telegram

import (
	"context"
	"sort"
	"strings"

	"shrinkbot/pkg/errors"
	"shrinkbot/pkg/logger"
)

// CommandContext contains all data for command execution
type CommandContext struct {
	Ctx        context.Context
	TelegramID int64
	ChatID     int64
	Command    string
	Args       string
	RawMessage string
	Bot        Bot // Bot interface for sending messages
}

// CommandHandler is a function that handles a command
type CommandHandler func(ctx *CommandContext) error

// CommandMiddleware wraps command handlers with additional logic
type CommandMiddleware func(next CommandHandler) CommandHandler

// CommandConfig defines a command registration
type CommandConfig struct {
	Name        string              // Primary command name (e.g., "start")
	Aliases     []string            // Alternative names
	Description string              // Help text
	Handler     CommandHandler      // Command handler function
	Middleware  []CommandMiddleware // Command-specific middleware
	Hidden      bool                // Don't list in Commands()
}

// CommandRegistry manages command registration and routing
type CommandRegistry struct {
	commands   map[string]*CommandConfig // command name -> config
	middleware []CommandMiddleware       // Global middleware
	fallback   CommandHandler            // Unknown commands
	bot        Bot
	log        *logger.Logger
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry(bot Bot, log *logger.Logger) *CommandRegistry {
	return &CommandRegistry{
		commands:   make(map[string]*CommandConfig),
		middleware: make([]CommandMiddleware, 0),
		bot:        bot,
		log:        log.With("component", "command_registry"),
	}
}

// Register registers a command with the registry
func (cr *CommandRegistry) Register(config CommandConfig) error {
	if config.Name == "" {
		return errors.Wrap(errors.ErrInvalidInput, "command name is required")
	}
	if config.Handler == nil {
		return errors.Wrapf(errors.ErrInvalidInput, "command %s has no handler", config.Name)
	}

	names := append([]string{config.Name}, config.Aliases...)
	for _, name := range names {
		name = normalizeCommand(name)
		if _, exists := cr.commands[name]; exists {
			return errors.Wrapf(errors.ErrAlreadyExists, "command %s", name)
		}
	}

	cfg := config
	for _, name := range names {
		cr.commands[normalizeCommand(name)] = &cfg
	}

	cr.log.Debugw("Registered command",
		"name", config.Name,
		"aliases", config.Aliases,
	)
	return nil
}

// MustRegister registers a command and panics on error (for init-time registration)
func (cr *CommandRegistry) MustRegister(config CommandConfig) {
	if err := cr.Register(config); err != nil {
		panic(err)
	}
}

// SetFallback sets the handler for commands nobody registered
func (cr *CommandRegistry) SetFallback(handler CommandHandler) {
	cr.fallback = handler
}

// Use adds global middleware (applied to all commands, fallback included)
func (cr *CommandRegistry) Use(middleware CommandMiddleware) {
	cr.middleware = append(cr.middleware, middleware)
}

// Handle routes command to registered handler
func (cr *CommandRegistry) Handle(ctx context.Context, telegramID, chatID int64, command, args, rawMessage string) error {
	command = normalizeCommand(command)

	var handler CommandHandler
	config, exists := cr.commands[command]
	switch {
	case exists:
		handler = Chain(config.Handler, config.Middleware...)
	case cr.fallback != nil:
		cr.log.Debugw("Unknown command, using fallback",
			"command", command,
			"telegram_id", telegramID,
		)
		handler = cr.fallback
	default:
		return errors.Wrapf(errors.ErrNotFound, "command /%s", command)
	}

	handler = Chain(handler, cr.middleware...)

	cmdCtx := &CommandContext{
		Ctx:        ctx,
		TelegramID: telegramID,
		ChatID:     chatID,
		Command:    command,
		Args:       args,
		RawMessage: rawMessage,
		Bot:        cr.bot,
	}

	if err := handler(cmdCtx); err != nil {
		return errors.Wrapf(err, "command /%s", command)
	}
	return nil
}

// Commands returns visible registered commands sorted by name
func (cr *CommandRegistry) Commands() []*CommandConfig {
	seen := make(map[string]bool)
	commands := make([]*CommandConfig, 0)

	for _, config := range cr.commands {
		if seen[config.Name] || config.Hidden {
			continue
		}
		seen[config.Name] = true
		commands = append(commands, config)
	}

	sort.Slice(commands, func(i, j int) bool { return commands[i].Name < commands[j].Name })
	return commands
}

// HasCommand checks if command is registered
func (cr *CommandRegistry) HasCommand(command string) bool {
	_, exists := cr.commands[normalizeCommand(command)]
	return exists
}

func normalizeCommand(command string) string {
	return strings.ToLower(strings.TrimSpace(command))
}
