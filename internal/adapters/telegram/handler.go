package telegram

import (
	"context"
	"time"

	"shrinkbot/internal/domain/conversation"
	"shrinkbot/internal/metrics"
	"shrinkbot/pkg/errors"
	"shrinkbot/pkg/logger"
	"shrinkbot/pkg/telegram"
)

// ConversationService consumes classified user events
type ConversationService interface {
	Handle(ctx context.Context, telegramID, chatID int64, ev conversation.Event) error
}

// Handler turns Telegram updates into conversation events.
// Commands go through the command registry; everything else is classified by content.
type Handler struct {
	commands     *telegram.CommandRegistry
	conversation ConversationService
	log          *logger.Logger
}

// NewHandler creates a new telegram handler with /start, /help and /cancel registered
func NewHandler(bot telegram.Bot, conv ConversationService, log *logger.Logger) *Handler {
	h := &Handler{
		commands:     telegram.NewCommandRegistry(bot, log),
		conversation: conv,
		log:          log.With("component", "telegram_handler"),
	}

	h.commands.Use(telegram.RecoveryMiddleware(h.log))
	h.commands.Use(telegram.LoggingMiddleware(h.log))
	h.commands.Use(telegram.MetricsMiddleware(func(command string, err error, _ time.Duration) {
		metrics.RecordCommand(command, err)
	}))

	h.commands.MustRegister(telegram.CommandConfig{
		Name:        "start",
		Description: "Start the compression process",
		Handler:     h.eventCommand(conversation.EventStart),
	})
	h.commands.MustRegister(telegram.CommandConfig{
		Name:        "help",
		Description: "Show usage instructions",
		Handler:     h.eventCommand(conversation.EventHelp),
	})
	h.commands.MustRegister(telegram.CommandConfig{
		Name:        "cancel",
		Description: "Cancel the current operation",
		Handler:     h.eventCommand(conversation.EventCancel),
	})
	h.commands.SetFallback(func(ctx *telegram.CommandContext) error {
		return h.conversation.Handle(ctx.Ctx, ctx.TelegramID, ctx.ChatID, conversation.Event{
			Kind:    conversation.EventCommand,
			Command: ctx.Command,
			Text:    ctx.RawMessage,
		})
	})

	return h
}

// Commands exposes the registry, e.g. for publishing the command list
func (h *Handler) Commands() *telegram.CommandRegistry {
	return h.commands
}

func (h *Handler) eventCommand(kind conversation.EventKind) telegram.CommandHandler {
	return func(ctx *telegram.CommandContext) error {
		return h.conversation.Handle(ctx.Ctx, ctx.TelegramID, ctx.ChatID, conversation.Event{
			Kind:    kind,
			Command: ctx.Command,
			Text:    ctx.RawMessage,
		})
	}
}

// HandleUpdate processes one update; it matches telegram.UpdateHandler
func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) {
	if !update.HasMessage() {
		return
	}

	msg := update.Message
	telegramID := update.SenderID()
	chatID := msg.ChatID()
	if telegramID == 0 || chatID == 0 {
		h.log.Debugw("Skipping message without sender", "update_id", update.UpdateID)
		return
	}

	start := time.Now()
	kind, err := h.route(ctx, telegramID, chatID, msg)
	metrics.RecordUpdate(kind, time.Since(start), err)

	if err != nil && !errors.Is(err, context.Canceled) {
		h.log.Errorw("Failed to handle message",
			"telegram_id", telegramID,
			"message_id", msg.MessageID,
			"kind", kind,
			"error", err,
		)
	}
}

func (h *Handler) route(ctx context.Context, telegramID, chatID int64, msg *telegram.Message) (string, error) {
	if msg.IsCommand {
		return "command", h.commands.Handle(ctx, telegramID, chatID, msg.Command, msg.Arguments, msg.Text)
	}

	ev := EventFromMessage(msg)
	return ev.Kind.String(), h.conversation.Handle(ctx, telegramID, chatID, ev)
}

// EventFromMessage classifies a non-command message
func EventFromMessage(msg *telegram.Message) conversation.Event {
	if photo, ok := msg.LargestPhoto(); ok {
		return conversation.Event{
			Kind: conversation.EventPhoto,
			Photo: &conversation.PhotoRef{
				FileID:       photo.FileID,
				FileUniqueID: photo.FileUniqueID,
				FileSize:     photo.FileSize,
			},
		}
	}

	if msg.HasImageDocument() {
		doc := msg.Document
		return conversation.Event{
			Kind: conversation.EventPhoto,
			Photo: &conversation.PhotoRef{
				FileID:       doc.FileID,
				FileUniqueID: doc.FileUniqueID,
				FileSize:     doc.FileSize,
				FileName:     doc.FileName,
				MimeType:     doc.MimeType,
			},
		}
	}

	if msg.Text != "" {
		return conversation.Event{Kind: conversation.EventText, Text: msg.Text}
	}

	return conversation.Event{Kind: conversation.EventOther}
}

// UpdateKind labels an update for metrics without handling it
func UpdateKind(update telegram.Update) string {
	if !update.HasMessage() {
		return "none"
	}
	if update.Message.IsCommand {
		return "command"
	}
	return EventFromMessage(update.Message).Kind.String()
}
