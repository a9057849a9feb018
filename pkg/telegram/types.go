package telegram

import (
	"context"
)

// Bot interface abstracts telegram bot operations (for dependency injection)
type Bot interface {
	// Start starts the bot (polling or webhook mode) and blocks until ctx is done
	Start(ctx context.Context) error

	// Stop stops the bot
	Stop()

	// SetHandler sets update handler; it is called synchronously for every update
	SetHandler(handler func(Update))

	// SendMessage sends a plain text message
	SendMessage(ctx context.Context, chatID int64, text string) error

	// SendDocument sends a file attachment with exact bytes (no recompression by Telegram)
	SendDocument(ctx context.Context, chatID int64, file FileUpload) error

	// SendChatAction shows a transient status like "sending a file..."
	SendChatAction(ctx context.Context, chatID int64, action ChatAction) error

	// DownloadFile fetches a file by ID, refusing files larger than maxBytes
	DownloadFile(ctx context.Context, fileID string, maxBytes int64) ([]byte, error)
}

// FileUpload is an outgoing document
type FileUpload struct {
	Name    string
	Data    []byte
	Caption string
}

// ChatAction is a status shown in the chat header
type ChatAction string

const (
	ChatActionTyping         ChatAction = "typing"
	ChatActionUploadDocument ChatAction = "upload_document"
)

// TemplateRenderer defines interface for rendering message templates
type TemplateRenderer interface {
	// Render renders a template with data (accepts any type - struct or map)
	Render(templatePath string, data interface{}) (string, error)
}
