package tgbotapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"shrinkbot/pkg/errors"
	"shrinkbot/pkg/logger"
	"shrinkbot/pkg/telegram"
)

// Bot represents a Telegram bot that implements telegram.Bot interface
type Bot struct {
	api          *tgbotapi.BotAPI
	httpClient   *http.Client
	fileEndpoint string
	cfg          Config
	log          *logger.Logger
	mu           sync.RWMutex
	running      bool
	msgHandler   func(telegram.Update) // Handler works with abstracted Update
	rateLimiter  *rate.Limiter
}

// Config contains Telegram bot configuration
type Config struct {
	Token          string
	Debug          bool
	Timeout        int    // Long polling timeout in seconds
	WebhookURL     string // If set, register webhook instead of polling
	WebhookSecret  string
	HTTPTimeout    time.Duration
	RateLimitBurst int    // Rate limiter burst (default: 30)
	RateLimitRate  int    // Rate limiter per second (default: 20)
	APIEndpoint    string // Bot API method endpoint, defaults to api.telegram.org
	FileEndpoint   string // Bot API file endpoint, defaults to api.telegram.org
}

// NewBot creates a new Telegram bot instance that implements telegram.Bot interface
func NewBot(cfg Config, log *logger.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram bot token is required")
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 60
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 75 * time.Second
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 30
	}
	if cfg.RateLimitRate == 0 {
		cfg.RateLimitRate = 20
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.FileEndpoint == "" {
		cfg.FileEndpoint = tgbotapi.FileEndpoint
	}

	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(redact(err, cfg.Token), "failed to create telegram bot")
	}

	api.Debug = cfg.Debug

	log.Infow("Authorized on telegram", "account", api.Self.UserName)

	return &Bot{
		api:          api,
		httpClient:   httpClient,
		fileEndpoint: cfg.FileEndpoint,
		cfg:          cfg,
		log:          log.With("component", "telegram_bot"),
		rateLimiter:  rate.NewLimiter(rate.Limit(cfg.RateLimitRate), cfg.RateLimitBurst),
	}, nil
}

// Start begins polling for updates (or registers the webhook and blocks)
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("bot is already running")
	}
	b.running = true
	b.mu.Unlock()

	if b.cfg.WebhookURL != "" {
		if err := b.SetWebhook(b.cfg.WebhookURL, b.cfg.WebhookSecret); err != nil {
			b.Stop()
			return err
		}
		b.log.Infow("Bot running in webhook mode, not starting polling")
		<-ctx.Done()
		b.Stop()
		return ctx.Err()
	}

	// getUpdates is refused while a webhook is registered
	if err := b.DeleteWebhook(false); err != nil {
		b.log.Warnw("Failed to delete webhook before polling", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.Timeout
	u.AllowedUpdates = []string{"message"}

	updates := b.api.GetUpdatesChan(u)

	b.log.Infow("Starting to poll for updates")

	for {
		select {
		case <-ctx.Done():
			b.log.Infow("Stopping bot due to context cancellation")
			b.Stop()
			return ctx.Err()

		case tgUpdate, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(convertUpdate(tgUpdate))
		}
	}
}

func (b *Bot) dispatch(update telegram.Update) {
	b.mu.RLock()
	handler := b.msgHandler
	b.mu.RUnlock()

	if handler != nil {
		handler(update)
	}
}

// Stop stops the bot
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}

	if b.cfg.WebhookURL == "" {
		b.api.StopReceivingUpdates()
	}
	b.running = false
	b.log.Infow("Bot stopped")
}

// SetHandler sets the message handler (uses abstracted Update type)
func (b *Bot) SetHandler(handler func(telegram.Update)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgHandler = handler
}

// SendMessage sends a plain text message
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := b.rateLimiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter error")
	}

	msg := tgbotapi.NewMessage(chatID, text)

	if _, err := b.api.Send(msg); err != nil {
		err = redact(err, b.cfg.Token)
		b.log.Errorw("Failed to send message", "chat_id", chatID, "error", err)
		return errors.Wrap(err, "failed to send telegram message")
	}

	return nil
}

// SendDocument uploads file as a document attachment
func (b *Bot) SendDocument(ctx context.Context, chatID int64, file telegram.FileUpload) error {
	if err := b.rateLimiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter error")
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: file.Name, Bytes: file.Data})
	doc.Caption = file.Caption

	if _, err := b.api.Send(doc); err != nil {
		err = redact(err, b.cfg.Token)
		b.log.Errorw("Failed to send document",
			"chat_id", chatID,
			"file_name", file.Name,
			"error", err,
		)
		return errors.Wrap(err, "failed to send telegram document")
	}

	return nil
}

// SendChatAction shows a chat action such as "sending a file"
func (b *Bot) SendChatAction(ctx context.Context, chatID int64, action telegram.ChatAction) error {
	if err := b.rateLimiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter error")
	}

	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, string(action))); err != nil {
		return errors.Wrap(redact(err, b.cfg.Token), "failed to send chat action")
	}
	return nil
}

// DownloadFile resolves fileID and fetches its content, refusing anything above maxBytes
func (b *Bot) DownloadFile(ctx context.Context, fileID string, maxBytes int64) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, errors.WithKind(errors.Wrap(redact(err, b.cfg.Token), "failed to resolve file"), errors.ErrRetrieval)
	}

	if maxBytes > 0 && int64(file.FileSize) > maxBytes {
		return nil, errors.WithKind(
			errors.Newf("file is %d bytes, limit is %d", file.FileSize, maxBytes),
			errors.ErrSourceTooLarge,
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(b.fileEndpoint, b.cfg.Token, file.FilePath), nil)
	if err != nil {
		return nil, errors.WithKind(errors.Wrap(redact(err, b.cfg.Token), "failed to build download request"), errors.ErrRetrieval)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, errors.WithKind(errors.Wrap(redact(err, b.cfg.Token), "failed to download file"), errors.ErrRetrieval)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WithKind(errors.Newf("file download returned %s", resp.Status), errors.ErrRetrieval)
	}

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.WithKind(errors.Wrap(redact(err, b.cfg.Token), "failed to read file"), errors.ErrRetrieval)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, errors.WithKind(errors.Newf("file exceeds %d bytes", maxBytes), errors.ErrSourceTooLarge)
	}

	b.log.Debugw("Downloaded file", "file_id", fileID, "bytes", len(data))

	return data, nil
}

// IsRunning checks if bot is currently running
func (b *Bot) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// SetWebhook registers webhookURL; secret is echoed back by Telegram in every webhook request
func (b *Bot) SetWebhook(webhookURL, secret string) error {
	params := tgbotapi.Params{"url": webhookURL}
	params.AddNonEmpty("secret_token", secret)
	params.AddNonZero("max_connections", 40)
	if err := params.AddInterface("allowed_updates", []string{"message"}); err != nil {
		return errors.Wrap(err, "failed to encode allowed updates")
	}

	if _, err := b.api.MakeRequest("setWebhook", params); err != nil {
		return errors.Wrap(redact(err, b.cfg.Token), "failed to set webhook")
	}

	b.log.Infow("Webhook configured successfully", "url", webhookURL)
	return nil
}

// DeleteWebhook removes webhook and returns to polling mode
func (b *Bot) DeleteWebhook(dropPendingUpdates bool) error {
	deleteConfig := tgbotapi.DeleteWebhookConfig{
		DropPendingUpdates: dropPendingUpdates,
	}

	if _, err := b.api.Request(deleteConfig); err != nil {
		return errors.Wrap(redact(err, b.cfg.Token), "failed to delete webhook")
	}

	return nil
}

// Verify Bot implements telegram.Bot interface at compile time
var _ telegram.Bot = (*Bot)(nil)

// redact strips the bot token from transport errors; request URLs embed it
func redact(err error, token string) error {
	if err == nil || token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}

// =============================================================================
// Conversion Functions (tgbotapi -> telegram abstractions)
// =============================================================================

func convertUpdate(tgUpdate tgbotapi.Update) telegram.Update {
	update := telegram.Update{
		UpdateID: tgUpdate.UpdateID,
	}

	if tgUpdate.Message != nil {
		update.Message = convertMessage(tgUpdate.Message)
	}

	return update
}

func convertMessage(tgMsg *tgbotapi.Message) *telegram.Message {
	msg := &telegram.Message{
		MessageID: tgMsg.MessageID,
		Text:      tgMsg.Text,
		Caption:   tgMsg.Caption,
		IsCommand: tgMsg.IsCommand(),
	}

	if tgMsg.From != nil {
		msg.From = convertUser(tgMsg.From)
	}

	if tgMsg.Chat != nil {
		msg.Chat = convertChat(tgMsg.Chat)
	}

	if msg.IsCommand {
		msg.Command = tgMsg.Command()
		msg.Arguments = tgMsg.CommandArguments()
	}

	for _, p := range tgMsg.Photo {
		msg.Photo = append(msg.Photo, telegram.PhotoSize{
			FileID:       p.FileID,
			FileUniqueID: p.FileUniqueID,
			Width:        p.Width,
			Height:       p.Height,
			FileSize:     int64(p.FileSize),
		})
	}

	if tgMsg.Document != nil {
		msg.Document = &telegram.Document{
			FileID:       tgMsg.Document.FileID,
			FileUniqueID: tgMsg.Document.FileUniqueID,
			FileName:     tgMsg.Document.FileName,
			MimeType:     tgMsg.Document.MimeType,
			FileSize:     int64(tgMsg.Document.FileSize),
		}
	}

	return msg
}

func convertUser(tgUser *tgbotapi.User) *telegram.User {
	return &telegram.User{
		ID:        tgUser.ID,
		FirstName: tgUser.FirstName,
		LastName:  tgUser.LastName,
		Username:  tgUser.UserName,
		IsBot:     tgUser.IsBot,
	}
}

func convertChat(tgChat *tgbotapi.Chat) *telegram.Chat {
	return &telegram.Chat{
		ID:       tgChat.ID,
		Type:     tgChat.Type,
		Title:    tgChat.Title,
		Username: tgChat.UserName,
	}
}
